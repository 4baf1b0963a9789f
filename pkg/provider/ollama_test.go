package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everlydev/synapsys/pkg/domain"
)

func newOllamaFixture(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOllamaProvider(OllamaConfig{BaseURL: server.URL, Logger: zerolog.Nop()})
}

func TestOllamaGenerateSuccess(t *testing.T) {
	var captured ollamaChatRequest
	p := newOllamaFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hello back"},
			"prompt_eval_count": 3,
			"eval_count":        4,
		})
	})

	req := domain.SynapsysRequest{
		Sender:            "acme",
		Content:           "hello",
		Provider:          "ollama",
		ModelVersion:      "llama3:8b",
		SystemInstruction: "be brief",
	}
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, domain.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, resp.Usage)
	assert.Equal(t, "ollama", resp.ProviderUsed)

	assert.Equal(t, "llama3:8b", captured.Model)
	assert.Equal(t, "be brief", captured.System)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestOllamaDefaultModel(t *testing.T) {
	var captured ollamaChatRequest
	p := newOllamaFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "ok"},
		})
	})

	_, err := p.Generate(context.Background(), domain.SynapsysRequest{Sender: "acme", Content: "hi", Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, defaultOllamaModel, captured.Model)
}

func TestOllamaStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantType domain.ProviderErrorType
	}{
		{http.StatusBadRequest, domain.ProviderErrInvalidRequest},
		{http.StatusNotFound, domain.ProviderErrUnavailable},
		{http.StatusTooManyRequests, domain.ProviderErrRateLimit},
		{http.StatusInternalServerError, domain.ProviderErrUnavailable},
	}

	for _, tc := range tests {
		p := newOllamaFixture(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		})

		_, err := p.Generate(context.Background(), domain.SynapsysRequest{Sender: "a", Content: "hi", Provider: "ollama"})

		var provErr *domain.ProviderError
		require.True(t, errors.As(err, &provErr), "status %d", tc.status)
		assert.Equal(t, tc.wantType, provErr.Type, "status %d", tc.status)
	}
}

func TestOllamaConnectionRefused(t *testing.T) {
	// Point at a closed port.
	p := NewOllamaProvider(OllamaConfig{BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})

	_, err := p.Generate(context.Background(), domain.SynapsysRequest{Sender: "a", Content: "hi", Provider: "ollama"})

	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, domain.ProviderErrUnavailable, provErr.Type)
	assert.True(t, provErr.Retryable())
}

func TestRegistryDuplicateIDs(t *testing.T) {
	_, err := NewRegistry(NewStubProvider("gemini"), NewStubProvider("gemini"))
	assert.Error(t, err)
}

func TestRegistryGetUnknown(t *testing.T) {
	registry, err := NewRegistry(NewStubProvider("gemini"))
	require.NoError(t, err)

	_, err = registry.Get("ollama")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}
