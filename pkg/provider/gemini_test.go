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

func newGeminiFixture(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(GeminiConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "gemini-2.0-flash",
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func geminiRequest() domain.SynapsysRequest {
	return domain.SynapsysRequest{
		Sender:            "acme",
		Content:           "hello",
		Context:           map[string]any{},
		Provider:          "gemini",
		SystemInstruction: "be helpful",
	}
}

func TestNewGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(GeminiConfig{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestGeminiGenerateSuccess(t *testing.T) {
	var captured geminiGenerateRequest
	p := newGeminiFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "hi "}, {"text": "there"}}}},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     4,
				"candidatesTokenCount": 6,
				"totalTokenCount":      10,
			},
		})
	})

	resp, err := p.Generate(context.Background(), geminiRequest())
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Content, "multi-part candidates are concatenated")
	assert.Equal(t, domain.TokenUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10}, resp.Usage)
	assert.Equal(t, "gemini", resp.ProviderUsed)

	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "hello", captured.Contents[0].Parts[0].Text)
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "be helpful", captured.SystemInstruction.Parts[0].Text)
	assert.Empty(t, captured.Tools)
}

func TestGeminiGenerateFileSearchTool(t *testing.T) {
	var captured geminiGenerateRequest
	p := newGeminiFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "ok"}}}},
			},
		})
	})

	req := geminiRequest()
	req.Context[domain.ContextKeyFileSearchStore] = "acme-docs"

	_, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, captured.Tools, 1)
	require.NotNil(t, captured.Tools[0].FileSearch)
	assert.Equal(t, []string{"acme-docs"}, captured.Tools[0].FileSearch.FileSearchStoreNames)
}

func TestGeminiStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantType domain.ProviderErrorType
	}{
		{http.StatusBadRequest, domain.ProviderErrInvalidRequest},
		{http.StatusUnauthorized, domain.ProviderErrKey},
		{http.StatusForbidden, domain.ProviderErrKey},
		{http.StatusTooManyRequests, domain.ProviderErrRateLimit},
		{http.StatusInternalServerError, domain.ProviderErrUnavailable},
		{http.StatusBadGateway, domain.ProviderErrUnavailable},
		{http.StatusServiceUnavailable, domain.ProviderErrUnavailable},
		{http.StatusTeapot, domain.ProviderErrUnknown},
	}

	for _, tc := range tests {
		p := newGeminiFixture(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"upstream detail"}`))
		})

		_, err := p.Generate(context.Background(), geminiRequest())

		var provErr *domain.ProviderError
		require.True(t, errors.As(err, &provErr), "status %d", tc.status)
		assert.Equal(t, tc.wantType, provErr.Type, "status %d", tc.status)
	}
}

func TestGeminiGenerateNoCandidates(t *testing.T) {
	p := newGeminiFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := p.Generate(context.Background(), geminiRequest())
	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, domain.ProviderErrUnknown, provErr.Type)
}

func TestGeminiGenerateRespectsCancellation(t *testing.T) {
	p := newGeminiFixture(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, geminiRequest())
	assert.ErrorIs(t, err, context.Canceled, "cancellation surfaces as the context error, not a provider error")
}

func TestGeminiGenerateNoModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request should be sent without a model")
	}))
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), geminiRequest())
	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, domain.ProviderErrInvalidRequest, provErr.Type)
}
