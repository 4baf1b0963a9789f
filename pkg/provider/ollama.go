package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/everlydev/synapsys/pkg/domain"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "qwen3:8b"
)

// OllamaProvider talks to a local Ollama server over its chat API.
type OllamaProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
	logger       zerolog.Logger
}

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Logger       zerolog.Logger
}

// NewOllamaProvider creates the provider with local defaults.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := strings.TrimSpace(cfg.DefaultModel)
	if model == "" {
		model = defaultOllamaModel
	}

	p := &OllamaProvider{
		client:       &http.Client{Timeout: 180 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: model,
		logger:       cfg.Logger,
	}
	p.logger.Warn().Str("base_url", p.baseURL).Msg("live ollama provider created, local-only calls enabled")
	return p
}

// ProviderID implements LlmProvider.
func (p *OllamaProvider) ProviderID() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	System   string          `json:"system,omitempty"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message         *ollamaMessage `json:"message"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
}

// Generate implements LlmProvider.
func (p *OllamaProvider) Generate(ctx context.Context, req domain.SynapsysRequest) (domain.LlmResponse, error) {
	model := req.ModelVersion
	if model == "" {
		model = p.defaultModel
	}

	payload := ollamaChatRequest{
		Model:    model,
		System:   req.SystemInstruction,
		Messages: []ollamaMessage{{Role: "user", Content: req.Content}},
		Stream:   false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "encode ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "build ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.LlmResponse{}, ctx.Err()
		}
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnavailable, "ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "read ollama response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.LlmResponse{}, p.mapStatus(resp.StatusCode, raw)
	}

	var decoded ollamaChatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "decode ollama response", err)
	}
	if decoded.Message == nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown,
			"ollama returned an empty response body", nil)
	}

	usage := domain.TokenUsage{
		PromptTokens:     decoded.PromptEvalCount,
		CompletionTokens: decoded.EvalCount,
		TotalTokens:      decoded.PromptEvalCount + decoded.EvalCount,
	}
	return domain.LlmResponse{Content: decoded.Message.Content, Usage: usage, ProviderUsed: p.ProviderID()}, nil
}

func (p *OllamaProvider) mapStatus(status int, body []byte) error {
	msg := truncateOneLine(string(body), 500)
	switch status {
	case http.StatusBadRequest:
		return domain.NewProviderError(domain.ProviderErrInvalidRequest, "ollama rejected request: "+msg, nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewProviderError(domain.ProviderErrKey, "ollama authentication/permission error: "+msg, nil)
	case http.StatusNotFound:
		return domain.NewProviderError(domain.ProviderErrUnavailable,
			fmt.Sprintf("ollama not found or model missing at %s: %s", p.baseURL, msg), nil)
	case http.StatusTooManyRequests:
		return domain.NewProviderError(domain.ProviderErrRateLimit, "ollama rate-limited the request: "+msg, nil)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return domain.NewProviderError(domain.ProviderErrUnavailable, "ollama unavailable: "+msg, nil)
	default:
		return domain.NewProviderError(domain.ProviderErrUnknown, fmt.Sprintf("ollama HTTP %d: %s", status, msg), nil)
	}
}
