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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider talks to the Gemini generateContent REST API.
type GeminiProvider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	defaultModel string
	logger       zerolog.Logger
}

// GeminiConfig configures the live Gemini provider.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Logger       zerolog.Logger
}

// NewGeminiProvider creates the live provider. The API key is required.
func NewGeminiProvider(cfg GeminiConfig) (*GeminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing Gemini API key in configuration")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	p := &GeminiProvider{
		client:       &http.Client{Timeout: 180 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		logger:       cfg.Logger,
	}
	p.logger.Warn().Msg("live gemini provider created, network calls enabled")
	return p, nil
}

// ProviderID implements LlmProvider.
func (p *GeminiProvider) ProviderID() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFileSearch struct {
	FileSearchStoreNames []string `json:"fileSearchStoreNames"`
}

type geminiTool struct {
	FileSearch *geminiFileSearch `json:"fileSearch,omitempty"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate implements LlmProvider.
func (p *GeminiProvider) Generate(ctx context.Context, req domain.SynapsysRequest) (domain.LlmResponse, error) {
	model := req.ModelVersion
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrInvalidRequest,
			"no model configured for gemini request", nil)
	}

	payload := geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Content}}}},
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if store := fileSearchStore(req.Context); store != "" {
		payload.Tools = []geminiTool{{FileSearch: &geminiFileSearch{FileSearchStoreNames: []string{store}}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "encode gemini request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "build gemini request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.LlmResponse{}, ctx.Err()
		}
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnavailable, "gemini request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "read gemini response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.LlmResponse{}, mapGeminiStatus(resp.StatusCode, raw)
	}

	var decoded geminiGenerateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown, "decode gemini response", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return domain.LlmResponse{}, domain.NewProviderError(domain.ProviderErrUnknown,
			"gemini returned no candidates", nil)
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	usage := domain.TokenUsage{
		PromptTokens:     decoded.UsageMetadata.PromptTokenCount,
		CompletionTokens: decoded.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      decoded.UsageMetadata.TotalTokenCount,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return domain.LlmResponse{Content: text.String(), Usage: usage, ProviderUsed: p.ProviderID()}, nil
}

func mapGeminiStatus(status int, body []byte) error {
	msg := truncateOneLine(string(body), 500)
	switch status {
	case http.StatusBadRequest:
		return domain.NewProviderError(domain.ProviderErrInvalidRequest, "gemini rejected request: "+msg, nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewProviderError(domain.ProviderErrKey, "gemini authentication error: "+msg, nil)
	case http.StatusTooManyRequests:
		return domain.NewProviderError(domain.ProviderErrRateLimit, "gemini resources exhausted: "+msg, nil)
	case http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return domain.NewProviderError(domain.ProviderErrUnavailable, "gemini unavailable: "+msg, nil)
	default:
		return domain.NewProviderError(domain.ProviderErrUnknown, fmt.Sprintf("gemini HTTP %d: %s", status, msg), nil)
	}
}

func fileSearchStore(context map[string]any) string {
	raw, ok := context[domain.ContextKeyFileSearchStore]
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}

func truncateOneLine(s string, max int) string {
	t := strings.Join(strings.Fields(s), " ")
	if len(t) > max {
		return t[:max] + "..."
	}
	return t
}
