package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContextKeyFileSearchStore is the request-context key carrying the name of a
// provider-side file search store, set by a context augmenter from sender
// configuration.
const ContextKeyFileSearchStore = "fileSearchStoreName"

// InboundMessage is the wire shape of the chat request body. The sender is
// never taken from the body; it comes from the authenticated principal.
type InboundMessage struct {
	Content string         `json:"content"`
	Context map[string]any `json:"context"`
}

// ApplicationMessage is an authenticated inbound chat message.
type ApplicationMessage struct {
	Sender    string
	Content   string
	Context   map[string]any
	Timestamp time.Time
}

// NewApplicationMessage validates and builds an ApplicationMessage.
func NewApplicationMessage(sender, content string, context map[string]any) (ApplicationMessage, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ApplicationMessage{}, fmt.Errorf("sender must not be blank")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ApplicationMessage{}, fmt.Errorf("content must not be blank")
	}
	if context == nil {
		context = map[string]any{}
	}
	return ApplicationMessage{
		Sender:    sender,
		Content:   content,
		Context:   context,
		Timestamp: time.Now(),
	}, nil
}

// SynapsysRequest is the fully-resolved request handed to the guard chain and
// the selected provider. SystemInstruction is only ever set by the broker
// after resolution; a non-blank value on an inbound request is rejected.
type SynapsysRequest struct {
	Sender            string
	Content           string
	Context           map[string]any
	Provider          string
	ModelVersion      string
	SystemInstruction string
}

// NewSynapsysRequest validates and builds a SynapsysRequest.
func NewSynapsysRequest(sender, content string, context map[string]any, provider, modelVersion, systemInstruction string) (SynapsysRequest, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return SynapsysRequest{}, fmt.Errorf("provider must not be blank")
	}
	if context == nil {
		context = map[string]any{}
	}
	return SynapsysRequest{
		Sender:            strings.TrimSpace(sender),
		Content:           content,
		Context:           context,
		Provider:          provider,
		ModelVersion:      strings.TrimSpace(modelVersion),
		SystemInstruction: systemInstruction,
	}, nil
}

// TokenUsage reports provider token accounting for a single generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LlmResponse is the raw result of one provider generation. The post-flight
// guard chain may replace Content but never Usage or ProviderUsed.
type LlmResponse struct {
	Content      string
	Usage        TokenUsage
	ProviderUsed string
}

// SynapsysResponse is the outbound JSON body for every chat outcome,
// successful or not.
type SynapsysResponse struct {
	Sender    string         `json:"sender"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// SuccessResponse assembles the success envelope from a sanitized provider
// result.
func SuccessResponse(result LlmResponse) SynapsysResponse {
	return SynapsysResponse{
		Sender:  "synapsys",
		Content: result.Content,
		Metadata: map[string]any{
			"status":            "success",
			"providerUsed":      result.ProviderUsed,
			"total_tokens":      result.Usage.TotalTokens,
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
		},
	}
}
