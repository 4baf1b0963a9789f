package provider

import (
	"context"
	"fmt"

	"github.com/everlydev/synapsys/pkg/domain"
)

// StubProvider answers deterministically without network calls. It stands in
// for a live backend when no credentials are configured, and in tests.
type StubProvider struct {
	id string
}

// NewStubProvider creates a stub with the given provider id.
func NewStubProvider(id string) *StubProvider {
	return &StubProvider{id: id}
}

// ProviderID implements LlmProvider.
func (p *StubProvider) ProviderID() string { return p.id }

// Generate echoes the request content with a stub marker.
func (p *StubProvider) Generate(ctx context.Context, req domain.SynapsysRequest) (domain.LlmResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.LlmResponse{}, err
	}
	return domain.LlmResponse{
		Content:      fmt.Sprintf("[stub:%s] %s", p.id, req.Content),
		Usage:        domain.TokenUsage{},
		ProviderUsed: p.id,
	}, nil
}
