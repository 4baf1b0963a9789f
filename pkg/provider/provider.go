// Package provider integrates the concrete LLM backends the broker can
// dispatch to, behind a single Generate capability with typed failures.
package provider

import (
	"context"
	"fmt"

	"github.com/everlydev/synapsys/pkg/domain"
)

// LlmProvider is one chat-completion backend. Generate must respect context
// cancellation: when the broker's dispatch timeout fires, the context is
// cancelled and the in-flight call is abandoned.
type LlmProvider interface {
	ProviderID() string
	Generate(ctx context.Context, req domain.SynapsysRequest) (domain.LlmResponse, error)
}

// Registry indexes providers by id. An unknown id is a fatal configuration
// error, not a guard violation.
type Registry struct {
	byID map[string]LlmProvider
}

// NewRegistry indexes the given providers. Duplicate ids are rejected.
func NewRegistry(providers ...LlmProvider) (*Registry, error) {
	byID := make(map[string]LlmProvider, len(providers))
	for _, p := range providers {
		id := p.ProviderID()
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", id)
		}
		byID[id] = p
	}
	return &Registry{byID: byID}, nil
}

// Get resolves a provider by id.
func (r *Registry) Get(id string) (LlmProvider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, id)
	}
	return p, nil
}

// IDs lists registered provider ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
