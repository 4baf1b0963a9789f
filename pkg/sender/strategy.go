package sender

import (
	"context"
	"math"
	"sort"

	"github.com/everlydev/synapsys/pkg/domain"
)

// Strategy turns an authenticated application message into a fully-populated
// provider request. Strategies are consulted in priority order (lower first);
// the first whose AppliesTo matches wins.
type Strategy interface {
	Priority() int
	AppliesTo(sender string) bool
	Complete(ctx context.Context, msg domain.ApplicationMessage) (domain.SynapsysRequest, error)
}

// SortStrategies orders strategies by ascending priority, stably.
func SortStrategies(strategies []Strategy) []Strategy {
	sorted := append([]Strategy(nil), strategies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return sorted
}

// Select returns the first strategy applying to the sender.
func Select(strategies []Strategy, sender string) (Strategy, error) {
	for _, s := range strategies {
		if s.AppliesTo(sender) {
			return s, nil
		}
	}
	return nil, domain.ErrNoStrategy
}

// RegistryStrategy completes requests for senders with registry
// configuration: provider id and model come from the record, and the request
// context is augmented per provider.
type RegistryStrategy struct {
	registry  *Registry
	augmenter *CompositeAugmenter
}

// NewRegistryStrategy creates the registry-backed strategy.
func NewRegistryStrategy(registry *Registry, augmenter *CompositeAugmenter) *RegistryStrategy {
	return &RegistryStrategy{registry: registry, augmenter: augmenter}
}

// Priority places the registry strategy ahead of the default.
func (s *RegistryStrategy) Priority() int { return 0 }

// AppliesTo matches senders that have a configuration record.
func (s *RegistryStrategy) AppliesTo(sender string) bool {
	return sender != "" && s.registry.HasConfig(sender)
}

// Complete builds the provider request from the sender's record. The system
// instruction is always left blank here; only the broker's resolvers set it.
func (s *RegistryStrategy) Complete(ctx context.Context, msg domain.ApplicationMessage) (domain.SynapsysRequest, error) {
	cfg, err := s.registry.GetRequired(ctx, msg.Sender)
	if err != nil {
		return domain.SynapsysRequest{}, err
	}

	reqContext := make(map[string]any, len(msg.Context))
	for k, v := range msg.Context {
		reqContext[k] = v
	}
	if s.augmenter != nil {
		reqContext = s.augmenter.Augment(reqContext, cfg)
	}

	return domain.NewSynapsysRequest(msg.Sender, msg.Content, reqContext, cfg.ProviderID, cfg.Model, "")
}

// DefaultStrategy is the catch-all: it always applies, so strategy selection
// can never fail.
type DefaultStrategy struct {
	providerID string
}

// NewDefaultStrategy creates the catch-all strategy routing to providerID
// ("gemini" when blank).
func NewDefaultStrategy(providerID string) *DefaultStrategy {
	if providerID == "" {
		providerID = "gemini"
	}
	return &DefaultStrategy{providerID: providerID}
}

// Priority places the default strategy last.
func (s *DefaultStrategy) Priority() int { return math.MaxInt }

// AppliesTo always matches.
func (s *DefaultStrategy) AppliesTo(string) bool { return true }

// Complete routes to the default provider with no model override.
func (s *DefaultStrategy) Complete(_ context.Context, msg domain.ApplicationMessage) (domain.SynapsysRequest, error) {
	sender := msg.Sender
	if sender == "" {
		sender = "unknown"
	}
	return domain.NewSynapsysRequest(sender, msg.Content, msg.Context, s.providerID, "", "")
}
