package sender

import (
	"sort"
	"strings"

	"github.com/everlydev/synapsys/pkg/domain"
)

// ContextAugmenter enriches the request context with provider-specific
// entries derived from sender configuration.
type ContextAugmenter interface {
	Priority() int
	AppliesTo(providerID string) bool
	Augment(context map[string]any, cfg domain.SenderConfig) map[string]any
}

// CompositeAugmenter applies matching augmenters in priority order.
type CompositeAugmenter struct {
	augmenters []ContextAugmenter
}

// NewCompositeAugmenter sorts and wraps the given augmenters.
func NewCompositeAugmenter(augmenters ...ContextAugmenter) *CompositeAugmenter {
	sorted := append([]ContextAugmenter(nil), augmenters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &CompositeAugmenter{augmenters: sorted}
}

// Augment runs every augmenter applying to the configured provider.
func (c *CompositeAugmenter) Augment(context map[string]any, cfg domain.SenderConfig) map[string]any {
	current := context
	for _, a := range c.augmenters {
		if a.AppliesTo(cfg.ProviderID) {
			current = a.Augment(current, cfg)
		}
	}
	return current
}

// FileSearchStoreAugmenter exposes a configured file search store name to the
// gemini provider through the request context.
type FileSearchStoreAugmenter struct{}

// Priority runs the store augmenter first.
func (FileSearchStoreAugmenter) Priority() int { return 0 }

// AppliesTo matches the gemini provider only.
func (FileSearchStoreAugmenter) AppliesTo(providerID string) bool {
	return strings.EqualFold(providerID, "gemini")
}

// Augment copies the context and adds the store name when configured.
func (FileSearchStoreAugmenter) Augment(context map[string]any, cfg domain.SenderConfig) map[string]any {
	store := strings.TrimSpace(cfg.FileSearchStoreName)
	if store == "" {
		return context
	}
	out := make(map[string]any, len(context)+1)
	for k, v := range context {
		out[k] = v
	}
	out[domain.ContextKeyFileSearchStore] = store
	return out
}
