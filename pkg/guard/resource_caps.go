package guard

import (
	"strings"

	"github.com/everlydev/synapsys/pkg/domain"
)

// DefaultMaxInputChars caps chat content length when no limit is configured.
const DefaultMaxInputChars = 4000

// ResourceCaps is the first pre-flight guard: it rejects blank content and
// content exceeding the configured character limit. The limit is read per
// request so configuration reloads take effect without restart.
type ResourceCaps struct {
	maxInputChars func() int
}

// NewResourceCaps creates the guard. maxInputChars is consulted on every
// inspection; nil falls back to the default limit.
func NewResourceCaps(maxInputChars func() int) *ResourceCaps {
	if maxInputChars == nil {
		maxInputChars = func() int { return DefaultMaxInputChars }
	}
	return &ResourceCaps{maxInputChars: maxInputChars}
}

// ID identifies the guard in violations and audit logs.
func (g *ResourceCaps) ID() string { return "resource_caps" }

// Priority runs resource caps before content guards.
func (g *ResourceCaps) Priority() int { return 10 }

// AppliesTo matches every sender.
func (g *ResourceCaps) AppliesTo(string) bool { return true }

// Inspect enforces the caps.
func (g *ResourceCaps) Inspect(req domain.SynapsysRequest) error {
	content := req.Content
	if strings.TrimSpace(content) == "" {
		return domain.NewGuardViolation(domain.ReasonInvalidRequest, "Bad request.", g.ID(), map[string]any{
			"category": "empty_input",
		})
	}

	limit := g.maxInputChars()
	if limit <= 0 {
		limit = DefaultMaxInputChars
	}
	if length := len([]rune(content)); length > limit {
		return domain.NewGuardViolation(domain.ReasonInputTooLarge, "", g.ID(), map[string]any{
			"category":      "input_too_large",
			"length":        length,
			"max":           limit,
			"promptPreview": Preview(content, 200),
		})
	}
	return nil
}
