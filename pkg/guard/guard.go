// Package guard implements the ordered pre-flight / post-flight inspection
// chain that brackets every provider dispatch.
package guard

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/everlydev/synapsys/pkg/domain"
)

// PreFlight guards inspect a request before provider dispatch and may abort
// it by returning a *domain.GuardViolation.
type PreFlight interface {
	ID() string
	Priority() int
	AppliesTo(sender string) bool
	Inspect(req domain.SynapsysRequest) error
}

// PostFlight guards sanitize provider output after dispatch. Sanitize always
// succeeds; a guard that cannot clean content replaces it with a safe
// fallback instead of failing the request.
type PostFlight interface {
	ID() string
	Priority() int
	AppliesTo(sender string) bool
	Sanitize(req domain.SynapsysRequest, output string) string
}

// Chain holds both guard lists, each sorted once at construction by ascending
// priority and iterated in that fixed order per request.
type Chain struct {
	pre    []PreFlight
	post   []PostFlight
	logger zerolog.Logger
}

// NewChain sorts and wraps the given guards.
func NewChain(logger zerolog.Logger, pre []PreFlight, post []PostFlight) *Chain {
	sortedPre := append([]PreFlight(nil), pre...)
	sort.SliceStable(sortedPre, func(i, j int) bool {
		return sortedPre[i].Priority() < sortedPre[j].Priority()
	})
	sortedPost := append([]PostFlight(nil), post...)
	sort.SliceStable(sortedPost, func(i, j int) bool {
		return sortedPost[i].Priority() < sortedPost[j].Priority()
	})
	return &Chain{pre: sortedPre, post: sortedPost, logger: logger}
}

// RunPreFlight executes applicable pre-flight guards in order, stopping at
// the first violation.
func (c *Chain) RunPreFlight(req domain.SynapsysRequest) error {
	for _, g := range c.pre {
		if !g.AppliesTo(req.Sender) {
			continue
		}
		if err := g.Inspect(req); err != nil {
			return err
		}
	}
	return nil
}

// RunPostFlight pipes provider output through applicable post-flight guards
// in order, accumulating rewrites. A guard that changes content is logged for
// audit.
func (c *Chain) RunPostFlight(req domain.SynapsysRequest, result domain.LlmResponse) domain.LlmResponse {
	safe := result.Content
	for _, g := range c.post {
		if !g.AppliesTo(req.Sender) {
			continue
		}
		before := safe
		safe = g.Sanitize(req, safe)
		if safe != before {
			c.logger.Warn().
				Str("event", "TX_SANITIZED").
				Str("guard", g.ID()).
				Str("sender", req.Sender).
				Msg("content modified by post-flight guard")
		}
	}
	if safe != result.Content {
		return domain.LlmResponse{Content: safe, Usage: result.Usage, ProviderUsed: result.ProviderUsed}
	}
	return result
}

// PreFlightCount reports how many pre-flight guards are registered.
func (c *Chain) PreFlightCount() int { return len(c.pre) }

// PostFlightCount reports how many post-flight guards are registered.
func (c *Chain) PostFlightCount() int { return len(c.post) }
