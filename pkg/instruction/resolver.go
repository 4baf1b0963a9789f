// Package instruction resolves the per-sender system instruction that the
// broker injects into every provider request. Clients may never supply one.
package instruction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/everlydev/synapsys/pkg/domain"
	"github.com/everlydev/synapsys/pkg/sender"
)

// Resolver produces a system instruction for a request. Resolvers are
// consulted in priority order; the first non-blank result wins, and no match
// yields an empty instruction, which is valid.
type Resolver interface {
	Priority() int
	AppliesTo(sender string) bool
	Resolve(ctx context.Context, req domain.SynapsysRequest) (string, error)
}

// SortResolvers orders resolvers by ascending priority, stably.
func SortResolvers(resolvers []Resolver) []Resolver {
	sorted := append([]Resolver(nil), resolvers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return sorted
}

// Resolve walks the resolver list for the request's sender.
func Resolve(ctx context.Context, resolvers []Resolver, req domain.SynapsysRequest) (string, error) {
	for _, r := range resolvers {
		if !r.AppliesTo(req.Sender) {
			continue
		}
		candidate, err := r.Resolve(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(candidate) != "" {
			return candidate, nil
		}
	}
	return "", nil
}

// RegistryResolver reads the instruction file referenced by the sender's
// configuration, caching the text per sender for the process lifetime.
type RegistryResolver struct {
	registry *sender.Registry
	baseDir  string
	logger   zerolog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewRegistryResolver creates the registry-backed resolver. baseDir is the
// secrets directory instruction paths are resolved under.
func NewRegistryResolver(registry *sender.Registry, baseDir string, logger zerolog.Logger) *RegistryResolver {
	return &RegistryResolver{
		registry: registry,
		baseDir:  baseDir,
		logger:   logger,
		cache:    make(map[string]string),
	}
}

// Priority runs the registry resolver first.
func (r *RegistryResolver) Priority() int { return 0 }

// AppliesTo matches any non-blank sender.
func (r *RegistryResolver) AppliesTo(senderID string) bool {
	return strings.TrimSpace(senderID) != ""
}

// Resolve loads (and caches) the configured instruction text.
func (r *RegistryResolver) Resolve(ctx context.Context, req domain.SynapsysRequest) (string, error) {
	key, err := sender.Normalize(req.Sender)
	if err != nil {
		return "", nil
	}

	cfg, err := r.registry.GetRequired(ctx, key)
	if err != nil {
		return "", err
	}
	rel := strings.TrimSpace(cfg.SystemInstructionPath)
	if rel == "" {
		return "", nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	text, err := r.readInstruction(rel)
	if err != nil {
		return "", err
	}
	r.cache[key] = text
	return text, nil
}

func (r *RegistryResolver) readInstruction(relativePath string) (string, error) {
	path := filepath.Clean(filepath.Join(r.baseDir, relativePath))

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator-controlled sender config under the secrets dir
	if err != nil {
		return "", fmt.Errorf("failed to read system instruction file %s: %w", path, err)
	}
	text := string(data)

	sum := sha256.Sum256(data)
	r.logger.Info().
		Str("path", path).
		Int("bytes", len(text)).
		Str("sha256", hex.EncodeToString(sum[:])).
		Msg("loaded system instruction file")

	return text, nil
}

// NoopResolver terminates the chain with an empty instruction.
type NoopResolver struct{}

// Priority places the noop resolver last.
func (NoopResolver) Priority() int { return math.MaxInt }

// AppliesTo always matches.
func (NoopResolver) AppliesTo(string) bool { return true }

// Resolve returns the empty instruction.
func (NoopResolver) Resolve(context.Context, domain.SynapsysRequest) (string, error) {
	return "", nil
}
