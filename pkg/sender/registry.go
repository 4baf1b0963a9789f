// Package sender loads, caches, and applies per-sender configuration:
// the config registry backed by a JSON file store, and the priority-ordered
// sender strategies that turn an authenticated message into a fully-populated
// provider request.
package sender

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/everlydev/synapsys/pkg/domain"
)

// Store is the backing source of sender configuration records.
type Store interface {
	// Load reads and decodes the record for a normalized sender id.
	Load(ctx context.Context, senderNormalized string) (domain.SenderConfig, string, error)
	// Exists probes for a record without decoding it. It must not fail.
	Exists(senderNormalized string) bool
}

// Registry serves validated sender configuration from an immutable
// process-lifetime cache. Concurrent first access for the same sender loads
// at most once; failed loads are not cached.
type Registry struct {
	store Store
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]domain.SenderConfig
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		cache: make(map[string]domain.SenderConfig),
	}
}

// Normalize lower-cases and trims a sender id.
func Normalize(senderID string) (string, error) {
	trimmed := strings.TrimSpace(senderID)
	if trimmed == "" {
		return "", fmt.Errorf("senderId is required")
	}
	return strings.ToLower(trimmed), nil
}

// HasConfig reports whether configuration exists for the sender, checking the
// cache first and falling back to an existence probe. It never fails.
func (r *Registry) HasConfig(senderRaw string) bool {
	key, err := Normalize(senderRaw)
	if err != nil {
		return false
	}

	r.mu.RLock()
	_, cached := r.cache[key]
	r.mu.RUnlock()
	if cached {
		return true
	}
	return r.store.Exists(key)
}

// GetRequired returns the validated configuration for a normalized sender id,
// loading it on first access.
func (r *Registry) GetRequired(ctx context.Context, senderID string) (domain.SenderConfig, error) {
	key, err := Normalize(senderID)
	if err != nil {
		return domain.SenderConfig{}, err
	}

	r.mu.RLock()
	cfg, cached := r.cache[key]
	r.mu.RUnlock()
	if cached {
		return cfg, nil
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		loaded, source, err := r.store.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSenderNotFound, key, err)
		}
		if err := loaded.Validate(source); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSenderNotFound, key, err)
		}

		r.mu.Lock()
		r.cache[key] = loaded
		r.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return domain.SenderConfig{}, err
	}
	return result.(domain.SenderConfig), nil
}
