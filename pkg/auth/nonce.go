package auth

import (
	"sync"
	"time"
)

const (
	// DefaultNonceTTL is how long a consumed nonce stays in the ledger.
	DefaultNonceTTL = 5 * time.Minute
	// DefaultNonceMaxEntries bounds ledger memory; the oldest entries are
	// evicted first once the bound is reached.
	DefaultNonceMaxEntries = 200_000
)

type nonceEntry struct {
	key       string
	writtenAt time.Time
}

// NonceLedger tracks (sender, nonce) pairs already consumed. It is in-memory
// and reset on restart; replay protection is only as strong as process
// uptime, which is the accepted trade-off. All operations are safe for
// concurrent use.
type NonceLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	entries map[string]time.Time
	order   []nonceEntry
}

// NewNonceLedger creates a ledger with the given TTL and entry bound.
// Non-positive arguments fall back to the defaults.
func NewNonceLedger(ttl time.Duration, maxEntries int) *NonceLedger {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultNonceMaxEntries
	}
	return &NonceLedger{
		ttl:     ttl,
		max:     maxEntries,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// MarkIfNew atomically records the (sender, nonce) pair and reports whether it
// was absent beforehand. Two concurrent calls with the same pair can never
// both observe true.
func (l *NonceLedger) MarkIfNew(senderNormalized, nonce string) bool {
	key := senderNormalized + ":" + nonce
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictExpired(now)

	// Membership must be decided before capacity eviction: at the size bound,
	// evicting first could drop the very entry a replay is about to hit.
	if _, seen := l.entries[key]; seen {
		return false
	}
	for len(l.entries) >= l.max && len(l.order) > 0 {
		l.evictFront()
	}
	l.entries[key] = now
	l.order = append(l.order, nonceEntry{key: key, writtenAt: now})
	return true
}

// Len reports the current number of live entries.
func (l *NonceLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictExpired(l.now())
	return len(l.entries)
}

func (l *NonceLedger) evictExpired(now time.Time) {
	for len(l.order) > 0 && now.Sub(l.order[0].writtenAt) > l.ttl {
		l.evictFront()
	}
}

func (l *NonceLedger) evictFront() {
	head := l.order[0]
	l.order = l.order[1:]
	delete(l.entries, head.key)
}
