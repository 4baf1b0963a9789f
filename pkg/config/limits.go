package config

import (
	"sync/atomic"
	"time"
)

// LimitsHolder publishes immutable Limits snapshots to concurrent readers.
// Guards and the broker read through it on every request, so a reload is
// visible without restart.
type LimitsHolder struct {
	current atomic.Pointer[Limits]
}

// NewLimitsHolder seeds the holder with an initial snapshot.
func NewLimitsHolder(initial Limits) *LimitsHolder {
	h := &LimitsHolder{}
	h.current.Store(&initial)
	return h
}

// Load returns the current snapshot.
func (h *LimitsHolder) Load() Limits {
	return *h.current.Load()
}

// Store publishes a new snapshot.
func (h *LimitsHolder) Store(limits Limits) {
	h.current.Store(&limits)
}

// MaxInputChars returns the current input cap.
func (h *LimitsHolder) MaxInputChars() int {
	return h.Load().MaxInputChars
}

// ProviderTimeout returns the current provider dispatch timeout.
func (h *LimitsHolder) ProviderTimeout() time.Duration {
	return time.Duration(h.Load().ProviderTimeoutMS) * time.Millisecond
}
