package auth

import (
	"sync"
	"time"
)

const (
	// DefaultRateWindow is the sliding window for sensitive-operation calls.
	DefaultRateWindow = time.Minute
	// DefaultRateMax is the call budget per identifier inside the window.
	DefaultRateMax = 10
)

// RateLimiter throttles sensitive operations per identifier over a sliding
// window, independent of the login failure lockout.
type RateLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu    sync.Mutex
	calls map[string][]time.Time
}

// NewRateLimiter builds a limiter with the default window and budget.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		window: DefaultRateWindow,
		max:    DefaultRateMax,
		now:    time.Now,
		calls:  make(map[string][]time.Time),
	}
}

// Allow records a call for identifier and reports whether it fits the
// budget. Calls outside the window are dropped from the ledger first.
func (r *RateLimiter) Allow(identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := r.calls[identifier][:0]
	for _, at := range r.calls[identifier] {
		if now.Sub(at) < r.window {
			recent = append(recent, at)
		}
	}

	if len(recent) >= r.max {
		r.calls[identifier] = recent
		return false
	}
	r.calls[identifier] = append(recent, now)
	return true
}
