// Package allowlist gates logins to an invite-only roster and enforces a
// time-boxed lockout after repeated failures.
package allowlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/family-messenger/securecore/internal/secerr"
	"github.com/family-messenger/securecore/internal/vault"
)

const (
	// DefaultMaxAttempts is the failure budget before an identifier is blocked.
	DefaultMaxAttempts = 5
	// DefaultLockoutWindow is how long the block lasts once the budget is spent.
	DefaultLockoutWindow = 15 * time.Minute
)

type attemptRecord struct {
	count         int
	lastAttemptAt time.Time
}

// Gate checks roster membership and tracks failed attempts per identifier.
// All bookkeeping happens under one mutex so concurrent login attempts for
// the same identifier cannot race on the counter.
type Gate struct {
	repo        Repository
	logger      *slog.Logger
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string]*attemptRecord
}

// NewGate builds a gate over the given roster repository with default limits.
func NewGate(repo Repository, logger *slog.Logger) *Gate {
	return &Gate{
		repo:        repo,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultLockoutWindow,
		now:         time.Now,
		attempts:    make(map[string]*attemptRecord),
	}
}

// IsAllowed resolves the sanitized identity tuple against the roster,
// requiring an active entry. Matching is case-insensitive.
func (g *Gate) IsAllowed(ctx context.Context, firstName, lastName, email string) (Entry, error) {
	firstName = vault.SanitizeInput(firstName)
	lastName = vault.SanitizeInput(lastName)
	email = vault.SanitizeInput(email)

	entry, err := g.repo.LookupByIdentity(ctx, firstName, lastName, email)
	if err != nil {
		return Entry{}, err
	}
	if !entry.Active {
		return Entry{}, fmt.Errorf("roster entry inactive: %w", secerr.ErrNotFound)
	}
	return entry, nil
}

// RecordFailedAttempt bumps the failure counter for identifier, resetting it
// first when the lockout window has already elapsed. Reports whether the
// threshold has been reached.
func (g *Gate) RecordFailedAttempt(identifier string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	record, ok := g.attempts[identifier]
	if !ok {
		record = &attemptRecord{}
		g.attempts[identifier] = record
	}
	if now.Sub(record.lastAttemptAt) > g.window {
		record.count = 0
	}
	record.count++
	record.lastAttemptAt = now

	if record.count >= g.maxAttempts {
		g.logger.Warn("identifier reached failure threshold", "identifier", identifier, "count", record.count)
		return true
	}
	return false
}

// IsBlocked reports whether identifier is inside an active lockout window and
// how long remains. A record whose window has passed is cleared.
func (g *Gate) IsBlocked(identifier string) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.attempts[identifier]
	if !ok || record.count < g.maxAttempts {
		return false, 0
	}

	remaining := g.window - g.now().Sub(record.lastAttemptAt)
	if remaining <= 0 {
		delete(g.attempts, identifier)
		return false, 0
	}
	return true, remaining
}

// ClearFailedAttempts drops the record for identifier. Called only after a
// fully successful login.
func (g *Gate) ClearFailedAttempts(identifier string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, identifier)
}
