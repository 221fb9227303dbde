package secerr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is returned for malformed or rejected input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a token, challenge or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a challenge or window has elapsed.
	ErrExpired = errors.New("expired")

	// ErrExhausted is returned when an attempt limit has been reached.
	ErrExhausted = errors.New("attempt limit exhausted")

	// ErrIntegrity is returned on signature or ciphertext verification failure.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrLocked is returned while an account or session lockout is active.
	ErrLocked = errors.New("locked")

	// ErrStorage is returned when the persistence layer fails.
	ErrStorage = errors.New("storage failure")
)

// LockoutError carries the moment a lockout ends. It unwraps to ErrLocked so
// callers can match it with errors.Is.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockoutError) Unwrap() error { return ErrLocked }

// RetryAfter extracts the remaining lockout duration from err, if any.
func RetryAfter(err error, now time.Time) (time.Duration, bool) {
	var le *LockoutError
	if !errors.As(err, &le) {
		return 0, false
	}
	remaining := le.Until.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
