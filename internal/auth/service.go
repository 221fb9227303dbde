// Package auth composes the allowlist gate, OTP challenges and the biometric
// factor into a single short-circuiting login decision.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/family-messenger/securecore/internal/allowlist"
	"github.com/family-messenger/securecore/internal/events"
	"github.com/family-messenger/securecore/internal/otp"
	"github.com/family-messenger/securecore/internal/secerr"
	"github.com/family-messenger/securecore/internal/session"
)

const loginPrompt = "Confirm your identity to sign in to Family Messenger"

// Status classifies the outcome of a login attempt.
type Status string

const (
	StatusOK          Status = "ok"
	StatusOTPRequired Status = "otp_required"
	StatusDenied      Status = "denied"
	StatusBlocked     Status = "blocked"
)

// LoginRequest carries the identity tuple plus the optional OTP code from
// the second round trip.
type LoginRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	OTPCode   string `json:"otp_code,omitempty"`
}

// LoginResult is the structured outcome; callers render their own localized
// messages from Status and Reason, nothing here panics through the boundary.
type LoginResult struct {
	Status     Status          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	RetryAfter time.Duration   `json:"retry_after,omitempty"`
	Entry      allowlist.Entry `json:"entry,omitempty"`
	Tokens     *TokenPair      `json:"tokens,omitempty"`
}

// Service is the top-level login orchestrator.
type Service struct {
	gate      *allowlist.Gate
	otps      *otp.Service
	biometric session.Biometric
	limiter   *RateLimiter
	tokens    *TokenIssuer
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the orchestrator from its factors.
func NewService(gate *allowlist.Gate, otps *otp.Service, biometric session.Biometric, tokens *TokenIssuer, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		gate:      gate,
		otps:      otps,
		biometric: biometric,
		limiter:   NewRateLimiter(),
		tokens:    tokens,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Login runs the composed authentication sequence, short-circuiting on the
// first failing factor:
//
//  1. reject while the identifier is lockout-blocked
//  2. roster membership, counting a miss as a failed attempt
//  3. without a code, issue an OTP challenge and stop (not a failure)
//  4. with a code, verify it, counting a miss as a failed attempt
//  5. when biometric hardware is present and enrolled, require it
//  6. all factors passed: clear the failure counter and mint tokens
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	email := req.Email

	if blocked, remaining := s.gate.IsBlocked(email); blocked {
		s.audit(ctx, events.ActionLoginDenied, email, map[string]any{"reason": "lockout"})
		return LoginResult{Status: StatusBlocked, Reason: "account temporarily locked", RetryAfter: remaining}, nil
	}

	entry, err := s.gate.IsAllowed(ctx, req.FirstName, req.LastName, email)
	if err != nil {
		if !errors.Is(err, secerr.ErrNotFound) {
			return LoginResult{}, err
		}
		s.gate.RecordFailedAttempt(email)
		s.audit(ctx, events.ActionLoginDenied, email, map[string]any{"reason": "not_on_roster"})
		return LoginResult{Status: StatusDenied, Reason: "identity is not on the family roster"}, nil
	}

	if req.OTPCode == "" {
		if _, err := s.otps.Generate(ctx, email); err != nil {
			return LoginResult{}, fmt.Errorf("issue otp challenge: %w", err)
		}
		// Asking for the second factor is not a failed attempt.
		return LoginResult{Status: StatusOTPRequired, Reason: "one-time code required"}, nil
	}

	if err := s.otps.Verify(ctx, email, req.OTPCode); err != nil {
		if errors.Is(err, secerr.ErrStorage) {
			return LoginResult{}, err
		}
		s.gate.RecordFailedAttempt(email)
		s.audit(ctx, events.ActionLoginDenied, email, map[string]any{"reason": "otp_failed"})
		return LoginResult{Status: StatusDenied, Reason: "one-time code rejected"}, nil
	}

	if ok, reason := s.requireBiometric(ctx); !ok {
		s.gate.RecordFailedAttempt(email)
		s.audit(ctx, events.ActionLoginDenied, email, map[string]any{"reason": reason})
		return LoginResult{Status: StatusDenied, Reason: "biometric confirmation failed"}, nil
	}

	s.gate.ClearFailedAttempts(email)
	pair, err := s.tokens.Issue(entry.Email, entry.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.audit(ctx, events.ActionLoginSucceeded, email, nil)
	s.logger.Info("login succeeded", "email", entry.Email, "role", entry.Role)
	return LoginResult{Status: StatusOK, Entry: entry, Tokens: &pair}, nil
}

// requireBiometric enforces the biometric factor only when the platform can
// provide it; absence of hardware or enrollment skips the factor.
func (s *Service) requireBiometric(ctx context.Context) (bool, string) {
	hasHardware, err := s.biometric.HasHardware(ctx)
	if err != nil || !hasHardware {
		return true, ""
	}
	enrolled, err := s.biometric.IsEnrolled(ctx)
	if err != nil || !enrolled {
		return true, ""
	}
	ok, err := s.biometric.Authenticate(ctx, loginPrompt)
	if err != nil {
		s.logger.Warn("biometric factor error", "error", err)
		return false, "biometric_error"
	}
	if !ok {
		return false, "biometric_rejected"
	}
	return true, ""
}

// CheckRateLimit throttles sensitive operation calls per identifier,
// independent of the login lockout.
func (s *Service) CheckRateLimit(identifier string) bool {
	return s.limiter.Allow(identifier)
}

func (s *Service) audit(ctx context.Context, action, identity string, metadata map[string]any) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.Event{
		Action:   action,
		Identity: identity,
		At:       s.now().UTC(),
		Metadata: metadata,
	})
	if err != nil {
		s.logger.Warn("publish audit event", "action", action, "error", err)
	}
}
