// Package otp issues and verifies short-lived numeric one-time codes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/family-messenger/securecore/internal/notification"
	"github.com/family-messenger/securecore/internal/secerr"
	"github.com/family-messenger/securecore/internal/vault"
)

const (
	// DefaultTTL is how long a challenge stays verifiable.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxAttempts is the mismatch budget before a challenge is purged.
	DefaultMaxAttempts = 3

	codeMin  = 100000
	codeSpan = 900000
)

// Service manages the challenge lifecycle: absent -> pending -> consumed,
// expired or exhausted. Consumed, expired and exhausted challenges are purged.
type Service struct {
	vault       *vault.Vault
	store       Store
	notifier    notification.Notifier
	logger      *slog.Logger
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates an OTP service with the default TTL and attempt budget.
func NewService(v *vault.Vault, store Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		vault:       v,
		store:       store,
		notifier:    notifier,
		logger:      logger,
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

// identityLock serializes Generate/Verify per identity so concurrent attempts
// cannot race on the attempt counter or overwrite each other mid-check.
func (s *Service) identityLock(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[identity]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[identity] = lock
	}
	return lock
}

// Generate creates a fresh 6-digit challenge for identity, overwriting any
// prior one, and hands the code to the notifier for delivery.
func (s *Service) Generate(ctx context.Context, identity string) (Challenge, error) {
	lock := s.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	code, err := randomCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate code: %w", err)
	}
	encrypted, err := s.vault.Encrypt(code)
	if err != nil {
		return Challenge{}, fmt.Errorf("seal code: %w", err)
	}

	challenge := Challenge{
		Identity:      identity,
		CodeEncrypted: encrypted,
		ExpiresAt:     s.now().Add(s.ttl),
		Attempts:      0,
	}
	if err := s.store.Put(ctx, challenge); err != nil {
		return Challenge{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindOTPCode,
			Destination: identity,
			Body:        code,
		}); err != nil {
			s.logger.Warn("otp delivery failed", "identity", identity, "error", err)
		}
	}

	s.logger.Info("otp challenge issued", "identity", identity, "expires_at", challenge.ExpiresAt)
	return challenge, nil
}

// Verify checks code against the pending challenge for identity. A match
// consumes the challenge. Expired and exhausted challenges are purged; a
// mismatch burns one attempt.
func (s *Service) Verify(ctx context.Context, identity, code string) error {
	lock := s.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	challenge, err := s.store.Get(ctx, identity)
	if err != nil {
		return err
	}

	if s.now().After(challenge.ExpiresAt) {
		if err := s.store.Delete(ctx, identity); err != nil {
			return err
		}
		return fmt.Errorf("challenge for %q: %w", identity, secerr.ErrExpired)
	}

	if challenge.Attempts >= s.maxAttempts {
		if err := s.store.Delete(ctx, identity); err != nil {
			return err
		}
		return fmt.Errorf("challenge for %q: %w", identity, secerr.ErrExhausted)
	}

	expected, err := s.vault.Decrypt(challenge.CodeEncrypted)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) != 1 {
		challenge.Attempts++
		if challenge.Attempts >= s.maxAttempts {
			if err := s.store.Delete(ctx, identity); err != nil {
				return err
			}
			s.logger.Warn("otp challenge exhausted", "identity", identity)
			return fmt.Errorf("challenge for %q: %w", identity, secerr.ErrExhausted)
		}
		if err := s.store.Put(ctx, challenge); err != nil {
			return err
		}
		return fmt.Errorf("otp code mismatch: %w", secerr.ErrValidation)
	}

	// Single use: a matched challenge is gone for good.
	if err := s.store.Delete(ctx, identity); err != nil {
		return err
	}
	s.logger.Info("otp challenge consumed", "identity", identity)
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
