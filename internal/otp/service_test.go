package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/family-messenger/securecore/internal/logging"
	"github.com/family-messenger/securecore/internal/secerr"
	"github.com/family-messenger/securecore/internal/vault"
)

func testService(t *testing.T) (*Service, *vault.Vault) {
	t.Helper()
	v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"), vault.NewMemoryStore())
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	svc := NewService(v, NewMemoryStore(), nil, logging.Discard())
	return svc, v
}

func issueCode(t *testing.T, svc *Service, v *vault.Vault, identity string) string {
	t.Helper()
	challenge, err := svc.Generate(context.Background(), identity)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	code, err := v.Decrypt(challenge.CodeEncrypted)
	if err != nil {
		t.Fatalf("decrypt issued code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	return code
}

func TestVerifyConsumesChallenge(t *testing.T) {
	svc, v := testService(t)
	ctx := context.Background()

	code := issueCode(t, svc, v, "ana@family")

	if err := svc.Verify(ctx, "ana@family", "000000"); !errors.Is(err, secerr.ErrValidation) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if err := svc.Verify(ctx, "ana@family", code); err != nil {
		t.Fatalf("verify with correct code: %v", err)
	}
	// Single use: replaying the consumed code must fail with not found.
	if err := svc.Verify(ctx, "ana@family", code); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected not found after consumption, got %v", err)
	}
}

func TestVerifyExpiredChallenge(t *testing.T) {
	svc, v := testService(t)
	ctx := context.Background()

	code := issueCode(t, svc, v, "ana@family")

	svc.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }
	if err := svc.Verify(ctx, "ana@family", code); !errors.Is(err, secerr.ErrExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}

	svc.now = time.Now
	if err := svc.Verify(ctx, "ana@family", code); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected challenge purged after expiry, got %v", err)
	}
}

func TestVerifyExhaustsAfterThreeMismatches(t *testing.T) {
	svc, v := testService(t)
	ctx := context.Background()

	code := issueCode(t, svc, v, "ana@family")

	for i := 0; i < 2; i++ {
		if err := svc.Verify(ctx, "ana@family", "999999"); !errors.Is(err, secerr.ErrValidation) {
			t.Fatalf("attempt %d: expected mismatch error, got %v", i+1, err)
		}
	}
	if err := svc.Verify(ctx, "ana@family", "999999"); !errors.Is(err, secerr.ErrExhausted) {
		t.Fatalf("expected exhausted on third mismatch, got %v", err)
	}
	// The correct code no longer helps; the challenge is gone.
	if err := svc.Verify(ctx, "ana@family", code); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected not found after exhaustion, got %v", err)
	}
}

func TestGenerateOverwritesPriorChallenge(t *testing.T) {
	svc, v := testService(t)
	ctx := context.Background()

	first := issueCode(t, svc, v, "ana@family")
	second := issueCode(t, svc, v, "ana@family")

	if first != second {
		if err := svc.Verify(ctx, "ana@family", first); err == nil {
			t.Fatal("stale code verified after overwrite")
		}
	}
	if err := svc.Verify(ctx, "ana@family", second); err != nil {
		t.Fatalf("verify fresh code: %v", err)
	}
}
