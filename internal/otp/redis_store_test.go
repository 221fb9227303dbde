package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/family-messenger/securecore/internal/secerr"
)

func setupRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	challenge := Challenge{
		Identity:      "ana@family",
		CodeEncrypted: "sealed",
		ExpiresAt:     time.Now().Add(5 * time.Minute),
	}
	if err := store.Put(ctx, challenge); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "ana@family")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CodeEncrypted != "sealed" {
		t.Fatalf("expected sealed code, got %q", got.CodeEncrypted)
	}

	if err := store.Delete(ctx, "ana@family"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "ana@family"); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedisStoreExpiresWithTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	challenge := Challenge{
		Identity:      "ana@family",
		CodeEncrypted: "sealed",
		ExpiresAt:     time.Now().Add(time.Minute),
	}
	if err := store.Put(ctx, challenge); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "ana@family"); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected challenge evicted by TTL, got %v", err)
	}
}
