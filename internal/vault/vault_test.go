package vault

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/family-messenger/securecore/internal/secerr"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	v, err := New(key, NewMemoryStore())
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)

	blob, err := v.Encrypt("family secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if blob == "family secret" {
		t.Fatal("ciphertext equals plaintext")
	}

	plain, err := v.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "family secret" {
		t.Fatalf("expected original plaintext, got %q", plain)
	}
}

func TestDecryptFailsClosed(t *testing.T) {
	v := testVault(t)

	if _, err := v.Decrypt("not-base64!!"); !errors.Is(err, secerr.ErrValidation) {
		t.Fatalf("expected validation error for garbage input, got %v", err)
	}

	blob, err := v.Encrypt("payload")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := blob[:len(blob)-4] + "AAA="
	if _, err := v.Decrypt(tampered); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	v := testVault(t)
	blob, err := v.Encrypt("payload")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	other, err := New([]byte("fedcba9876543210fedcba9876543210"), NewMemoryStore())
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if _, err := other.Decrypt(blob); !errors.Is(err, secerr.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	v := testVault(t)
	ctx := context.Background()

	if err := v.StoreToken(ctx, "refresh", "token-value"); err != nil {
		t.Fatalf("store token: %v", err)
	}
	got, err := v.GetToken(ctx, "refresh")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got != "token-value" {
		t.Fatalf("expected token-value, got %q", got)
	}

	if err := v.RemoveToken(ctx, "refresh"); err != nil {
		t.Fatalf("remove token: %v", err)
	}
	if _, err := v.GetToken(ctx, "refresh"); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	v := testVault(t)

	hash, err := v.HashPassword("s3cret-pin")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "s3cret-pin" {
		t.Fatal("hash equals password")
	}
	if !v.VerifyPassword(hash, "s3cret-pin") {
		t.Fatal("expected password to verify")
	}
	if v.VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestSanitizeInput(t *testing.T) {
	got := SanitizeInput(`  <b>Ana</b>'; DROP TABLE--  `)
	if strings.ContainsAny(got, `<>'";`) {
		t.Fatalf("metacharacters survived: %q", got)
	}
	if strings.HasPrefix(got, " ") || strings.HasSuffix(got, " ") {
		t.Fatalf("expected trimmed output, got %q", got)
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a := DeriveKey("passphrase", salt)
	b := DeriveKey("passphrase", salt)
	if string(a) != string(b) {
		t.Fatal("derived keys differ for same inputs")
	}
	if len(a) != KeySize {
		t.Fatalf("expected %d byte key, got %d", KeySize, len(a))
	}
	c := DeriveKey("other", salt)
	if string(a) == string(c) {
		t.Fatal("different passphrases produced the same key")
	}
}

func TestEnsureSaltIsStable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := EnsureSalt(ctx, store)
	if err != nil {
		t.Fatalf("ensure salt: %v", err)
	}
	second, err := EnsureSalt(ctx, store)
	if err != nil {
		t.Fatalf("ensure salt again: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("salt changed between calls")
	}
}
