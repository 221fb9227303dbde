// Package vault provides symmetric encryption, hashed-password checks and an
// encrypted token store on top of a pluggable secure key-value backend.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/family-messenger/securecore/internal/secerr"
)

// KeySize is the AES-256 key length the vault operates with.
const KeySize = 32

// Vault encrypts and decrypts application secrets under a single per-install
// master key and persists them through a secure Store.
type Vault struct {
	key   []byte
	store Store
}

// New builds a vault from a 32-byte master key and a backing store.
func New(key []byte, store Store) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d: %w", KeySize, len(key), secerr.ErrValidation)
	}
	if store == nil {
		return nil, fmt.Errorf("store is required: %w", secerr.ErrValidation)
	}
	return &Vault{key: key, store: store}, nil
}

// Encrypt seals plaintext with AES-256-GCM and returns base64(nonce||ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	sealed, err := Seal(v.key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return sealed, nil
}

// Decrypt reverses Encrypt. It fails closed: corrupted input, a wrong key or
// tampered ciphertext all surface as errors, never as bogus plaintext.
func (v *Vault) Decrypt(blob string) (string, error) {
	plaintext, err := Open(v.key, blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// StoreToken encrypts value and persists it under key. Write failures
// propagate; callers never observe a partial write.
func (v *Vault) StoreToken(ctx context.Context, key, value string) error {
	sealed, err := v.Encrypt(value)
	if err != nil {
		return err
	}
	if err := v.store.Put(ctx, key, sealed); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// GetToken retrieves and decrypts the value stored under key. Returns
// secerr.ErrNotFound when no entry exists.
func (v *Vault) GetToken(ctx context.Context, key string) (string, error) {
	sealed, err := v.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return v.Decrypt(sealed)
}

// RemoveToken deletes the entry stored under key.
func (v *Vault) RemoveToken(ctx context.Context, key string) error {
	return v.store.Delete(ctx, key)
}

// HashPassword derives a one-way bcrypt digest, used for equality checks only.
func (v *Vault) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches a digest produced by
// HashPassword.
func (v *Vault) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SanitizeInput strips HTML and SQL metacharacters before values are compared
// against the allowlist roster.
func SanitizeInput(input string) string {
	replacer := strings.NewReplacer("<", "", ">", "", "'", "", `"`, "", ";", "")
	return strings.TrimSpace(replacer.Replace(input))
}

// Seal encrypts plaintext with AES-256-GCM under key, returning
// base64(nonce||ciphertext).
func Seal(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered or truncated input yields secerr.ErrIntegrity.
func Open(key []byte, blob string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("malformed ciphertext: %w", secerr.ErrValidation)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short: %w", secerr.ErrValidation)
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", secerr.ErrIntegrity)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return cipher.NewGCM(block)
}
