package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/family-messenger/securecore/internal/secerr"
)

const saltStoreKey = "vault_salt"

// argon2id parameters for deriving the master key from a passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// DeriveKey stretches a passphrase into a 32-byte master key with argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// EnsureSalt loads the per-install KDF salt from the store, generating and
// persisting a fresh random one on first use. The salt is not a secret.
func EnsureSalt(ctx context.Context, store Store) ([]byte, error) {
	encoded, err := store.Get(ctx, saltStoreKey)
	if err == nil {
		salt, decodeErr := hex.DecodeString(encoded)
		if decodeErr != nil {
			return nil, fmt.Errorf("corrupt vault salt: %w", secerr.ErrIntegrity)
		}
		return salt, nil
	}
	if !errors.Is(err, secerr.ErrNotFound) {
		return nil, err
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	if err := store.Put(ctx, saltStoreKey, hex.EncodeToString(salt)); err != nil {
		return nil, err
	}
	return salt, nil
}

// ParseKey decodes a hex-encoded 32-byte master key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex encoded: %w", secerr.ErrValidation)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d: %w", KeySize, len(key), secerr.ErrValidation)
	}
	return key, nil
}
