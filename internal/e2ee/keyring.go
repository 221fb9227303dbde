package e2ee

import (
	"context"
	"fmt"
	"sync"

	"github.com/family-messenger/securecore/internal/secerr"
)

// Keyring persists key-pair metadata. Private material is stored separately
// through the vault.
type Keyring interface {
	Save(ctx context.Context, pair KeyPair) error
	Get(ctx context.Context, identity, keyID string) (KeyPair, error)
	ListByIdentity(ctx context.Context, identity string) ([]KeyPair, error)
	MarkDeprecated(ctx context.Context, identity, keyID string) error
	Delete(ctx context.Context, identity, keyID string) error
}

type memoryKeyring struct {
	mu    sync.RWMutex
	pairs map[string][]KeyPair
}

// NewMemoryKeyring builds an in-memory keyring.
func NewMemoryKeyring() Keyring {
	return &memoryKeyring{pairs: make(map[string][]KeyPair)}
}

func (k *memoryKeyring) Save(_ context.Context, pair KeyPair) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pairs[pair.Identity] = append(k.pairs[pair.Identity], pair)
	return nil
}

func (k *memoryKeyring) Get(_ context.Context, identity, keyID string) (KeyPair, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, pair := range k.pairs[identity] {
		if pair.KeyID == keyID {
			return pair, nil
		}
	}
	return KeyPair{}, fmt.Errorf("key %s/%s: %w", identity, keyID, secerr.ErrNotFound)
}

func (k *memoryKeyring) ListByIdentity(_ context.Context, identity string) ([]KeyPair, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pairs := make([]KeyPair, len(k.pairs[identity]))
	copy(pairs, k.pairs[identity])
	return pairs, nil
}

func (k *memoryKeyring) MarkDeprecated(_ context.Context, identity, keyID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, pair := range k.pairs[identity] {
		if pair.KeyID == keyID {
			k.pairs[identity][i].Deprecated = true
			return nil
		}
	}
	return fmt.Errorf("key %s/%s: %w", identity, keyID, secerr.ErrNotFound)
}

func (k *memoryKeyring) Delete(_ context.Context, identity, keyID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	pairs := k.pairs[identity]
	for i, pair := range pairs {
		if pair.KeyID == keyID {
			k.pairs[identity] = append(pairs[:i], pairs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("key %s/%s: %w", identity, keyID, secerr.ErrNotFound)
}
