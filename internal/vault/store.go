package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/family-messenger/securecore/internal/secerr"
)

// Store is the platform secure key-value backend the vault persists through.
// On mobile this would be the device keystore; here it is backed by memory or
// Redis depending on deployment.
type Store interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore builds an in-memory secure store, used in tests and when no
// Redis backend is configured.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]string)}
}

func (s *memoryStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	if !ok {
		return "", fmt.Errorf("entry %q: %w", key, secerr.ErrNotFound)
	}
	return value, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
