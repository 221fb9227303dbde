package otp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/family-messenger/securecore/internal/secerr"
)

// Challenge is a pending one-time-code challenge for a single identity. The
// code is held encrypted at rest; at most one challenge is live per identity.
type Challenge struct {
	Identity      string    `json:"identity"`
	CodeEncrypted string    `json:"code_encrypted"`
	ExpiresAt     time.Time `json:"expires_at"`
	Attempts      int       `json:"attempts"`
}

// Store persists challenges keyed by identity. Put overwrites any prior
// challenge for the same identity.
type Store interface {
	Put(ctx context.Context, challenge Challenge) error
	Get(ctx context.Context, identity string) (Challenge, error)
	Delete(ctx context.Context, identity string) error
}

type memoryStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

// NewMemoryStore builds an in-memory challenge store.
func NewMemoryStore() Store {
	return &memoryStore{challenges: make(map[string]Challenge)}
}

func (s *memoryStore) Put(_ context.Context, challenge Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.Identity] = challenge
	return nil
}

func (s *memoryStore) Get(_ context.Context, identity string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[identity]
	if !ok {
		return Challenge{}, fmt.Errorf("challenge for %q: %w", identity, secerr.ErrNotFound)
	}
	return challenge, nil
}

func (s *memoryStore) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, identity)
	return nil
}
