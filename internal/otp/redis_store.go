package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/family-messenger/securecore/internal/secerr"
)

const redisKeyPrefix = "otp:"

type redisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore builds a Redis-backed challenge store. Challenges expire
// natively through the key TTL.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client, now: time.Now}
}

func (s *redisStore) Put(ctx context.Context, challenge Challenge) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	ttl := challenge.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, redisKeyPrefix+challenge.Identity, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", secerr.ErrStorage)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, identity string) (Challenge, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+identity).Result()
	if errors.Is(err, redis.Nil) {
		return Challenge{}, fmt.Errorf("challenge for %q: %w", identity, secerr.ErrNotFound)
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("load challenge: %w", secerr.ErrStorage)
	}
	var challenge Challenge
	if err := json.Unmarshal([]byte(payload), &challenge); err != nil {
		return Challenge{}, fmt.Errorf("decode challenge: %w", secerr.ErrStorage)
	}
	return challenge, nil
}

func (s *redisStore) Delete(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+identity).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", secerr.ErrStorage)
	}
	return nil
}
