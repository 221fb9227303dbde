package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/family-messenger/securecore/internal/secerr"
)

const redisKeyPrefix = "secure:"

type redisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed secure store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Put(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("put %q: %w", key, secerr.ErrStorage)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("entry %q: %w", key, secerr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, secerr.ErrStorage)
	}
	return value, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, secerr.ErrStorage)
	}
	return nil
}
