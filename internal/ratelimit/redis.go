package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "gatekeeper:rl:"

// RedisStore is a fixed window counter shared by every process that talks to
// the same Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore namespaces keys under prefix, adding the ":" separator when
// it is missing.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, rule Rule) (bool, time.Duration, error) {
	k := s.prefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := s.client.Expire(ctx, k, rule.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if count <= int64(rule.Limit) {
		return true, 0, nil
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl <= 0 {
		// key lost its expiry; restore it so the window can close
		if err := s.client.Expire(ctx, k, rule.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		ttl = rule.Window
	}
	return false, ttl, nil
}
