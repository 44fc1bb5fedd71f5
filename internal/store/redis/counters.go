// Package redis provides a Redis-backed quota counter store, so several
// processes can share one free-tier budget.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/freeroute/internal/observability"
)

const scanBatchSize = 100

// Config holds Redis connection settings for the quota backend.
type Config struct {
	URL    string `env:"QUOTA_REDIS_URL"    envDefault:"redis://localhost:6379/0"`
	Prefix string `env:"QUOTA_REDIS_PREFIX" envDefault:"freeroute:quota:"`
}

// NewClient parses cfg.URL and verifies the server is reachable.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", pingErr)
	}
	return client, nil
}

// CounterStore implements domain.CounterStore on Redis. Expiry is delegated
// to key TTLs, so Prune has nothing to do.
type CounterStore struct {
	client *redis.Client
	prefix string
}

// NewCounterStore creates a Redis counter store under prefix.
func NewCounterStore(client *redis.Client, prefix string) *CounterStore {
	return &CounterStore{
		client: client,
		prefix: prefix,
	}
}

// Incr increments key and refreshes its TTL in one round trip.
func (s *CounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	fullKey := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	if ttl > 0 {
		pipe.Expire(ctx, fullKey, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		observability.FromContext(ctx).Error("redis counter increment failed",
			observability.String("key", fullKey),
			observability.Error(err))
		return 0, fmt.Errorf("failed to increment %s: %w", fullKey, err)
	}

	return incr.Val(), nil
}

// Get returns the counter value, or 0 when the key is absent.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", s.prefix+key, err)
	}
	return v, nil
}

// Prune is a no-op; window keys expire through their TTL.
func (s *CounterStore) Prune(_ context.Context, _ func(key string) bool) error {
	return nil
}

// Reset deletes every key under the prefix.
func (s *CounterStore) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan quota keys: %w", err)
		}

		if len(keys) > 0 {
			if delErr := s.client.Del(ctx, keys...).Err(); delErr != nil {
				return fmt.Errorf("failed to delete quota keys: %w", delErr)
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}
