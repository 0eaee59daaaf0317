package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "tablebot:message:"

// RedisIdempotencyStore implements IdempotencyStore using Redis so that
// several bot instances behind one webhook share deduplication state
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore connects to Redis and verifies the connection
func NewRedisIdempotencyStore(ctx context.Context, opts *redis.Options) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIdempotencyStoreWithClient(client, ""), nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks a message as processed with a TTL.
// SETNX makes the check-and-set atomic across instances.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks if a message has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if message is processed: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ IdempotencyStore = (*RedisIdempotencyStore)(nil)
