package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key RedisStore uses when none is configured.
const DefaultRedisKey = AppName + ":credential"

// RedisStore keeps the credential as a JSON document under a single Redis key,
// letting several machines share one WHOOP login.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a RedisStore. An empty key selects DefaultRedisKey.
func NewRedisStore(redisClient *redis.Client, key string) (*RedisStore, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{redis: redisClient, key: key}, nil
}

// NewRedisStoreFromURL parses a redis:// URL and creates a RedisStore on it.
func NewRedisStoreFromURL(rawURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), key)
}

// Load reads the credential. A missing key yields a zero Credential.
func (r *RedisStore) Load(ctx context.Context) (Credential, error) {
	data, err := r.redis.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, fmt.Errorf("redis get: %w", err)
	}
	return decodeDocument(data)
}

// Save stores the credential without expiry.
func (r *RedisStore) Save(ctx context.Context, cred Credential) error {
	data, err := encodeDocument(cred)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes the key.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Location returns the Redis address and key.
func (r *RedisStore) Location() string {
	return fmt.Sprintf("redis://%s/%d %s", r.redis.Options().Addr, r.redis.Options().DB, r.key)
}

// Close releases the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.redis.Close()
}
