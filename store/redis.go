package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key used when RedisStore is created without one.
const DefaultRedisKey = "tplmerge:settings"

// RedisStore keeps Settings as one JSON document under a Redis key, so
// several workstations can share placements.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore returns a store using client and key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// DialRedis connects to the Redis server at addr and returns a store for key.
func DialRedis(ctx context.Context, addr, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: connecting to redis %s: %w", addr, err)
	}
	return NewRedisStore(client, key), nil
}

func (r *RedisStore) Load(ctx context.Context) (*Settings, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get %s: %w", r.key, err)
	}
	return decodeSettings(data)
}

func (r *RedisStore) Save(ctx context.Context, s *Settings) error {
	data, err := encodeSettings(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", r.key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
