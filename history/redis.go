package history

import (
	"context"
	"fmt"
	"time"

	"github.com/pevans/propfinder/ads"
	"github.com/redis/go-redis/v9"
)

const redisTimeout = 10 * time.Second

// RedisStore keeps identifiers in a single Redis set.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to the Redis server at addr. addr may be a plain
// host:port or a redis:// URL.
func NewRedisStore(addr, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, key: key}, nil
}

// Load returns every member of the set. A missing key is an empty set.
func (r *RedisStore) Load() (ads.Set, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return ads.NewSet(members...), nil
}

// Append adds ids to the set.
func (r *RedisStore) Append(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}

	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
