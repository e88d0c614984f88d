package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPageCache implements PageCache backed by Redis.
type RedisPageCache struct {
	client *redis.Client
}

// NewRedisPageCache creates a new Redis-backed page cache.
func NewRedisPageCache(address, password string, db int) (*RedisPageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPageCache{client: client}, nil
}

func (c *RedisPageCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get page: %w", err)
	}
	return body, true, nil
}

func (c *RedisPageCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, body, ttl).Err(); err != nil {
		return fmt.Errorf("redis set page: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisPageCache) Close() error {
	return c.client.Close()
}

var _ PageCache = (*RedisPageCache)(nil)
