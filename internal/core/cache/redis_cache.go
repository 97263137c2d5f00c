package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
)

// opTimeout bounds every Redis round trip so an unreachable backend
// degrades to a cache miss instead of stalling the request.
const opTimeout = 2 * time.Second

var _ core.ResponseCache = (*RedisCache)(nil)

// RedisCache backs the response cache with Redis. All failures are
// logged and swallowed: reads become misses, writes become no-ops.
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

func NewRedisCache(url string, logger *zap.SugaredLogger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warnw("cache read error", "key", key, "error", err)
		}
		return nil, false
	}
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warnw("cache write error", "key", key, "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
