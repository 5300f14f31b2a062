package location

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SharedCache is a second-level classification cache shared between service
// replicas.
type SharedCache interface {
	// Lookup returns the cached classification and whether one was found.
	Lookup(ctx context.Context, name string) (isLocation, ok bool, err error)
	// Store records a classification.
	Store(ctx context.Context, name string, isLocation bool) error
}

// DefaultRedisTTL is how long a classification lives in Redis.
const DefaultRedisTTL = 7 * 24 * time.Hour

// RedisCache is a [SharedCache] backed by Redis string keys holding "1" or
// "0".
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ SharedCache = (*RedisCache)(nil)

// NewRedisCache returns a [RedisCache] storing keys under prefix. A ttl of
// zero selects [DefaultRedisTTL].
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Lookup implements [SharedCache].
func (c *RedisCache) Lookup(ctx context.Context, name string) (bool, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v == "1", true, nil
}

// Store implements [SharedCache].
func (c *RedisCache) Store(ctx context.Context, name string, isLocation bool) error {
	v := "0"
	if isLocation {
		v = "1"
	}
	return c.client.Set(ctx, c.prefix+name, v, c.ttl).Err()
}

// Ping checks Redis connectivity. It is shaped for use as a health check.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
