package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache keeps raw pricing-service responses for a short TTL so
// repeated scans do not burn request quota.
type ResponseCache struct {
	client *redis.Client
	prefix string
}

// NewResponseCache wraps a Redis client.
func NewResponseCache(client *redis.Client, prefix string) *ResponseCache {
	if prefix == "" {
		prefix = "arbscanner"
	}
	return &ResponseCache{client: client, prefix: prefix}
}

func (c *ResponseCache) key(k string) string {
	return fmt.Sprintf("%s:resp:%s", c.prefix, k)
}

// Get returns the cached payload, if any.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set stores payload for ttl.
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, c.key(key), payload, ttl).Err()
}
