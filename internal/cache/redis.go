package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sports-arb-scanner/internal/config"
)

// NewClient opens and pings a Redis client. It returns nil when no address is configured.
func NewClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
