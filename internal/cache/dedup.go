package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator suppresses repeat alerts for the same opportunity within a cooldown.
type Deduplicator struct {
	client   *redis.Client
	cooldown time.Duration
	prefix   string
}

// NewDeduplicator creates a deduplicator; a non-positive cooldown defaults to 30 minutes.
func NewDeduplicator(client *redis.Client, cooldown time.Duration, prefix string) *Deduplicator {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	if prefix == "" {
		prefix = "arbscanner"
	}
	return &Deduplicator{client: client, cooldown: cooldown, prefix: prefix}
}

// ShouldAlert claims key for the cooldown window and reports whether this
// caller was first.
func (d *Deduplicator) ShouldAlert(ctx context.Context, key string) (bool, error) {
	if d == nil || d.client == nil {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.dedupKey(key), "1", d.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("set dedup key: %w", err)
	}
	return ok, nil
}

func (d *Deduplicator) dedupKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:alert:dedup:%s", d.prefix, hex.EncodeToString(sum[:12]))
}

// Release drops the claim on key so a failed delivery can be retried before
// the cooldown expires.
func (d *Deduplicator) Release(ctx context.Context, key string) error {
	if d == nil || d.client == nil {
		return nil
	}
	if err := d.client.Del(ctx, d.dedupKey(key)).Err(); err != nil {
		return fmt.Errorf("delete dedup key: %w", err)
	}
	return nil
}
