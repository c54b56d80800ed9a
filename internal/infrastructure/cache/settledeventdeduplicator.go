package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// settledKeyPrefix is the prefix for all settled event deduplication keys
	settledKeyPrefix = "billing:settled:"
	// DefaultSettledWindow is how long a settled event is remembered
	DefaultSettledWindow = 10 * time.Minute
)

// SettledEventDeduplicator provides Redis-based deduplication of "settled"
// payment events across instances.
type SettledEventDeduplicator struct {
	client *redis.Client
	window time.Duration
}

// NewSettledEventDeduplicator creates a new SettledEventDeduplicator instance
func NewSettledEventDeduplicator(client *redis.Client, window time.Duration) *SettledEventDeduplicator {
	if window <= 0 {
		window = DefaultSettledWindow
	}
	return &SettledEventDeduplicator{client: client, window: window}
}

func (d *SettledEventDeduplicator) buildKey(key string) string {
	return settledKeyPrefix + key
}

// Acquire atomically marks the event as seen using SetNX.
// Returns true the first time a key is seen inside the window.
func (d *SettledEventDeduplicator) Acquire(ctx context.Context, key string) (bool, error) {
	acquired, err := d.client.SetNX(ctx, d.buildKey(key), "1", d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire settled event key: %w", err)
	}
	return acquired, nil
}

// Release forgets the event so that a retry is processed again.
func (d *SettledEventDeduplicator) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release settled event key: %w", err)
	}
	return nil
}
