package core

import (
	"context"
	"time"
)

// Cache is a keyed store of (value, timestamp) entries.
// An entry stored with ttl <= 0 never expires.
type Cache interface {
	// Get returns the value stored under key, false if missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
