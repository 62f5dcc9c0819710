// Package cache stores serialized exchange responses with a TTL.
package cache

import (
	"context"
	"time"
)

// Cache is a byte cache with per-entry expiry. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
