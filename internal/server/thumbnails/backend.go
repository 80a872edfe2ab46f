package thumbnails

import (
	"context"
	"time"
)

// Backend is a TTL key/value store for cache records.
type Backend interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key starting with prefix and returns how many
	// were removed.
	DelPrefix(ctx context.Context, prefix string) (int64, error)
}
