package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Store.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Store is the key/value backend behind the read-through layer and the
// invalidation coordinator. Values are opaque bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes exact keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// DeleteByPrefix enumerates keys starting with prefix and deletes them in
	// batches of batchSize. When ctx ends mid-scan the keys deleted so far are
	// reported together with the context error.
	DeleteByPrefix(ctx context.Context, prefix string, batchSize int) (int64, error)

	// Health check
	Ping(ctx context.Context) error
}
