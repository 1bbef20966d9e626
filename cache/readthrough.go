package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/arunvm123/ticketinventory/metrics"
	zlog "github.com/rs/zerolog/log"
)

// Layer is the read-through cache used by the read path. The cache is never a
// correctness dependency: backend errors degrade to a direct compute.
type Layer struct {
	store Store
	ttl   TTLPolicy
}

// NewLayer builds a read-through layer. A nil store disables caching.
func NewLayer(store Store, ttl TTLPolicy) *Layer {
	return &Layer{store: store, ttl: ttl}
}

func (l *Layer) TTL(class Class) time.Duration {
	if l == nil {
		return 0
	}
	return l.ttl.For(class)
}

// GetOrCompute returns the cached value under key, or calls compute, stores its
// JSON encoding for ttl and returns it. Concurrent misses on one key may all
// compute; the last write wins.
func GetOrCompute[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	if l == nil || l.store == nil {
		return compute(ctx)
	}
	class := string(classOf(key))

	raw, err := l.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		uerr := json.Unmarshal(raw, &cached)
		if uerr == nil {
			metrics.RecordCacheLookup(class, "hit")
			return cached, nil
		}
		zlog.Warn().Err(uerr).Str("key", key).Msg("cache entry undecodable, recomputing")
		metrics.RecordCacheLookup(class, "error")
	case errors.Is(err, ErrCacheMiss):
		metrics.RecordCacheLookup(class, "miss")
	default:
		zlog.Warn().Err(err).Str("key", key).Msg("cache get failed")
		metrics.RecordCacheLookup(class, "error")
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return value, nil
	}
	if err := l.store.Set(ctx, key, data, ttl); err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return value, nil
}

func classOf(key string) Class {
	switch {
	case strings.HasPrefix(key, EventByIDPrefix):
		return ClassEvent
	case strings.HasPrefix(key, EventListPrefix):
		return ClassList
	default:
		return ClassCatalog
	}
}
