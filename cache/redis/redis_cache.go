package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arunvm123/ticketinventory/cache"
	"github.com/redis/go-redis/v9"
)

const defaultScanBatch = 500

// RedisCache is the go-redis backend for cache.Store. Every key is stored
// under prefix so several deployments can share one Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(addr, password string, db int, prefix string) (*RedisCache, error) {
	c := NewUnchecked(addr, password, db, prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Test connection
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return c, nil
}

// NewUnchecked builds a client without contacting the server. go-redis
// reconnects on demand, so a cache that is down at startup heals later.
func NewUnchecked(addr, password string, db int, prefix string) *RedisCache {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), prefix)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Result()
}

// DeleteByPrefix walks the keyspace with SCAN rather than KEYS so a large
// keyspace never blocks the server. Keys are collected until the cursor
// wraps and only then unlinked, since deleting mid-scan may skip keys.
// On error the count of keys already removed is returned with it.
func (r *RedisCache) DeleteByPrefix(ctx context.Context, prefix string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = defaultScanBatch
	}
	match := escapeGlob(r.key(prefix)) + "*"

	var (
		cursor uint64
		found  []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		keys, next, err := r.client.Scan(ctx, cursor, match, int64(batchSize)).Result()
		if err != nil {
			return 0, fmt.Errorf("scan %q: %w", match, err)
		}
		found = append(found, keys...)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	var deleted int64
	for start := 0; start < len(found); start += batchSize {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		end := start + batchSize
		if end > len(found) {
			end = len(found)
		}
		n, err := r.client.Unlink(ctx, found[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("unlink batch: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

// Health check
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// escapeGlob quotes the glob metacharacters SCAN MATCH understands so that
// user-supplied search terms embedded in keys cannot widen the match.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

var _ cache.Store = (*RedisCache)(nil)
