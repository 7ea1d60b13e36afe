// Package sourcecache wraps an upstream sources.Fetcher with a Redis-backed
// response cache, keyed per source and query/id, so repeated lookups for
// the same claim within a thread don't re-hit the fixture/upstream client
// on every turn.
package sourcecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"evidentia/internal/sources"
)

// Cache is a thin Redis client scoped to one key namespace.
type Cache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// New returns a Cache talking to addr (host:port), namespacing all keys
// under namespace (typically the source name), with entries expiring
// after ttl.
func New(addr, namespace string, ttl time.Duration) *Cache {
	return &Cache{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		namespace: namespace,
		ttl:       ttl,
	}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) key(parts ...string) string {
	key := "evidentia:sourcecache:" + c.namespace
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (c *Cache) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sourcecache: get: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("sourcecache: unmarshal cached value: %w", err)
	}
	return true, nil
}

func (c *Cache) setJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sourcecache: marshal: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("sourcecache: set: %w", err)
	}
	return nil
}

// cachedFetcher decorates a sources.Fetcher with cache-aside Search/Get.
// A Redis error degrades to a direct fetcher call rather than failing the
// tool call outright - the cache is a latency optimization, not a source
// of truth.
type cachedFetcher struct {
	sources.Fetcher
	cache *Cache
}

// Wrap returns fetcher decorated with a Redis cache-aside layer. If
// cache is nil, fetcher is returned unchanged.
func Wrap(fetcher sources.Fetcher, cache *Cache) sources.Fetcher {
	if cache == nil {
		return fetcher
	}
	return cachedFetcher{Fetcher: fetcher, cache: cache}
}

func (f cachedFetcher) Search(ctx context.Context, query string, limit int) ([]sources.Record, error) {
	key := f.cache.key(string(f.Source()), "search", query, fmt.Sprintf("%d", limit))
	var cached []sources.Record
	if hit, err := f.cache.getJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	recs, err := f.Fetcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	_ = f.cache.setJSON(ctx, key, recs)
	return recs, nil
}

func (f cachedFetcher) Get(ctx context.Context, id string) (sources.Record, error) {
	key := f.cache.key(string(f.Source()), "get", id)
	var cached sources.Record
	if hit, err := f.cache.getJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	rec, err := f.Fetcher.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = f.cache.setJSON(ctx, key, rec)
	return rec, nil
}
