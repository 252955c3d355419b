// Package rediscache backs the cross-cutting request cache with Redis
// for deployments running more than one portal instance: a flush on one
// instance must evict the reads every instance cached under the
// previous identity.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	session "github.com/plazaops/session-go"
)

// DefaultTTL bounds how long an entry is served without reloading.
const DefaultTTL = 5 * time.Minute

// Cache is a Redis-backed request cache. All keys live under a common
// prefix so InvalidateAll can sweep them without touching anything else
// in the same Redis database.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ session.RequestCache = (*Cache)(nil)

// Option configures the Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// New creates a cache over client with the given key prefix.
func New(client *redis.Client, prefix string, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: prefix + ":",
		ttl:    DefaultTTL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached value for key, or ("", false, nil) on a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session/rediscache: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("session/rediscache: set %q: %w", key, err)
	}
	return nil
}

// InvalidateAll removes every entry under the cache prefix.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 256).Result()
		if err != nil {
			return fmt.Errorf("session/rediscache: scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("session/rediscache: del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
