package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/matrixiptv/internal/cache"
	xlog "github.com/voyagen/matrixiptv/internal/log"
)

// DefaultCacheTTL bounds how long a cached document may be served.
const DefaultCacheTTL = 5 * time.Minute

// Cached wraps a Backend with a Redis read-through cache.
// Reads are served from cache when possible; writes go to the inner backend
// first and then invalidate the cached copy.
type Cached struct {
	inner Backend
	cache *cache.Redis
	ttl   time.Duration
}

// NewCached creates a Cached backend; ttl <= 0 uses DefaultCacheTTL.
func NewCached(inner Backend, c *cache.Redis, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func cacheKey(key string) string { return "doc:" + key }

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := c.cache.Bytes(ctx, cacheKey(key)); err == nil {
		return v, nil
	}
	v, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetBytes(ctx, cacheKey(key), v, c.ttl); err != nil {
		xlog.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache: set")
	}
	return v, nil
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Set(ctx, key, value); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	if err := c.inner.Delete(ctx, key); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// Close closes the inner backend and the cache client.
func (c *Cached) Close() error {
	return errors.Join(Close(c.inner), c.cache.Close())
}

func (c *Cached) invalidate(ctx context.Context, key string) {
	if err := cache.Del(ctx, c.cache, cacheKey(key)); err != nil {
		xlog.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache: invalidate")
	}
}
