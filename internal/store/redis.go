package store

import (
	"context"
	"errors"

	"github.com/voyagen/matrixiptv/internal/cache"
)

// Redis implements Backend on Redis strings without expiry.
type Redis struct {
	r *cache.Redis
}

// NewRedis wraps an existing cache client.
func NewRedis(r *cache.Redis) *Redis {
	return &Redis{r: r}
}

// Close closes the underlying client.
func (s *Redis) Close() error {
	return s.r.Close()
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.r.Bytes(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.r.SetBytes(ctx, key, value, 0)
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	return cache.Del(ctx, s.r, key)
}
