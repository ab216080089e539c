package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voyagen/matrixiptv/internal/cache"
	"github.com/voyagen/matrixiptv/internal/config"
	xlog "github.com/voyagen/matrixiptv/internal/log"
)

// Open builds the Backend selected by cfg, wrapping it with the Redis cache
// when cfg.CacheProfiles is set. Callers release it with Close.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := xlog.WithComponent("store")

	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		b = NewMemory()
	case config.BackendFile:
		b, err = NewFile(cfg.DataDir)
	case config.BackendRedis:
		b, err = openRedis(ctx, cfg.RedisURL)
	case config.BackendPostgres:
		if err = RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		b, err = NewPostgres(ctx, cfg.DatabaseURL)
	case config.BackendSQLite:
		if err = mkdirData(cfg.DataDir); err == nil {
			b, err = NewSQLite(ctx, filepath.Join(cfg.DataDir, "matrixiptv.db"))
		}
	case config.BackendBolt:
		if err = mkdirData(cfg.DataDir); err == nil {
			b, err = NewBolt(filepath.Join(cfg.DataDir, "matrixiptv.bolt"))
		}
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	if cfg.CacheProfiles && cfg.Backend != config.BackendRedis {
		r, err := openCache(ctx, cfg.RedisURL)
		if err != nil {
			_ = Close(b)
			return nil, fmt.Errorf("profile cache: %w", err)
		}
		b = NewCached(b, r, DefaultCacheTTL)
		logger.Info().Str("event", "store.cache_enabled").Msg("profile cache enabled")
	}

	logger.Info().
		Str("event", "store.opened").
		Str("backend", cfg.Backend).
		Msg("persistence backend ready")
	return b, nil
}

func openCache(ctx context.Context, rawURL string) (*cache.Redis, error) {
	r, err := cache.New(rawURL, cache.DefaultPrefix)
	if err != nil {
		return nil, err
	}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return r, nil
}

func openRedis(ctx context.Context, rawURL string) (*Redis, error) {
	r, err := openCache(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return NewRedis(r), nil
}

func mkdirData(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
