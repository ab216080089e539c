package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/matrixiptv/internal/cache"
	"github.com/voyagen/matrixiptv/internal/config"
	"github.com/voyagen/matrixiptv/internal/fetcher"
	xlog "github.com/voyagen/matrixiptv/internal/log"
	"github.com/voyagen/matrixiptv/internal/player"
	"github.com/voyagen/matrixiptv/internal/profile"
	"github.com/voyagen/matrixiptv/internal/server"
	"github.com/voyagen/matrixiptv/internal/service"
	"github.com/voyagen/matrixiptv/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use environment variables")
	addr := flag.String("addr", "", "Listen address, overrides MATRIXIPTV_ADDR")
	playlist := flag.String("playlist", "", "Local M3U file to open at startup instead of the active profile's playlist")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	xlog.Configure(xlog.Config{Level: cfg.LogLevel})
	logger := xlog.WithComponent("main")

	if err := run(cfg, *playlist, logger); err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config, playlistPath string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		if err := store.Close(backend); err != nil {
			logger.Warn().Err(err).Msg("closing store")
		}
	}()
	logger.Info().Str("backend", cfg.Backend).Bool("cached", cfg.CacheProfiles).Msg("profile store opened")

	profiles, err := profile.Open(ctx, backend)
	if err != nil {
		return fmt.Errorf("profiles: %w", err)
	}

	vlc := player.NewVLC(cfg.PlayerPath)
	if vlc.Available() {
		logger.Info().Str("path", vlc.Path()).Msg("external player found")
	} else {
		logger.Info().Msg("external player not found, only the embedded player is available")
	}
	dispatcher := player.NewDispatcher(vlc, nil)

	var opts []service.Option
	if cfg.RedisURL != "" {
		rds, err := cache.New(cfg.RedisURL, cache.DefaultPrefix)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()
		if err := rds.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, service.WithGuideCache(cache.NewGuides(rds, cfg.GuideCacheTTL)))
		logger.Info().Dur("ttl", cfg.GuideCacheTTL).Msg("guide cache enabled")
	}

	viewer := service.NewViewer(fetcher.NewClient(cfg.UserAgent, cfg.Timeout), profiles, dispatcher, opts...)
	defer viewer.Close()

	if cfg.WatchStore {
		watchProfiles(ctx, backend, profiles, viewer, logger)
	}

	go func() {
		var err error
		if playlistPath != "" {
			_, err = viewer.LoadFile(ctx, playlistPath)
		} else {
			_, err = viewer.LoadActiveProfile(ctx)
		}
		if err != nil && !errors.Is(err, service.ErrSuperseded) {
			logger.Warn().Err(err).Str("playlist", playlistPath).Msg("initial playlist load failed")
		}
	}()
	go viewer.RunAutoRefresh(ctx, cfg.AutoRefreshInterval)

	srv := server.New(viewer, profiles, dispatcher)
	serveErr := srv.ListenAndServe(ctx, cfg.ListenAddr)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dispatcher.Stop(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("stopping player")
	}
	if serveErr != nil {
		return fmt.Errorf("server: %w", serveErr)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// watchProfiles reloads the profile document when another process edits it,
// resetting the viewer if the active profile changed.
func watchProfiles(ctx context.Context, backend store.Backend, profiles *profile.Store, viewer *service.Viewer, logger zerolog.Logger) {
	file, ok := backend.(*store.File)
	if !ok {
		logger.Warn().Str("backend", fmt.Sprintf("%T", backend)).Msg("store watching needs the uncached file backend, disabled")
		return
	}
	go func() {
		err := file.Watch(ctx, profile.StorageKey, func(ctx context.Context) {
			before := profiles.ActiveProfileID()
			if err := profiles.Reload(ctx); err != nil {
				logger.Warn().Err(err).Msg("reloading profiles")
				return
			}
			if profiles.ActiveProfileID() == before {
				return
			}
			if _, err := viewer.LoadActiveProfile(ctx); err != nil {
				logger.Warn().Err(err).Msg("loading playlist for reloaded profile")
			}
		})
		if err != nil {
			logger.Warn().Err(err).Msg("store watcher")
		}
	}()
}
