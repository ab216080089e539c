// Package config loads viewer configuration from the environment or a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Persistence backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendBolt     = "bolt"
)

// Defaults.
const (
	DefaultListenAddr          = "127.0.0.1:8787"
	DefaultUserAgent           = "MatrixIPTV/1.0"
	DefaultTimeout             = 30 * time.Second
	DefaultAutoRefreshInterval = 60 * time.Second
	DefaultGuideCacheTTL       = 30 * time.Minute
)

// Config holds application configuration.
type Config struct {
	ListenAddr          string        `yaml:"listen_addr" env:"MATRIXIPTV_ADDR"`
	Backend             string        `yaml:"backend" env:"MATRIXIPTV_BACKEND"`
	DataDir             string        `yaml:"data_dir" env:"MATRIXIPTV_DATA_DIR"`
	RedisURL            string        `yaml:"redis_url" env:"REDIS_URL"`
	DatabaseURL         string        `yaml:"database_url" env:"DATABASE_URL"`
	MigrationsPath      string        `yaml:"migrations_path" env:"MATRIXIPTV_MIGRATIONS"` // empty = embedded migrations
	UserAgent           string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout             time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	LogLevel            string        `yaml:"log_level" env:"LOG_LEVEL"`
	PlayerPath          string        `yaml:"player_path" env:"MATRIXIPTV_PLAYER_PATH"`
	AutoRefreshInterval time.Duration `yaml:"auto_refresh_interval" env:"MATRIXIPTV_AUTO_REFRESH_INTERVAL"`
	WatchStore          bool          `yaml:"watch_store" env:"MATRIXIPTV_WATCH_STORE"`
	CacheProfiles       bool          `yaml:"cache_profiles" env:"MATRIXIPTV_CACHE_PROFILES"`
	GuideCacheTTL       time.Duration `yaml:"guide_cache_ttl" env:"MATRIXIPTV_GUIDE_CACHE_TTL"`
}

// Default returns a Config with every optional field at its default.
func Default() *Config {
	return &Config{
		ListenAddr:          DefaultListenAddr,
		Backend:             BackendFile,
		DataDir:             defaultDataDir(),
		UserAgent:           DefaultUserAgent,
		Timeout:             DefaultTimeout,
		AutoRefreshInterval: DefaultAutoRefreshInterval,
		GuideCacheTTL:       DefaultGuideCacheTTL,
	}
}

// Load builds config from environment variables.
// If MATRIXIPTV_BACKEND is not set, Load tries to load .env.local and .env first.
func Load() (*Config, error) {
	if os.Getenv("MATRIXIPTV_BACKEND") == "" {
		loadEnvFiles()
	}
	c := Default()
	setString(&c.ListenAddr, "MATRIXIPTV_ADDR")
	setString(&c.Backend, "MATRIXIPTV_BACKEND")
	setString(&c.DataDir, "MATRIXIPTV_DATA_DIR")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.MigrationsPath, "MATRIXIPTV_MIGRATIONS")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.PlayerPath, "MATRIXIPTV_PLAYER_PATH")
	setDuration(&c.Timeout, "FETCHER_TIMEOUT")
	setDuration(&c.AutoRefreshInterval, "MATRIXIPTV_AUTO_REFRESH_INTERVAL")
	setDuration(&c.GuideCacheTTL, "MATRIXIPTV_GUIDE_CACHE_TTL")
	setBool(&c.WatchStore, "MATRIXIPTV_WATCH_STORE")
	setBool(&c.CacheProfiles, "MATRIXIPTV_CACHE_PROFILES")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite, BackendBolt:
		if c.DataDir == "" {
			return fmt.Errorf("config: data_dir is required for the %s backend", c.Backend)
		}
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return ErrMissingRedisURL
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	if c.CacheProfiles && c.RedisURL == "" {
		return ErrMissingRedisURL
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "matrixiptv")
	}
	return ".matrixiptv"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			*dst = b
		}
	}
}
