package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	ListenAddr          string `yaml:"listen_addr"`
	Backend             string `yaml:"backend"`
	DataDir             string `yaml:"data_dir"`
	RedisURL            string `yaml:"redis_url"`
	DatabaseURL         string `yaml:"database_url"`
	MigrationsPath      string `yaml:"migrations_path"`
	UserAgent           string `yaml:"user_agent"`
	Timeout             string `yaml:"timeout"`
	LogLevel            string `yaml:"log_level"`
	PlayerPath          string `yaml:"player_path"`
	AutoRefreshInterval string `yaml:"auto_refresh_interval"`
	WatchStore          bool   `yaml:"watch_store"`
	CacheProfiles       bool   `yaml:"cache_profiles"`
	GuideCacheTTL       string `yaml:"guide_cache_ttl"`
}

// LoadFromFile loads config from a YAML file. Unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	c := Default()
	overrideString(&c.ListenAddr, f.ListenAddr)
	overrideString(&c.Backend, f.Backend)
	overrideString(&c.DataDir, f.DataDir)
	overrideString(&c.RedisURL, f.RedisURL)
	overrideString(&c.DatabaseURL, f.DatabaseURL)
	overrideString(&c.MigrationsPath, f.MigrationsPath)
	overrideString(&c.UserAgent, f.UserAgent)
	overrideString(&c.LogLevel, f.LogLevel)
	overrideString(&c.PlayerPath, f.PlayerPath)
	c.WatchStore = f.WatchStore
	c.CacheProfiles = f.CacheProfiles

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{f.Timeout, &c.Timeout},
		{f.AutoRefreshInterval, &c.AutoRefreshInterval},
		{f.GuideCacheTTL, &c.GuideCacheTTL},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
