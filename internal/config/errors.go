package config

import "errors"

var (
	// ErrInvalidBackend is returned for an unknown persistence backend name.
	ErrInvalidBackend = errors.New("config: invalid backend")
	// ErrMissingRedisURL is returned when a Redis-backed feature has no URL.
	ErrMissingRedisURL = errors.New("config: REDIS_URL is required for the redis backend and profile caching")
	// ErrMissingDatabaseURL is returned when the postgres backend has no DSN.
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required for the postgres backend")
)
