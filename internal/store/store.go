// Package store provides key/value persistence backends for viewer state.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("store: key not found")

// Backend persists opaque documents by key. Implementations must be safe for
// concurrent use; the last Set for a key wins.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by backends holding connections or file handles.
type Closer interface {
	Close() error
}

// Close closes b if it holds resources.
func Close(b Backend) error {
	if c, ok := b.(Closer); ok {
		return c.Close()
	}
	return nil
}
