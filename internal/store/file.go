package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"

	xlog "github.com/voyagen/matrixiptv/internal/log"
)

const (
	fileExt          = ".json"
	watchDebounce    = 500 * time.Millisecond
	defaultFilePerms = 0o600
)

// File stores each key as a JSON document in a directory.
type File struct {
	dir string
}

// NewFile creates dir if needed and returns a File backend rooted there.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("store: file backend needs a directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// Dir returns the backing directory.
func (f *File) Dir() string { return f.dir }

// Path returns the file that holds key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileExt)
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set replaces the document atomically: readers see the old or the new file, never a torn write.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := xlog.FromContext(ctx)

	pending, err := renameio.NewPendingFile(f.Path(key), renameio.WithPermissions(defaultFilePerms))
	if err != nil {
		return fmt.Errorf("create pending file for %s: %w", key, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("cleanup pending file")
		}
	}()

	if _, err := pending.Write(value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Watch calls fn whenever the document for key changes on disk, debounced so
// a burst of events produces one call. It blocks until ctx is done.
func (f *File) Watch(ctx context.Context, key string, fn func(ctx context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Atomic replaces swap the inode, so watch the directory rather than the file.
	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}

	logger := xlog.WithComponent("store")
	target := filepath.Base(f.Path(key))
	logger.Info().
		Str("event", "store.watcher_started").
		Str("path", f.Path(key)).
		Msg("watching profile document for changes")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("event", "store.watcher_stopped").Msg("store watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug().
				Str("event", "store.file_changed").
				Str("op", event.Op.String()).
				Msg("document changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() { fn(ctx) })

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Str("event", "store.watcher_error").Msg("store watcher error")
		}
	}
}
