package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jibsandbox/jib-gateway/internal/config"
	"github.com/jibsandbox/jib-gateway/internal/gateway"
)

// DefaultDebounce is how long the config file must be quiet before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Reloader watches the config file and calls reload after changes settle.
// The parent directory is watched so editors that replace the file by
// rename are seen.
type Reloader struct {
	watcher  *fsnotify.Watcher
	path     string
	reload   func() error
	logger   *slog.Logger
	Debounce time.Duration
}

// NewReloader watches path.
func NewReloader(path string, reload func() error, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}
	return &Reloader{
		watcher:  watcher,
		path:     abs,
		reload:   reload,
		logger:   logger,
		Debounce: DefaultDebounce,
	}, nil
}

// Run watches for changes. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(r.Debounce, func() {
				if err := r.reload(); err != nil {
					r.logger.Error("hot-reload failed", "path", r.path, "error", err)
				}
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}

// ConfigReload returns a reload function that re-reads the config file and
// applies its hot-reloadable settings to gw. Unchanged content is skipped.
// A file that fails to load or validate leaves the running settings alone.
func ConfigReload(path string, lookup config.LookupFunc, gw *gateway.Gateway, logger *slog.Logger, initialHash string) func() error {
	if logger == nil {
		logger = slog.Default()
	}
	var mu sync.Mutex
	last := initialHash
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		cfg, hash, err := config.Load(path, lookup)
		if err != nil {
			return err
		}
		if hash == last {
			return nil
		}
		gw.Apply(gateway.ReloadableFrom(cfg))
		last = hash
		logger.Info("hot-reload: configuration reloaded", "path", path, "hash", hash)
		return nil
	}
}
