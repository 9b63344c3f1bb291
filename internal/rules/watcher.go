package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the watcher waits after the last write.
const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads the engine when the rules file changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	engine  *Engine
	load    Loader
	path    string

	// reloaded is notified after each reload attempt; used by tests.
	reloaded func(count int, err error)
}

// NewWatcher creates a file watcher over path.
func NewWatcher(engine *Engine, load Loader, path string) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("rules file path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat rules file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	return &Watcher{
		watcher: watcher,
		engine:  engine,
		load:    load,
		path:    path,
	}, nil
}

// Run watches for file changes and reloads rules. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					w.reload(ctx)
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("rules watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	count, err := w.engine.Reload(ctx, w.load)
	if err != nil {
		slog.Error("rules hot-reload failed", "path", w.path, "error", err)
	} else {
		slog.Info("rules hot-reloaded", "path", w.path, "count", count)
	}
	if w.reloaded != nil {
		w.reloaded(count, err)
	}
}
