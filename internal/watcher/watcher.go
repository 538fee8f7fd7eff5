// Package watcher turns edits of a dataset file into store reloads.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/graph"
)

// Watcher watches one file and calls onChange once a burst of writes settles.
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	logger   *zap.Logger
}

// New creates a watcher for path.
func New(path string, onChange func(), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		logger:   logger,
	}
}

// WithDebounce sets the debounce duration.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is done. The directory is watched rather than the
// file so that editors replacing the file are noticed.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("watching dataset", zap.String("path", abs))

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.logger.Debug("dataset changed", zap.String("path", abs))
				w.onChange()
			})
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Reloader returns an onChange callback that re-reads the YAML dataset at
// path into store. A file that fails to parse leaves the store untouched.
func Reloader(path string, store *graph.MemStore, logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func() {
		d, err := graph.LoadDataset(path)
		if err != nil {
			logger.Error("reload dataset", zap.String("path", path), zap.Error(err))
			return
		}
		store.Replace(d)
		logger.Info("dataset reloaded",
			zap.String("path", path),
			zap.Int("relations", len(d.Relations)))
	}
}
