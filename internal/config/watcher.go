package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/findna/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the YAML config file when it changes and hands every
// valid result to its callbacks. Invalid reloads are logged and dropped.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   logger.Logger

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
}

// WatchOption applies a configuration option to the Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l logger.Logger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for path starting from initial.
func NewWatcher(path string, initial *Config, opts ...WatchOption) *Watcher {
	w := &Watcher{
		path:     path,
		debounce: defaultDebounce,
		logger:   logger.Nop(),
		current:  initial,
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// OnChange registers a callback fired after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches until ctx is done. The directory is watched rather than the
// file so that editors replacing the file by rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "config watcher error", logger.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := LoadFile(ctx, w.path)
	if err != nil {
		w.logger.Error(ctx, "config reload rejected", logger.String("path", w.path), logger.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Info(ctx, "config reloaded", logger.String("path", w.path), logger.String("log_level", cfg.LogLevel))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
