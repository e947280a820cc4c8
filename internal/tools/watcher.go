// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a catalog file must be quiet before reloading.
const DefaultDebounce = 250 * time.Millisecond

// =============================================================================
// CATALOG WATCHER
// =============================================================================

// Watcher serves the latest valid catalog loaded from a file and reloads it
// when the file changes. A reload that fails keeps the previous catalog.
//
// The parent directory is watched rather than the file itself so editors that
// save by rename are picked up.
type Watcher struct {
	path     string
	current  atomic.Pointer[Catalog]
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending time.Time // zero when no change is waiting
	onSwap  func(*Catalog)

	ctx    context.Context
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger used for reload events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// OnSwap registers a callback invoked after each successful reload.
func OnSwap(fn func(*Catalog)) WatcherOption {
	return func(w *Watcher) { w.onSwap = fn }
}

// NewWatcher loads path and starts watching it. The initial load must succeed.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	initial, err := LoadFile(abs)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(initial)

	w.done.Add(2)
	go w.processEvents()
	go w.processPending()

	w.logger.Info("CATALOG_WATCH_STARTED", zap.String("path", abs), zap.Int("tools", initial.Len()))
	return w, nil
}

// Catalog returns the most recent valid catalog. Implements Source.
func (w *Watcher) Catalog() *Catalog {
	return w.current.Load()
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Reload re-reads the file immediately.
func (w *Watcher) Reload() error {
	c, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("CATALOG_RELOAD_FAILED",
			zap.String("path", w.path), zap.Error(err))
		return err
	}
	w.current.Store(c)
	w.logger.Info("CATALOG_RELOADED", zap.String("path", w.path), zap.Int("tools", c.Len()))
	if w.onSwap != nil {
		w.onSwap(c)
	}
	return nil
}

func (w *Watcher) processEvents() {
	defer w.done.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("CATALOG_WATCHER_PANIC", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("CATALOG_WATCHER_ERROR", zap.Error(err))
		}
	}
}

func (w *Watcher) processPending() {
	defer w.done.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case now := <-ticker.C:
			w.mu.Lock()
			ready := !w.pending.IsZero() && now.Sub(w.pending) >= w.debounce
			if ready {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if ready {
				_ = w.Reload()
			}
		}
	}
}

// Close stops watching. The last catalog stays readable.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.done.Wait()
	return err
}
