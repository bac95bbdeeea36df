// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reloads a dataset file when it changes on disk.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// Handler is called with the watched path once writes have settled.
type Handler func(ctx context.Context, path string)

// Options configures a FileWatcher.
type Options struct {
	// Debounce is how long the file must stay quiet before Handler runs.
	Debounce time.Duration

	// Logger receives watcher errors. Nil uses slog.Default.
	Logger *slog.Logger
}

// FileWatcher watches a single file.
//
// The parent directory is watched rather than the file itself, so
// editors and tools that replace the file by rename keep triggering
// reloads. Events for other files in the directory are ignored.
//
// # Thread Safety
//
// Safe for concurrent use. Handler is called from a single goroutine,
// never concurrently with itself.
type FileWatcher struct {
	path     string
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	events   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// New creates a watcher for path. Call Start to begin watching.
func New(path string, handler Handler, opts Options) (*FileWatcher, error) {
	if path == "" {
		return nil, errors.New("watch path must not be empty")
	}
	if handler == nil {
		return nil, errors.New("watch handler must not be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		path:     abs,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger.With(slog.String("path", abs)),
		watcher:  watcher,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// Start begins watching. It returns once the directory watch is
// registered. Watching stops when ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.watching = true

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop halts the watcher and waits for its goroutines to exit.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether Start has been called and Stop has not.
func (w *FileWatcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *FileWatcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			// One pending signal is enough; the debouncer reads the file fresh.
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dataset watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *FileWatcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Debug("dataset file changed")
			w.handler(ctx, w.path)
		}
	}
}
