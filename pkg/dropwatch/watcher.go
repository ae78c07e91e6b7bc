// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dropwatch turns files dropped into a directory into upload
// batches.
//
// Files created (or written) in the watched directory are collected until
// the directory has been quiet for the settle window, then delivered as
// one batch. This is the terminal counterpart of dragging several files
// onto the upload area: the batch is submitted as independent sequential
// uploads.
package dropwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is the quiet period that closes a batch.
const DefaultSettle = 500 * time.Millisecond

// BatchFunc receives the paths of one batch, sorted.
type BatchFunc func(paths []string)

// Config configures a Watcher.
type Config struct {
	// Dir is the watched directory. Created if missing.
	Dir string

	// Settle defaults to DefaultSettle.
	Settle time.Duration

	// OnBatch is called from the Run goroutine. Required.
	OnBatch BatchFunc

	Logger *slog.Logger
}

// Watcher watches one drop directory.
type Watcher struct {
	dir     string
	settle  time.Duration
	onBatch BatchFunc
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// New creates the directory if needed and starts watching it.
//
// Files already present are ignored; only later arrivals form batches.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("drop directory is required")
	}
	if cfg.OnBatch == nil {
		return nil, errors.New("batch callback is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create drop directory %s: %w", cfg.Dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(cfg.Dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}

	w := &Watcher{
		dir:     cfg.Dir,
		settle:  cfg.Settle,
		onBatch: cfg.OnBatch,
		logger:  cfg.Logger,
		watcher: fw,
	}
	if w.settle <= 0 {
		w.settle = DefaultSettle
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run delivers batches until ctx is cancelled, then closes the watcher.
//
// A batch pending at cancellation is dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.logger.Debug("Watching drop directory", slog.String("dir", w.dir))

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.accept(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.settle)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Drop directory watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			w.flush(pending)
			pending = make(map[string]struct{})

		case <-ctx.Done():
			w.logger.Debug("Drop directory watcher stopping")
			return nil
		}
	}
}

// accept reports whether event names a candidate file.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return true
}

// flush emits the pending paths that still exist as regular files.
func (w *Watcher) flush(pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.logger.Info("Dropped files detected",
		slog.String("dir", w.dir),
		slog.Int("count", len(paths)))
	w.onBatch(paths)
}
