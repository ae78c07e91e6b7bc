// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/pkg/backend"
	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/telemetry"
	"github.com/AleutianAI/docchat/pkg/transcript"
)

const shutdownTimeout = 5 * time.Second

// appEnv holds the long-lived collaborators shared by the commands.
//
// # Thread Safety
//
// All fields are safe for concurrent use after newAppEnv returns.
type appEnv struct {
	cfg     config.DocChatConfig
	logger  *slog.Logger
	client  *backend.Client
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	// history is nil when history is disabled.
	history *transcript.Store

	closers []io.Closer
}

// envOptions adjusts newAppEnv for a command.
type envOptions struct {
	// TraceWriter receives exported spans when tracing is on. Defaults to
	// os.Stderr.
	TraceWriter io.Writer

	// WithHistory opens the transcript store when history is enabled.
	WithHistory bool
}

// newAppEnv builds the backend client, telemetry, and transcript store
// described by c.
func newAppEnv(ctx context.Context, c config.DocChatConfig, logger *slog.Logger, opts envOptions) (*appEnv, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env := &appEnv{cfg: c, logger: logger, metrics: telemetry.NewMetrics()}

	traceWriter := opts.TraceWriter
	if traceWriter == nil {
		traceWriter = os.Stderr
	}
	tracer, err := telemetry.NewTracer(ctx, telemetry.TracerConfig{
		Stdout:  c.Telemetry.TraceStdout,
		Writer:  traceWriter,
		Version: version,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer: %w", err)
	}
	env.tracer = tracer

	env.client, err = backend.New(backend.Config{
		BaseURL:       c.Server.BaseURL,
		UploadTimeout: c.Server.UploadTimeout,
		DialTimeout:   c.Server.DialTimeout,
		Tracer:        tracer,
		Logger:        logger.With(slog.String("component", "backend")),
	})
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	if opts.WithHistory && c.History.Enabled {
		store, err := transcript.Open(transcript.Config{
			Path:   config.ExpandPath(c.History.Dir),
			Logger: logger.With(slog.String("component", "transcript")),
		})
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		env.history = store
		env.closers = append(env.closers, store)
	}
	return env, nil
}

// newState returns an empty session configured from chat.require_upload.
func (env *appEnv) newState() *session.State {
	return session.New(session.Options{RequireUpload: env.cfg.Chat.RequireUpload})
}

// recorder returns the transcript store as a chat.Recorder, or nil when
// history is off.
func (env *appEnv) recorder() chat.Recorder {
	if env.history == nil {
		return nil
	}
	return env.history
}

// Close flushes spans and closes the transcript store.
func (env *appEnv) Close() error {
	var errs []error
	if env.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, env.tracer.Shutdown(ctx))
		cancel()
	}
	for i := len(env.closers) - 1; i >= 0; i-- {
		errs = append(errs, env.closers[i].Close())
	}
	return errors.Join(errs...)
}

// traceFile opens the span file used while the chat screen owns the
// terminal. It returns nil when tracing is off or no log directory is set.
func traceFile(c config.DocChatConfig) (*os.File, error) {
	if !c.Telemetry.TraceStdout || c.Logging.Dir == "" {
		return nil, nil
	}
	dir := config.ExpandPath(c.Logging.Dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, "docchat_traces.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, nil
}
