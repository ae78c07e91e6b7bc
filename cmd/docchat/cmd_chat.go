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
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/pkg/dropwatch"
	"github.com/AleutianAI/docchat/pkg/logging"
	"github.com/AleutianAI/docchat/pkg/tui"
	"github.com/AleutianAI/docchat/pkg/ux"
)

// runChatCommand handles "docchat chat".
//
// # Description
//
// Runs the full-screen chat when stdin and stdout are terminals and the
// output mode is interactive; otherwise runs the line runner. Alongside
// the session it serves /metrics when telemetry.metrics_addr is set and
// uploads files dropped into watch.dir.
func runChatCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	screen := useScreen()
	opts := envOptions{WithHistory: true}
	if screen {
		f, err := traceFile(cfg)
		if err != nil {
			return err
		}
		if f != nil {
			defer f.Close()
			opts.TraceWriter = f
		} else {
			opts.TraceWriter = io.Discard
		}
	}

	env, err := newAppEnv(ctx, cfg, slog.Default(), opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			slog.Warn("Shutdown incomplete", slog.String("error", cerr.Error()))
		}
	}()

	if screen {
		return runScreen(ctx, env)
	}

	var prompt string
	if ux.StdinIsTerminal() {
		prompt = "> "
	}
	runner := NewLineRunner(LineRunnerConfig{
		Env:    env,
		Reader: NewStdinReader(os.Stdin),
		Output: cmd.OutOrStdout(),
		Mode:   ux.Mode(),
		Prompt: prompt,
	})
	drops := make(chan []string, 8)
	return runSession(ctx, env, func(ctx context.Context) error {
		return runner.Run(ctx, drops)
	}, func(paths []string) {
		select {
		case drops <- paths:
		default:
			slog.Warn("Dropped files ignored, upload queue full", slog.Int("files", len(paths)))
		}
	})
}

func runScreen(ctx context.Context, env *appEnv) error {
	app, err := tui.New(tui.Config{
		State:          env.newState(),
		Dialer:         env.client,
		Uploader:       env.client,
		Title:          "docchat · " + env.cfg.Server.BaseURL,
		IndicatorLabel: env.cfg.Chat.IndicatorLabel,
		ChatObserver:   env.metrics,
		UploadObserver: env.metrics,
		Recorder:       env.recorder(),
		Logger:         env.logger,
		AltScreen:      env.cfg.UI.AltScreen,
	})
	if err != nil {
		return err
	}
	if screenNotices != nil {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go forwardNotices(ctx, screenNotices.Entries(), app.Hint)
	}
	return runSession(ctx, env, app.Run, app.Upload)
}

// forwardNotices shows each log entry as a hint until ctx is done.
func forwardNotices(ctx context.Context, entries <-chan logging.LogEntry, hint func(string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-entries:
			hint(noticeText(entry))
		}
	}
}

func noticeText(entry logging.LogEntry) string {
	if cause, ok := entry.Attrs["error"]; ok {
		return fmt.Sprintf("%s: %v", entry.Message, cause)
	}
	return entry.Message
}

// runSession runs session next to the drop folder watcher and the metrics
// endpoint. When session returns, the others are stopped.
func runSession(ctx context.Context, env *appEnv, session func(context.Context) error, onDrop dropwatch.BatchFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if dir := env.cfg.Watch.Dir; dir != "" && !noWatch {
		watcher, err := dropwatch.New(dropwatch.Config{
			Dir:     config.ExpandPath(dir),
			Settle:  env.cfg.Watch.Settle,
			OnBatch: onDrop,
			Logger:  env.logger.With(slog.String("component", "dropwatch")),
		})
		if err != nil {
			return err
		}
		env.logger.Info("Watching drop folder", slog.String("dir", watcher.Dir()))
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if addr := env.cfg.Telemetry.MetricsAddr; addr != "" {
		g.Go(func() error { return env.metrics.Serve(gctx, addr) })
	}

	g.Go(func() error {
		defer cancel()
		return session(gctx)
	})
	return g.Wait()
}
