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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/upload"
	"github.com/AleutianAI/docchat/pkg/ux"
)

var errNoDocument = errors.New("no document was accepted: pass one with --file, or set chat.require_upload to false")

// runAskCommand handles "docchat ask".
//
// # Description
//
// Uploads each --file in order, then asks the question formed by joining
// the arguments and streams the answer to stdout. Ctrl+C cancels the
// question.
func runAskCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	env, err := newAppEnv(ctx, cfg, slog.Default(), envOptions{WithHistory: true})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			slog.Warn("Shutdown incomplete", slog.String("error", cerr.Error()))
		}
	}()

	return ask(ctx, env, cmd.OutOrStdout(), ux.Mode(), askFiles, strings.Join(args, " "))
}

// ask runs one upload-then-question exchange against env's backend.
//
// # Outputs
//
//   - error: nil when a complete answer arrived. An *ExitError for a
//     cancelled, failed, or errored exchange.
func ask(ctx context.Context, env *appEnv, w io.Writer, mode ux.OutputMode, files []string, question string) error {
	view := ux.NewTerminalView(w, mode)
	defer view.Close()

	state := env.newState()
	logger := env.logger

	if len(files) > 0 {
		tracker := upload.NewTracker(upload.Config{
			State:    state,
			Uploader: env.client,
			View:     view,
			Logger:   logger,
			Observer: env.metrics,
		})
		docs := make([]upload.Document, 0, len(files))
		for _, f := range files {
			docs = append(docs, upload.FromPath(config.ExpandPath(f)))
		}
		for _, out := range tracker.SubmitAll(ctx, docs...) {
			if !out.Accepted() {
				logger.Warn("Document not uploaded",
					slog.String("name", out.Name),
					slog.String("result", out.Result()))
			}
		}
		if ctx.Err() != nil {
			return &ExitError{Code: ExitInterrupted, Wrapped: ctx.Err()}
		}
	}

	assembler := chat.NewAssembler(chat.Config{
		State:          state,
		Dialer:         env.client,
		View:           view,
		IndicatorLabel: env.cfg.Chat.IndicatorLabel,
		Logger:         logger,
		Observer:       env.metrics,
		Recorder:       env.recorder(),
	})

	ex, err := assembler.Submit(ctx, question)
	switch {
	case errors.Is(err, chat.ErrInputLocked):
		return &ExitError{Code: ExitFailure, Wrapped: errNoDocument}
	case err != nil:
		return &ExitError{Code: ExitFailure, Wrapped: err}
	}
	return outcomeError(assembler.Drain(ctx, ex))
}
