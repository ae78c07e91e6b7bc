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
	"os/signal"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/pkg/upload"
	"github.com/AleutianAI/docchat/pkg/ux"
)

var errNoFiles = errors.New("no files given")

func runUploadCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	paths := args
	if len(paths) == 0 {
		if ux.Mode() != ux.ModeInteractive || !ux.StdinIsTerminal() {
			return errNoFiles
		}
		picked, err := pickFiles()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		paths = picked
	}
	if len(paths) == 0 {
		return errNoFiles
	}

	env, err := newAppEnv(ctx, cfg, slog.Default(), envOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	return uploadFiles(ctx, env, cmd.OutOrStdout(), ux.Mode(), paths)
}

// uploadFiles uploads paths in order and prints one report row per file.
//
// # Outputs
//
//   - error: An *ExitError when any file was not accepted.
func uploadFiles(ctx context.Context, env *appEnv, w io.Writer, mode ux.OutputMode, paths []string) error {
	live := io.Discard
	if mode == ux.ModeInteractive {
		live = w
	}
	view := ux.NewTerminalView(live, mode)
	defer view.Close()

	tracker := upload.NewTracker(upload.Config{
		State:    env.newState(),
		Uploader: env.client,
		View:     view,
		Logger:   env.logger,
		Observer: env.metrics,
	})

	docs := make([]upload.Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, upload.FromPath(config.ExpandPath(p)))
	}
	outcomes := tracker.SubmitAll(ctx, docs...)

	printer := ux.NewPrinter(w, mode)
	rows := make([][]string, 0, len(outcomes))
	failed := 0
	for _, out := range outcomes {
		detail := out.Filename
		if !out.Accepted() {
			failed++
			detail = uploadFailureDetail(out.Err)
		}
		rows = append(rows, []string{out.Name, out.Result(), detail})
	}
	printer.Table([]string{"FILE", "RESULT", "DETAIL"}, rows)

	accepted := len(outcomes) - failed
	switch {
	case failed == 0:
		printer.Success(fmt.Sprintf("%d of %d uploaded", accepted, len(outcomes)))
		return nil
	case accepted > 0:
		printer.Warning(fmt.Sprintf("%d of %d uploaded", accepted, len(outcomes)))
	default:
		printer.Error("Nothing was uploaded")
	}
	return &ExitError{Code: ExitFailure, Wrapped: fmt.Errorf("%d of %d files failed", failed, len(outcomes))}
}

func uploadFailureDetail(err error) string {
	var rejected *upload.RejectedError
	switch {
	case errors.As(err, &rejected):
		if strings.TrimSpace(rejected.Message) != "" {
			return rejected.Message
		}
		return upload.GenericFailure
	case errors.Is(err, upload.ErrUnsupportedType):
		return "allowed: " + strings.Join(upload.AllowedExtensions, ", ")
	case errors.Is(err, upload.ErrDuplicate):
		return "already uploaded"
	default:
		return ux.Truncate(err.Error(), 60)
	}
}

// pickFiles asks for files one at a time until the user declines to add
// another.
func pickFiles() ([]string, error) {
	allowed := make([]string, 0, len(upload.AllowedExtensions))
	for _, ext := range upload.AllowedExtensions {
		allowed = append(allowed, "."+ext)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	var paths []string
	for {
		var path string
		more := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewFilePicker().
					Title("Choose a document").
					Description(fmt.Sprintf("%d selected so far", len(paths))).
					CurrentDirectory(cwd).
					AllowedTypes(allowed).
					Picking(true).
					Value(&path),
				huh.NewConfirm().
					Title("Add another?").
					Affirmative("Yes").
					Negative("No, upload").
					Value(&more),
			),
		)
		if err := form.Run(); err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
		if !more {
			return paths, nil
		}
	}
}
