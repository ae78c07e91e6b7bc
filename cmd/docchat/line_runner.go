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

// Line-oriented chat for piped stdin and non-interactive output modes.
//
//	stdin ──▶ InputReader ──▶ lines ─┐
//	                                 ├─▶ LineRunner.Run ──▶ Tracker / Assembler ──▶ TerminalView
//	drop folder ──▶ batches ─────────┘
//
// Every line is handled to completion before the next one is read, so a
// script can upload and then ask without racing the upload.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/tui"
	"github.com/AleutianAI/docchat/pkg/upload"
	"github.com/AleutianAI/docchat/pkg/ux"
)

const lineHelp = "Type a question and press Enter. /upload <path>... uploads files. /quit exits."

// =============================================================================
// InputReader
// =============================================================================

// InputReader abstracts line input for testability.
//
// # Outputs
//
// ReadLine returns the line without surrounding whitespace, or io.EOF when
// input is exhausted.
type InputReader interface {
	ReadLine() (string, error)
}

// StdinReader implements InputReader over a bufio.Reader.
//
// # Thread Safety
//
// Not thread-safe. Single reader per stream.
//
// # Limitations
//
//   - Cannot be cancelled mid-read (stdin blocking is OS-level)
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader wraps r, usually os.Stdin.
func NewStdinReader(r io.Reader) *StdinReader {
	return &StdinReader{reader: bufio.NewReader(r)}
}

// ReadLine reads one line. A final line without a newline is returned
// before io.EOF.
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// LineRunner
// =============================================================================

// LineRunnerConfig configures NewLineRunner.
type LineRunnerConfig struct {
	Env    *appEnv
	Reader InputReader
	Output io.Writer
	Mode   ux.OutputMode

	// Prompt is printed before each read. Empty for piped input.
	Prompt string
}

// LineRunner runs a chat session one line at a time.
type LineRunner struct {
	reader  InputReader
	out     io.Writer
	prompt  string
	printer *ux.Printer
	view    *ux.TerminalView

	tracker   *upload.Tracker
	assembler *chat.Assembler
	logger    *slog.Logger
}

// NewLineRunner creates a LineRunner with a fresh session.
func NewLineRunner(cfg LineRunnerConfig) *LineRunner {
	env := cfg.Env
	view := ux.NewTerminalView(cfg.Output, cfg.Mode)
	state := env.newState()

	return &LineRunner{
		reader:  cfg.Reader,
		out:     cfg.Output,
		prompt:  cfg.Prompt,
		printer: ux.NewPrinter(cfg.Output, cfg.Mode),
		view:    view,
		tracker: upload.NewTracker(upload.Config{
			State:    state,
			Uploader: env.client,
			View:     view,
			Logger:   env.logger,
			Observer: env.metrics,
		}),
		assembler: chat.NewAssembler(chat.Config{
			State:          state,
			Dialer:         env.client,
			View:           view,
			IndicatorLabel: env.cfg.Chat.IndicatorLabel,
			Logger:         env.logger,
			Observer:       env.metrics,
			Recorder:       env.recorder(),
		}),
		logger: env.logger,
	}
}

// Run reads and handles lines until EOF, /quit, or ctx is cancelled.
// Batches received on drops are uploaded between lines. drops may be nil.
func (r *LineRunner) Run(ctx context.Context, drops <-chan []string) error {
	defer r.view.Close()

	lines := make(chan string)
	readErr := make(chan error, 1)
	next := make(chan struct{}, 1)
	go func() {
		for range next {
			line, err := r.reader.ReadLine()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer close(next)

	r.showPrompt()
	next <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)

		case paths := <-drops:
			r.upload(ctx, paths)

		case line := <-lines:
			if !r.handle(ctx, line) {
				return nil
			}
			r.showPrompt()
			next <- struct{}{}
		}
	}
}

// handle processes one line. It returns false when the user asked to quit.
func (r *LineRunner) handle(ctx context.Context, line string) bool {
	switch {
	case line == "":
		return true

	case isExitCommand(line):
		return false

	case line == "/help":
		r.printer.Info(lineHelp)
		return true

	case line == "/upload" || strings.HasPrefix(line, "/upload "):
		paths := tui.SplitPaths(strings.TrimPrefix(line, "/upload"))
		if len(paths) == 0 {
			r.printer.Warning("Usage: /upload <path>...")
			return true
		}
		r.upload(ctx, paths)
		return true
	}

	if paths, ok := tui.DroppedFiles(line); ok {
		r.upload(ctx, paths)
		return true
	}

	ex, err := r.assembler.Submit(ctx, line)
	switch {
	case errors.Is(err, chat.ErrInputLocked):
		r.printer.Warning(tui.LockedHint)
		return true
	case err != nil:
		r.logger.Debug("Question ignored", slog.String("reason", err.Error()))
		return true
	}
	r.assembler.Drain(ctx, ex)
	return true
}

func (r *LineRunner) upload(ctx context.Context, paths []string) {
	docs := make([]upload.Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, upload.FromPath(config.ExpandPath(p)))
	}
	r.tracker.SubmitAll(ctx, docs...)
}

func (r *LineRunner) showPrompt() {
	if r.prompt != "" {
		fmt.Fprint(r.out, r.prompt)
	}
}

// isExitCommand reports whether input ends the session.
func isExitCommand(input string) bool {
	switch input {
	case "/quit", "/exit", "exit", "quit":
		return true
	}
	return false
}
