// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
)

// Config wires the chat screen to its backend.
type Config struct {
	State    *session.State
	Dialer   chat.Dialer
	Uploader upload.Uploader

	Title          string
	IndicatorLabel string

	ChatObserver   chat.Observer
	UploadObserver upload.Observer
	Recorder       chat.Recorder
	Logger         *slog.Logger

	// Input and Output default to the terminal.
	Input  io.Reader
	Output io.Writer

	// AltScreen runs the screen in the terminal's alternate buffer.
	AltScreen bool
}

// App is a runnable chat screen.
type App struct {
	program    *tea.Program
	view       *ProgramView
	controller *Controller
	logger     *slog.Logger
}

// New builds the chat screen and its controller.
func New(cfg Config) (*App, error) {
	if cfg.State == nil || cfg.Dialer == nil || cfg.Uploader == nil {
		return nil, errors.New("tui: state, dialer, and uploader are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	view := NewProgramView(nil)

	assembler := chat.NewAssembler(chat.Config{
		State:          cfg.State,
		Dialer:         cfg.Dialer,
		View:           view,
		IndicatorLabel: cfg.IndicatorLabel,
		Logger:         logger,
		Observer:       cfg.ChatObserver,
		Recorder:       cfg.Recorder,
	})
	tracker := upload.NewTracker(upload.Config{
		State:    cfg.State,
		Uploader: cfg.Uploader,
		View:     view,
		Logger:   logger,
		Observer: cfg.UploadObserver,
	})
	controller := NewController(ControllerConfig{
		Assembler: assembler,
		Tracker:   tracker,
		Hint:      view.Hint,
		Logger:    logger,
	})

	model := NewModel(ModelConfig{
		Actions:      controller,
		Title:        cfg.Title,
		InputEnabled: cfg.State.InputEnabled(),
		Gate:         cfg.State.InputEnabled,
	})

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	program := tea.NewProgram(model, opts...)
	view.Attach(program)

	return &App{program: program, view: view, controller: controller, logger: logger}, nil
}

// Upload queues files for upload. Safe to call from any goroutine.
func (a *App) Upload(paths []string) {
	a.controller.Upload(paths)
}

// Hint shows text under the message log until the next key press. Safe
// to call from any goroutine except the program's own.
func (a *App) Hint(text string) {
	a.view.Hint(text)
}

// Run shows the screen until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.controller.Run(ctx) }()
	go func() {
		<-ctx.Done()
		a.program.Quit()
	}()

	_, err := a.program.Run()
	cancel()
	ctrlErr := <-done

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run chat screen: %w", err)
	}
	return ctrlErr
}

// Quit stops the screen from another goroutine.
func (a *App) Quit() {
	a.program.Quit()
}
