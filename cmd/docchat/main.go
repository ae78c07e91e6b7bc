// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command docchat is a terminal client for a document chat server.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/pkg/logging"
	"github.com/AleutianAI/docchat/pkg/ux"
)

var (
	cfg    config.DocChatConfig
	appLog *logging.Logger

	// screenNotices carries warnings to the chat screen while stderr
	// logging is off. Nil outside the screen.
	screenNotices *logging.ChanExporter
)

func main() {
	err := rootCmd.Execute()
	if appLog != nil {
		_ = appLog.Close()
	}
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// setup loads configuration, applies flags, and installs the output mode
// and logger. It runs before every command.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded.Config
	if err := applyFlags(&cfg); err != nil {
		return err
	}

	mode, err := ux.ParseOutputMode(cfg.UI.Output)
	if err != nil {
		return err
	}
	ux.SetMode(mode)

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	screen := cmd == chatCmd && useScreen()
	var exporter logging.LogExporter
	if screen {
		screenNotices = logging.NewChanExporter(logging.LevelWarn, 16)
		exporter = screenNotices
	}
	appLog = logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON || ux.Mode() == ux.ModeMachine,
		// The chat screen owns the terminal.
		Quiet:    screen,
		Exporter: exporter,
	})
	slog.SetDefault(appLog.Slog())

	if loaded.Created {
		slog.Info("Created default config", slog.String("path", loaded.Path))
	}
	slog.Debug("Configuration loaded",
		slog.String("path", loaded.Path),
		slog.String("base_url", cfg.Server.BaseURL),
		slog.String("output", string(ux.Mode())))
	return nil
}

// applyFlags overrides cfg with the persistent flags that were set.
func applyFlags(c *config.DocChatConfig) error {
	if baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if outputMode != "" {
		c.UI.Output = outputMode
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if baseURL == "" && outputMode == "" && logLevel == "" {
		return nil
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}

// useScreen reports whether "docchat chat" should run the full-screen
// interface rather than the line runner.
func useScreen() bool {
	return ux.Mode() == ux.ModeInteractive && ux.StdinIsTerminal()
}
