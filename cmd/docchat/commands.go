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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	baseURL    string
	outputMode string // CLI override for ui.output (auto/interactive/plain/machine)
	logLevel   string

	askFiles     []string
	historyLimit int
	noWatch      bool

	rootCmd = &cobra.Command{
		Use:   "docchat",
		Short: "Upload documents and ask questions about them",
		Long: `docchat talks to a document chat server: upload PDF, Word, or text
files, then ask questions and watch the answers stream in.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup, // Defined in main.go
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Args:  cobra.NoArgs,
		RunE:  runChatCommand, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Uploads the given files, asks one question, and prints the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCommand, // Defined in cmd_ask.go
	}

	// --- Documents ---
	uploadCmd = &cobra.Command{
		Use:   "upload [file...]",
		Short: "Uploads documents to the server",
		RunE:  runUploadCommand, // Defined in cmd_upload.go
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Lists previously asked questions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCommand, // Defined in cmd_history.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Prints the docchat version",
		Args:  cobra.NoArgs,
		Run:   runVersionCommand, // Defined in cmd_version.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default ~/.docchat/docchat.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "",
		"Server URL, e.g. http://localhost:5000 (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputMode, "output", "o", "",
		"Output mode: auto, interactive, plain, or machine")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, or error")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the drop folder even if one is configured")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringArrayVarP(&askFiles, "file", "f", nil, "Document to upload before asking (repeatable)")

	rootCmd.AddCommand(uploadCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries to show")

	rootCmd.AddCommand(versionCmd)
}
