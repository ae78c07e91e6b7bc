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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/transcript"
	"github.com/AleutianAI/docchat/pkg/ux"
)

var errHistoryDisabled = errors.New("history is disabled (history.enabled: false)")

func runHistoryCommand(cmd *cobra.Command, _ []string) error {
	if !cfg.History.Enabled {
		return errHistoryDisabled
	}
	env, err := newAppEnv(cmd.Context(), cfg, slog.Default(), envOptions{WithHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	return printHistory(cmd.Context(), env.history, cmd.OutOrStdout(), ux.Mode(), historyLimit)
}

// printHistory lists the newest limit exchanges, newest first.
func printHistory(ctx context.Context, store *transcript.Store, w io.Writer, mode ux.OutputMode, limit int) error {
	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	printer := ux.NewPrinter(w, mode)
	if len(records) == 0 {
		printer.Info("No questions asked yet")
		return nil
	}

	printer.Title("Conversation history")
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, historyRow(rec, mode))
	}
	printer.Table([]string{"WHEN", "DOCUMENT", "OUTCOME", "QUESTION", "ANSWER"}, rows)

	if total, err := store.Count(); err == nil && total > len(records) {
		printer.Info(fmt.Sprintf("Showing %d of %d", len(records), total))
	}
	return nil
}

func historyRow(rec chat.Record, mode ux.OutputMode) []string {
	answer := rec.Answer
	if rec.Error != "" {
		answer = rec.Error
	}
	question, answer := oneLine(rec.Question), oneLine(answer)
	when := rec.StartedAt.Local().Format("2006-01-02 15:04")
	if mode == ux.ModeMachine {
		return []string{rec.StartedAt.UTC().Format("2006-01-02T15:04:05Z"), rec.Document, string(rec.Outcome), question, answer}
	}
	return []string{when, rec.Document, string(rec.Outcome), ux.Truncate(question, 40), ux.Truncate(answer, 50)}
}

// oneLine collapses runs of whitespace, newlines included, to one space.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
