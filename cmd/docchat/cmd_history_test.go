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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/transcript"
	"github.com/AleutianAI/docchat/pkg/ux"
)

func openTestStore(t *testing.T) *transcript.Store {
	t.Helper()
	store, err := transcript.Open(transcript.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPrintHistory_Empty(t *testing.T) {
	out := &lockedBuffer{}
	require.NoError(t, printHistory(context.Background(), openTestStore(t), out, ux.ModeMachine, 10))
	assert.Equal(t, "INFO: No questions asked yet\n", out.String())
}

func TestPrintHistory_MachineNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Record(context.Background(), chat.Record{
			ExchangeID: fmt.Sprintf("ex-%d", i),
			Question:   fmt.Sprintf("Question %d?", i),
			Document:   "notes.txt",
			Answer:     "Line one.\nLine two.",
			Outcome:    chat.OutcomeComplete,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	out := &lockedBuffer{}
	require.NoError(t, printHistory(context.Background(), store, out, ux.ModeMachine, 2))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2025-03-01T10:02:00Z\tnotes.txt\tcomplete\tQuestion 2?\tLine one. Line two.", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2025-03-01T10:01:00Z\t"))
	assert.Equal(t, "INFO: Showing 2 of 3", lines[2])
}

func TestHistoryRow_ErrorReplacesAnswer(t *testing.T) {
	row := historyRow(chat.Record{
		Question:  "Why?",
		Error:     "model unavailable",
		Outcome:   chat.OutcomeErrored,
		StartedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}, ux.ModePlain)
	require.Len(t, row, 5)
	assert.Equal(t, "errored", row[2])
	assert.Equal(t, "model unavailable", row[4])
}
