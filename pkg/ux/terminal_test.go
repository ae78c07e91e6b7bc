// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
)

// Compile-time interface checks.
var (
	_ chat.View   = (*TerminalView)(nil)
	_ upload.View = (*TerminalView)(nil)
)

func streamAnswer(v *TerminalView, displays ...string) *session.Turn {
	answer := session.NewTurn(session.RoleAssistant, "", session.StatusStreaming)
	for i, d := range displays {
		answer.Display = d
		if i == 0 {
			v.AppendTurn(answer)
		} else {
			v.UpdateTurn(answer)
		}
	}
	answer.Status = session.StatusComplete
	v.UpdateTurn(answer)
	return answer
}

func TestTerminalView_PlainPrintsFinalAnswerOnce(t *testing.T) {
	var buf bytes.Buffer
	v := NewTerminalView(&buf, ModePlain)

	v.AppendTurn(session.NewTurn(session.RoleUser, "What is X?", session.StatusComplete))
	v.ShowIndicator(chat.Indicator{Label: "Thinking", Markers: chat.IndicatorMarkers})
	v.RemoveIndicator()
	answer := streamAnswer(v, "The", "The answer", "The answer is 42.")
	v.UpdateTurn(answer)

	want := "You: What is X?\nAssistant: The answer is 42.\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTerminalView_MachineTags(t *testing.T) {
	var buf bytes.Buffer
	v := NewTerminalView(&buf, ModeMachine)

	v.AppendTurn(session.NewTurn(session.RoleUser, "q", session.StatusComplete))
	v.ShowIndicator(chat.Indicator{Label: "Thinking", Markers: chat.IndicatorMarkers})
	streamAnswer(v, "a")
	notice := session.NewTurn(session.RoleSystem, "发生错误: boom", session.StatusErrored)
	notice.Error = true
	v.AppendTurn(notice)
	v.AppendTurn(session.NewTurn(session.RoleSystem, "Uploaded notes.txt.", session.StatusComplete))

	want := strings.Join([]string{
		"USER: q",
		"STATUS: Thinking...",
		"ASSISTANT: a",
		"ERROR: 发生错误: boom",
		"SYSTEM: Uploaded notes.txt.",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTerminalView_InteractiveStreamsIncrementally(t *testing.T) {
	var buf bytes.Buffer
	v := NewTerminalView(&buf, ModeInteractive)

	streamAnswer(v, "", "foo", "foo bar")

	out := buf.String()
	if strings.Count(out, "foo") != 1 {
		t.Errorf("extension should print only new text, got %q", out)
	}
	if !strings.Contains(out, "Assistant:") || !strings.HasSuffix(out, "foo bar\n") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestTerminalView_InteractiveReprintsOnRewrite(t *testing.T) {
	var buf bytes.Buffer
	v := NewTerminalView(&buf, ModeInteractive)

	streamAnswer(v, "AI", "hello")

	out := buf.String()
	if strings.Count(out, "Assistant:") != 2 {
		t.Errorf("a rewritten answer should be reprinted, got %q", out)
	}
	if !strings.HasSuffix(out, "hello\n") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestTerminalView_StatusAndInput(t *testing.T) {
	var buf bytes.Buffer
	v := NewTerminalView(&buf, ModePlain)

	if !v.InputEnabled() {
		t.Error("input should start enabled")
	}
	v.SetInputEnabled(false)
	if v.InputEnabled() {
		t.Error("SetInputEnabled(false) ignored")
	}

	v.ShowStatus(upload.Status{Kind: upload.StatusSuccess, Text: "Uploaded notes.txt"})
	s, ok := v.Status()
	if !ok || s.Text != "Uploaded notes.txt" {
		t.Errorf("Status() = %+v, %v", s, ok)
	}
	v.ClearStatus()
	if _, ok := v.Status(); ok {
		t.Error("status should be cleared")
	}
	if buf.String() != "Uploaded notes.txt\n" {
		t.Errorf("output = %q", buf.String())
	}
}
