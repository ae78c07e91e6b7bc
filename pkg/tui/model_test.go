// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
)

type fakeActions struct {
	asked    []string
	cancels  int
	uploaded [][]string
}

func (f *fakeActions) Ask(text string)       { f.asked = append(f.asked, text) }
func (f *fakeActions) Cancel()               { f.cancels++ }
func (f *fakeActions) Upload(paths []string) { f.uploaded = append(f.uploaded, paths) }

func newTestModel(t *testing.T, enabled bool) (Model, *fakeActions) {
	t.Helper()
	actions := &fakeActions{}
	m := NewModel(ModelConfig{Actions: actions, InputEnabled: enabled})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model), actions
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func enter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestNewModel(t *testing.T) {
	m := NewModel(ModelConfig{Actions: &fakeActions{}})

	if m.title != "docchat" {
		t.Errorf("Expected default title, got %q", m.title)
	}
	if m.inputEnabled {
		t.Error("Expected input disabled")
	}
	if m.input.Placeholder != placeholderLocked {
		t.Errorf("Expected locked placeholder, got %q", m.input.Placeholder)
	}
	if m.View() != "Loading...\n" {
		t.Errorf("Expected loading view before first resize, got %q", m.View())
	}
}

func TestModel_TurnMessages(t *testing.T) {
	m, _ := newTestModel(t, true)

	user := session.NewTurn(session.RoleUser, "What is X?", session.StatusComplete)
	answer := session.NewTurn(session.RoleAssistant, "The answer", session.StatusStreaming)

	m, _ = update(t, m, TurnMsg{Turn: *user})
	m, _ = update(t, m, TurnMsg{Turn: *answer})
	answer.Display = "The answer is 42."
	answer.Status = session.StatusComplete
	m, _ = update(t, m, TurnMsg{Turn: *answer, Update: true})

	if len(m.turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(m.turns))
	}
	if m.turns[1].Display != "The answer is 42." {
		t.Errorf("Expected updated answer, got %q", m.turns[1].Display)
	}

	view := m.View()
	if !strings.Contains(view, "What is X?") || !strings.Contains(view, "The answer is 42.") {
		t.Errorf("View missing turns:\n%s", view)
	}
}

func TestModel_Indicator(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, cmd := update(t, m, IndicatorMsg{Indicator: &chat.Indicator{Label: "Thinking", Markers: chat.IndicatorMarkers}})
	if cmd == nil {
		t.Error("Expected a spinner tick command")
	}
	if !strings.Contains(m.View(), "Thinking...") {
		t.Errorf("Indicator not rendered:\n%s", m.View())
	}

	m, _ = update(t, m, IndicatorMsg{})
	if strings.Contains(m.View(), "Thinking") {
		t.Errorf("Indicator still rendered:\n%s", m.View())
	}
}

func TestModel_EnterAsks(t *testing.T) {
	m, actions := newTestModel(t, true)

	m, _ = enter(t, m, "  What is X?  ")

	if len(actions.asked) != 1 || actions.asked[0] != "What is X?" {
		t.Errorf("Expected one question, got %v", actions.asked)
	}
	if m.input.Value() != "" {
		t.Errorf("Expected input cleared, got %q", m.input.Value())
	}
}

func TestModel_EnterWhileDisabledKeepsText(t *testing.T) {
	m, actions := newTestModel(t, false)

	m, _ = enter(t, m, "What is X?")

	if len(actions.asked) != 1 {
		t.Errorf("Expected the question forwarded, got %v", actions.asked)
	}
	if m.input.Value() != "What is X?" {
		t.Errorf("Expected input kept, got %q", m.input.Value())
	}
}

func TestModel_EmptyEnterIsIgnored(t *testing.T) {
	m, actions := newTestModel(t, true)

	_, _ = enter(t, m, "   ")

	if len(actions.asked) != 0 {
		t.Errorf("Expected no question, got %v", actions.asked)
	}
}

func TestModel_UploadCommand(t *testing.T) {
	m, actions := newTestModel(t, false)

	m, _ = enter(t, m, `/upload /tmp/a.txt '/tmp/b c.pdf'`)

	if len(actions.uploaded) != 1 {
		t.Fatalf("Expected one upload batch, got %v", actions.uploaded)
	}
	if got := actions.uploaded[0]; len(got) != 2 || got[0] != "/tmp/a.txt" || got[1] != "/tmp/b c.pdf" {
		t.Errorf("Unexpected paths %v", got)
	}
	if len(actions.asked) != 0 {
		t.Error("An upload command must not be asked")
	}
	if m.input.Value() != "" {
		t.Error("Expected input cleared")
	}

	m, _ = enter(t, m, "/upload")
	if m.hint == "" {
		t.Error("Expected a usage hint")
	}
}

func TestModel_DroppedFilesUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("notes"), 0600); err != nil {
		t.Fatal(err)
	}
	m, actions := newTestModel(t, false)

	_, _ = enter(t, m, path)

	if len(actions.uploaded) != 1 || actions.uploaded[0][0] != path {
		t.Errorf("Expected the dropped file uploaded, got %v", actions.uploaded)
	}
}

func TestModel_EscCancels(t *testing.T) {
	m, actions := newTestModel(t, true)

	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	if actions.cancels != 1 {
		t.Errorf("Expected one cancel, got %d", actions.cancels)
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("Expected empty view after quit")
	}

	m, _ = newTestModel(t, true)
	_, cmd = enter(t, m, "/quit")
	if cmd == nil {
		t.Fatal("Expected quit command for /quit")
	}
}

func TestModel_GateWinsOverStaleInputMsg(t *testing.T) {
	state := session.New(session.Options{RequireUpload: true})
	state.Uploads.Add("notes.txt")
	state.OpenGate()

	m := NewModel(ModelConfig{Actions: &fakeActions{}, InputEnabled: true, Gate: state.InputEnabled})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	if !state.Request.Acquire("ex-1") {
		t.Fatal("Acquire failed on an idle state")
	}
	m, _ = update(t, m, InputMsg{Enabled: false})
	// An upload that finished before the question was submitted.
	m, _ = update(t, m, InputMsg{Enabled: true})
	if m.inputEnabled {
		t.Fatal("Input enabled while a question is pending")
	}

	state.Request.Release("ex-1")
	m, _ = update(t, m, InputMsg{Enabled: true})
	if !m.inputEnabled {
		t.Error("Input still disabled after the question finished")
	}
}

func TestModel_InputAndStatus(t *testing.T) {
	m, _ := newTestModel(t, false)

	m, _ = update(t, m, InputMsg{Enabled: true})
	if !m.inputEnabled || m.input.Placeholder != placeholderReady {
		t.Errorf("Expected enabled input, placeholder %q", m.input.Placeholder)
	}

	m, _ = update(t, m, StatusMsg{Status: &upload.Status{Kind: upload.StatusSuccess, Text: "notes.txt uploaded"}})
	if !strings.Contains(m.View(), "notes.txt uploaded") {
		t.Errorf("Status not rendered:\n%s", m.View())
	}

	m, _ = update(t, m, StatusMsg{})
	if strings.Contains(m.View(), "notes.txt uploaded") {
		t.Error("Status not cleared")
	}
}

func TestModel_HintClearsOnKey(t *testing.T) {
	m, _ := newTestModel(t, false)

	m, _ = update(t, m, HintMsg{Text: LockedHint})
	if !strings.Contains(m.View(), "Upload a document first") {
		t.Errorf("Hint not rendered:\n%s", m.View())
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	if m.hint != "" {
		t.Error("Expected hint cleared by a key press")
	}
}

func TestRenderTurn(t *testing.T) {
	errTurn := session.NewTurn(session.RoleSystem, "发生错误: boom", session.StatusErrored)
	errTurn.Error = true
	if !strings.Contains(renderTurn(*errTurn), "发生错误: boom") {
		t.Error("Error turn text missing")
	}

	partial := session.NewTurn(session.RoleAssistant, "half", session.StatusErrored)
	if !strings.Contains(renderTurn(*partial), "(interrupted)") {
		t.Error("Expected interrupted marker on errored answer")
	}
}
