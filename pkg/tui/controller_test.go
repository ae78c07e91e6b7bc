// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/docchat/internal/testbackend"
	"github.com/AleutianAI/docchat/pkg/backend"
	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// find returns the last turn message matching pred.
func (r *recordingSender) find(pred func(session.Turn) bool) (session.Turn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if tm, ok := r.msgs[i].(TurnMsg); ok && pred(tm.Turn) {
			return tm.Turn, true
		}
	}
	return session.Turn{}, false
}

func (r *recordingSender) hints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if h, ok := m.(HintMsg); ok {
			out = append(out, h.Text)
		}
	}
	return out
}

// inputEnabled replays every InputMsg sent so far into a Model gated on
// state and reports the resulting input state.
func (r *recordingSender) inputEnabled(state *session.State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m tea.Model = NewModel(ModelConfig{Actions: &fakeActions{}, Gate: state.InputEnabled})
	for _, msg := range r.msgs {
		if in, ok := msg.(InputMsg); ok {
			m, _ = m.Update(in)
		}
	}
	return m.(Model).inputEnabled
}

type controllerHarness struct {
	srv      *testbackend.Server
	state    *session.State
	sender   *recordingSender
	ctrl     *Controller
	notesDoc string
}

func newControllerHarness(t *testing.T, opts ...testbackend.Option) *controllerHarness {
	t.Helper()
	srv := testbackend.New(opts...)
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Config{BaseURL: srv.URL, DialTimeout: 5 * time.Second})
	require.NoError(t, err)

	sender := &recordingSender{}
	view := NewProgramView(sender)
	state := session.New(session.Options{RequireUpload: true})

	ctrl := NewController(ControllerConfig{
		Assembler: chat.NewAssembler(chat.Config{State: state, Dialer: client, View: view}),
		Tracker:   upload.NewTracker(upload.Config{State: state, Uploader: client, View: view}),
		Hint:      view.Hint,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("X is a placeholder."), 0600))

	return &controllerHarness{srv: srv, state: state, sender: sender, ctrl: ctrl, notesDoc: notes}
}

func (h *controllerHarness) waitTurn(t *testing.T, pred func(session.Turn) bool) session.Turn {
	t.Helper()
	var turn session.Turn
	require.Eventually(t, func() bool {
		var ok bool
		turn, ok = h.sender.find(pred)
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	return turn
}

func (h *controllerHarness) uploadNotes(t *testing.T) {
	t.Helper()
	h.ctrl.Upload([]string{h.notesDoc})
	h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleSystem && tr.Display == "Uploaded notes.txt. 1 document available for questions."
	})
}

func TestController_UploadThenAsk(t *testing.T) {
	h := newControllerHarness(t, testbackend.WithFragments("The answer ", "is 42."))

	h.uploadNotes(t)
	h.ctrl.Ask("What is X?")

	answer := h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleAssistant && tr.Status == session.StatusComplete
	})
	assert.Equal(t, "The answer is 42.", answer.Display)

	chats := h.srv.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "What is X?", chats[0].Text)
	assert.Equal(t, "notes.txt", chats[0].File)

	uploads := h.srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, chats[0].Session, uploads[0].Session, "chat and upload share the session cookie")
}

func TestController_AskBeforeUploadHints(t *testing.T) {
	h := newControllerHarness(t)

	h.ctrl.Ask("What is X?")

	require.Eventually(t, func() bool {
		return len(h.sender.hints()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, LockedHint, h.sender.hints()[0])
	assert.Empty(t, h.srv.Chats())
}

func TestController_Cancel(t *testing.T) {
	h := newControllerHarness(t, testbackend.WithChat(func(testbackend.ChatRequest) testbackend.Script {
		return testbackend.Script{Fragments: []string{"partial"}, Hold: true}
	}))

	h.uploadNotes(t)
	h.ctrl.Ask("Long question")
	h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleAssistant && tr.Display == "partial"
	})

	h.ctrl.Cancel()

	h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleSystem && tr.Display == chat.CancelledNotice
	})
	answer := h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleAssistant
	})
	assert.Equal(t, session.StatusComplete, answer.Status)
}

func TestController_UploadDuringPendingAskKeepsInputDisabled(t *testing.T) {
	h := newControllerHarness(t, testbackend.WithChat(func(testbackend.ChatRequest) testbackend.Script {
		return testbackend.Script{Fragments: []string{"partial"}, Hold: true}
	}))

	h.uploadNotes(t)
	h.ctrl.Ask("Long question")
	h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleAssistant && tr.Display == "partial"
	})

	more := filepath.Join(filepath.Dir(h.notesDoc), "more.txt")
	require.NoError(t, os.WriteFile(more, []byte("More."), 0600))
	h.ctrl.Upload([]string{more})
	h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleSystem && tr.Display == "Uploaded more.txt. 2 documents available for questions."
	})
	assert.False(t, h.sender.inputEnabled(h.state), "upload finished while the answer streams")

	h.ctrl.Cancel()
	h.waitTurn(t, func(tr session.Turn) bool {
		return tr.Role == session.RoleSystem && tr.Display == chat.CancelledNotice
	})
	assert.Eventually(t, func() bool {
		return h.sender.inputEnabled(h.state)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestController_BackendErrorFragment(t *testing.T) {
	h := newControllerHarness(t, testbackend.WithFragments(chat.ErrorSentinel+" model offline"))

	h.uploadNotes(t)
	h.ctrl.Ask("What is X?")

	errTurn := h.waitTurn(t, func(tr session.Turn) bool { return tr.Error })
	assert.Equal(t, chat.ErrorSentinel+" model offline", errTurn.Display)
}

func TestController_UnsupportedUpload(t *testing.T) {
	h := newControllerHarness(t)

	h.ctrl.Upload([]string{"/tmp/image.png"})

	require.Eventually(t, func() bool {
		h.sender.mu.Lock()
		defer h.sender.mu.Unlock()
		for _, m := range h.sender.msgs {
			if s, ok := m.(StatusMsg); ok && s.Status != nil && s.Status.Kind == upload.StatusError {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.srv.Uploads())
}
