// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
)

// =============================================================================
// TerminalView
// =============================================================================

// TerminalView renders chat and upload output as lines on a writer.
//
// # Description
//
// TerminalView implements chat.View and upload.View for the one-shot
// commands ("ask", "upload") and for the line-mode chat loop used when
// stdin is not a terminal.
//
// In ModeInteractive the assistant answer is streamed: each update prints
// only the characters added since the previous one, and the animated
// indicator runs while the first fragment is awaited. When an update is
// not an extension of what was printed (a role prefix was stripped once
// more text arrived), the answer is reprinted on a fresh line.
//
// In ModePlain and ModeMachine the answer is printed once, when it is
// final.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The upload status clear may
// arrive from a timer goroutine.
type TerminalView struct {
	w    io.Writer
	mode OutputMode

	mu        sync.Mutex
	spinner   *Spinner
	streaming string
	printed   string
	final     map[string]bool
	enabled   bool
	status    *upload.Status
}

// NewTerminalView creates a view. ModeAuto is resolved against w.
func NewTerminalView(w io.Writer, mode OutputMode) *TerminalView {
	return &TerminalView{
		w:       w,
		mode:    mode.Resolve(w),
		final:   make(map[string]bool),
		enabled: true,
	}
}

// Mode returns the resolved output mode.
func (v *TerminalView) Mode() OutputMode {
	return v.mode
}

// InputEnabled returns the last value passed to SetInputEnabled.
func (v *TerminalView) InputEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

// Status returns the visible status notice, if any.
func (v *TerminalView) Status() (upload.Status, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status == nil {
		return upload.Status{}, false
	}
	return *v.status, true
}

// AppendTurn implements chat.View and upload.View.
func (v *TerminalView) AppendTurn(t *session.Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch t.Role {
	case session.RoleUser:
		v.line(t)
	case session.RoleAssistant:
		if v.mode == ModeInteractive {
			v.streaming = t.Id
			v.printed = ""
			fmt.Fprint(v.w, v.label(t))
			v.extend(t.Display)
		}
		v.finalize(t)
	default:
		v.line(t)
	}
}

// UpdateTurn implements chat.View.
func (v *TerminalView) UpdateTurn(t *session.Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.Role != session.RoleAssistant {
		// A replaced error notice is printed again.
		v.line(t)
		return
	}

	if v.mode == ModeInteractive && v.streaming == t.Id {
		if strings.HasPrefix(t.Display, v.printed) {
			v.extend(t.Display)
		} else {
			fmt.Fprint(v.w, "\n"+v.label(t))
			v.printed = ""
			v.extend(t.Display)
		}
	}
	v.finalize(t)
}

// ShowIndicator implements chat.View.
func (v *TerminalView) ShowIndicator(ind chat.Indicator) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.mode {
	case ModeInteractive:
		if v.spinner == nil {
			v.spinner = NewSpinner(v.w, ind.Label, ind.Markers)
		}
		v.spinner.Start()
	case ModeMachine:
		fmt.Fprintf(v.w, "STATUS: %s\n", IndicatorFrame(ind.Label, ind.Markers, ind.Markers))
	}
}

// RemoveIndicator implements chat.View.
func (v *TerminalView) RemoveIndicator() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.spinner != nil {
		v.spinner.Stop()
	}
}

// SetInputEnabled implements chat.View and upload.View.
func (v *TerminalView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = enabled
}

// ScrollToLatest implements chat.View and upload.View. Output on a writer
// is always at its latest line.
func (v *TerminalView) ScrollToLatest() {}

// ShowStatus implements upload.View.
func (v *TerminalView) ShowStatus(s upload.Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.status = &s
	switch v.mode {
	case ModeMachine:
		fmt.Fprintf(v.w, "STATUS: %s\n", s.Text)
	case ModeInteractive:
		fmt.Fprintf(v.w, "%s %s\n", statusIcon(s.Kind).Render(), statusStyle(s.Kind).Render(s.Text))
	default:
		fmt.Fprintln(v.w, s.Text)
	}
}

// ClearStatus implements upload.View.
func (v *TerminalView) ClearStatus() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = nil
}

// Close stops the indicator if it is still running.
func (v *TerminalView) Close() {
	v.RemoveIndicator()
}

// extend prints the part of display not yet printed. Caller holds mu and
// has checked that printed is a prefix of display.
func (v *TerminalView) extend(display string) {
	if rest := display[len(v.printed):]; rest != "" {
		fmt.Fprint(v.w, Styles.AssistantText.Render(rest))
	}
	v.printed = display
}

// finalize ends an assistant answer once it reaches a final status.
func (v *TerminalView) finalize(t *session.Turn) {
	if t.Status != session.StatusComplete && t.Status != session.StatusErrored {
		return
	}
	if v.final[t.Id] {
		return
	}
	v.final[t.Id] = true

	if v.mode == ModeInteractive {
		fmt.Fprintln(v.w)
		v.streaming = ""
		v.printed = ""
		return
	}
	v.line(t)
}

// line prints t on its own line.
func (v *TerminalView) line(t *session.Turn) {
	text := t.Display
	if v.mode == ModeInteractive {
		switch {
		case t.Error:
			text = Styles.ErrorText.Render(text)
		case t.Role == session.RoleSystem:
			text = Styles.SystemText.Render(text)
		}
	}
	fmt.Fprintln(v.w, v.label(t)+text)
}

// label returns the line prefix for t in the current mode.
func (v *TerminalView) label(t *session.Turn) string {
	if v.mode == ModeMachine {
		switch {
		case t.Error:
			return "ERROR: "
		case t.Role == session.RoleUser:
			return "USER: "
		case t.Role == session.RoleAssistant:
			return "ASSISTANT: "
		default:
			return "SYSTEM: "
		}
	}

	var name string
	switch t.Role {
	case session.RoleUser:
		name = "You: "
	case session.RoleAssistant:
		name = "Assistant: "
	default:
		if t.Error {
			name = "Error: "
		} else {
			return ""
		}
	}
	if v.mode != ModeInteractive {
		return name
	}
	switch {
	case t.Error:
		return Styles.Error.Render(name)
	case t.Role == session.RoleUser:
		return Styles.UserLabel.Render(name)
	default:
		return Styles.AssistantLabel.Render(name)
	}
}

func statusIcon(kind upload.StatusKind) Icon {
	switch kind {
	case upload.StatusSuccess:
		return IconSuccess
	case upload.StatusError:
		return IconError
	default:
		return IconInfo
	}
}

func statusStyle(kind upload.StatusKind) lipgloss.Style {
	switch kind {
	case upload.StatusSuccess:
		return Styles.Success
	case upload.StatusError:
		return Styles.Error
	default:
		return Styles.Muted
	}
}
