// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
)

// =============================================================================
// Messages
// =============================================================================

// TurnMsg carries a copy of an appended or updated turn.
type TurnMsg struct {
	Turn   session.Turn
	Update bool
}

// IndicatorMsg shows the waiting indicator, or removes it when Indicator
// is nil.
type IndicatorMsg struct {
	Indicator *chat.Indicator
}

// InputMsg enables or disables question submission. A Model with a gate
// treats it as a signal to re-read the gate.
type InputMsg struct {
	Enabled bool
}

// StatusMsg shows an upload status notice, or clears it when Status is
// nil.
type StatusMsg struct {
	Status *upload.Status
}

// HintMsg shows a one-line hint under the message log until the next key
// press.
type HintMsg struct {
	Text string
}

// ScrollMsg scrolls the message log to its newest line.
type ScrollMsg struct{}

// =============================================================================
// Program View
// =============================================================================

// Sender delivers messages to a running program. *tea.Program satisfies
// it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramView implements chat.View and upload.View by sending messages to
// the bubbletea program.
//
// # Description
//
// The assembler and tracker run outside the bubbletea event loop, so the
// view never touches the Model directly. Turns are copied when sent: the
// Model renders its own snapshot while the sender keeps mutating the
// original.
//
// # Thread Safety
//
// Safe for concurrent use once the sender is set.
type ProgramView struct {
	send Sender
}

// NewProgramView creates a view. The sender may be set later with
// Attach, before any method is called.
func NewProgramView(send Sender) *ProgramView {
	return &ProgramView{send: send}
}

// Attach sets the sender. Call before the controller starts.
func (v *ProgramView) Attach(send Sender) {
	v.send = send
}

// AppendTurn implements chat.View and upload.View.
func (v *ProgramView) AppendTurn(t *session.Turn) {
	v.send.Send(TurnMsg{Turn: *t})
}

// UpdateTurn implements chat.View.
func (v *ProgramView) UpdateTurn(t *session.Turn) {
	v.send.Send(TurnMsg{Turn: *t, Update: true})
}

// ShowIndicator implements chat.View.
func (v *ProgramView) ShowIndicator(ind chat.Indicator) {
	v.send.Send(IndicatorMsg{Indicator: &ind})
}

// RemoveIndicator implements chat.View.
func (v *ProgramView) RemoveIndicator() {
	v.send.Send(IndicatorMsg{})
}

// SetInputEnabled implements chat.View and upload.View.
func (v *ProgramView) SetInputEnabled(enabled bool) {
	v.send.Send(InputMsg{Enabled: enabled})
}

// ScrollToLatest implements chat.View and upload.View.
func (v *ProgramView) ScrollToLatest() {
	v.send.Send(ScrollMsg{})
}

// ShowStatus implements upload.View.
func (v *ProgramView) ShowStatus(s upload.Status) {
	v.send.Send(StatusMsg{Status: &s})
}

// ClearStatus implements upload.View.
func (v *ProgramView) ClearStatus() {
	v.send.Send(StatusMsg{})
}

// Hint shows a transient hint.
func (v *ProgramView) Hint(text string) {
	v.send.Send(HintMsg{Text: text})
}
