// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides the interactive chat screen.
//
// # Description
//
// The screen has a scrolling message log, an upload status line, and a
// question input. Questions stream their answers into the log; files are
// uploaded with "/upload <path>..." or by dragging them onto the
// terminal, which pastes their paths.
//
// # Thread Safety
//
// The Model is used only inside the bubbletea event loop. Everything else
// reaches it through messages sent by ProgramView.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/session"
	"github.com/AleutianAI/docchat/pkg/upload"
	"github.com/AleutianAI/docchat/pkg/ux"
)

// Layout.
const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 3
	inputChrome  = 2
	minWidth     = 20
)

// Placeholders.
const (
	placeholderLocked  = "Upload a document to start: /upload <path>"
	placeholderReady   = "Ask a question about your documents"
	placeholderWaiting = "Waiting for the answer (Esc to cancel)"
)

const helpText = "Enter send · Esc cancel · /upload <path>... · /quit · PgUp/PgDn scroll · Ctrl+C quit"

// ModelConfig configures a Model.
type ModelConfig struct {
	Actions Actions

	// Title is shown in the header.
	Title string

	// InputEnabled is the initial input state.
	InputEnabled bool

	// Gate, when set, is read on every InputMsg in place of the message's
	// value, so a message computed before a later state change cannot
	// re-enable input.
	Gate func() bool
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	actions Actions
	title   string

	turns []session.Turn
	index map[string]int

	indicator    *chat.Indicator
	inputEnabled bool
	gate         func() bool
	status       *upload.Status
	hint         string

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel creates the chat screen.
func NewModel(cfg ModelConfig) Model {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = ux.Styles.Highlight

	title := cfg.Title
	if title == "" {
		title = "docchat"
	}

	m := Model{
		actions:      cfg.Actions,
		title:        title,
		index:        make(map[string]int),
		inputEnabled: cfg.InputEnabled,
		gate:         cfg.Gate,
		input:        ta,
		spin:         sp,
	}
	m.input.Placeholder = m.placeholder()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh(true)
		return m, nil

	case TurnMsg:
		m.applyTurn(msg)
		m.refresh(false)
		return m, nil

	case IndicatorMsg:
		m.indicator = msg.Indicator
		m.refresh(false)
		if m.indicator != nil {
			return m, m.spin.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if m.indicator == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		m.refresh(false)
		return m, cmd

	case InputMsg:
		m.inputEnabled = msg.Enabled
		if m.gate != nil {
			m.inputEnabled = m.gate()
		}
		m.input.Placeholder = m.placeholder()
		return m, nil

	case StatusMsg:
		m.status = msg.Status
		return m, nil

	case HintMsg:
		m.hint = msg.Text
		return m, nil

	case ScrollMsg:
		if m.ready {
			m.viewport.GotoBottom()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "esc":
			m.actions.Cancel()
			return m, nil

		case "enter":
			return m.submit()

		case "pgup", "pgdown", "ctrl+up", "ctrl+down":
			if m.ready {
				var cmd tea.Cmd
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		m.hint = ""

	case tea.MouseMsg:
		if m.ready {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(ux.Styles.Input.Width(m.width - inputChrome).Render(m.input.View()))
	return b.String()
}

// =============================================================================
// Actions
// =============================================================================

// submit handles Enter: slash commands, pasted file paths, or a question.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	switch {
	case text == "":
		return m, nil

	case text == "/quit" || text == "/exit":
		m.quitting = true
		return m, tea.Quit

	case text == "/help":
		m.hint = helpText
		m.input.Reset()
		return m, nil

	case text == "/upload" || strings.HasPrefix(text, "/upload "):
		paths := SplitPaths(strings.TrimPrefix(text, "/upload"))
		if len(paths) == 0 {
			m.hint = "Usage: /upload <path>..."
			return m, nil
		}
		for i, p := range paths {
			paths[i] = expandHome(p)
		}
		m.actions.Upload(paths)
		m.input.Reset()
		return m, nil
	}

	if paths, ok := DroppedFiles(text); ok {
		m.actions.Upload(paths)
		m.input.Reset()
		return m, nil
	}

	m.actions.Ask(text)
	if m.inputEnabled {
		m.input.Reset()
	}
	return m, nil
}

// =============================================================================
// State
// =============================================================================

func (m *Model) applyTurn(msg TurnMsg) {
	if i, ok := m.index[msg.Turn.Id]; ok {
		m.turns[i] = msg.Turn
		return
	}
	m.index[msg.Turn.Id] = len(m.turns)
	m.turns = append(m.turns, msg.Turn)
}

func (m *Model) resize(width, height int) {
	if width < minWidth {
		width = minWidth
	}
	m.width = width
	m.height = height

	vpHeight := height - headerHeight - statusHeight - inputHeight - inputChrome - 2
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(width - inputChrome - 2)
}

// refresh re-renders the log. The view follows new content when it was
// already at the bottom.
func (m *Model) refresh(forceBottom bool) {
	if !m.ready {
		return
	}
	follow := forceBottom || m.viewport.AtBottom()
	m.viewport.SetContent(m.renderLog())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) placeholder() string {
	switch {
	case m.inputEnabled:
		return placeholderReady
	case m.indicator != nil || m.streaming():
		return placeholderWaiting
	default:
		return placeholderLocked
	}
}

func (m Model) streaming() bool {
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].Status == session.StatusStreaming {
			return true
		}
	}
	return false
}

// =============================================================================
// Rendering
// =============================================================================

func (m Model) renderHeader() string {
	title := ux.Styles.Title.Render(m.title)
	help := ux.Styles.Muted.Render("  /help · Esc cancel · Ctrl+C quit")
	return title + help
}

func (m Model) renderStatus() string {
	switch {
	case m.status != nil:
		icon := ux.IconInfo
		style := ux.Styles.Muted
		switch m.status.Kind {
		case upload.StatusSuccess:
			icon, style = ux.IconSuccess, ux.Styles.Success
		case upload.StatusError:
			icon, style = ux.IconError, ux.Styles.Error
		}
		return ux.Styles.Status.Render(icon.Render() + " " + style.Render(m.status.Text))
	case m.hint != "":
		return ux.Styles.Status.Render(ux.Styles.Muted.Render(m.hint))
	default:
		return ""
	}
}

func (m Model) renderLog() string {
	width := m.width - 2
	if width < minWidth {
		width = minWidth
	}
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i := range m.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(wrap.Render(renderTurn(m.turns[i])))
		b.WriteString("\n")
	}

	if m.indicator != nil {
		if len(m.turns) > 0 {
			b.WriteString("\n")
		}
		frame := ux.IndicatorFrame(m.indicator.Label, m.indicator.Markers, m.indicator.Markers)
		b.WriteString(ux.Styles.AssistantLabel.Render("Assistant") + "\n")
		b.WriteString(m.spin.View() + " " + ux.Styles.Indicator.Render(frame) + "\n")
	}
	return b.String()
}

// renderTurn renders one turn without wrapping.
func renderTurn(t session.Turn) string {
	switch t.Role {
	case session.RoleUser:
		return ux.Styles.UserLabel.Render("You") + "\n" + ux.Styles.UserText.Render(t.Display)

	case session.RoleAssistant:
		text := ux.Styles.AssistantText.Render(t.Display)
		switch t.Status {
		case session.StatusStreaming:
			text += ux.Styles.Highlight.Render("▍")
		case session.StatusErrored:
			text += ux.Styles.Muted.Render(" (interrupted)")
		}
		return ux.Styles.AssistantLabel.Render("Assistant") + "\n" + text

	default:
		if t.Error {
			return ux.IconError.Render() + " " + ux.Styles.ErrorText.Render(t.Display)
		}
		return ux.Styles.SystemText.Render(t.Display)
	}
}
