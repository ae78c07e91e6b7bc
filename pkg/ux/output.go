// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output for the docchat CLI: the SSE event
// decoder used by the chat channel, output modes, styles, the waiting
// indicator, and the line-oriented view used by one-shot commands.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	ColorAccent    = lipgloss.Color("#2CD7C7")
	ColorPrimary   = lipgloss.Color("#20B9B4")
	ColorBorder    = lipgloss.Color("#16858E")
	ColorSlate     = lipgloss.Color("#2C4A54")
	ColorUserBg    = lipgloss.Color("#104855")
	ColorSuccess   = lipgloss.Color("#2CD7C7")
	ColorWarning   = lipgloss.Color("#F4D03F")
	ColorError     = lipgloss.Color("#E74C3C")
	ColorErrorText = lipgloss.Color("#F5B7B1")
)

// Styles holds the shared lipgloss styles. The TUI and TerminalView render
// turns with the same styles so both surfaces look alike.
var Styles = struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	SystemText     lipgloss.Style
	ErrorText      lipgloss.Style

	Indicator lipgloss.Style
	Input     lipgloss.Style
	Status    lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),

	UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
	UserText:       lipgloss.NewStyle().Background(ColorUserBg).Padding(0, 1),
	AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	AssistantText:  lipgloss.NewStyle(),
	SystemText:     lipgloss.NewStyle().Italic(true).Foreground(ColorSlate),
	ErrorText:      lipgloss.NewStyle().Foreground(ColorErrorText),

	Indicator: lipgloss.NewStyle().Italic(true).Foreground(ColorSlate),
	Input: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder),
	Status: lipgloss.NewStyle().Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconInfo    Icon = "•"
	IconArrow   Icon = "→"
)

// Render returns the icon with its semantic color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconInfo:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes mode-aware notices.
//
// # Description
//
// ModeInteractive prints an icon and colored text. ModePlain prints the
// text alone. ModeMachine prints "OK:", "WARN:", "ERROR:" tagged lines.
type Printer struct {
	w    io.Writer
	mode OutputMode
}

// NewPrinter creates a Printer. ModeAuto is resolved against w.
func NewPrinter(w io.Writer, mode OutputMode) *Printer {
	return &Printer{w: w, mode: mode.Resolve(w)}
}

// Mode returns the resolved mode.
func (p *Printer) Mode() OutputMode {
	return p.mode
}

// Title prints a heading. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	switch p.mode {
	case ModeMachine:
	case ModeInteractive:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Success prints a success notice.
func (p *Printer) Success(text string) {
	p.notice(IconSuccess, "OK", Styles.Success, text)
}

// Warning prints a warning notice.
func (p *Printer) Warning(text string) {
	p.notice(IconWarning, "WARN", Styles.Warning, text)
}

// Error prints an error notice.
func (p *Printer) Error(text string) {
	p.notice(IconError, "ERROR", Styles.Error, text)
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "INFO: %s\n", text)
	case ModeInteractive:
		fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Muted prints secondary text. Machine mode prints nothing.
func (p *Printer) Muted(text string) {
	switch p.mode {
	case ModeMachine:
	case ModeInteractive:
		fmt.Fprintln(p.w, Styles.Muted.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Table prints rows as aligned, tab-free columns.
func (p *Printer) Table(header []string, rows [][]string) {
	if p.mode == ModeMachine {
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		text := strings.TrimRight(strings.Join(parts, "  "), " ")
		if p.mode == ModeInteractive {
			text = style.Render(text)
		}
		fmt.Fprintln(p.w, text)
	}

	line(header, Styles.Highlight)
	for _, row := range rows {
		line(row, lipgloss.NewStyle())
	}
}

func (p *Printer) notice(icon Icon, tag string, style lipgloss.Style, text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s: %s\n", tag, text)
	case ModeInteractive:
		fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Truncate shortens s to at most n display cells, ending with "…".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
