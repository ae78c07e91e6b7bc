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
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// OutputMode controls how much decoration terminal output carries.
type OutputMode string

const (
	// ModeInteractive uses colors, icons, the animated indicator, and
	// in-place redraws of the streaming answer.
	ModeInteractive OutputMode = "interactive"

	// ModePlain writes undecorated text. The answer is printed once it is
	// final.
	ModePlain OutputMode = "plain"

	// ModeMachine writes one tagged line per event for scripting:
	// "USER:", "ASSISTANT:", "SYSTEM:", "ERROR:", "STATUS:".
	ModeMachine OutputMode = "machine"

	// ModeAuto resolves to ModeInteractive on a terminal and ModePlain
	// otherwise.
	ModeAuto OutputMode = "auto"
)

// ModeEnvVar overrides the configured output mode.
const ModeEnvVar = "DOCCHAT_OUTPUT"

var (
	currentMode = ModeInteractive
	modeMu      sync.RWMutex
)

// ParseOutputMode converts a flag or config value to an OutputMode.
//
// Accepts the full names and the short forms "i", "p", "m", and "quiet"
// (machine). The empty string is ModeAuto.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "interactive", "i":
		return ModeInteractive, nil
	case "plain", "p":
		return ModePlain, nil
	case "machine", "m", "quiet":
		return ModeMachine, nil
	default:
		return ModeAuto, fmt.Errorf("unknown output mode %q (want auto, interactive, plain, or machine)", s)
	}
}

// Resolve replaces ModeAuto with a concrete mode for w.
func (m OutputMode) Resolve(w io.Writer) OutputMode {
	if m != ModeAuto && m != "" {
		return m
	}
	if IsTerminal(w) {
		return ModeInteractive
	}
	return ModePlain
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// StdinIsTerminal reports whether standard input is interactive.
func StdinIsTerminal() bool {
	return IsTerminal(os.Stdin)
}

// Mode returns the process-wide output mode.
func Mode() OutputMode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode sets the process-wide output mode. ModeAuto is resolved against
// stdout.
func SetMode(m OutputMode) {
	m = m.Resolve(os.Stdout)
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}
