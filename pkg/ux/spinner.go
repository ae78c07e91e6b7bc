// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// SpinnerInterval is the frame period of the waiting indicator.
const SpinnerInterval = 120 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// IndicatorFrame renders the waiting indicator with lit of its markers
// shown. The label is followed by markers dots; unlit markers are padded
// with spaces so the line width stays constant.
func IndicatorFrame(label string, markers, lit int) string {
	if lit > markers {
		lit = markers
	}
	if lit < 0 {
		lit = 0
	}
	return label + strings.Repeat(".", lit) + strings.Repeat(" ", markers-lit)
}

// Spinner animates the waiting indicator on a single terminal line.
//
// # Description
//
// Each frame rewrites the current line with a braille glyph, the label,
// and a cycling run of marker dots. Stop clears the line so the caller
// can print the answer where the indicator was.
//
// # Thread Safety
//
// Start and Stop may be called from any goroutine. The caller must not
// write to the same writer while the spinner runs.
type Spinner struct {
	w        io.Writer
	label    string
	markers  int
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a stopped spinner.
func NewSpinner(w io.Writer, label string, markers int) *Spinner {
	return &Spinner{
		w:        w,
		label:    label,
		markers:  markers,
		interval: SpinnerInterval,
	}
}

// Running reports whether the animation is active.
func (s *Spinner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
}

// Stop halts the animation and clears its line. Stopping a stopped
// spinner is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *Spinner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	frame := 0
	s.draw(frame)
	for {
		select {
		case <-stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
			frame++
			s.draw(frame)
		}
	}
}

func (s *Spinner) draw(frame int) {
	glyph := Styles.Highlight.Render(spinnerFrames[frame%len(spinnerFrames)])
	text := IndicatorFrame(s.label, s.markers, frame%(s.markers+1))
	fmt.Fprintf(s.w, "\r%s %s", glyph, Styles.Indicator.Render(text))
}
