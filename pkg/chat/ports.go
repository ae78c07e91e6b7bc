// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"context"
	"time"

	"github.com/AleutianAI/docchat/pkg/session"
)

// =============================================================================
// View Port
// =============================================================================

// IndicatorMarkers is the number of decorative marker glyphs attached to
// the waiting indicator.
const IndicatorMarkers = 3

// Indicator describes the waiting placeholder shown while the first
// fragment of an answer is outstanding.
type Indicator struct {
	// Label is the text shown next to the markers.
	Label string

	// Markers is the number of marker glyphs. Always IndicatorMarkers.
	Markers int
}

// DefaultIndicatorLabel is used when Config.IndicatorLabel is empty.
const DefaultIndicatorLabel = "Thinking"

// View renders assembler state.
//
// # Description
//
// The assembler appends and updates turns through the View, toggles the
// waiting indicator, and enables or disables the input controls. Implementations never call back into the
// assembler from inside these methods.
//
// Implementations: tui.Model (interactive), ux.TerminalView (one-shot ask),
// and recording fakes in tests.
type View interface {
	// AppendTurn renders a new turn at the end of the message log.
	AppendTurn(t *session.Turn)

	// UpdateTurn re-renders an already appended turn in place.
	UpdateTurn(t *session.Turn)

	// ShowIndicator shows the waiting indicator.
	ShowIndicator(ind Indicator)

	// RemoveIndicator removes the waiting indicator. Removing an absent
	// indicator is a no-op.
	RemoveIndicator()

	// SetInputEnabled enables or disables the question input controls.
	SetInputEnabled(enabled bool)

	// ScrollToLatest scrolls the message log to the newest content.
	ScrollToLatest()
}

// =============================================================================
// Channel Ports
// =============================================================================

// Query parameterizes one push channel.
type Query struct {
	// Text is the trimmed question.
	Text string

	// Document is the most recently accepted filename. Empty when no
	// document has been uploaded.
	Document string
}

// Stream is an open push channel delivering text fragments in order.
type Stream interface {
	// Next blocks until the next fragment arrives.
	//
	// Returns io.EOF when the peer closed the channel, or the transport
	// error. After an error Next must not be called again.
	Next(ctx context.Context) (string, error)

	// Close releases the channel. Safe to call more than once and from a
	// goroutine other than the one blocked in Next.
	Close() error
}

// Dialer opens push channels.
type Dialer interface {
	// Dial opens a channel for q. A non-nil error means the channel never
	// opened; the assembler treats it as termination with no content.
	Dial(ctx context.Context, q Query) (Stream, error)
}

// =============================================================================
// Observation Ports
// =============================================================================

// Observer receives exchange lifecycle measurements.
//
// telemetry.Metrics satisfies this interface.
type Observer interface {
	ExchangeStarted()
	FragmentReceived(first bool, sinceStart time.Duration)
	ExchangeFinished(outcome string, elapsed time.Duration)
}

// Record is a finished exchange as persisted by a Recorder.
type Record struct {
	ExchangeID string    `json:"exchange_id"`
	Question   string    `json:"question"`
	Document   string    `json:"document,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	Error      string    `json:"error,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Fragments  int       `json:"fragments"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Recorder persists finished exchanges.
//
// transcript.Store satisfies this interface.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type nopObserver struct{}

func (nopObserver) ExchangeStarted() {}
func (nopObserver) FragmentReceived(bool, time.Duration) {}
func (nopObserver) ExchangeFinished(string, time.Duration) {}
