// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chat assembles streamed answers into conversation turns.
//
// # Overview
//
// One question is one Exchange. The Assembler owns the exchange life cycle:
//
//	Submit ──► AwaitingFirstToken ──fragment──► Streaming ──close──► Finalized
//	                 │                              │
//	                 └──────── 发生错误: ───────────┴──► Errored (absorbing)
//
// The push channel is acquired in Submit and released on every exit path:
// natural end, transport error, and Cancel.
//
// # Driving the Assembler
//
// Fragments reach the assembler in one of two ways:
//
//   - Drain(ctx, ex): pull loop on the calling goroutine. Used by
//     `docchat ask` and tests.
//   - Exchange.Next from a background goroutine, with each result posted
//     back to the event loop which calls Deliver or Terminate. Used by the
//     bubbletea TUI.
//
// # Thread Safety
//
// Not thread-safe. Submit, Deliver, Terminate and Cancel must run on one
// goroutine. Exchange.Next may be called from another goroutine.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/docchat/pkg/session"
)

// =============================================================================
// Notices
// =============================================================================

const (
	// FailureNotice is shown when a channel ends without any fragment.
	FailureNotice = "No answer was received. Please try again."

	// CancelledNotice is shown after Cancel.
	CancelledNotice = "Request cancelled."
)

// =============================================================================
// Phase and Outcome
// =============================================================================

// Phase is the state of one exchange.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingFirstToken
	PhaseStreaming
	PhaseFinalized
	PhaseErrored
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingFirstToken:
		return "awaiting_first_token"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalized:
		return "finalized"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is how an exchange ended.
type Outcome string

const (
	// OutcomeComplete: content arrived and the channel closed.
	OutcomeComplete Outcome = "complete"

	// OutcomeErrored: the backend sent an error fragment.
	OutcomeErrored Outcome = "errored"

	// OutcomeFailed: the channel ended without content or error fragment.
	OutcomeFailed Outcome = "failed"

	// OutcomeCancelled: Cancel released the channel.
	OutcomeCancelled Outcome = "cancelled"
)

// =============================================================================
// Exchange
// =============================================================================

// Exchange is one in-flight question and its answer.
type Exchange struct {
	id       string
	question string
	document string
	stream   Stream

	phase   Phase
	outcome Outcome
	done    bool

	raw       strings.Builder
	fragments int

	answer   *session.Turn
	errTurn  *session.Turn
	indShown bool

	startedAt time.Time
}

// ID returns the exchange ID.
func (e *Exchange) ID() string { return e.id }

// Question returns the trimmed question text.
func (e *Exchange) Question() string { return e.question }

// Phase returns the current phase.
func (e *Exchange) Phase() Phase { return e.phase }

// Done reports whether the exchange has been terminated or cancelled.
func (e *Exchange) Done() bool { return e.done }

// Outcome returns how the exchange ended, or "" while it is in flight.
func (e *Exchange) Outcome() Outcome { return e.outcome }

// Answer returns the current display text of the answer, or of the error
// turn when the exchange errored.
func (e *Exchange) Answer() string {
	if e.errTurn != nil {
		return e.errTurn.Display
	}
	if e.answer != nil {
		return e.answer.Display
	}
	return ""
}

// Next reads the next fragment from the exchange's channel.
//
// Safe to call from a goroutine other than the event loop. Returns io.EOF
// when the channel never opened.
func (e *Exchange) Next(ctx context.Context) (string, error) {
	if e.stream == nil {
		return "", io.EOF
	}
	return e.stream.Next(ctx)
}

// =============================================================================
// Assembler
// =============================================================================

// Config configures an Assembler.
type Config struct {
	// State is the shared session state. Required.
	State *session.State

	// Dialer opens push channels. Required.
	Dialer Dialer

	// View renders turns and controls. Required.
	View View

	// IndicatorLabel overrides DefaultIndicatorLabel.
	IndicatorLabel string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Observer receives measurements. Optional.
	Observer Observer

	// Recorder persists finished exchanges. Optional.
	Recorder Recorder

	// Now defaults to time.Now.
	Now func() time.Time
}

// Assembler drives the question/answer life cycle.
type Assembler struct {
	state    *session.State
	dialer   Dialer
	view     View
	label    string
	logger   *slog.Logger
	observer Observer
	recorder Recorder
	now      func() time.Time

	current *Exchange
}

// NewAssembler creates an Assembler.
//
// # Inputs
//
//   - cfg: State, Dialer and View are required.
//
// # Outputs
//
//   - *Assembler: Ready for Submit.
func NewAssembler(cfg Config) *Assembler {
	a := &Assembler{
		state:    cfg.State,
		dialer:   cfg.Dialer,
		view:     cfg.View,
		label:    cfg.IndicatorLabel,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		recorder: cfg.Recorder,
		now:      cfg.Now,
	}
	if a.label == "" {
		a.label = DefaultIndicatorLabel
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Current returns the in-flight exchange, or nil when idle.
func (a *Assembler) Current() *Exchange {
	return a.current
}

// Submit starts an exchange for rawText.
//
// # Description
//
// Rejections leave the conversation log and request state untouched:
// empty text (ErrEmptyMessage), a pending exchange (ErrRequestPending), or
// a closed upload gate (ErrInputLocked).
//
// Otherwise the trimmed user turn is rendered, the waiting indicator is
// shown, input is disabled, and the channel is dialed with the question
// and the document parameter. A dial failure terminates the exchange
// immediately with the generic failure notice; the exchange is still
// returned and is already Done.
//
// # Inputs
//
//   - ctx: Bounds the dial and the lifetime of the channel.
//   - rawText: The question as typed.
//
// # Outputs
//
//   - *Exchange: The new exchange.
//   - error: One of the rejection sentinels; nil otherwise.
func (a *Assembler) Submit(ctx context.Context, rawText string) (*Exchange, error) {
	text := strings.TrimSpace(rawText)
	switch {
	case text == "":
		a.logger.Debug("Ignoring empty message")
		return nil, ErrEmptyMessage
	case !a.state.Request.Idle():
		a.logger.Debug("Ignoring submit while a request is pending",
			slog.String("pending", a.state.Request.Active()))
		return nil, ErrRequestPending
	case !a.state.GateOpen():
		a.logger.Debug("Ignoring submit before any upload")
		return nil, ErrInputLocked
	}

	ex := &Exchange{
		id:        uuid.New().String(),
		question:  text,
		document:  a.state.DocumentParam(),
		phase:     PhaseAwaitingFirstToken,
		startedAt: a.now(),
	}
	a.state.Request.Acquire(ex.id)
	a.current = ex

	userTurn := session.NewTurn(session.RoleUser, text, session.StatusComplete)
	a.state.Log.Append(userTurn)
	a.view.AppendTurn(userTurn)

	a.view.ShowIndicator(Indicator{Label: a.label, Markers: IndicatorMarkers})
	ex.indShown = true
	a.view.SetInputEnabled(false)
	a.view.ScrollToLatest()

	a.observer.ExchangeStarted()
	a.logger.Info("Question submitted",
		slog.String("exchange_id", ex.id),
		slog.String("document", ex.document),
		slog.Int("length", len(text)))

	stream, err := a.dialer.Dial(ctx, Query{Text: text, Document: ex.document})
	if err != nil {
		a.logger.Warn("Failed to open answer stream",
			slog.String("exchange_id", ex.id),
			slog.String("error", err.Error()))
		a.Terminate(ex.id, err)
		return ex, nil
	}
	ex.stream = stream
	return ex, nil
}

// Deliver applies one fragment to exchange exchangeID.
//
// # Description
//
// The fragment is trimmed for inspection only. A fragment starting with
// ErrorSentinel moves the exchange to PhaseErrored and replaces the error
// turn's text. Any other fragment is appended untrimmed to the raw buffer,
// unless the exchange already errored, and the answer's display text is
// recomputed as Clean over the whole buffer. Empty fragments are counted
// but leave the indicator and the log alone until the buffer has content.
//
// Fragments for an unknown or finished exchange are ignored.
func (a *Assembler) Deliver(exchangeID, fragment string) {
	ex := a.live(exchangeID)
	if ex == nil {
		a.logger.Debug("Dropping fragment for stale exchange",
			slog.String("exchange_id", exchangeID))
		return
	}

	first := ex.fragments == 0
	ex.fragments++
	a.observer.FragmentReceived(first, a.now().Sub(ex.startedAt))

	inspected := strings.TrimSpace(fragment)
	if strings.HasPrefix(inspected, ErrorSentinel) {
		a.applyError(ex, inspected)
		return
	}
	if ex.phase == PhaseErrored {
		return
	}
	a.applyContent(ex, fragment)
}

func (a *Assembler) applyError(ex *Exchange, text string) {
	a.removeIndicator(ex)

	if ex.answer != nil && ex.answer.Status == session.StatusStreaming {
		ex.answer.Status = session.StatusErrored
		a.view.UpdateTurn(ex.answer)
	}

	if ex.errTurn == nil {
		ex.errTurn = session.NewTurn(session.RoleSystem, text, session.StatusErrored)
		ex.errTurn.Error = true
		a.state.Log.Append(ex.errTurn)
		a.view.AppendTurn(ex.errTurn)
		a.logger.Warn("Backend reported an error",
			slog.String("exchange_id", ex.id),
			slog.String("message", text))
	} else {
		ex.errTurn.Raw = text
		ex.errTurn.Display = text
		a.view.UpdateTurn(ex.errTurn)
	}

	ex.phase = PhaseErrored
	a.view.ScrollToLatest()
}

func (a *Assembler) applyContent(ex *Exchange, fragment string) {
	ex.raw.WriteString(fragment)
	if ex.raw.Len() == 0 {
		return
	}
	a.removeIndicator(ex)
	raw := ex.raw.String()

	if ex.answer == nil {
		ex.answer = session.NewTurn(session.RoleAssistant, raw, session.StatusStreaming)
		ex.answer.Display = Clean(raw)
		a.state.Log.Append(ex.answer)
		a.view.AppendTurn(ex.answer)
	} else {
		ex.answer.Raw = raw
		ex.answer.Display = Clean(raw)
		a.view.UpdateTurn(ex.answer)
	}

	ex.phase = PhaseStreaming
	a.view.ScrollToLatest()
}

// Terminate ends exchange exchangeID after its channel closed or failed.
//
// # Description
//
// err is io.EOF for a natural close, the transport error otherwise. The
// channel is closed. With neither content nor an error turn, the generic
// failure notice is appended. With content, the answer is finalized. In
// every case the request slot is released and input is re-enabled.
//
// Terminate on an unknown or finished exchange is a no-op.
func (a *Assembler) Terminate(exchangeID string, err error) {
	ex := a.live(exchangeID)
	if ex == nil {
		return
	}
	ex.done = true
	a.closeStream(ex)

	if err != nil && !errors.Is(err, io.EOF) {
		a.logger.Warn("Answer stream ended with error",
			slog.String("exchange_id", ex.id),
			slog.String("error", err.Error()))
	}

	a.removeIndicator(ex)

	var outcome Outcome
	switch {
	case ex.errTurn != nil:
		outcome = OutcomeErrored
	case ex.raw.Len() == 0:
		notice := session.NewTurn(session.RoleSystem, FailureNotice, session.StatusErrored)
		notice.Error = true
		a.state.Log.Append(notice)
		a.view.AppendTurn(notice)
		outcome = OutcomeFailed
	default:
		ex.answer.Status = session.StatusComplete
		a.view.UpdateTurn(ex.answer)
		ex.phase = PhaseFinalized
		outcome = OutcomeComplete
	}

	a.finish(ex, outcome, err)
}

// Cancel aborts the in-flight exchange.
//
// # Description
//
// Releases the channel, removes the indicator, finalizes a partial answer
// as complete, appends CancelledNotice, releases the request slot, and
// re-enables input.
//
// # Outputs
//
//   - bool: False when nothing was in flight.
func (a *Assembler) Cancel() bool {
	ex := a.current
	if ex == nil || ex.done {
		return false
	}
	ex.done = true
	a.closeStream(ex)
	a.removeIndicator(ex)

	if ex.answer != nil && ex.answer.Status == session.StatusStreaming {
		ex.answer.Status = session.StatusComplete
		a.view.UpdateTurn(ex.answer)
	}

	notice := session.NewTurn(session.RoleSystem, CancelledNotice, session.StatusComplete)
	a.state.Log.Append(notice)
	a.view.AppendTurn(notice)

	a.logger.Info("Question cancelled", slog.String("exchange_id", ex.id))
	a.finish(ex, OutcomeCancelled, context.Canceled)
	return true
}

// Drain pumps ex until it ends, on the calling goroutine.
//
// # Description
//
// Each fragment is passed to Deliver in channel order. When the channel
// ends, Terminate is called. When ctx is cancelled while reading, the
// exchange is cancelled instead.
//
// # Outputs
//
//   - Outcome: How the exchange ended.
func (a *Assembler) Drain(ctx context.Context, ex *Exchange) Outcome {
	for !ex.done {
		fragment, err := ex.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.Cancel()
			} else {
				a.Terminate(ex.id, err)
			}
			break
		}
		a.Deliver(ex.id, fragment)
	}
	return ex.outcome
}

// =============================================================================
// Internal Helpers
// =============================================================================

// live returns the current exchange if it matches id and is unfinished.
func (a *Assembler) live(id string) *Exchange {
	ex := a.current
	if ex == nil || ex.id != id || ex.done {
		return nil
	}
	return ex
}

func (a *Assembler) removeIndicator(ex *Exchange) {
	if !ex.indShown {
		return
	}
	ex.indShown = false
	a.view.RemoveIndicator()
}

func (a *Assembler) closeStream(ex *Exchange) {
	if ex.stream == nil {
		return
	}
	if err := ex.stream.Close(); err != nil {
		a.logger.Debug("Closing answer stream failed",
			slog.String("exchange_id", ex.id),
			slog.String("error", err.Error()))
	}
}

// finish releases the request slot and restores input.
func (a *Assembler) finish(ex *Exchange, outcome Outcome, cause error) {
	ex.outcome = outcome
	a.state.Request.Release(ex.id)
	a.current = nil

	a.view.SetInputEnabled(a.state.InputEnabled())
	a.view.ScrollToLatest()

	elapsed := a.now().Sub(ex.startedAt)
	a.observer.ExchangeFinished(string(outcome), elapsed)
	a.logger.Info("Question finished",
		slog.String("exchange_id", ex.id),
		slog.String("outcome", string(outcome)),
		slog.Int("fragments", ex.fragments),
		slog.Duration("elapsed", elapsed))

	if a.recorder == nil {
		return
	}
	rec := Record{
		ExchangeID: ex.id,
		Question:   ex.question,
		Document:   ex.document,
		Outcome:    outcome,
		Fragments:  ex.fragments,
		StartedAt:  ex.startedAt,
		FinishedAt: ex.startedAt.Add(elapsed),
	}
	if ex.answer != nil {
		rec.Answer = ex.answer.Display
	}
	if ex.errTurn != nil {
		rec.Error = ex.errTurn.Display
	} else if outcome == OutcomeFailed && cause != nil && !errors.Is(cause, io.EOF) {
		rec.Error = cause.Error()
	}
	if err := a.recorder.Record(context.Background(), rec); err != nil {
		a.logger.Warn("Failed to record exchange",
			slog.String("exchange_id", ex.id),
			slog.String("error", err.Error()))
	}
}
