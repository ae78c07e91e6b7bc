// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package upload validates and sends reference documents and tracks which
// ones the backend accepted.
//
// # Flow
//
//	Submit(doc)
//	  ├─ extension not allowed ──► "unsupported" notice (no request)
//	  ├─ name already accepted ──► "duplicate" notice   (no request)
//	  └─ Uploader.Upload
//	       ├─ success:true  ──► add to set, open gate, system turn
//	       └─ success:false / transport error ──► error notice
//
// Every notice clears itself after StatusClearDelay.
//
// # Thread Safety
//
// Submit and SubmitAll must run on the session's event loop. Only the
// status auto-clear may fire from the Clock's goroutine.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/docchat/pkg/session"
)

// Result labels for Observer and logs.
const (
	ResultAccepted    = "accepted"
	ResultUnsupported = "unsupported"
	ResultDuplicate   = "duplicate"
	ResultRejected    = "rejected"
	ResultFailed      = "failed"
)

// Outcome reports one Submit.
type Outcome struct {
	// Name is the local document name.
	Name string

	// Filename is the name the backend stored, set when accepted.
	Filename string

	// Err is nil when accepted. Otherwise ErrUnsupportedType,
	// ErrDuplicate, *RejectedError, or a wrapped transport error.
	Err error
}

// Accepted reports whether the backend accepted the document.
func (o Outcome) Accepted() bool {
	return o.Err == nil
}

// Result returns the result label for o.
func (o Outcome) Result() string {
	var rejected *RejectedError
	switch {
	case o.Err == nil:
		return ResultAccepted
	case errors.Is(o.Err, ErrUnsupportedType):
		return ResultUnsupported
	case errors.Is(o.Err, ErrDuplicate):
		return ResultDuplicate
	case errors.As(o.Err, &rejected):
		return ResultRejected
	default:
		return ResultFailed
	}
}

// Config configures a Tracker.
type Config struct {
	State    *session.State
	Uploader Uploader
	View     View

	// Clock defaults to RealClock.
	Clock Clock

	// ClearDelay defaults to StatusClearDelay.
	ClearDelay time.Duration

	Logger   *slog.Logger
	Observer Observer
}

// Tracker validates, sends, and records document uploads.
type Tracker struct {
	state    *session.State
	uploader Uploader
	view     View
	clock    Clock
	delay    time.Duration
	logger   *slog.Logger
	observer Observer

	// statusGen identifies the visible notice; a clear scheduled for an
	// older notice does nothing.
	statusGen  atomic.Uint64
	clearTimer Timer
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config) *Tracker {
	t := &Tracker{
		state:    cfg.State,
		uploader: cfg.Uploader,
		view:     cfg.View,
		clock:    cfg.Clock,
		delay:    cfg.ClearDelay,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
	if t.clock == nil {
		t.clock = RealClock{}
	}
	if t.delay <= 0 {
		t.delay = StatusClearDelay
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.observer == nil {
		t.observer = nopObserver{}
	}
	return t
}

// Submit validates and uploads one document.
//
// # Description
//
// Local rejections (unsupported extension, duplicate name) never reach
// the Uploader. On acceptance the backend's filename, or the local name
// when the backend omits it, joins the session upload set, the input gate
// opens, and a system turn announces the file and the running count.
// Failures leave the gate unchanged and record no turn.
//
// # Inputs
//
//   - ctx: Bounds the upload request.
//   - doc: The document. doc.Open is only called when a request is sent.
//
// # Outputs
//
//   - Outcome: Always returned; Outcome.Err carries the failure.
func (t *Tracker) Submit(ctx context.Context, doc Document) Outcome {
	start := time.Now()
	out := t.submit(ctx, doc)

	result := out.Result()
	t.observer.UploadFinished(result, time.Since(start))
	t.logger.Info("Upload finished",
		slog.String("name", doc.Name),
		slog.String("result", result))
	return out
}

func (t *Tracker) submit(ctx context.Context, doc Document) Outcome {
	name := doc.Name
	out := Outcome{Name: name}

	if !Supported(name) {
		t.showStatus(StatusError, fmt.Sprintf(
			"Unsupported file type: %s (allowed: %s)", name, strings.Join(AllowedExtensions, ", ")))
		out.Err = fmt.Errorf("%w: %s", ErrUnsupportedType, name)
		return out
	}

	if t.state.Uploads.Contains(name) {
		t.showStatus(StatusError, fmt.Sprintf("%s has already been uploaded", name))
		out.Err = fmt.Errorf("%w: %s", ErrDuplicate, name)
		return out
	}

	t.showStatus(StatusInfo, fmt.Sprintf("Uploading %s...", name))

	resp, err := t.uploader.Upload(ctx, doc)
	if err != nil {
		t.logger.Warn("Upload request failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		t.showStatus(StatusError, GenericFailure)
		out.Err = fmt.Errorf("upload %s: %w", name, err)
		return out
	}

	if !resp.Success {
		message := strings.TrimSpace(resp.Error)
		if message == "" {
			message = GenericFailure
		}
		t.showStatus(StatusError, message)
		out.Err = &RejectedError{Name: name, Message: resp.Error}
		return out
	}

	filename := resp.Filename
	if filename == "" {
		filename = name
	}
	added := t.state.Uploads.Add(filename)
	t.state.OpenGate()
	out.Filename = filename

	if added {
		count := t.state.Uploads.Len()
		turn := session.NewTurn(session.RoleSystem, announcement(filename, count), session.StatusComplete)
		t.state.Log.Append(turn)
		t.view.AppendTurn(turn)
	} else {
		// The backend stored the file under a name the session already has.
		t.logger.Debug("Stored name already in upload set",
			slog.String("name", name),
			slog.String("filename", filename))
	}
	t.view.SetInputEnabled(t.state.InputEnabled())
	t.view.ScrollToLatest()

	t.showStatus(StatusSuccess, fmt.Sprintf("%s uploaded", filename))
	return out
}

// SubmitAll submits docs one after another.
//
// Each document is validated and reported on its own; a failure never
// stops the rest of the batch.
func (t *Tracker) SubmitAll(ctx context.Context, docs ...Document) []Outcome {
	outcomes := make([]Outcome, 0, len(docs))
	for _, doc := range docs {
		outcomes = append(outcomes, t.Submit(ctx, doc))
	}
	return outcomes
}

// announcement is the system turn text for an accepted upload.
func announcement(filename string, count int) string {
	noun := "documents"
	if count == 1 {
		noun = "document"
	}
	return fmt.Sprintf("Uploaded %s. %d %s available for questions.", filename, count, noun)
}

// showStatus displays a notice and schedules its removal.
func (t *Tracker) showStatus(kind StatusKind, text string) {
	if t.clearTimer != nil {
		t.clearTimer.Stop()
	}
	gen := t.statusGen.Add(1)
	t.view.ShowStatus(Status{Kind: kind, Text: text})

	t.clearTimer = t.clock.AfterFunc(t.delay, func() {
		if t.statusGen.Load() == gen {
			t.view.ClearStatus()
		}
	})
}
