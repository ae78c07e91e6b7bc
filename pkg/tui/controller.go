// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/upload"
)

// DefaultQueueSize bounds the chat inbox and the upload queue.
const DefaultQueueSize = 64

// Hint texts.
const (
	LockedHint    = "Upload a document first: /upload <path>, or drop a file into the terminal."
	QueueFullHint = "Too many uploads queued. Try again shortly."
)

// Actions is what the Model asks of the application.
type Actions interface {
	// Ask submits a question.
	Ask(text string)

	// Cancel aborts the in-flight question, if any.
	Cancel()

	// Upload queues files for upload.
	Upload(paths []string)
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Assembler *chat.Assembler
	Tracker   *upload.Tracker

	// Hint receives user-facing hints for rejected actions. May be nil.
	Hint func(text string)

	// QueueSize defaults to DefaultQueueSize.
	QueueSize int

	Logger *slog.Logger
}

// Controller runs the assembler and tracker off the bubbletea event loop.
//
// # Description
//
// The assembler is owned by one goroutine, the chat loop: submissions,
// fragments, stream ends, and cancellation are all posted to its inbox
// and applied in order. A pump goroutine per exchange reads the answer
// stream and posts each fragment. Uploads run on a separate worker one
// batch at a time, so a slow upload never stalls a streaming answer.
//
// # Thread Safety
//
// Ask, Cancel, and Upload are safe to call from any goroutine and never
// block.
type Controller struct {
	assembler *chat.Assembler
	tracker   *upload.Tracker
	hint      func(string)
	logger    *slog.Logger

	inbox   chan func(ctx context.Context)
	uploads chan []upload.Document
}

// NewController creates a Controller. Call Run to start it.
func NewController(cfg ControllerConfig) *Controller {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	c := &Controller{
		assembler: cfg.Assembler,
		tracker:   cfg.Tracker,
		hint:      cfg.Hint,
		logger:    cfg.Logger,
		inbox:     make(chan func(context.Context), size),
		uploads:   make(chan []upload.Document, size),
	}
	if c.hint == nil {
		c.hint = func(string) {}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Run processes actions until ctx is cancelled.
//
// An exchange still streaming at shutdown is cancelled. Returns nil on
// cancellation.
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.chatLoop(ctx) })
	g.Go(func() error { return c.uploadLoop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Ask implements Actions.
func (c *Controller) Ask(text string) {
	c.post(func(ctx context.Context) {
		ex, err := c.assembler.Submit(ctx, text)
		switch {
		case errors.Is(err, chat.ErrInputLocked):
			c.hint(LockedHint)
			return
		case err != nil:
			return
		}
		if !ex.Done() {
			go c.pump(ctx, ex)
		}
	})
}

// Cancel implements Actions.
func (c *Controller) Cancel() {
	c.post(func(context.Context) {
		c.assembler.Cancel()
	})
}

// Upload implements Actions.
func (c *Controller) Upload(paths []string) {
	if len(paths) == 0 {
		return
	}
	docs := make([]upload.Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, upload.FromPath(p))
	}
	select {
	case c.uploads <- docs:
	default:
		c.logger.Debug("Upload queue full, dropping batch", slog.Int("files", len(docs)))
		// Upload runs on the program goroutine; a synchronous send would
		// wait on itself.
		go c.hint(QueueFullHint)
	}
}

func (c *Controller) post(f func(context.Context)) {
	select {
	case c.inbox <- f:
	default:
		c.logger.Warn("Chat inbox full, dropping action")
	}
}

// deliver posts f from a pump. Unlike post it waits for room, since a
// dropped fragment would corrupt the answer.
func (c *Controller) deliver(ctx context.Context, f func(context.Context)) bool {
	select {
	case c.inbox <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) chatLoop(ctx context.Context) error {
	for {
		select {
		case f := <-c.inbox:
			f(ctx)
		case <-ctx.Done():
			if c.assembler.Cancel() {
				c.logger.Debug("Cancelled in-flight question on shutdown")
			}
			return ctx.Err()
		}
	}
}

func (c *Controller) uploadLoop(ctx context.Context) error {
	for {
		select {
		case docs := <-c.uploads:
			c.tracker.SubmitAll(ctx, docs...)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pump reads ex until its stream ends and posts every event to the chat
// loop. Events for an exchange the loop has already finished are dropped
// there.
func (c *Controller) pump(ctx context.Context, ex *chat.Exchange) {
	id := ex.ID()
	for {
		fragment, err := ex.Next(ctx)
		if err != nil {
			c.deliver(ctx, func(context.Context) {
				c.assembler.Terminate(id, err)
			})
			return
		}
		if !c.deliver(ctx, func(context.Context) {
			c.assembler.Deliver(id, fragment)
		}) {
			return
		}
	}
}
