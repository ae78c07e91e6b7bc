// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides user experience components for the DocChat CLI.
//
// This file contains the pull-style SSE event decoder.
//
// Single Responsibility:
//
//	The decoder handles I/O and event assembly. It uses a parser to classify
//	lines, but does not interpret event payloads or render output.
//
// Cancellation:
//
//	The decoder takes no context. A read blocked on the network is released
//	by closing the underlying body, which the HTTP client ties to the
//	request context.
package ux

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// MaxLineSize bounds a single SSE line. Chat fragments are small; the
// limit only protects against a misbehaving server.
const MaxLineSize = 1 << 20

// =============================================================================
// Event Decoder
// =============================================================================

// EventDecoder assembles SSE lines into dispatched events.
//
// # Description
//
// Pull-style decoder: each Next call returns the next dispatched event.
// Data lines accumulate until a blank line; an event whose data buffer is
// empty is not dispatched. A final event that is not followed by a blank
// line is dispatched at EOF.
//
// # Thread Safety
//
// Not thread-safe. One goroutine reads one decoder.
//
// # Limitations
//
//   - Lines are terminated by LF or CRLF; a lone CR is not a terminator.
//   - Lines longer than MaxLineSize fail with bufio.ErrTooLong.
type EventDecoder struct {
	scanner *bufio.Scanner
	parser  SSEParser

	index     int
	firstLine bool

	eventType string
	data      []string
	hasData   bool

	lastEventID string
	retry       time.Duration
}

// NewEventDecoder creates a decoder reading from r.
//
// # Inputs
//
//   - r: SSE byte stream. Caller is responsible for closing it.
//   - parser: Line parser; nil selects NewSSEParser().
func NewEventDecoder(r io.Reader, parser SSEParser) *EventDecoder {
	if parser == nil {
		parser = NewSSEParser()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)

	return &EventDecoder{
		scanner:   scanner,
		parser:    parser,
		firstLine: true,
	}
}

// Next returns the next dispatched event.
//
// # Outputs
//
//   - StreamEvent: The event.
//   - error: io.EOF when the stream ended cleanly, otherwise the read error.
func (d *EventDecoder) Next() (StreamEvent, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if d.firstLine {
			line = strings.TrimPrefix(line, "\uFEFF")
			d.firstLine = false
		}

		field, kind := d.parser.ParseLine(line)
		switch kind {
		case LineComment:
			continue
		case LineBlank:
			if ev, ok := d.dispatch(); ok {
				return ev, nil
			}
			continue
		}

		d.apply(field)
	}

	if err := d.scanner.Err(); err != nil {
		return StreamEvent{}, err
	}

	if ev, ok := d.dispatch(); ok {
		return ev, nil
	}
	return StreamEvent{}, io.EOF
}

// apply folds one field into the pending event.
func (d *EventDecoder) apply(field SSEField) {
	switch field.Name {
	case "event":
		d.eventType = field.Value
	case "data":
		d.data = append(d.data, field.Value)
		d.hasData = true
	case "id":
		if !strings.ContainsRune(field.Value, 0) {
			d.lastEventID = field.Value
		}
	case "retry":
		if ms, err := strconv.Atoi(field.Value); err == nil && ms >= 0 {
			d.retry = time.Duration(ms) * time.Millisecond
		}
	}
}

// dispatch builds the pending event and resets the buffers.
//
// Returns false when there is nothing to dispatch.
func (d *EventDecoder) dispatch() (StreamEvent, bool) {
	defer func() {
		d.eventType = ""
		d.data = d.data[:0]
		d.hasData = false
	}()

	if !d.hasData {
		return StreamEvent{}, false
	}

	eventType := d.eventType
	if eventType == "" {
		eventType = DefaultEventType
	}

	ev := StreamEvent{
		Index:       d.index,
		Type:        eventType,
		Data:        strings.Join(d.data, "\n"),
		LastEventID: d.lastEventID,
		Retry:       d.retry,
		ReceivedAt:  time.Now().UnixMilli(),
	}
	d.index++
	return ev, true
}
