// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"time"
)

// DefaultEventType is the type of events sent without an "event:" field.
const DefaultEventType = "message"

// StreamEvent is one dispatched Server-Sent Event.
//
// The chat backend sends plain UTF-8 text fragments, one per event. Data is
// the event payload with multiple "data:" lines joined by "\n".
type StreamEvent struct {
	// Index is the zero-based position of the event in its stream.
	Index int

	// Type is the event type; DefaultEventType when the server omits it.
	Type string

	// Data is the event payload.
	Data string

	// LastEventID is the most recent "id:" value seen on the stream.
	LastEventID string

	// Retry is the reconnection delay advertised by the server, if any.
	// The client never reconnects; the value is kept for logging.
	Retry time.Duration

	// ReceivedAt is Unix milliseconds when the event was dispatched.
	ReceivedAt int64
}

// IsMessage reports whether the event is delivered to message listeners.
//
// Named events other than "message" are ignored by the chat client, the
// same way an EventSource onmessage handler never sees them.
func (e StreamEvent) IsMessage() bool {
	return e.Type == "" || e.Type == DefaultEventType
}
