// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the mutable state shared by the upload tracker and
// the streaming response assembler.
//
// # Ownership
//
// One State value is created per chat session and handed to both
// components:
//
//	┌──────────────┐        ┌────────────────────┐
//	│ upload       │        │ chat               │
//	│ Tracker      │        │ Assembler          │
//	└──────┬───────┘        └─────────┬──────────┘
//	       │ writes Uploads            │ writes Request + in-flight Turn
//	       ▼                           ▼
//	┌──────────────────────────────────────────────┐
//	│ State { Uploads, Request, Log, gate }        │
//	└──────────────────────────────────────────────┘
//
// The tracker is the only writer of Uploads; the assembler is the only
// writer of Request. Both append turns to Log.
//
// # Thread Safety
//
// Every part of State is safe for concurrent use. The TUI runs the
// tracker on an upload worker while the assembler runs on the chat event
// loop. Turns handed out by Conversation are shared pointers; only the
// component that appended a turn mutates it.
package session

import (
	"strings"
	"sync"
	"sync/atomic"
)

// =============================================================================
// Session Upload Set
// =============================================================================

// UploadSet is an ordered, append-only set of accepted filenames.
//
// Membership is by exact name. The zero value is an empty set ready for use.
type UploadSet struct {
	mu    sync.RWMutex
	names []string
	index map[string]struct{}
}

// Add appends name if it is not already present.
//
// Returns true when the name was added, false when it was a duplicate or
// empty.
func (s *UploadSet) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[name]; name == "" || dup {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// Contains reports whether name has been accepted.
func (s *UploadSet) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok
}

// Len returns the number of accepted files.
func (s *UploadSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Names returns a copy of the accepted names in acceptance order.
func (s *UploadSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Latest returns the most recently accepted name, or "" when empty.
func (s *UploadSet) Latest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.names) == 0 {
		return ""
	}
	return s.names[len(s.names)-1]
}

// =============================================================================
// Pending Request State
// =============================================================================

// RequestState is the single-slot pending request flag.
//
// At most one exchange may be pending or streaming at a time. The slot
// stores the exchange ID so late events from a released channel can be
// recognised and dropped.
type RequestState struct {
	mu         sync.Mutex
	exchangeID string
}

// Idle reports whether no exchange is in flight.
func (r *RequestState) Idle() bool {
	return r.Active() == ""
}

// Active returns the in-flight exchange ID, or "" when idle.
func (r *RequestState) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exchangeID
}

// Acquire claims the slot for exchangeID.
//
// Returns false (and leaves the slot untouched) when the slot is taken.
func (r *RequestState) Acquire(exchangeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exchangeID != "" || exchangeID == "" {
		return false
	}
	r.exchangeID = exchangeID
	return true
}

// Release frees the slot if it is held by exchangeID.
//
// Returns false for stale or unknown IDs.
func (r *RequestState) Release(exchangeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exchangeID == "" || r.exchangeID != exchangeID {
		return false
	}
	r.exchangeID = ""
	return true
}

// =============================================================================
// State
// =============================================================================

// State is the session-scoped state shared by the tracker and assembler.
type State struct {
	Uploads UploadSet
	Request RequestState
	Log     Conversation

	// gateOpen is the question-input gate. It opens on the first accepted
	// upload, or at construction when uploads are not required.
	gateOpen atomic.Bool
}

// Options configures a new State.
type Options struct {
	// RequireUpload keeps the input gate closed until a document has been
	// accepted. When false the gate starts open.
	RequireUpload bool
}

// New creates an empty session state.
func New(opts Options) *State {
	s := &State{}
	s.gateOpen.Store(!opts.RequireUpload)
	return s
}

// OpenGate unlocks question input. Opening an open gate is a no-op.
func (s *State) OpenGate() {
	s.gateOpen.Store(true)
}

// GateOpen reports whether question input has been unlocked.
func (s *State) GateOpen() bool {
	return s.gateOpen.Load()
}

// InputEnabled reports whether the question input controls should accept
// input: the gate is open and no request is pending.
func (s *State) InputEnabled() bool {
	return s.GateOpen() && s.Request.Idle()
}

// DocumentParam returns the value sent as the chat document parameter.
//
// The client-side upload set is authoritative: the most recently accepted
// file names the document context of the next question.
func (s *State) DocumentParam() string {
	return strings.TrimSpace(s.Uploads.Latest())
}
