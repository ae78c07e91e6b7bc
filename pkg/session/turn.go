// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status is the lifecycle status of a conversation turn.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusErrored   Status = "errored"
)

// Turn is one rendered entry of the conversation log.
//
// # Fields
//
//   - Id: UUID v4 assigned at creation.
//   - CreatedAt: Unix milliseconds at creation.
//   - Role: user, assistant, or system.
//   - Raw: Accumulated raw text as received.
//   - Display: Text shown to the user (cleaned for assistant turns).
//   - Status: pending, streaming, complete, or errored.
//   - Error: True for error-styled turns (stream error payloads).
type Turn struct {
	Id        string
	CreatedAt int64
	Role      Role
	Raw       string
	Display   string
	Status    Status
	Error     bool
}

// NewTurn creates a turn with a fresh ID and timestamp.
//
// Raw and Display are both set to text.
func NewTurn(role Role, text string, status Status) *Turn {
	return &Turn{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Role:      role,
		Raw:       text,
		Display:   text,
		Status:    status,
	}
}

// Conversation is the ordered message log.
type Conversation struct {
	mu    sync.RWMutex
	turns []*Turn
}

// Append adds t to the end of the log.
func (c *Conversation) Append(t *Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
}

// Len returns the number of turns in the log.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Turns returns a copy of the log in order. The turns themselves are live.
func (c *Conversation) Turns() []*Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Last returns the newest turn, or nil for an empty log.
func (c *Conversation) Last() *Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1]
}
