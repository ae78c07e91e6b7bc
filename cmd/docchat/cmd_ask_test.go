// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/docchat/cmd/docchat/config"
	"github.com/AleutianAI/docchat/internal/testbackend"
	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/ux"
)

func TestAsk_UploadThenAnswer(t *testing.T) {
	srv := testbackend.New(testbackend.WithFragments("The answer ", "is 42."))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X is a placeholder.")

	out := &lockedBuffer{}
	err := ask(context.Background(), env, out, ux.ModePlain, []string{notes}, "What is X?")
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Uploaded notes.txt. 1 document available for questions.\n")
	assert.Contains(t, text, "You: What is X?\n")
	assert.Contains(t, text, "Assistant: The answer is 42.\n")

	chats := srv.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "notes.txt", chats[0].File)
	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "X is a placeholder.", uploads[0].Content)
	assert.Equal(t, uploads[0].Session, chats[0].Session)

	records, err := env.history.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "What is X?", records[0].Question)
	assert.Equal(t, "notes.txt", records[0].Document)
	assert.Equal(t, "The answer is 42.", records[0].Answer)
	assert.Equal(t, chat.OutcomeComplete, records[0].Outcome)
}

func TestAsk_MachineMode(t *testing.T) {
	srv := testbackend.New(testbackend.WithFragments("The answer ", "is 42."))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	out := &lockedBuffer{}
	require.NoError(t, ask(context.Background(), env, out, ux.ModeMachine, []string{notes}, "What is X?"))

	text := out.String()
	assert.Contains(t, text, "USER: What is X?\n")
	assert.Contains(t, text, "ASSISTANT: The answer is 42.\n")
	assert.Contains(t, text, "STATUS: Thinking...\n")
}

func TestAsk_RequiresDocument(t *testing.T) {
	srv := testbackend.New()
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)

	err := ask(context.Background(), env, &lockedBuffer{}, ux.ModePlain, nil, "What is X?")
	assert.Equal(t, ExitFailure, exitCode(t, err))
	assert.ErrorIs(t, err, errNoDocument)
	assert.Empty(t, srv.Chats(), "nothing is sent before a document is accepted")
}

func TestAsk_RejectedUploadKeepsGateClosed(t *testing.T) {
	srv := testbackend.New(testbackend.WithUpload(func(testbackend.UploadRequest) (int, gin.H) {
		return http.StatusOK, gin.H{"success": false, "error": "Disk full"}
	}))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	out := &lockedBuffer{}
	err := ask(context.Background(), env, out, ux.ModePlain, []string{notes}, "What is X?")
	assert.ErrorIs(t, err, errNoDocument)
	assert.Contains(t, out.String(), "Disk full\n")
}

func TestAsk_WithoutUploadRequirement(t *testing.T) {
	srv := testbackend.New(testbackend.WithFragments("General answer."))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv, func(c *config.DocChatConfig) { c.Chat.RequireUpload = false })

	require.NoError(t, ask(context.Background(), env, &lockedBuffer{}, ux.ModePlain, nil, "Hello?"))

	chats := srv.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "", chats[0].File)
}

func TestAsk_BackendError(t *testing.T) {
	srv := testbackend.New(testbackend.WithFragments(chat.ErrorSentinel + " model unavailable"))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	err := ask(context.Background(), env, &lockedBuffer{}, ux.ModePlain, []string{notes}, "What is X?")
	assert.Equal(t, ExitNoAnswer, exitCode(t, err))

	records, lerr := env.history.List(context.Background(), 1)
	require.NoError(t, lerr)
	require.Len(t, records, 1)
	assert.Equal(t, chat.OutcomeErrored, records[0].Outcome)
}

func TestAsk_ServerDown(t *testing.T) {
	srv := testbackend.New(testbackend.WithChat(func(testbackend.ChatRequest) testbackend.Script {
		return testbackend.Script{Status: http.StatusInternalServerError}
	}))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	out := &lockedBuffer{}
	err := ask(context.Background(), env, out, ux.ModePlain, []string{notes}, "What is X?")
	assert.Equal(t, ExitNoAnswer, exitCode(t, err))
	assert.Contains(t, out.String(), chat.FailureNotice)
}

func TestAsk_Interrupted(t *testing.T) {
	srv := testbackend.New(testbackend.WithChat(func(testbackend.ChatRequest) testbackend.Script {
		return testbackend.Script{Fragments: []string{"Partial"}, Hold: true}
	}))
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out := &lockedBuffer{}
	err := ask(ctx, env, out, ux.ModePlain, []string{notes}, "What is X?")
	assert.Equal(t, ExitInterrupted, exitCode(t, err))
	assert.Contains(t, out.String(), "Assistant: Partial\n")
	assert.Contains(t, out.String(), chat.CancelledNotice+"\n")
}
