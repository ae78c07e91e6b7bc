// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testbackend is a scripted document chat server for tests.
//
// It speaks the same contract as the real backend: POST /upload with a
// multipart "file" field answering {success, filename, error}, and
// GET /chat?text=..&file=.. answering text/event-stream with one
// "data: <fragment>" event per scripted fragment. It does no indexing and
// no generation; replies come from a Script chosen per question.
package testbackend

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie is the cookie naming the server-side session.
const SessionCookie = "session_id"

// Script describes one /chat reply.
type Script struct {
	// Fragments are sent in order, one event each.
	Fragments []string

	// Status overrides 200.
	Status int

	// ContentType overrides text/event-stream.
	ContentType string

	// Delay is slept before each fragment.
	Delay time.Duration

	// Hold keeps the stream open after the last fragment until the client
	// disconnects.
	Hold bool

	// Comments are sent as ": <comment>" lines before the first fragment.
	Comments []string
}

// ChatRequest is a recorded /chat call.
type ChatRequest struct {
	Text    string
	File    string
	Session string
}

// UploadRequest is a recorded /upload call.
type UploadRequest struct {
	Filename string
	Content  string
	Session  string
}

// Server is a running scripted backend.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	uploads  []UploadRequest
	chats    []ChatRequest
	files    map[string]bool
	chatFunc func(ChatRequest) Script
	upFunc   func(UploadRequest) (int, gin.H)
}

// Option configures a Server.
type Option func(*Server)

// WithChat sets the reply script for each question.
func WithChat(f func(ChatRequest) Script) Option {
	return func(s *Server) { s.chatFunc = f }
}

// WithFragments replies to every question with the same fragments.
func WithFragments(fragments ...string) Option {
	return WithChat(func(ChatRequest) Script { return Script{Fragments: fragments} })
}

// WithUpload overrides the upload reply.
func WithUpload(f func(UploadRequest) (int, gin.H)) Option {
	return func(s *Server) { s.upFunc = f }
}

// New starts a Server. Call Close when done.
func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{files: make(map[string]bool)}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), sessionMiddleware)
	router.POST("/upload", s.handleUpload)
	router.GET("/chat", s.handleChat)

	s.Server = httptest.NewServer(router)
	return s
}

// Uploads returns the recorded upload calls.
func (s *Server) Uploads() []UploadRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UploadRequest(nil), s.uploads...)
}

// Chats returns the recorded chat calls.
func (s *Server) Chats() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.chats...)
}

// sessionMiddleware assigns a session cookie on first contact.
func sessionMiddleware(c *gin.Context) {
	id, err := c.Cookie(SessionCookie)
	if err != nil || id == "" {
		id = uuid.New().String()
		c.SetCookie(SessionCookie, id, 0, "/", "", false, true)
	}
	c.Set(SessionCookie, id)
	c.Next()
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	defer f.Close()
	content, _ := io.ReadAll(f)

	req := UploadRequest{
		Filename: header.Filename,
		Content:  string(content),
		Session:  c.GetString(SessionCookie),
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, req)
	upFunc := s.upFunc
	s.mu.Unlock()

	if upFunc != nil {
		status, body := upFunc(req)
		c.JSON(status, body)
		return
	}

	s.mu.Lock()
	s.files[req.Filename] = true
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "filename": req.Filename})
}

func (s *Server) handleChat(c *gin.Context) {
	req := ChatRequest{
		Text:    c.Query("text"),
		File:    c.Query("file"),
		Session: c.GetString(SessionCookie),
	}

	s.mu.Lock()
	s.chats = append(s.chats, req)
	chatFunc := s.chatFunc
	s.mu.Unlock()

	script := Script{Fragments: []string{"ok"}}
	if chatFunc != nil {
		script = chatFunc(req)
	}

	if script.Status != 0 && script.Status != http.StatusOK {
		c.String(script.Status, "scripted failure")
		return
	}

	contentType := script.ContentType
	if contentType == "" {
		contentType = "text/event-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	w := c.Writer
	for _, comment := range script.Comments {
		fmt.Fprintf(w, ": %s\n\n", comment)
	}
	w.Flush()

	for _, fragment := range script.Fragments {
		if script.Delay > 0 {
			select {
			case <-time.After(script.Delay):
			case <-c.Request.Context().Done():
				return
			}
		}
		writeData(w, fragment)
		w.Flush()
	}

	if script.Hold {
		<-c.Request.Context().Done()
	}
}

// writeData writes one event; embedded newlines become extra data lines.
func writeData(w io.Writer, fragment string) {
	for _, line := range strings.Split(fragment, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
