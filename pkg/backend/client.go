// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend talks to the document chat server over HTTP.
//
// # Architecture
//
//	upload.Tracker ──► Client.Upload ──► POST /upload (multipart, field "file")
//	chat.Assembler ──► Client.Dial   ──► GET /chat?text=..&file=..
//	                                        │ text/event-stream
//	                                        ▼
//	                         ux.EventDecoder ──► eventStream.Next
//
// The client keeps a cookie jar so the server's session cookie survives
// between the upload and the questions that follow it.
//
// # Limitations
//
//   - No retries. Every failure is reported to the caller.
//   - One SSE connection per Dial; the stream is never reconnected.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/docchat/pkg/chat"
	"github.com/AleutianAI/docchat/pkg/telemetry"
	"github.com/AleutianAI/docchat/pkg/upload"
	"github.com/AleutianAI/docchat/pkg/ux"
)

// =============================================================================
// Interfaces
// =============================================================================

// HTTPClient sends HTTP requests. *http.Client satisfies it.
//
// # Examples
//
//	type mockHTTPClient struct {
//	    doFunc func(*http.Request) (*http.Response, error)
//	}
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// Errors
// =============================================================================

// ErrNotEventStream is returned by Dial when the server answers with a
// content type other than text/event-stream.
var ErrNotEventStream = errors.New("backend: response is not an event stream")

// StatusError is a non-200 reply to the chat request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error (%d)", e.Code)
	}
	return fmt.Sprintf("server error (%d): %s", e.Code, e.Body)
}

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultUploadTimeout bounds one upload request.
	DefaultUploadTimeout = 2 * time.Minute

	// DefaultDialTimeout bounds the wait for the chat response headers.
	// It does not limit the stream itself.
	DefaultDialTimeout = 30 * time.Second

	maxErrorBody = 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:5000". Required.
	BaseURL string

	// HTTPClient defaults to an *http.Client with a cookie jar.
	HTTPClient HTTPClient

	UploadTimeout time.Duration
	DialTimeout   time.Duration

	// Tracer defaults to a no-op tracer.
	Tracer *telemetry.Tracer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// Client
// =============================================================================

// Client implements upload.Uploader and chat.Dialer.
type Client struct {
	base          *url.URL
	http          HTTPClient
	uploadTimeout time.Duration
	dialTimeout   time.Duration
	tracer        *telemetry.Tracer
	logger        *slog.Logger
}

// New creates a Client.
//
// # Outputs
//
//   - *Client: Ready to use.
//   - error: Non-nil when BaseURL is not an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) URL", cfg.BaseURL)
	}

	c := &Client{
		base:          base,
		http:          cfg.HTTPClient,
		uploadTimeout: cfg.UploadTimeout,
		dialTimeout:   cfg.DialTimeout,
		tracer:        cfg.Tracer,
		logger:        cfg.Logger,
	}
	if c.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http = &http.Client{Jar: jar}
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}
	if c.tracer == nil {
		c.tracer = telemetry.NewNoopTracer()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// -----------------------------------------------------------------------------
// Upload
// -----------------------------------------------------------------------------

// Upload sends doc as multipart field "file" to POST /upload.
//
// # Description
//
// The JSON body is decoded whatever the HTTP status: the server answers
// validation failures with 400 and {"error": ...}.
//
// # Outputs
//
//   - upload.Response: The decoded reply.
//   - error: Transport failure, unreadable file, or undecodable body.
func (c *Client) Upload(ctx context.Context, doc upload.Document) (resp upload.Response, err error) {
	ctx, finish := c.tracer.StartSpan(ctx, "backend.upload", attribute.String("file", doc.Name))
	defer func() { finish(err) }()

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	body, contentType, err := multipartBody(doc)
	if err != nil {
		return upload.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload", nil), body)
	if err != nil {
		return upload.Response{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return upload.Response{}, fmt.Errorf("http post: %w", err)
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close upload response body", slog.String("error", cerr.Error()))
		}
	}()

	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&resp); err != nil {
		return upload.Response{}, fmt.Errorf("decode upload response (%d): %w", httpResp.StatusCode, err)
	}

	c.logger.Debug("Upload response",
		slog.String("file", doc.Name),
		slog.Int("status_code", httpResp.StatusCode),
		slog.Bool("success", resp.Success))
	return resp, nil
}

func multipartBody(doc upload.Document) (io.Reader, string, error) {
	src, err := doc.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", doc.Name, err)
	}
	defer src.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", doc.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", doc.Name, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// -----------------------------------------------------------------------------
// Chat
// -----------------------------------------------------------------------------

// Dial opens GET /chat as an event stream.
//
// # Description
//
// The text parameter carries the question; the file parameter carries
// q.Document when it is non-empty. The dial timeout only covers the wait
// for response headers. Once the stream is open it lives until the server
// closes it, ctx is cancelled, or the stream is closed.
//
// # Outputs
//
//   - chat.Stream: Open stream of message-event payloads.
//   - error: Transport failure, *StatusError, or ErrNotEventStream.
func (c *Client) Dial(ctx context.Context, q chat.Query) (chat.Stream, error) {
	params := url.Values{"text": {q.Text}}
	if q.Document != "" {
		params.Set("file", q.Document)
	}

	spanCtx, finish := c.tracer.StartSpan(ctx, "backend.chat",
		attribute.String("file", q.Document),
		attribute.Int("question.length", len(q.Text)))

	streamCtx, cancel := context.WithCancel(spanCtx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.endpoint("/chat", params), nil)
	if err != nil {
		cancel()
		finish(err)
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	timer := time.AfterFunc(c.dialTimeout, cancel)
	resp, err := c.http.Do(req)
	if !timer.Stop() && err == nil {
		err = fmt.Errorf("timed out after %s waiting for response headers", c.dialTimeout)
		_ = resp.Body.Close()
	}
	if err != nil {
		cancel()
		finish(err)
		return nil, fmt.Errorf("http get: %w", err)
	}

	if err := validateResponse(resp); err != nil {
		_ = resp.Body.Close()
		cancel()
		finish(err)
		c.logger.Warn("Chat stream rejected",
			slog.Int("status_code", resp.StatusCode),
			slog.String("error", err.Error()))
		return nil, err
	}

	return &eventStream{
		body:    resp.Body,
		decoder: ux.NewEventDecoder(resp.Body, nil),
		cancel:  cancel,
		finish:  finish,
		logger:  c.logger,
	}, nil
}

// validateResponse checks status and content type of a chat response.
//
// Reads at most maxErrorBody bytes of the body on error.
func validateResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		return fmt.Errorf("%w: %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}
	return nil
}

// =============================================================================
// Event Stream
// =============================================================================

// eventStream adapts an SSE response body to chat.Stream.
type eventStream struct {
	body    io.ReadCloser
	decoder *ux.EventDecoder
	cancel  context.CancelFunc
	finish  func(error)
	logger  *slog.Logger

	closeOnce sync.Once

	mu      sync.Mutex
	lastErr error
}

// Next returns the data of the next message event.
//
// Named events other than "message" are skipped.
func (s *eventStream) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ev, err := s.decoder.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.lastErr = err
				s.mu.Unlock()
			}
			return "", err
		}
		attrs := []any{
			slog.Int("index", ev.Index),
			slog.String("type", ev.Type),
			slog.Time("received_at", time.UnixMilli(ev.ReceivedAt)),
		}
		if ev.LastEventID != "" {
			attrs = append(attrs, slog.String("last_event_id", ev.LastEventID))
		}
		if ev.Retry > 0 {
			attrs = append(attrs, slog.Duration("retry", ev.Retry))
		}
		if !ev.IsMessage() {
			s.logger.Debug("Skipping named event", attrs...)
			continue
		}
		s.logger.Debug("Chat event received", append(attrs, slog.Int("bytes", len(ev.Data)))...)
		return ev.Data, nil
	}
}

// Close cancels the request and releases the body. Idempotent.
func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
		s.mu.Lock()
		cause := s.lastErr
		s.mu.Unlock()
		s.finish(cause)
	})
	return err
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var (
	_ upload.Uploader = (*Client)(nil)
	_ chat.Dialer     = (*Client)(nil)
	_ chat.Stream     = (*eventStream)(nil)
)
