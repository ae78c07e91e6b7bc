// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/docchat/pkg/session"
)

// AllowedExtensions lists the accepted document types, lower case and
// without the dot.
var AllowedExtensions = []string{"pdf", "doc", "docx", "txt"}

// StatusClearDelay is how long a status notice stays visible.
const StatusClearDelay = 3 * time.Second

// GenericFailure is shown when an upload fails without a server message.
const GenericFailure = "Upload failed. Please try again."

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnsupportedType rejects a name whose extension is not allowed.
	ErrUnsupportedType = errors.New("upload: unsupported file type")

	// ErrDuplicate rejects a name already in the session upload set.
	ErrDuplicate = errors.New("upload: file already uploaded")
)

// RejectedError is a structured failure returned by the backend
// ({"success": false, "error": ...}).
type RejectedError struct {
	Name    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload %s rejected", e.Name)
	}
	return fmt.Sprintf("upload %s rejected: %s", e.Name, e.Message)
}

// =============================================================================
// Document
// =============================================================================

// Document is a file offered for upload.
type Document struct {
	// Name is the local file name, without directories.
	Name string

	// Open returns the file content. Called at most once per Submit.
	Open func() (io.ReadCloser, error)
}

// FromPath describes the file at path.
func FromPath(path string) Document {
	return Document{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FromBytes describes an in-memory document.
func FromBytes(name string, content []byte) Document {
	return Document{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// Supported reports whether name carries an allowed extension.
//
// Matching is case-insensitive on the final dot-segment; a name without
// a dot is unsupported.
func Supported(name string) bool {
	dot := strings.LastIndex(name, ".")
	if dot < 0 {
		return false
	}
	ext := strings.ToLower(name[dot+1:])
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// =============================================================================
// Ports
// =============================================================================

// Response is the backend's structured upload reply.
type Response struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Uploader sends one document to the backend.
type Uploader interface {
	// Upload sends doc as a single-part multipart request.
	//
	// A non-nil error is a transport failure; a structured rejection is
	// reported through Response.Success == false.
	Upload(ctx context.Context, doc Document) (Response, error)
}

// StatusKind styles a status notice.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusError
)

// Status is a transient notice shown near the upload control.
type Status struct {
	Kind StatusKind
	Text string
}

// View renders tracker output.
type View interface {
	AppendTurn(t *session.Turn)
	SetInputEnabled(enabled bool)
	ScrollToLatest()

	// ShowStatus replaces the visible status notice.
	ShowStatus(s Status)

	// ClearStatus hides the status notice.
	ClearStatus()
}

// Timer is a pending delayed call.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls.
//
// Implementations that run f on another goroutine must make the View's
// ClearStatus safe for that.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules with time.AfterFunc.
type RealClock struct{}

// AfterFunc implements Clock.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Observer receives upload results.
//
// telemetry.Metrics satisfies this interface.
type Observer interface {
	UploadFinished(result string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) UploadFinished(string, time.Duration) {}
