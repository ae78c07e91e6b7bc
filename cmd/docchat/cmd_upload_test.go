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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/docchat/internal/testbackend"
	"github.com/AleutianAI/docchat/pkg/upload"
	"github.com/AleutianAI/docchat/pkg/ux"
)

func TestUploadFiles_AllAccepted(t *testing.T) {
	srv := testbackend.New()
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	a := writeDoc(t, "a.txt", "alpha")
	b := writeDoc(t, "b.pdf", "%PDF")

	out := &lockedBuffer{}
	require.NoError(t, uploadFiles(context.Background(), env, out, ux.ModeMachine, []string{a, b}))

	assert.Equal(t, strings.Join([]string{
		"a.txt\taccepted\ta.txt",
		"b.pdf\taccepted\tb.pdf",
		"OK: 2 of 2 uploaded",
		"",
	}, "\n"), out.String())
	assert.Len(t, srv.Uploads(), 2)
}

func TestUploadFiles_PartialFailure(t *testing.T) {
	srv := testbackend.New()
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	out := &lockedBuffer{}
	err := uploadFiles(context.Background(), env, out, ux.ModeMachine, []string{notes, "/nowhere/image.png", notes})
	assert.Equal(t, ExitFailure, exitCode(t, err))

	assert.Equal(t, strings.Join([]string{
		"notes.txt\taccepted\tnotes.txt",
		"image.png\tunsupported\tallowed: pdf, doc, docx, txt",
		"notes.txt\tduplicate\talready uploaded",
		"WARN: 1 of 3 uploaded",
		"",
	}, "\n"), out.String())
	assert.Len(t, srv.Uploads(), 1, "rejected files never reach the server")
}

func TestUploadFiles_PlainTable(t *testing.T) {
	srv := testbackend.New()
	t.Cleanup(srv.Close)
	env := newTestEnv(t, srv)
	notes := writeDoc(t, "notes.txt", "X")

	out := &lockedBuffer{}
	require.NoError(t, uploadFiles(context.Background(), env, out, ux.ModePlain, []string{notes}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "FILE       RESULT    DETAIL", lines[0])
	assert.Equal(t, "notes.txt  accepted  notes.txt", lines[1])
	assert.Equal(t, "1 of 1 uploaded", lines[2])
}

func TestUploadFailureDetail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected with message", &upload.RejectedError{Name: "a.txt", Message: "Disk full"}, "Disk full"},
		{"rejected without message", &upload.RejectedError{Name: "a.txt"}, upload.GenericFailure},
		{"unsupported", upload.ErrUnsupportedType, "allowed: pdf, doc, docx, txt"},
		{"duplicate", upload.ErrDuplicate, "already uploaded"},
		{"transport", errors.New("connection refused"), "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uploadFailureDetail(tt.err))
		})
	}
}
