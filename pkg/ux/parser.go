// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides user experience components for the DocChat CLI.
//
// This file contains the SSE line parser.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, event assembly, or
//	rendering. A parsed line is a field, a comment, or a blank line; the
//	reader decides what that means for the event being built.
package ux

import (
	"strings"
)

// =============================================================================
// Line Kinds
// =============================================================================

// LineKind classifies a single line of an SSE stream.
type LineKind int

const (
	// LineBlank is an empty line. It dispatches the pending event.
	LineBlank LineKind = iota

	// LineComment starts with ":" and is ignored.
	LineComment

	// LineField carries a field name and value.
	LineField
)

// SSEField is a parsed "name: value" line.
type SSEField struct {
	Name  string
	Value string
}

// =============================================================================
// SSE Parser Interface
// =============================================================================

// SSEParser parses one line of a Server-Sent Events stream.
//
// SSE Format Reference (https://html.spec.whatwg.org/multipage/server-sent-events.html):
//
//	data: The answer\n
//	\n
//	data:  is 42.\n
//	\n
//
// Line handling follows the EventSource processing model:
//   - Empty line: LineBlank
//   - Line starting with ":": LineComment
//   - "name:value": field; a single leading space in value is removed
//   - "name" with no colon: field with an empty value
//
// Thread Safety:
//
//	The default implementation is stateless and safe for concurrent use.
//
// Example:
//
//	parser := NewSSEParser()
//	field, kind := parser.ParseLine("data:  answer")
//	// kind == LineField, field.Value == " answer"
type SSEParser interface {
	// ParseLine parses a single line without its line terminator.
	ParseLine(line string) (SSEField, LineKind)
}

// =============================================================================
// SSE Parser Implementation
// =============================================================================

type sseParser struct{}

// NewSSEParser creates a new stateless SSE parser.
func NewSSEParser() SSEParser {
	return &sseParser{}
}

// ParseLine parses a single SSE line.
//
// Values are not trimmed beyond the one optional space after the colon:
// leading whitespace in a chat fragment is significant.
func (p *sseParser) ParseLine(line string) (SSEField, LineKind) {
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		return SSEField{}, LineBlank
	}

	if strings.HasPrefix(line, ":") {
		return SSEField{}, LineComment
	}

	name, value, found := strings.Cut(line, ":")
	if !found {
		return SSEField{Name: line}, LineField
	}
	value = strings.TrimPrefix(value, " ")

	return SSEField{Name: name, Value: value}, LineField
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEParser = (*sseParser)(nil)
