// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"
)

// =============================================================================
// SSE Parser Tests
// =============================================================================

func TestNewSSEParser(t *testing.T) {
	parser := NewSSEParser()
	if parser == nil {
		t.Fatal("NewSSEParser() returned nil")
	}
}

func TestSSEParser_ParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantKind  LineKind
		wantName  string
		wantValue string
	}{
		{"blank", "", LineBlank, "", ""},
		{"carriage return only", "\r", LineBlank, "", ""},
		{"comment", ": keep-alive", LineComment, "", ""},
		{"data with space", "data: hello", LineField, "data", "hello"},
		{"data without space", "data:hello", LineField, "data", "hello"},
		{"only one space removed", "data:  answer", LineField, "data", " answer"},
		{"trailing whitespace kept", "data: is ", LineField, "data", "is "},
		{"no colon", "data", LineField, "data", ""},
		{"event field", "event: status", LineField, "event", "status"},
		{"value containing colon", "data: 发生错误: boom", LineField, "data", "发生错误: boom"},
		{"crlf remnant", "data: x\r", LineField, "data", "x"},
	}

	parser := NewSSEParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, kind := parser.ParseLine(tt.line)
			if kind != tt.wantKind {
				t.Fatalf("kind = %v, want %v", kind, tt.wantKind)
			}
			if field.Name != tt.wantName {
				t.Errorf("name = %q, want %q", field.Name, tt.wantName)
			}
			if field.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", field.Value, tt.wantValue)
			}
		})
	}
}
