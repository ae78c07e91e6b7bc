// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Title("ignored")
	p.Success("uploaded")
	p.Warning("careful")
	p.Error("broken")
	p.Info("fyi")
	p.Muted("ignored too")

	want := "OK: uploaded\nWARN: careful\nERROR: broken\nINFO: fyi\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestPrinter_PlainHasNoDecoration(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeAuto)

	if p.Mode() != ModePlain {
		t.Fatalf("Mode() = %q, want plain", p.Mode())
	}
	p.Title("History")
	p.Success("done")

	if buf.String() != "History\ndone\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Table([]string{"WHEN", "QUESTION"}, [][]string{
		{"10:00", "What is X?"},
		{"10:01:30", "Why?"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", buf.String())
	}
	if lines[0] != "WHEN      QUESTION" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "10:00     What is X?" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestPrinter_TableMachine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Table([]string{"A", "B"}, [][]string{{"1", "2"}})

	if buf.String() != "1\t2\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated text", 6, "trunc…"},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
