// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"ai prefix", "AI: hello", "hello"},
		{"chinese answer prefix", "回答:  你好", "你好"},
		{"chinese reply prefix", "回复: 好的", "好的"},
		{"bare user", "user", ""},
		{"user colon", "User: hi", "hi"},
		{"assistant case-insensitive", "  ASSISTANT:  ok ", "ok"},
		{"escaped whitespace", `a\n\tb   c`, "a b c"},
		{"real control characters", "a\n\tb", "a b"},
		{"unicode spaces", "a\u00a0\u3000b\u2003c", "a b c"},
		{"zero width no-break space", "\uFEFFhi\uFEFF", "hi"},
		{"prefix only at start", "say AI: hi", "say AI: hi"},
		{"concatenated fragments", "AI:foobar", "foobar"},
		{"prefix then escaped newline", `AI:\nfoo`, "foo"},
		{"stacked prefixes", "assistant: AI: x", "x"},
		{"prefix revealed by escape", `\nAI: x`, "x"},
		{"only whitespace", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"AI: hello",
		"AI: AI: hello",
		"user user user",
		`\n\n\tassistant:\tAI:\n回答: x`,
		"回复:回答:AI:user:user",
		"  The answer  is  42.  ",
		`a\\n b`,
		`\`,
		"userassistant:",
	}

	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
