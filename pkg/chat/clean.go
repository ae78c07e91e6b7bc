// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"regexp"
	"strings"
	"unicode"
)

// rolePrefixes are stripped from the start of an answer, in this order,
// once per pass. "user" without a colon is deliberately last.
var rolePrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*assistant:`),
	regexp.MustCompile(`(?i)^\s*回答:`),
	regexp.MustCompile(`(?i)^\s*AI:`),
	regexp.MustCompile(`(?i)^\s*回复:`),
	regexp.MustCompile(`(?i)^\s*user:`),
	regexp.MustCompile(`(?i)^\s*user`),
}

// escapedWhitespace replaces the two-character sequences `\n` and `\t`
// that some models emit literally.
var escapedWhitespace = strings.NewReplacer(`\n`, " ", `\t`, " ")

// Clean normalizes accumulated answer text for display.
//
// # Description
//
// One pass:
//  1. strip each role prefix (assistant:, 回答:, AI:, 回复:, user:, user)
//     at the start of the text, case-insensitively, trimming surrounding
//     whitespace after each;
//  2. replace literal `\n` and `\t` sequences with a space;
//  3. collapse every whitespace run, Unicode spaces included, into one
//     ASCII space and trim.
//
// Passes repeat until the text stops changing, which makes Clean
// idempotent: Clean(Clean(x)) == Clean(x). The first pass may keep the
// length (a tab becomes a space); after it the whitespace is normalized,
// so any later pass that changes the text shortens it and the loop
// terminates.
//
// Clean is applied to the whole accumulated buffer on every fragment: a
// role prefix split across fragments ("A" + "I:") only becomes
// recognisable once enough text has arrived.
//
// # Examples
//
//	Clean("AI: hello")      // "hello"
//	Clean("回答:  你好")     // "你好"
//	Clean("user")           // ""
//	Clean(`a\n\tb   c`)     // "a b c"
func Clean(text string) string {
	for {
		next := cleanPass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func cleanPass(text string) string {
	if text == "" {
		return text
	}
	for _, re := range rolePrefixes {
		text = strings.TrimSpace(re.ReplaceAllLiteralString(text, ""))
	}
	text = escapedWhitespace.Replace(text)
	return strings.Join(strings.FieldsFunc(text, isDisplaySpace), " ")
}

// isDisplaySpace extends unicode.IsSpace with the zero-width no-break
// space, which browsers also treat as whitespace.
func isDisplaySpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
