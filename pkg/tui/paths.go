// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// SplitPaths splits pasted text into file paths.
//
// # Description
//
// Terminals paste dragged files as shell words: separated by spaces, with
// spaces inside a name either backslash-escaped or the whole path quoted.
// Some terminals paste file:// URLs instead. SplitPaths undoes all three.
//
// # Examples
//
//	SplitPaths(`/tmp/a.txt '/tmp/my notes.pdf' /tmp/b\ c.md`)
//	// ["/tmp/a.txt", "/tmp/my notes.pdf", "/tmp/b c.md"]
func SplitPaths(text string) []string {
	var (
		words   []string
		current strings.Builder
		quote   rune
		escaped bool
		inWord  bool
	)

	flush := func() {
		if inWord {
			words = append(words, fromFileURL(current.String()))
		}
		current.Reset()
		inWord = false
	}

	for _, r := range text {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	flush()
	return words
}

// DroppedFiles reports the paths in text when every word names an
// existing regular file by absolute path, which is what a terminal pastes
// when files are dragged onto it.
func DroppedFiles(text string) ([]string, bool) {
	words := SplitPaths(strings.TrimSpace(text))
	if len(words) == 0 {
		return nil, false
	}
	paths := make([]string, 0, len(words))
	for _, w := range words {
		p := expandHome(w)
		if !filepath.IsAbs(p) {
			return nil, false
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		paths = append(paths, p)
	}
	return paths, true
}

func fromFileURL(word string) string {
	if !strings.HasPrefix(word, "file://") {
		return word
	}
	u, err := url.Parse(word)
	if err != nil || u.Path == "" {
		return word
	}
	return u.Path
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
