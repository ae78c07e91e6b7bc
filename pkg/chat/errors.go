// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import "errors"

// ErrorSentinel prefixes a fragment that carries a terminal error message.
// It is part of the wire contract with the backend.
const ErrorSentinel = "发生错误:"

var (
	// ErrEmptyMessage is returned by Submit when the trimmed text is empty.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrRequestPending is returned by Submit while another exchange is in
	// flight.
	ErrRequestPending = errors.New("chat: a request is already pending")

	// ErrInputLocked is returned by Submit while the upload gate is closed.
	ErrInputLocked = errors.New("chat: upload a document before asking")
)

// IsNoop reports whether err is one of the Submit rejections that leave
// all state untouched.
func IsNoop(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrRequestPending) ||
		errors.Is(err, ErrInputLocked)
}
