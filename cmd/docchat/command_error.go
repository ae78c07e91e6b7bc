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
	"fmt"

	"github.com/AleutianAI/docchat/pkg/chat"
)

// Exit codes.
const (
	ExitFailure     = 1
	ExitNoAnswer    = 2
	ExitInterrupted = 130
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	// Code is the process exit code.
	Code int

	// Wrapped is the underlying error.
	Wrapped error
}

func (e *ExitError) Error() string {
	if e.Wrapped != nil {
		return e.Wrapped.Error()
	}
	return fmt.Sprintf("exit %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Wrapped
}

// outcomeError maps an unsuccessful exchange to an ExitError. It returns
// nil for a complete exchange.
func outcomeError(outcome chat.Outcome) error {
	switch outcome {
	case chat.OutcomeComplete:
		return nil
	case chat.OutcomeCancelled:
		return &ExitError{Code: ExitInterrupted, Wrapped: fmt.Errorf("question cancelled")}
	case chat.OutcomeErrored:
		return &ExitError{Code: ExitNoAnswer, Wrapped: fmt.Errorf("the server reported an error")}
	default:
		return &ExitError{Code: ExitNoAnswer, Wrapped: fmt.Errorf("no answer was received (%s)", outcome)}
	}
}
