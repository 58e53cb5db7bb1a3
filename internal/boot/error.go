// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownVendor is returned for a vendor name without a profile.
	ErrUnknownVendor = errors.New("unknown vendor")

	// ErrBootTimeout is returned if a boot attempt exceeded the profile's
	// boot timeout.
	ErrBootTimeout = errors.New("boot timed out")

	// ErrPromptTimeout is returned if the per-state line budget was
	// exhausted without a matching prompt.
	ErrPromptTimeout = errors.New("no recognized prompt within line budget")

	// ErrPromptRejected is returned if the guest rejected the automaton's
	// input, e.g. failed authentication.
	ErrPromptRejected = errors.New("guest rejected input")
)

// SessionError wraps any error that failed a boot session, together with
// the automaton state and elapsed time, so the failure can be logged with
// context and mapped to the supervisor's restart policy.
type SessionError struct {
	State   State
	Elapsed time.Duration
	Err     error
}

// Error implements the [error] interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf(
		"boot session failed in state %s after %s: %v",
		e.State,
		e.Elapsed.Round(time.Millisecond),
		e.Err,
	)
}

// Is implements the [errors.Is] interface.
func (*SessionError) Is(other error) bool {
	_, ok := other.(*SessionError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *SessionError) Unwrap() error {
	return e.Err
}
