// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vrlaunch

import (
	"errors"
	"fmt"
)

var (
	// ErrEndpointTimeout is returned if the console endpoint did not
	// accept connections in time after process start.
	ErrEndpointTimeout = errors.New("console endpoint did not come up")

	// ErrVMExited is returned if the emulator process exited while it was
	// expected to keep running.
	ErrVMExited = errors.New("emulator process exited unexpectedly")

	// ErrUnsupportedConnectionMode is returned for connection modes other
	// than tc redirect bridging.
	ErrUnsupportedConnectionMode = errors.New("unsupported connection mode")
)

// LaunchError wraps errors of a single launch attempt that failed before
// the emulator process was usable.
type LaunchError struct {
	Err error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return "launch: " + e.Err.Error()
}

// Is implements the interface required by [errors.Is].
func (e *LaunchError) Is(other error) bool {
	_, ok := other.(*LaunchError)
	return ok
}

// Unwrap implements the interface required by [errors.Unwrap].
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// FatalError is returned once the restart budget is exhausted. It wraps
// the error of the last attempt.
type FatalError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Is implements the interface required by [errors.Is].
func (e *FatalError) Is(other error) bool {
	_, ok := other.(*FatalError)
	return ok
}

// Unwrap implements the interface required by [errors.Unwrap].
func (e *FatalError) Unwrap() error {
	return e.Err
}
