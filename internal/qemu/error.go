// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"errors"
	"strconv"
)

var (
	// ErrArgumentCollision is returned if two [Argument]s are considered
	// equal.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrCommandStarted is returned if a [Command] is started twice.
	ErrCommandStarted = errors.New("command already started")

	// ErrCommandNotStarted is returned if a [Command] is observed before it
	// was started.
	ErrCommandNotStarted = errors.New("command not started")

	// ErrDiskImageNotFound is returned if no vendor disk image is present.
	ErrDiskImageNotFound = errors.New("no disk image found")

	// ErrDiskImageAmbiguous is returned if more than one vendor disk image
	// is present.
	ErrDiskImageAmbiguous = errors.New("more than one disk image found")
)

// ArgumentError indicates an issue with an input argument.
type ArgumentError struct {
	msg string
}

// Error implements the [error] interface.
func (e *ArgumentError) Error() string {
	return "argument error: " + e.msg
}

// Is implements the [errors.Is] interface.
func (*ArgumentError) Is(other error) bool {
	_, ok := other.(*ArgumentError)
	return ok
}

// CommandError wraps any error occurred during Command execution.
type CommandError struct {
	Err      error
	ExitCode int
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	return "qemu exited with code " + strconv.Itoa(e.ExitCode) +
		": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
