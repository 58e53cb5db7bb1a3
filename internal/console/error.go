// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import "errors"

var (
	// ErrReadTimeout is returned if no complete line arrived within the
	// read timeout.
	ErrReadTimeout = errors.New("console read timeout")

	// ErrDisconnected is returned if the console transport dropped. The
	// caller decides whether to reconnect.
	ErrDisconnected = errors.New("console disconnected")
)
