// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aibor/vrlaunch/internal/boot"
	"github.com/aibor/vrlaunch/internal/host"
	"github.com/aibor/vrlaunch/internal/vrlaunch"
)

func TestHandleParseArgsError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "help requested",
			err:      &ParseArgsError{msg: "version requested", err: ErrHelp},
			expected: 0,
		},
		{
			name:     "parse error",
			err:      &ParseArgsError{msg: "no vendor given"},
			expected: -1,
		},
		{
			name:     "other error",
			err:      errors.New("unexpected"),
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, handleParseArgsError(tt.err))
		})
	}
}

func TestHandleRunError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "inventory error",
			err:      &host.InventoryError{Err: host.ErrTooManyInterfaces},
			expected: 2,
		},
		{
			name: "bridge error",
			err: &host.BridgeError{
				Interface: "eth1",
				Err:       host.ErrAlreadyBridged,
			},
			expected: 3,
		},
		{
			name: "boot session error",
			err: &boot.SessionError{
				State: boot.StateWaitingLogin,
				Err:   boot.ErrBootTimeout,
			},
			expected: 4,
		},
		{
			name: "fatal error",
			err: &vrlaunch.FatalError{
				Attempts: 4,
				Err:      errors.New("exit status 1"),
			},
			expected: 5,
		},
		{
			name: "wrapped fatal error",
			err: fmt.Errorf(
				"launch: %w",
				&vrlaunch.FatalError{Attempts: 1, Err: errors.New("gone")},
			),
			expected: 5,
		},
		{
			name:     "unclassified error",
			err:      errors.New("unexpected"),
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, handleRunError(tt.err, time.Second))
		})
	}
}
