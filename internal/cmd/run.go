// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aibor/vrlaunch/internal/boot"
	"github.com/aibor/vrlaunch/internal/host"
	"github.com/aibor/vrlaunch/internal/vrlaunch"
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func handleParseArgsError(err error) int {
	// [ErrHelp] is returned when help or version output was requested. So
	// exit without error in this case.
	if errors.Is(err, ErrHelp) {
		return 0
	}

	// ParseArgs already prints errors, so we just exit without logging
	// them again.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return -1
}

// handleRunError logs the failure with its error class and maps it to an
// exit code.
func handleRunError(err error, elapsed time.Duration) int {
	exitCode := -1

	switch {
	case errors.Is(err, &host.InventoryError{}):
		exitCode = 2
	case errors.Is(err, &host.BridgeError{}):
		exitCode = 3
	case errors.Is(err, &boot.SessionError{}):
		exitCode = 4
	case errors.Is(err, &vrlaunch.FatalError{}):
		exitCode = 5
	}

	slog.Error("Launch failed",
		slog.Any("error", err),
		slog.Duration("elapsed", elapsed.Round(time.Second)),
	)

	return exitCode
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	flags := newFlags(cfg.Stderr, os.Getenv)

	mergedArgs := append(EnvArgs(os.Getenv), args[1:]...)

	if err := flags.ParseArgs(mergedArgs); err != nil {
		return handleParseArgsError(err)
	}

	setupLogging(cfg.Stderr, flags.debug)

	start := time.Now()

	if err := vrlaunch.Run(ctx, flags.cfg); err != nil {
		return handleRunError(err, time.Since(start))
	}

	return 0
}
