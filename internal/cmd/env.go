// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"strconv"
	"strings"
)

// Environ looks up environment variables. Implemented by [os.Getenv] and by
// test fakes.
type Environ func(key string) string

// EnvArgs returns vrlaunch arguments from the environment.
//
// They are merged in front of the command line arguments, so explicit flags
// win over the environment.
func EnvArgs(getenv Environ) []string {
	return strings.Fields(getenv("VRLAUNCH_ARGS"))
}

// envString returns the value of the first set variable, or fallback.
func envString(getenv Environ, fallback string, keys ...string) string {
	for _, key := range keys {
		if value := getenv(key); value != "" {
			return value
		}
	}

	return fallback
}

// envInt returns the variable parsed as int, or fallback if unset or
// unparsable. The lab orchestrator passes interface counts this way, so a
// broken value must not abort the launch.
func envInt(getenv Environ, key string, fallback int) int {
	raw := getenv(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return value
}
