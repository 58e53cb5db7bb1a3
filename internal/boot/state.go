// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot

// State is an automaton state.
type State int

const (
	StatePowerOn State = iota
	StateWaitingLogin
	StateLoggingIn
	StateConfiguring
	StateReady
	StateFailed
)

var stateNames = map[State]string{
	StatePowerOn:      "power-on",
	StateWaitingLogin: "waiting-login",
	StateLoggingIn:    "logging-in",
	StateConfiguring:  "configuring",
	StateReady:        "ready",
	StateFailed:       "failed",
}

// String implements [fmt.Stringer].
func (s State) String() string {
	name, exists := stateNames[s]
	if !exists {
		return "unknown"
	}

	return name
}
