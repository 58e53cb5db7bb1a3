// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package boot drives a virtual router's serial console from power-on to a
// remotely manageable state.
//
// One generic automaton consumes a per-vendor [Profile]: an ordered table
// of prompt matchers plus a bootstrap command sequence. Vendor differences
// live in data, not in code.
package boot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aibor/vrlaunch/internal/console"
)

// readTimeout is the per-read console timeout. Reads time out routinely
// while the guest boots silently; the boot timeout bounds the overall
// attempt.
const readTimeout = 10 * time.Second

// Channel is the console the automaton drives. Implemented by
// [console.Client] and by test fakes.
type Channel interface {
	ReadLine(timeout time.Duration) (string, error)
	WriteLine(text string) error
}

// Session is one boot attempt against a live console.
//
// A session is created per attempt and discarded afterwards; a crashed
// attempt is never resumed. The bootstrap sequence is replayed in full on
// the next attempt, which [Profile.Bootstrap] commands must tolerate.
type Session struct {
	profile  *Profile
	identity Identity
	channel  Channel

	state      State
	started    time.Time
	lines      int
	lastPrompt string

	commands []string
	nextCmd  int
}

// NewSession creates a boot session for one attempt.
func NewSession(ch Channel, profile *Profile, id Identity) *Session {
	return &Session{
		profile:  profile,
		identity: id,
		channel:  ch,
		state:    StatePowerOn,
		commands: profile.BootstrapCommands(id),
	}
}

// State returns the session's current automaton state.
func (s *Session) State() State {
	return s.state
}

// LastPrompt returns the last recognized prompt line.
func (s *Session) LastPrompt() string {
	return s.lastPrompt
}

// Run drives the console until the guest is ready.
//
// It reads one line at a time, matches it in declared order against the
// profile's matchers for the current state and executes the first match's
// action. Unmatched lines are discarded up to the profile's line budget per
// state. It returns the elapsed boot time on success.
func (s *Session) Run(ctx context.Context) (time.Duration, error) {
	s.started = time.Now()

	slog.Info("Boot session started",
		slog.String("vendor", s.profile.Name),
		slog.Duration("timeout", s.profile.BootTimeout),
	)

	for s.state != StateReady {
		if err := ctx.Err(); err != nil {
			return 0, &SessionError{
				State:   s.state,
				Elapsed: time.Since(s.started),
				Err:     err,
			}
		}

		if time.Since(s.started) > s.profile.BootTimeout {
			return 0, &SessionError{
				State:   s.state,
				Elapsed: time.Since(s.started),
				Err:     ErrBootTimeout,
			}
		}

		line, err := s.channel.ReadLine(readTimeout)
		if errors.Is(err, console.ErrReadTimeout) {
			// A silent console while waiting for the login prompt usually
			// means the prompt was printed before we connected. Poke it.
			if s.state == StateWaitingLogin {
				_ = s.channel.WriteLine("")
			}

			continue
		}

		if err != nil {
			return 0, &SessionError{
				State:   s.state,
				Elapsed: time.Since(s.started),
				Err:     err,
			}
		}

		err = s.handleLine(line)
		if err != nil {
			return 0, &SessionError{
				State:   s.state,
				Elapsed: time.Since(s.started),
				Err:     err,
			}
		}
	}

	elapsed := time.Since(s.started)

	slog.Info("Boot session completed",
		slog.String("vendor", s.profile.Name),
		slog.Duration("elapsed", elapsed),
	)

	return elapsed, nil
}

func (s *Session) handleLine(line string) error {
	for _, matcher := range s.profile.Matchers {
		if matcher.State != s.state || !matcher.Pattern.MatchString(line) {
			continue
		}

		return s.apply(matcher, line)
	}

	s.lines++
	if s.lines > s.profile.LineBudget {
		return ErrPromptTimeout
	}

	return nil
}

func (s *Session) apply(matcher Matcher, line string) error {
	s.lastPrompt = line
	s.lines = 0

	slog.Debug("Prompt matched",
		slog.String("state", s.state.String()),
		slog.String("line", line),
	)

	switch matcher.Action {
	case ActionNone:
	case ActionSendCR:
		err := s.channel.WriteLine("")
		if err != nil {
			return err
		}
	case ActionSendUsername:
		err := s.channel.WriteLine(s.identity.Username)
		if err != nil {
			return err
		}
	case ActionSendPassword:
		err := s.channel.WriteLine(s.identity.Password)
		if err != nil {
			return err
		}
	case ActionNextCommand:
		if s.nextCmd >= len(s.commands) {
			s.transition(StateReady)

			return nil
		}

		err := s.channel.WriteLine(s.commands[s.nextCmd])
		if err != nil {
			return err
		}

		s.nextCmd++
	case ActionFail:
		s.transition(StateFailed)

		return ErrPromptRejected
	}

	s.transition(matcher.Next)

	return nil
}

func (s *Session) transition(next State) {
	if next == s.state {
		return
	}

	slog.Debug("Boot state transition",
		slog.String("from", s.state.String()),
		slog.String("to", next.String()),
	)

	s.state = next
	s.lines = 0
}
