// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vrlaunch

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// DefaultMaxRestarts is the number of relaunches after a crash before
	// the supervisor gives up.
	DefaultMaxRestarts = 3

	// DefaultBackoff is the delay before the first relaunch. It doubles
	// with every further relaunch.
	DefaultBackoff = 2 * time.Second

	// DefaultTerminateGrace is how long a terminated process may take to
	// exit before it is killed.
	DefaultTerminateGrace = 10 * time.Second

	endpointWaitTimeout  = 60 * time.Second
	endpointPollInterval = 500 * time.Millisecond
)

// SessionFunc runs against a live emulator process. It is called once the
// console endpoint accepts connections and must return once the process
// should be shut down, or with an error if the session failed and the
// process should be relaunched.
type SessionFunc func(ctx context.Context, vm *VM) error

// Supervisor owns the emulator process. It launches it, watches it for
// unexpected exits and relaunches it a bounded number of times with
// exponentially growing delays.
type Supervisor struct {
	newCommand  func() (Launcher, error)
	maxRestarts int
	backoff     time.Duration
	grace       time.Duration

	mu    sync.Mutex
	state VMState
}

// NewSupervisor creates a new [Supervisor] that launches processes with the
// given constructor. A fresh process is constructed for every attempt.
func NewSupervisor(newCommand func() (Launcher, error)) *Supervisor {
	return &Supervisor{
		newCommand:  newCommand,
		maxRestarts: DefaultMaxRestarts,
		backoff:     DefaultBackoff,
		grace:       DefaultTerminateGrace,
		state:       VMNotStarted,
	}
}

// WithMaxRestarts sets the number of relaunches after which the supervisor
// reports [FatalError]. Negative values are ignored.
func (s *Supervisor) WithMaxRestarts(n int) *Supervisor {
	if n >= 0 {
		s.maxRestarts = n
	}

	return s
}

// WithBackoff sets the delay before the first relaunch.
func (s *Supervisor) WithBackoff(d time.Duration) *Supervisor {
	if d > 0 {
		s.backoff = d
	}

	return s
}

// State returns the current process lifecycle state.
func (s *Supervisor) State() VMState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Supervisor) setState(state VMState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	slog.Debug("VM state changed", "state", state)
}

// Run launches the process and runs session against it. On failure the
// process is relaunched until the restart budget is exhausted, which is
// reported as [FatalError] wrapping the last attempt's error.
//
// Run returns nil once session returned nil and the process was shut down,
// or once ctx got canceled while waiting for a relaunch.
func (s *Supervisor) Run(ctx context.Context, session SessionFunc) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		err := s.attempt(ctx, session)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}

		lastErr = err

		if attempt >= s.maxRestarts {
			return &FatalError{
				Attempts: attempt + 1,
				Err:      lastErr,
			}
		}

		delay := s.backoff << attempt

		slog.Warn("VM failed, relaunching",
			"error", err,
			"attempt", attempt+1,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Supervisor) attempt(ctx context.Context, session SessionFunc) error {
	s.setState(VMStarting)

	cmd, err := s.newCommand()
	if err != nil {
		return &LaunchError{Err: err}
	}

	if err := cmd.Start(ctx); err != nil {
		return &LaunchError{Err: err}
	}

	vm := newVM(cmd)

	if err := s.waitEndpoint(ctx, vm); err != nil {
		s.shutdown(vm)
		s.setState(VMCrashed)

		return err
	}

	s.setState(VMRunning)

	slog.Debug("VM process running",
		"pid", vm.Pid(),
		"console", vm.ConsoleAddr(0),
	)

	if err := session(ctx, vm); err != nil {
		s.shutdown(vm)
		s.setState(VMCrashed)

		return err
	}

	s.shutdown(vm)
	s.setState(VMStopped)

	return nil
}

// waitEndpoint polls the console endpoint until it accepts connections. If
// the process exits first or the endpoint does not come up in time, the
// launch failed.
func (s *Supervisor) waitEndpoint(ctx context.Context, vm *VM) error {
	addr := vm.ConsoleAddr(0)
	deadline := time.Now().Add(endpointWaitTimeout)

	for {
		conn, err := net.DialTimeout("tcp", addr, endpointPollInterval)
		if err == nil {
			_ = conn.Close()

			return nil
		}

		if time.Now().After(deadline) {
			return &LaunchError{Err: ErrEndpointTimeout}
		}

		select {
		case <-vm.Done():
			return &LaunchError{Err: vm.ExitErr()}
		case <-ctx.Done():
			return &LaunchError{Err: ctx.Err()}
		case <-time.After(endpointPollInterval):
		}
	}
}

// shutdown terminates the process if it is still alive and reaps it.
func (s *Supervisor) shutdown(vm *VM) {
	if vm.Alive() {
		if err := vm.cmd.Terminate(s.grace); err != nil {
			slog.Debug("VM terminate failed", "error", err)
		}
	}

	<-vm.Done()
}
