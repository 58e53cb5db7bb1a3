// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Command is a single QEMU command that can be run once.
//
// The command owns the spawned process. Callers observe the process through
// [Command.Wait] and terminate it through [Command.Terminate]; only the
// owner is supposed to call either.
type Command struct {
	spec CommandSpec
	args []string

	cmd   *exec.Cmd
	pumps *errgroup.Group
	done  chan struct{}
}

// NewCommand validates the given spec and compiles it into a runnable
// [Command].
func NewCommand(spec CommandSpec) (*Command, error) {
	err := spec.Validate()
	if err != nil {
		return nil, err
	}

	args, err := BuildArgumentStrings(spec.arguments())
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		spec: spec,
		args: args,
		done: make(chan struct{}),
	}

	return cmd, nil
}

// String implements [fmt.Stringer].
func (c *Command) String() string {
	return c.spec.Executable + " " + strings.Join(c.args, " ")
}

// Args returns the complete argument list the process is spawned with.
func (c *Command) Args() []string {
	return c.args
}

// MonitorAddr returns the local address of the QEMU monitor.
func (c *Command) MonitorAddr() string {
	return c.spec.MonitorAddr()
}

// ConsoleAddr returns the local address of the serial console with the
// given index.
func (c *Command) ConsoleAddr(idx int) string {
	return c.spec.ConsoleAddr(idx)
}

// Pid returns the process ID of the started process.
func (c *Command) Pid() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}

	return c.cmd.Process.Pid
}

// Start spawns the QEMU process.
//
// Its stdout and stderr streams are drained into the debug log for the
// lifetime of the process. Vendor emulation output is noisy and only
// relevant for post-mortem analysis.
func (c *Command) Start(ctx context.Context) error {
	if c.cmd != nil {
		return ErrCommandStarted
	}

	cmd := exec.CommandContext(ctx, c.spec.Executable, c.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	c.cmd = cmd

	c.pumps = &errgroup.Group{}
	c.pumps.Go(logStream(stdout, "stdout"))
	c.pumps.Go(logStream(stderr, "stderr"))

	slog.Debug("QEMU process started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("command", c.String()),
	)

	return nil
}

// Wait blocks until the process exited and all output is drained.
//
// It returns a [CommandError] with the process's exit code if the process
// did not exit cleanly.
func (c *Command) Wait() error {
	if c.cmd == nil {
		return ErrCommandNotStarted
	}

	// The pumps terminate on EOF once the process exited. They must be
	// drained before [exec.Cmd.Wait] closes the pipes.
	pumpsErr := c.pumps.Wait()

	err := c.cmd.Wait()
	close(c.done)

	if err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return errors.Join(
			&CommandError{Err: err, ExitCode: exitCode},
			pumpsErr,
		)
	}

	return pumpsErr
}

// Terminate requests graceful termination and kills the process if it did
// not exit within the grace period.
//
// It requires that some other goroutine is blocked in [Command.Wait], which
// reaps the process.
func (c *Command) Terminate(grace time.Duration) error {
	if c.cmd == nil || c.cmd.Process == nil {
		return ErrCommandNotStarted
	}

	err := c.cmd.Process.Signal(unix.SIGTERM)
	if err != nil {
		// Process is already gone.
		return nil //nolint:nilerr
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(grace):
	}

	slog.Warn("QEMU process did not terminate gracefully, killing it",
		slog.Int("pid", c.cmd.Process.Pid),
	)

	err = c.cmd.Process.Kill()
	if err != nil {
		return fmt.Errorf("kill: %w", err)
	}

	return nil
}

// logStream returns a function that drains the given reader line by line
// into the debug log.
func logStream(src io.Reader, name string) func() error {
	return func() error {
		scanner := bufio.NewScanner(src)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			slog.Debug("QEMU output",
				slog.String("stream", name),
				slog.String("line", line),
			)
		}

		// The pipe error on process exit is expected.
		if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("drain %s: %w", name, err)
		}

		return nil
	}
}
