// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// PortForward forwards a container port to a guest service reachable via
// the VM's user-mode management network.
//
// Forwarding is delegated to a socat child process, one per forward, owned
// by this struct for its lifetime.
type PortForward struct {
	// Proto is either "tcp" or "udp".
	Proto string

	// ListenPort is the container port to listen on.
	ListenPort uint16

	// TargetPort is the host port QEMU forwards into the guest.
	TargetPort uint16

	cmd   *exec.Cmd
	pumps *errgroup.Group
}

// CommandLine returns the socat command line for the forward.
func (p *PortForward) CommandLine() []string {
	proto := strings.ToUpper(p.Proto)

	return []string{
		"socat",
		fmt.Sprintf("%s-LISTEN:%d,fork", proto, p.ListenPort),
		fmt.Sprintf("%s:127.0.0.1:%d", proto, p.TargetPort),
	}
}

// Start spawns the forwarding process. Its output is drained into the debug
// log.
func (p *PortForward) Start(ctx context.Context) error {
	if p.cmd != nil {
		return ErrForwardStarted
	}

	cmdLine := p.CommandLine()
	cmd := exec.CommandContext(ctx, cmdLine[0], cmdLine[1:]...)

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
		return fmt.Errorf("start socat: %w", err)
	}

	p.cmd = cmd

	p.pumps = &errgroup.Group{}
	p.pumps.Go(p.logStream(stdout, "stdout"))
	p.pumps.Go(p.logStream(stderr, "stderr"))

	slog.Debug("Port forward started",
		slog.String("proto", p.Proto),
		slog.Int("listen", int(p.ListenPort)),
		slog.Int("target", int(p.TargetPort)),
	)

	return nil
}

// Stop kills the forwarding process and waits for it to be reaped.
func (p *PortForward) Stop() {
	if p.cmd == nil {
		return
	}

	_ = p.cmd.Process.Kill()
	_ = p.pumps.Wait()
	_ = p.cmd.Wait()
	p.cmd = nil
}

func (p *PortForward) logStream(src io.Reader, name string) func() error {
	return func() error {
		scanner := bufio.NewScanner(src)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			slog.Debug("socat output",
				slog.Int("listen", int(p.ListenPort)),
				slog.String("stream", name),
				slog.String("line", line),
			)
		}

		return nil
	}
}
