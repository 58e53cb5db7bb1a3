// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vrlaunch

import (
	"context"
	"time"
)

// VMState is the lifecycle state of the emulator process.
type VMState int

const (
	VMNotStarted VMState = iota
	VMStarting
	VMRunning
	VMCrashed
	VMStopped
)

var vmStateNames = map[VMState]string{
	VMNotStarted: "not-started",
	VMStarting:   "starting",
	VMRunning:    "running",
	VMCrashed:    "crashed",
	VMStopped:    "stopped",
}

// String implements [fmt.Stringer].
func (s VMState) String() string {
	name, exists := vmStateNames[s]
	if !exists {
		return "unknown"
	}

	return name
}

// Launcher is the emulator process a [Supervisor] owns. Implemented by
// [qemu.Command] and by test fakes.
type Launcher interface {
	Start(ctx context.Context) error
	Wait() error
	Terminate(grace time.Duration) error
	ConsoleAddr(idx int) string
	MonitorAddr() string
	Pid() int
}

// VM is the read-only process handle passed to the boot session callback.
//
// Only the [Supervisor] mutates the underlying process; readers observe
// exit through [VM.Done].
type VM struct {
	cmd Launcher

	done    chan struct{}
	waitErr error
}

func newVM(cmd Launcher) *VM {
	vm := &VM{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		vm.waitErr = cmd.Wait()
		close(vm.done)
	}()

	return vm
}

// ConsoleAddr returns the address of the serial console with the given
// index.
func (vm *VM) ConsoleAddr(idx int) string {
	return vm.cmd.ConsoleAddr(idx)
}

// Pid returns the emulator's process ID.
func (vm *VM) Pid() int {
	return vm.cmd.Pid()
}

// Done returns a channel that is closed once the process exited.
func (vm *VM) Done() <-chan struct{} {
	return vm.done
}

// Alive returns whether the process has not exited yet.
func (vm *VM) Alive() bool {
	select {
	case <-vm.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the process's exit error. Only valid after [VM.Done] is
// closed.
func (vm *VM) ExitErr() error {
	return vm.waitErr
}
