// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"fmt"
	"strconv"
)

const (
	// DefaultMonitorPort is the local TCP port the QEMU monitor listens on.
	DefaultMonitorPort = 4000

	// DefaultConsolePort is the local TCP port of the first serial console.
	// Additional consoles use the following ports.
	DefaultConsolePort = 5000
)

// HostForward describes a user-mode network port forward from the host into
// the guest's management address.
type HostForward struct {
	// Proto is either "tcp" or "udp".
	Proto string

	// HostPort is the port QEMU listens on in the container.
	HostPort uint16

	// GuestPort is the port on the guest's management IP.
	GuestPort uint16
}

// CommandSpec defines the parameters for a virtual router [Command].
//
// The network layout follows the vrnetlab convention: one user-mode
// management NIC with TFTP and port forwards, and one tap-backed data NIC
// per container data interface, plugged into pci-bridge buses in ordinal
// order.
type CommandSpec struct {
	// Path to the qemu-system binary.
	Executable string

	// Path to the (overlay) disk image to boot.
	DiskImage string

	// QEMU machine type, including machine options, e.g. "pc,smm=off".
	Machine string

	// CPU type to use.
	CPU string

	// Number of CPU cores for the guest.
	VCPUs uint64

	// Memory for the machine in MB.
	Memory uint64

	// Disable KVM support.
	NoKVM bool

	// SystemUUID is set as SMBIOS system UUID if not empty.
	SystemUUID string

	// SMBIOSProduct is the SMBIOS product string some vendor images require
	// for license checks.
	SMBIOSProduct string

	// Driver for the management NIC, e.g. "e1000" or "virtio-net-pci".
	MgmtNICDriver string

	// NICs are the emulated data-plane NICs in ordinal order.
	NICs []NIC

	// MgmtSubnet is the user-mode network of the management NIC in CIDR
	// notation.
	MgmtSubnet string

	// TFTPDir is exposed to the guest via the management network.
	TFTPDir string

	// MonitorPort for the QEMU monitor. Defaults to [DefaultMonitorPort].
	MonitorPort uint16

	// ConsolePort of the first serial console. Defaults to
	// [DefaultConsolePort].
	ConsolePort uint16

	// NumConsoles is the number of serial consoles to expose. At least one
	// is always created.
	NumConsoles int

	// HostForwards are port forwards on the management network.
	HostForwards []HostForward

	// BootOrder is passed as -boot if not empty, e.g. "once=d".
	BootOrder string

	// ExtraArgs are appended to the compiled argument list. They must not
	// collide with the arguments the spec compiles itself.
	ExtraArgs []Argument
}

// Validate checks the spec for missing or inconsistent parameters.
func (s *CommandSpec) Validate() error {
	if s.Executable == "" {
		return &ArgumentError{"no qemu executable given"}
	}

	if s.DiskImage == "" {
		return &ArgumentError{"no disk image given"}
	}

	if s.MgmtNICDriver == "" {
		return &ArgumentError{"no management NIC driver given"}
	}

	seen := make(map[int]bool, len(s.NICs))
	for _, nic := range s.NICs {
		if nic.Ordinal < 1 {
			return &ArgumentError{
				"NIC ordinal must be positive: " + strconv.Itoa(nic.Ordinal),
			}
		}

		if seen[nic.Ordinal] {
			return &ArgumentError{
				"duplicate NIC ordinal: " + strconv.Itoa(nic.Ordinal),
			}
		}

		seen[nic.Ordinal] = true
	}

	return nil
}

// MonitorAddr returns the local address of the QEMU monitor.
func (s *CommandSpec) MonitorAddr() string {
	return "127.0.0.1:" + strconv.Itoa(int(s.monitorPort()))
}

// ConsoleAddr returns the local address of the serial console with the given
// index.
func (s *CommandSpec) ConsoleAddr(idx int) string {
	return "127.0.0.1:" + strconv.Itoa(int(s.consolePort())+idx)
}

func (s *CommandSpec) monitorPort() uint16 {
	if s.MonitorPort == 0 {
		return DefaultMonitorPort
	}

	return s.MonitorPort
}

func (s *CommandSpec) consolePort() uint16 {
	if s.ConsolePort == 0 {
		return DefaultConsolePort
	}

	return s.ConsolePort
}

func (s *CommandSpec) numConsoles() int {
	if s.NumConsoles < 1 {
		return 1
	}

	return s.NumConsoles
}

// arguments compiles the argument list for the QEMU command.
func (s *CommandSpec) arguments() []Argument {
	args := []Argument{
		UniqueArg("display", "none"),
		UniqueArg("machine", s.Machine),
		UniqueArg("m", strconv.FormatUint(s.Memory, 10)),
		UniqueArg("cpu", s.CPU),
		UniqueArg(
			"smp",
			fmt.Sprintf("cores=%d,threads=1,sockets=1", s.VCPUs),
		),
		UniqueArg(
			"monitor",
			fmt.Sprintf("tcp:%s,server,nowait", s.MonitorAddr()),
		),
		RepeatableArg("drive", "if=ide,file="+s.DiskImage),
	}

	if !s.NoKVM {
		args = append(args, UniqueArg("enable-kvm"))
	}

	if s.SystemUUID != "" {
		smbios := "type=1"
		if s.SMBIOSProduct != "" {
			smbios += ",manufacturer=cisco,product=" + s.SMBIOSProduct
		}

		smbios += ",uuid=" + s.SystemUUID
		args = append(args, RepeatableArg("smbios", smbios))
	}

	if s.BootOrder != "" {
		args = append(args, UniqueArg("boot", s.BootOrder))
	}

	// One pci-bridge per group of data NICs. The management NIC lives on the
	// root bus.
	for pci := 1; pci <= numPCIBuses(len(s.NICs)); pci++ {
		args = append(args, RepeatableArg(
			"device",
			fmt.Sprintf("pci-bridge,chassis_nr=%d,id=pci.%d", pci, pci),
		))
	}

	args = append(args, s.mgmtNICArguments()...)

	for _, nic := range s.NICs {
		args = append(args, s.nicArguments(nic)...)
	}

	for idx := 0; idx < s.numConsoles(); idx++ {
		args = append(args, RepeatableArg(
			"serial",
			fmt.Sprintf("telnet:%s,server,nowait", s.ConsoleAddr(idx)),
		))
	}

	return append(args, s.ExtraArgs...)
}

// mgmtNICArguments returns the arguments for the user-mode management NIC.
//
// The guest's management interface gets a fixed address from QEMU's built-in
// DHCP server, so remote management works without any routing setup in the
// container.
func (s *CommandSpec) mgmtNICArguments() []Argument {
	netdev := "user,id=mgmt,net=" + s.MgmtSubnet

	if s.TFTPDir != "" {
		netdev += ",tftp=" + s.TFTPDir
	}

	for _, fwd := range s.HostForwards {
		netdev += fmt.Sprintf(
			",hostfwd=%s::%d-:%d",
			fwd.Proto,
			fwd.HostPort,
			fwd.GuestPort,
		)
	}

	return []Argument{
		RepeatableArg(
			"device",
			fmt.Sprintf("%s,netdev=mgmt,mac=%s", s.MgmtNICDriver, RandomMAC(0)),
		),
		RepeatableArg("netdev", netdev),
	}
}

// nicArguments returns the device and netdev arguments for a single data
// NIC.
//
// Real NICs are backed by a tap device that the bridge manager later wires
// to the corresponding container interface. Placeholder NICs are backed by
// an unconnected listening socket, so the following NICs still end up in
// their expected PCI slots.
func (s *CommandSpec) nicArguments(nic NIC) []Argument {
	device := fmt.Sprintf(
		"%s,netdev=%s,mac=%s,bus=%s,addr=%s",
		nic.Driver,
		nic.ID(),
		nic.MAC,
		nic.Bus(),
		nic.Addr(),
	)

	var netdev string

	if nic.Placeholder {
		netdev = fmt.Sprintf(
			"socket,id=%s,listen=:%d",
			nic.ID(),
			10000+nic.Ordinal,
		)
	} else {
		// script=no: the bridge manager configures the tap device itself
		// once QEMU created it.
		netdev = fmt.Sprintf(
			"tap,id=%s,ifname=%s,script=no,downscript=no",
			nic.ID(),
			nic.TapName(),
		)
	}

	return []Argument{
		RepeatableArg("device", device),
		RepeatableArg("netdev", netdev),
	}
}
