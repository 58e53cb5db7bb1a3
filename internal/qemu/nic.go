// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"crypto/rand"
	"fmt"
)

// nicsPerPCIBus is the number of NIC slots a single pci-bridge provides.
// Vendor images have been seen to misbehave with more devices per bus.
const nicsPerPCIBus = 26

// NIC describes a single emulated data-plane NIC.
//
// The ordinal determines the PCI bus and slot the device is plugged into, so
// the guest enumerates data interfaces in the same order the container does.
type NIC struct {
	// Ordinal is the 1-based position of the NIC. It matches the container
	// interface ethN it is bridged to.
	Ordinal int

	// Driver is the emulated device driver, e.g. "e1000".
	Driver string

	// MAC is the guest-visible hardware address.
	MAC string

	// Placeholder marks a NIC that has no container interface behind it. It
	// is backed by an unconnected socket netdev and only fills the PCI slot.
	Placeholder bool
}

// ID returns the netdev identifier for the NIC.
func (n NIC) ID() string {
	return fmt.Sprintf("p%02d", n.Ordinal)
}

// TapName returns the name of the host tap device backing the NIC.
func (n NIC) TapName() string {
	return fmt.Sprintf("tap%d", n.Ordinal)
}

// Bus returns the identifier of the pci-bridge the NIC is plugged into.
func (n NIC) Bus() string {
	return fmt.Sprintf("pci.%d", (n.Ordinal-1)/nicsPerPCIBus+1)
}

// Addr returns the NIC's slot address on its PCI bus. Slot 1 is reserved
// for the bridge itself.
func (n NIC) Addr() string {
	return fmt.Sprintf("0x%x", (n.Ordinal-1)%nicsPerPCIBus+2)
}

// numPCIBuses returns the number of pci-bridge devices required for the
// given number of NICs.
func numPCIBuses(nics int) int {
	return (nics + nicsPerPCIBus - 1) / nicsPerPCIBus
}

// RandomMAC generates a random MAC address in the QEMU OUI space with the
// given last octet. Encoding the interface ordinal in the last octet makes
// guest interfaces identifiable in vendor CLI output.
func RandomMAC(lastOctet uint8) string {
	buf := make([]byte, 2)
	_, _ = rand.Read(buf)

	return fmt.Sprintf("52:54:00:%02x:%02x:%02x", buf[0], buf[1], lastOctet)
}
