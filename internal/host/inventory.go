// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package host

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/vishvananda/netlink"
)

// Role classifies a container interface.
type Role int

const (
	// RoleManagement is the interface the container's own management traffic
	// uses. It is never bridged into the guest.
	RoleManagement Role = iota

	// RoleData is a lab data-plane interface that is bridged into the guest.
	RoleData
)

// String implements [fmt.Stringer].
func (r Role) String() string {
	if r == RoleManagement {
		return "management"
	}

	return "data"
}

// Interface describes one container network interface.
//
// The ordinal is parsed from the interface name (eth1 -> 1) so it is stable
// across restarts and identifies the guest NIC the interface is bridged to.
type Interface struct {
	Name    string
	Ordinal int
	Role    Role
	MTU     int
}

// dataInterfaceRE matches the data interfaces the lab orchestrator wires
// into the container. eth0 is the container's management interface.
var dataInterfaceRE = regexp.MustCompile(`^eth([1-9][0-9]*)$`)

// LinkLister enumerates network links. It is implemented by
// [NetlinkLister] and by test fakes.
type LinkLister interface {
	LinkList() ([]netlink.Link, error)
}

// NetlinkLister lists links via the kernel's netlink interface.
type NetlinkLister struct{}

// LinkList implements [LinkLister].
func (NetlinkLister) LinkList() ([]netlink.Link, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("netlink: %w", err)
	}

	return links, nil
}

// Discover enumerates the container's data interfaces.
//
// Loopback, the management interface and anything else that does not look
// like an orchestrator-provisioned data interface is excluded. The result
// is sorted by ordinal, so discovery order is deterministic across
// restarts.
func Discover(lister LinkLister) ([]Interface, error) {
	links, err := lister.LinkList()
	if err != nil {
		return nil, &InventoryError{Err: err}
	}

	var interfaces []Interface

	for _, link := range links {
		attrs := link.Attrs()

		match := dataInterfaceRE.FindStringSubmatch(attrs.Name)
		if match == nil {
			continue
		}

		ordinal, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, &InventoryError{Err: err}
		}

		interfaces = append(interfaces, Interface{
			Name:    attrs.Name,
			Ordinal: ordinal,
			Role:    RoleData,
			MTU:     attrs.MTU,
		})
	}

	slices.SortFunc(interfaces, func(a, b Interface) int {
		return a.Ordinal - b.Ordinal
	})

	return interfaces, nil
}

// provisionPollInterval is the delay between discovery attempts while
// waiting for the orchestrator to finish wiring interfaces.
const provisionPollInterval = 2 * time.Second

// WaitProvisioned polls the inventory until at least expected data
// interfaces are present or the context is done.
//
// The lab orchestrator creates the container's data interfaces
// asynchronously after container start, so right after boot the inventory
// may still be incomplete.
func WaitProvisioned(
	ctx context.Context,
	lister LinkLister,
	expected int,
) ([]Interface, error) {
	for {
		interfaces, err := Discover(lister)
		if err != nil {
			return nil, err
		}

		if len(interfaces) >= expected {
			return interfaces, nil
		}

		slog.Debug("Waiting for provisioned interfaces",
			slog.Int("found", len(interfaces)),
			slog.Int("expected", expected),
		)

		select {
		case <-ctx.Done():
			return nil, &InventoryError{
				Err: fmt.Errorf(
					"%w: found %d of %d expected interfaces",
					ctx.Err(),
					len(interfaces),
					expected,
				),
			}
		case <-time.After(provisionPollInterval):
		}
	}
}

// ValidateCount checks the discovered inventory against the vendor
// profile's interface requirements.
func ValidateCount(interfaces []Interface, minimum, maximum int) error {
	if len(interfaces) < minimum {
		return &InventoryError{
			Err: fmt.Errorf(
				"%w: found %d, profile requires at least %d",
				ErrTooFewInterfaces,
				len(interfaces),
				minimum,
			),
		}
	}

	if len(interfaces) > maximum {
		return &InventoryError{
			Err: fmt.Errorf(
				"%w: found %d, profile supports at most %d",
				ErrTooManyInterfaces,
				len(interfaces),
				maximum,
			),
		}
	}

	return nil
}

// HighestOrdinal returns the highest interface ordinal in the inventory, or
// zero for an empty inventory.
func HighestOrdinal(interfaces []Interface) int {
	highest := 0
	for _, iface := range interfaces {
		if iface.Ordinal > highest {
			highest = iface.Ordinal
		}
	}

	return highest
}
