// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// tapMTU is deliberately large so the tap never truncates frames the guest
// or the lab fabric send. Vendor images negotiate their own interface MTUs.
const tapMTU = 65000

// tapPollInterval is the delay between checks for a tap device registered
// by QEMU.
const tapPollInterval = 250 * time.Millisecond

// LinkState describes the lifecycle of a [Link].
type LinkState int

const (
	LinkUnbridged LinkState = iota
	LinkBridging
	LinkBridged
	LinkTornDown
)

// Link is the packet-forwarding association between one container data
// interface and the tap device backing the corresponding guest NIC.
//
// The forwarding is implemented with tc ingress qdiscs and u32 mirred
// redirect filters in both directions, so frames cross between the two
// devices unmodified, in order and without duplication.
type Link struct {
	Interface Interface
	TapName   string

	state LinkState
}

// State returns the link's lifecycle state.
func (l *Link) State() LinkState {
	return l.state
}

// NetOps is the subset of netlink operations the bridge manager needs.
// Split out so tests can run without CAP_NET_ADMIN.
type NetOps interface {
	LinkByName(name string) (netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	LinkSetMTU(link netlink.Link, mtu int) error
	QdiscAdd(qdisc netlink.Qdisc) error
	QdiscDel(qdisc netlink.Qdisc) error
	FilterAdd(filter netlink.Filter) error
}

// NetlinkOps implements [NetOps] with real netlink calls.
type NetlinkOps struct{}

func (NetlinkOps) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name) //nolint:wrapcheck
}

func (NetlinkOps) LinkSetUp(link netlink.Link) error {
	return netlink.LinkSetUp(link) //nolint:wrapcheck
}

func (NetlinkOps) LinkSetMTU(link netlink.Link, mtu int) error {
	return netlink.LinkSetMTU(link, mtu) //nolint:wrapcheck
}

func (NetlinkOps) QdiscAdd(qdisc netlink.Qdisc) error {
	return netlink.QdiscAdd(qdisc) //nolint:wrapcheck
}

func (NetlinkOps) QdiscDel(qdisc netlink.Qdisc) error {
	return netlink.QdiscDel(qdisc) //nolint:wrapcheck
}

func (NetlinkOps) FilterAdd(filter netlink.Filter) error {
	return netlink.FilterAdd(filter) //nolint:wrapcheck
}

// BridgeManager owns the bridge links between container data interfaces and
// the guest's tap devices.
//
// At most one link exists per interface ordinal. Links are established only
// after QEMU registered the tap device, and torn down in ordinal order on
// shutdown.
type BridgeManager struct {
	ops NetOps

	mu    sync.Mutex
	links map[int]*Link
}

// NewBridgeManager creates an empty [BridgeManager] using the given netlink
// operations.
func NewBridgeManager(ops NetOps) *BridgeManager {
	return &BridgeManager{
		ops:   ops,
		links: make(map[int]*Link),
	}
}

// Attach establishes bidirectional forwarding between the given container
// interface and the tap device with the given name.
//
// It blocks until the tap device exists, bounded by the context. QEMU
// creates the tap when it registers the corresponding guest NIC, so waiting
// here guarantees the link is never set up against a half-initialized
// device.
func (m *BridgeManager) Attach(
	ctx context.Context,
	iface Interface,
	tapName string,
) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[iface.Ordinal]; exists {
		return nil, &BridgeError{
			Interface: iface.Name,
			Err:       ErrAlreadyBridged,
		}
	}

	link := &Link{
		Interface: iface,
		TapName:   tapName,
		state:     LinkBridging,
	}

	err := m.bridge(ctx, link)
	if err != nil {
		m.rollback(link)

		return nil, &BridgeError{Interface: iface.Name, Err: err}
	}

	link.state = LinkBridged
	m.links[iface.Ordinal] = link

	slog.Debug("Bridged interface",
		slog.String("interface", iface.Name),
		slog.String("tap", tapName),
	)

	return link, nil
}

// Detach tears down the forwarding of the given link.
//
// It is idempotent: detaching a torn-down or never-attached link is a
// no-op.
func (m *BridgeManager) Detach(link *Link) error {
	if link == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if link.state != LinkBridged {
		return nil
	}

	err := m.unbridge(link)
	if err != nil {
		return &BridgeError{Interface: link.Interface.Name, Err: err}
	}

	link.state = LinkTornDown
	delete(m.links, link.Interface.Ordinal)

	return nil
}

// DetachAll tears down all live links in ordinal order.
func (m *BridgeManager) DetachAll() error {
	var errs []error

	for _, link := range m.Links() {
		errs = append(errs, m.Detach(link))
	}

	return errors.Join(errs...)
}

// Links returns the live links in ordinal order.
func (m *BridgeManager) Links() []*Link {
	m.mu.Lock()
	defer m.mu.Unlock()

	links := make([]*Link, 0, len(m.links))

	for ordinal := 1; len(links) < len(m.links); ordinal++ {
		if link, exists := m.links[ordinal]; exists {
			links = append(links, link)
		}
	}

	return links
}

func (m *BridgeManager) bridge(ctx context.Context, link *Link) error {
	tap, err := m.waitForTap(ctx, link.TapName)
	if err != nil {
		return err
	}

	eth, err := m.ops.LinkByName(link.Interface.Name)
	if err != nil {
		return fmt.Errorf("container interface %s: %w", link.Interface.Name, err)
	}

	err = m.ops.LinkSetMTU(tap, tapMTU)
	if err != nil {
		return fmt.Errorf("set tap MTU: %w", err)
	}

	err = m.ops.LinkSetUp(tap)
	if err != nil {
		return fmt.Errorf("set tap up: %w", err)
	}

	err = m.redirect(eth, tap)
	if err != nil {
		return fmt.Errorf("redirect %s -> %s: %w",
			link.Interface.Name, link.TapName, err)
	}

	err = m.redirect(tap, eth)
	if err != nil {
		return fmt.Errorf("redirect %s -> %s: %w",
			link.TapName, link.Interface.Name, err)
	}

	return nil
}

func (m *BridgeManager) unbridge(link *Link) error {
	var errs []error

	for _, name := range []string{link.Interface.Name, link.TapName} {
		dev, err := m.ops.LinkByName(name)
		if err != nil {
			// Device already gone, nothing to clean up.
			continue
		}

		err = m.ops.QdiscDel(ingressQdisc(dev))
		if err != nil {
			errs = append(errs, fmt.Errorf("del ingress qdisc %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// rollback removes qdiscs a failed bridge attempt may have installed, so a
// later attempt on the same devices starts from a clean state. Errors are
// ignored, most report deletion of qdiscs that were never added.
func (m *BridgeManager) rollback(link *Link) {
	for _, name := range []string{link.Interface.Name, link.TapName} {
		dev, err := m.ops.LinkByName(name)
		if err != nil {
			continue
		}

		_ = m.ops.QdiscDel(ingressQdisc(dev))
	}
}

// waitForTap polls until QEMU created the tap device.
func (m *BridgeManager) waitForTap(
	ctx context.Context,
	name string,
) (netlink.Link, error) {
	for {
		tap, err := m.ops.LinkByName(name)
		if err == nil {
			return tap, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for tap %s: %w", name, ctx.Err())
		case <-time.After(tapPollInterval):
		}
	}
}

// redirect installs an ingress qdisc on src and a u32 match-all filter that
// mirred-redirects every frame to dst's egress.
func (m *BridgeManager) redirect(src, dst netlink.Link) error {
	err := m.ops.QdiscAdd(ingressQdisc(src))
	if err != nil {
		return fmt.Errorf("add ingress qdisc: %w", err)
	}

	filter := &netlink.U32{
		FilterAttrs: netlink.FilterAttrs{
			LinkIndex: src.Attrs().Index,
			Parent:    netlink.MakeHandle(0xffff, 0),
			Protocol:  unix.ETH_P_ALL,
		},
		Sel: &netlink.TcU32Sel{
			// Match every frame: u8 at offset 0 with empty mask.
			Keys: []netlink.TcU32Key{{
				Mask: 0x0,
				Val:  0x0,
				Off:  0,
			}},
			Flags: netlink.TC_U32_TERMINAL,
		},
		Actions: []netlink.Action{
			&netlink.MirredAction{
				ActionAttrs: netlink.ActionAttrs{
					Action: netlink.TC_ACT_STOLEN,
				},
				MirredAction: netlink.TCA_EGRESS_REDIR,
				Ifindex:      dst.Attrs().Index,
			},
		},
	}

	err = m.ops.FilterAdd(filter)
	if err != nil {
		return fmt.Errorf("add redirect filter: %w", err)
	}

	return nil
}

func ingressQdisc(dev netlink.Link) netlink.Qdisc {
	return &netlink.Ingress{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: dev.Attrs().Index,
			Parent:    netlink.HANDLE_INGRESS,
			Handle:    netlink.MakeHandle(0xffff, 0),
		},
	}
}
