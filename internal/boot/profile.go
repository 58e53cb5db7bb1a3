// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Action is what the automaton does when a prompt matcher fires.
type Action int

const (
	// ActionNone just performs the matcher's state transition.
	ActionNone Action = iota

	// ActionSendCR pokes the console with a bare carriage return.
	ActionSendCR

	// ActionSendUsername sends the configured username.
	ActionSendUsername

	// ActionSendPassword sends the configured password.
	ActionSendPassword

	// ActionNextCommand sends the next bootstrap command. Once the whole
	// sequence was sent and acknowledged, the automaton becomes ready.
	ActionNextCommand

	// ActionFail fails the boot session immediately, e.g. on an
	// authentication failure message.
	ActionFail
)

// Matcher pairs a prompt pattern with the automaton's reaction.
//
// Matchers are evaluated in declared order against each console line while
// the automaton is in the matcher's state; the first match wins.
type Matcher struct {
	State   State
	Pattern *regexp.Regexp
	Action  Action
	Next    State
}

// Identity is the guest identity applied during bootstrap. It expands the
// placeholders in a profile's bootstrap command sequence.
type Identity struct {
	Hostname string
	Username string
	Password string
}

// Profile describes one virtual-router family: how its console behaves
// during boot, which bootstrap commands make it remotely manageable, and
// how the VM must be sized.
//
// A profile is immutable data. One generic automaton consumes it, there is
// no per-vendor automaton code.
type Profile struct {
	Name string

	// VM sizing defaults. Overridable via configuration.
	VCPUs     uint64
	MemoryMiB uint64

	// Machine is the QEMU machine type including options.
	Machine string

	// CPU is the QEMU CPU type.
	CPU string

	// MgmtNICDriver is the emulated driver of the management NIC.
	MgmtNICDriver string

	// NICDriver is the emulated driver of the data NICs.
	NICDriver string

	// MinDataNICs and MaxDataNICs bound the supported interface inventory.
	MinDataNICs int
	MaxDataNICs int

	// NumConsoles is the number of serial consoles the image exposes.
	NumConsoles int

	// BootOrder is passed to QEMU if not empty.
	BootOrder string

	// SMBIOSProduct is required by some images for platform detection.
	SMBIOSProduct string

	// BootTimeout bounds one complete boot attempt.
	BootTimeout time.Duration

	// LineBudget is the number of unmatched console lines tolerated per
	// automaton state before the boot attempt fails.
	LineBudget int

	// Matchers is the ordered prompt matcher table.
	Matchers []Matcher

	// Bootstrap is the command sequence applied after login. Placeholders
	// {hostname}, {username} and {password} are expanded. The sequence is
	// replayed in full on every boot attempt, so it must only contain
	// commands that are safe to repeat.
	Bootstrap []string
}

// BootstrapCommands returns the bootstrap sequence with all identity
// placeholders expanded.
func (p *Profile) BootstrapCommands(id Identity) []string {
	replacer := strings.NewReplacer(
		"{hostname}", id.Hostname,
		"{username}", id.Username,
		"{password}", id.Password,
	)

	commands := make([]string, len(p.Bootstrap))
	for idx, command := range p.Bootstrap {
		commands[idx] = replacer.Replace(command)
	}

	return commands
}

// ProfileFor returns the vendor profile with the given name.
func ProfileFor(name string) (*Profile, error) {
	profile, exists := profiles[name]
	if !exists {
		return nil, fmt.Errorf(
			"%w: %s (known: %s)",
			ErrUnknownVendor,
			name,
			strings.Join(ProfileNames(), ", "),
		)
	}

	return profile, nil
}

// ProfileNames returns the names of all known vendor profiles, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
