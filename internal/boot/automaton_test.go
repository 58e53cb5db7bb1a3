// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vrlaunch/internal/boot"
	"github.com/aibor/vrlaunch/internal/console"
)

var testIdentity = boot.Identity{
	Hostname: "r1",
	Username: "clab",
	Password: "clab@123",
}

// scriptedConsole is a fake guest console. Reads pop from a pending queue,
// writes are recorded and may enqueue the guest's reaction.
type scriptedConsole struct {
	pending []string
	sent    []string
	onWrite func(text string) []string
}

func (c *scriptedConsole) ReadLine(_ time.Duration) (string, error) {
	if len(c.pending) == 0 {
		return "", console.ErrReadTimeout
	}

	line := c.pending[0]
	c.pending = c.pending[1:]

	return line, nil
}

func (c *scriptedConsole) WriteLine(text string) error {
	c.sent = append(c.sent, text)

	if c.onWrite != nil {
		c.pending = append(c.pending, c.onWrite(text)...)
	}

	return nil
}

// xrGuest mimics the login dialogue of an IOS XRv image.
type xrGuest struct {
	console *scriptedConsole
	stage   int
}

const xrPrompt = "RP/0/0/CPU0:ios#"

func newXRGuest() *scriptedConsole {
	guest := &xrGuest{}

	guest.console = &scriptedConsole{
		pending: []string{
			"Cisco IOS XR Software, Version 6.1.3",
			"Unauthorized use is prohibited.",
			"please contact export@cisco.com.",
		},
		onWrite: guest.react,
	}

	return guest.console
}

func (g *xrGuest) react(text string) []string {
	switch g.stage {
	case 0: // Awaiting the carriage return that wakes the console.
		g.stage = 1
		return []string{"Username: "}
	case 1:
		g.stage = 2
		return []string{"Password: "}
	case 2:
		if text != testIdentity.Password {
			g.stage = 1
			return []string{"% User Authentication failed", "Username: "}
		}

		g.stage = 3

		return []string{xrPrompt}
	default: // Logged in, echo a prompt after every command.
		return []string{xrPrompt}
	}
}

func TestSessionXRVBoot(t *testing.T) {
	profile, err := boot.ProfileFor("xrv")
	require.NoError(t, err)

	guest := newXRGuest()
	session := boot.NewSession(guest, profile, testIdentity)

	elapsed, err := session.Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, boot.StateReady, session.State())
	assert.Positive(t, elapsed)

	// CR, username, password, then the full bootstrap sequence.
	require.Greater(t, len(guest.sent), 3)
	assert.Equal(t, "", guest.sent[0])
	assert.Equal(t, "clab", guest.sent[1])
	assert.Equal(t, "clab@123", guest.sent[2])
	assert.Equal(t, profile.BootstrapCommands(testIdentity), guest.sent[3:])
	assert.Contains(t, guest.sent, "hostname r1")
}

func TestSessionXRVAuthFailure(t *testing.T) {
	profile, err := boot.ProfileFor("xrv")
	require.NoError(t, err)

	guest := newXRGuest()
	badIdentity := testIdentity
	badIdentity.Password = "wrong"

	session := boot.NewSession(guest, profile, badIdentity)

	_, err = session.Run(testContext(t))
	require.ErrorIs(t, err, boot.ErrPromptRejected)
	require.ErrorIs(t, err, &boot.SessionError{})

	assert.Equal(t, boot.StateFailed, session.State())
}

// veosGuest mimics the login dialogue of an Arista vEOS image.
type veosGuest struct {
	console *scriptedConsole
	stage   int
}

func newVEOSGuest() *scriptedConsole {
	guest := &veosGuest{}

	guest.console = &scriptedConsole{
		pending: []string{
			"Arista Networks EOS shell",
			"localhost login: ",
		},
		onWrite: guest.react,
	}

	return guest.console
}

func (g *veosGuest) react(string) []string {
	switch g.stage {
	case 0:
		g.stage = 1
		return []string{"Password: "}
	case 1:
		g.stage = 2
		return []string{"localhost>"}
	default:
		return []string{"localhost(config)#"}
	}
}

func TestSessionVEOSBoot(t *testing.T) {
	profile, err := boot.ProfileFor("veos")
	require.NoError(t, err)

	guest := newVEOSGuest()
	session := boot.NewSession(guest, profile, testIdentity)

	_, err = session.Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, boot.StateReady, session.State())
	assert.Equal(t, "clab", guest.sent[0])
	assert.Equal(t, "clab@123", guest.sent[1])
	assert.Equal(t, profile.BootstrapCommands(testIdentity), guest.sent[2:])
}

// xr9kGuest mimics the first-boot root-system account dialogue of an IOS
// XRv 9000 image.
type xr9kGuest struct {
	console *scriptedConsole
	stage   int
}

func newXR9KGuest() *scriptedConsole {
	guest := &xr9kGuest{}

	guest.console = &scriptedConsole{
		pending: []string{
			"please contact export@cisco.com.",
		},
		onWrite: guest.react,
	}

	return guest.console
}

func (g *xr9kGuest) react(string) []string {
	switch g.stage {
	case 0:
		g.stage = 1
		return []string{"Enter root-system username: "}
	case 1:
		g.stage = 2
		return []string{"Enter secret: "}
	case 2:
		g.stage = 3
		return []string{"Enter secret again: "}
	case 3:
		g.stage = 4
		return []string{"Username: "}
	case 4:
		g.stage = 5
		return []string{"Password: "}
	case 5:
		g.stage = 6
		return []string{xrPrompt}
	default:
		return []string{xrPrompt}
	}
}

func TestSessionXRV9KFirstBoot(t *testing.T) {
	profile, err := boot.ProfileFor("xrv9k")
	require.NoError(t, err)

	guest := newXR9KGuest()
	session := boot.NewSession(guest, profile, testIdentity)

	_, err = session.Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, boot.StateReady, session.State())

	// CR, root-system account creation, regular login, bootstrap.
	expected := append(
		[]string{"", "clab", "clab@123", "clab@123", "clab", "clab@123"},
		profile.BootstrapCommands(testIdentity)...,
	)
	assert.Equal(t, expected, guest.sent)
}

// noisyConsole produces an endless stream of unmatched output.
type noisyConsole struct{}

func (noisyConsole) ReadLine(_ time.Duration) (string, error) {
	return "and more boot log noise", nil
}

func (noisyConsole) WriteLine(string) error {
	return nil
}

func TestSessionLineBudgetExhausted(t *testing.T) {
	profile, err := boot.ProfileFor("xrv")
	require.NoError(t, err)

	limited := *profile
	limited.LineBudget = 10

	session := boot.NewSession(noisyConsole{}, &limited, testIdentity)

	_, err = session.Run(testContext(t))
	require.ErrorIs(t, err, boot.ErrPromptTimeout)
	require.ErrorIs(t, err, &boot.SessionError{})
}

// silentConsole times out on every read.
type silentConsole struct{}

func (silentConsole) ReadLine(_ time.Duration) (string, error) {
	return "", console.ErrReadTimeout
}

func (silentConsole) WriteLine(string) error {
	return nil
}

func TestSessionBootTimeout(t *testing.T) {
	profile, err := boot.ProfileFor("xrv")
	require.NoError(t, err)

	limited := *profile
	limited.BootTimeout = 50 * time.Millisecond

	session := boot.NewSession(silentConsole{}, &limited, testIdentity)

	start := time.Now()

	_, err = session.Run(testContext(t))
	require.ErrorIs(t, err, boot.ErrBootTimeout)

	var sessionErr *boot.SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, boot.StatePowerOn, sessionErr.State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSessionDisconnect(t *testing.T) {
	profile, err := boot.ProfileFor("xrv")
	require.NoError(t, err)

	session := boot.NewSession(disconnectedConsole{}, profile, testIdentity)

	_, err = session.Run(testContext(t))
	require.ErrorIs(t, err, console.ErrDisconnected)
	require.ErrorIs(t, err, &boot.SessionError{})
}

type disconnectedConsole struct{}

func (disconnectedConsole) ReadLine(_ time.Duration) (string, error) {
	return "", console.ErrDisconnected
}

func (disconnectedConsole) WriteLine(string) error {
	return console.ErrDisconnected
}
