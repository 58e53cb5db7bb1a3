// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot

import (
	"regexp"
	"time"
)

// defaultLineBudget bounds unmatched console lines per automaton state.
// Vendor boot logs are noisy but finite; a stuck image produces either
// silence or an endless repeating pattern, both are caught by this budget
// together with the boot timeout.
const defaultLineBudget = 3000

// xrCLIPrompt matches the IOS XR CLI prompt in both exec and config mode,
// e.g. "RP/0/RP0/CPU0:hostname#" or "RP/0/RP0/CPU0:hostname(config)#".
var xrCLIPrompt = regexp.MustCompile(`^RP/\d+/(RP)?\d+/CPU\d+:[^#]*#`)

// profiles is the registry of supported virtual-router families.
var profiles = map[string]*Profile{
	"xrv": {
		Name:          "xrv",
		VCPUs:         1,
		MemoryMiB:     4096,
		Machine:       "pc",
		CPU:           "host",
		MgmtNICDriver: "e1000",
		NICDriver:     "e1000",
		MinDataNICs:   0,
		MaxDataNICs:   128,
		NumConsoles:   1,
		BootTimeout:   10 * time.Minute,
		LineBudget:    defaultLineBudget,
		Matchers: []Matcher{
			// The crypto export notice is the last line of the boot banner.
			{
				State:   StatePowerOn,
				Pattern: regexp.MustCompile(`export@cisco\.com\.`),
				Action:  ActionSendCR,
				Next:    StateWaitingLogin,
			},
			{
				State:   StateWaitingLogin,
				Pattern: regexp.MustCompile(`Press RETURN to get started`),
				Action:  ActionSendCR,
				Next:    StateWaitingLogin,
			},
			{
				State:   StateWaitingLogin,
				Pattern: regexp.MustCompile(`Username:`),
				Action:  ActionSendUsername,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`% User Authentication failed`),
				Action:  ActionFail,
				Next:    StateFailed,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`Password:`),
				Action:  ActionSendPassword,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: xrCLIPrompt,
				Action:  ActionNextCommand,
				Next:    StateConfiguring,
			},
			{
				State:   StateConfiguring,
				Pattern: xrCLIPrompt,
				Action:  ActionNextCommand,
				Next:    StateConfiguring,
			},
		},
		Bootstrap: xrBootstrap,
	},

	"xrv9k": {
		Name:          "xrv9k",
		VCPUs:         2,
		MemoryMiB:     12288,
		Machine:       "pc,smm=off",
		CPU:           "host",
		MgmtNICDriver: "virtio-net-pci",
		NICDriver:     "e1000",
		MinDataNICs:   0,
		MaxDataNICs:   128,
		NumConsoles:   4,
		BootOrder:     "once=d",
		SMBIOSProduct: "Cisco IOS XRv 9000",
		BootTimeout:   20 * time.Minute,
		LineBudget:    defaultLineBudget,
		Matchers: []Matcher{
			{
				State:   StatePowerOn,
				Pattern: regexp.MustCompile(`export@cisco\.com\.`),
				Action:  ActionSendCR,
				Next:    StateWaitingLogin,
			},
			// First boot asks for the initial root-system account.
			{
				State:   StateWaitingLogin,
				Pattern: regexp.MustCompile(`Enter root-system username:`),
				Action:  ActionSendUsername,
				Next:    StateLoggingIn,
			},
			{
				State:   StateWaitingLogin,
				Pattern: regexp.MustCompile(`Username:`),
				Action:  ActionSendUsername,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`Enter secret( again)?:`),
				Action:  ActionSendPassword,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`% User Authentication failed`),
				Action:  ActionFail,
				Next:    StateFailed,
			},
			// After account creation the image asks for a regular login.
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`Username:`),
				Action:  ActionSendUsername,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`Password:`),
				Action:  ActionSendPassword,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: xrCLIPrompt,
				Action:  ActionNextCommand,
				Next:    StateConfiguring,
			},
			{
				State:   StateConfiguring,
				Pattern: xrCLIPrompt,
				Action:  ActionNextCommand,
				Next:    StateConfiguring,
			},
		},
		Bootstrap: xrBootstrap,
	},

	"veos": {
		Name:          "veos",
		VCPUs:         2,
		MemoryMiB:     2048,
		Machine:       "pc",
		CPU:           "host",
		MgmtNICDriver: "e1000",
		NICDriver:     "e1000",
		MinDataNICs:   0,
		MaxDataNICs:   24,
		NumConsoles:   1,
		BootTimeout:   5 * time.Minute,
		LineBudget:    defaultLineBudget,
		Matchers: []Matcher{
			{
				State:   StatePowerOn,
				Pattern: regexp.MustCompile(`.`),
				Action:  ActionNone,
				Next:    StateWaitingLogin,
			},
			{
				State:   StateWaitingLogin,
				Pattern: regexp.MustCompile(`login:\s*$`),
				Action:  ActionSendUsername,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`Login incorrect`),
				Action:  ActionFail,
				Next:    StateFailed,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`Password:\s*$`),
				Action:  ActionSendPassword,
				Next:    StateLoggingIn,
			},
			{
				State:   StateLoggingIn,
				Pattern: regexp.MustCompile(`[>#]\s*$`),
				Action:  ActionNextCommand,
				Next:    StateConfiguring,
			},
			{
				State:   StateConfiguring,
				Pattern: regexp.MustCompile(`[>#]\s*$`),
				Action:  ActionNextCommand,
				Next:    StateConfiguring,
			},
		},
		Bootstrap: []string{
			"enable",
			"configure terminal",
			"hostname {hostname}",
			"username {username} privilege 15 secret {password}",
			"interface Management1",
			"ip address 10.0.0.15/24",
			"no shutdown",
			"exit",
			"management ssh",
			"no shutdown",
			"exit",
			"end",
			"write memory",
		},
	},
}

// xrBootstrap is the IOS XR bootstrap sequence. Reapplying it in full is
// safe, XR treats repeated configuration as a no-op until commit.
var xrBootstrap = []string{
	"configure",
	"hostname {hostname}",
	"interface MgmtEth0/RP0/CPU0/0",
	"ipv4 address 10.0.0.15/24",
	"no shutdown",
	"exit",
	"xml agent tty",
	"iteration off",
	"exit",
	"netconf agent tty",
	"exit",
	"netconf-yang agent",
	"ssh",
	"exit",
	"ssh server v2",
	"ssh server netconf port 830",
	"ssh server vrf default",
	"commit",
	"exit",
}
