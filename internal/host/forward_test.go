// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package host_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aibor/vrlaunch/internal/host"
)

func TestPortForwardCommandLine(t *testing.T) {
	tests := []struct {
		name     string
		forward  host.PortForward
		expected []string
	}{
		{
			name: "ssh",
			forward: host.PortForward{
				Proto:      "tcp",
				ListenPort: 22,
				TargetPort: 2022,
			},
			expected: []string{
				"socat",
				"TCP-LISTEN:22,fork",
				"TCP:127.0.0.1:2022",
			},
		},
		{
			name: "udp",
			forward: host.PortForward{
				Proto:      "udp",
				ListenPort: 161,
				TargetPort: 2161,
			},
			expected: []string{
				"socat",
				"UDP-LISTEN:161,fork",
				"UDP:127.0.0.1:2161",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.forward.CommandLine())
		})
	}
}
