// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vrlaunch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vrlaunch/internal/boot"
	"github.com/aibor/vrlaunch/internal/host"
)

func TestBuildNICs(t *testing.T) {
	profile := &boot.Profile{NICDriver: "e1000"}

	t.Run("contiguous", func(t *testing.T) {
		interfaces := []host.Interface{
			{Name: "eth1", Ordinal: 1},
			{Name: "eth2", Ordinal: 2},
		}

		nics := buildNICs(profile, interfaces, 0)
		require.Len(t, nics, 2)

		for idx, nic := range nics {
			assert.Equal(t, idx+1, nic.Ordinal)
			assert.Equal(t, "e1000", nic.Driver)
			assert.False(t, nic.Placeholder)
			assert.Regexp(t,
				fmt.Sprintf("^52:54:00:[0-9a-f]{2}:[0-9a-f]{2}:%02x$", idx+1),
				nic.MAC,
			)
		}
	})

	t.Run("gap becomes placeholder", func(t *testing.T) {
		interfaces := []host.Interface{
			{Name: "eth1", Ordinal: 1},
			{Name: "eth3", Ordinal: 3},
		}

		nics := buildNICs(profile, interfaces, 0)
		require.Len(t, nics, 3)

		assert.False(t, nics[0].Placeholder)
		assert.True(t, nics[1].Placeholder)
		assert.False(t, nics[2].Placeholder)
	})

	t.Run("fixed count", func(t *testing.T) {
		nics := buildNICs(profile, nil, 4)
		require.Len(t, nics, 4)

		for _, nic := range nics {
			assert.True(t, nic.Placeholder)
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, buildNICs(profile, nil, 0))
	})
}
