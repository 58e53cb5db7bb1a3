// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vrlaunch/internal/qemu"
)

func TestBuildArgumentStrings(t *testing.T) {
	t.Run("builds", func(t *testing.T) {
		args := []qemu.Argument{
			qemu.UniqueArg("display", "none"),
			qemu.RepeatableArg("device", "e1000,netdev=p01"),
			qemu.RepeatableArg("device", "e1000,netdev=p02"),
			qemu.UniqueArg("enable-kvm"),
		}

		expected := []string{
			"-display", "none",
			"-device", "e1000,netdev=p01",
			"-device", "e1000,netdev=p02",
			"-enable-kvm",
		}

		actual, err := qemu.BuildArgumentStrings(args)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})

	t.Run("collision", func(t *testing.T) {
		args := []qemu.Argument{
			qemu.UniqueArg("machine", "pc"),
			qemu.UniqueArg("machine", "q35"),
		}

		_, err := qemu.BuildArgumentStrings(args)
		require.ErrorIs(t, err, qemu.ErrArgumentCollision)
	})

	t.Run("identical repeatable", func(t *testing.T) {
		args := []qemu.Argument{
			qemu.RepeatableArg("device", "e1000,netdev=p01"),
			qemu.RepeatableArg("device", "e1000,netdev=p01"),
		}

		_, err := qemu.BuildArgumentStrings(args)
		require.ErrorIs(t, err, qemu.ErrArgumentCollision)
	})
}
