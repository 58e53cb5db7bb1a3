// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu provides a typed argument builder and process handle for
// running vendor virtual-router disk images with QEMU.
package qemu
