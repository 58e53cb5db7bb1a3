// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package vrlaunch boots a vendor virtual-router disk image in QEMU inside
// a lab container and makes it usable as a lab node.
//
// It discovers the container's data interfaces, launches and supervises the
// emulator process, drives the vendor's console boot dialogue until the
// router is remotely manageable, and bridges each container interface
// packet-for-packet to its guest NIC.
package vrlaunch
