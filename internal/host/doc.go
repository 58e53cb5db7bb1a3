// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package host manages the container side of a virtual router node: the
// provisioned interface inventory, packet forwarding between container
// interfaces and the guest's tap devices, and port forwards to the guest's
// management services.
package host
