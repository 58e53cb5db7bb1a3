// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package host

import "errors"

var (
	// ErrTooFewInterfaces is returned if the inventory has fewer data
	// interfaces than the vendor profile requires.
	ErrTooFewInterfaces = errors.New("not enough data interfaces")

	// ErrTooManyInterfaces is returned if the inventory has more data
	// interfaces than the vendor profile supports.
	ErrTooManyInterfaces = errors.New("too many data interfaces")

	// ErrAlreadyBridged is returned if a bridge link already exists for an
	// interface.
	ErrAlreadyBridged = errors.New("interface already bridged")

	// ErrForwardStarted is returned if a port forward is started twice.
	ErrForwardStarted = errors.New("port forward already started")
)

// InventoryError indicates a bad or absent interface topology. It is fatal
// and surfaced before any process launch.
type InventoryError struct {
	Err error
}

// Error implements the [error] interface.
func (e *InventoryError) Error() string {
	return "interface inventory: " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*InventoryError) Is(other error) bool {
	_, ok := other.(*InventoryError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *InventoryError) Unwrap() error {
	return e.Err
}

// BridgeError indicates failed forwarding setup or teardown for one
// interface. A partially bridged node must never be reported ready.
type BridgeError struct {
	Interface string
	Err       error
}

// Error implements the [error] interface.
func (e *BridgeError) Error() string {
	return "bridge " + e.Interface + ": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*BridgeError) Is(other error) bool {
	_, ok := other.(*BridgeError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *BridgeError) Unwrap() error {
	return e.Err
}
