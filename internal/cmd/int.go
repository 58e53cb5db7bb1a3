// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrValueOutOfRange is returned for numeric flag values outside their
// limits.
var ErrValueOutOfRange = errors.New("value is outside of range")

// limitedUintValue is a [flag.Value] for the VM sizing flags. QEMU accepts
// absurd CPU and memory numbers and fails late, so the limits reject them
// at parse time instead. A zero limit disables that bound.
type limitedUintValue struct {
	Value    *uint64
	min, max uint64
}

// String implements [flag.Value].
func (u *limitedUintValue) String() string {
	if u.Value == nil {
		return "0"
	}

	return strconv.FormatUint(*u.Value, 10)
}

// Set implements [flag.Value]. The value is stored only if it is within
// the configured limits.
func (u *limitedUintValue) Set(s string) error {
	value, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if u.min > 0 && value < u.min {
		return fmt.Errorf("%d < %d: %w", value, u.min, ErrValueOutOfRange)
	}

	if u.max > 0 && value > u.max {
		return fmt.Errorf("%d > %d: %w", value, u.max, ErrValueOutOfRange)
	}

	*u.Value = value

	return nil
}
