// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// FindDiskImage returns the single vendor qcow2 disk image in the given
// directory.
//
// Container images built for this launcher ship exactly one qcow2 file at a
// well-known location. Zero or multiple matches are configuration defects.
func FindDiskImage(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.qcow2"))
	if err != nil {
		return "", fmt.Errorf("glob disk images: %w", err)
	}

	// Overlays from previous runs are not boot candidates.
	images := make([]string, 0, len(matches))

	for _, match := range matches {
		if !strings.HasSuffix(match, overlaySuffix) {
			images = append(images, match)
		}
	}

	switch len(images) {
	case 0:
		return "", ErrDiskImageNotFound
	case 1:
		return images[0], nil
	default:
		return "", fmt.Errorf(
			"%w: %s",
			ErrDiskImageAmbiguous,
			strings.Join(images, ", "),
		)
	}
}

const overlaySuffix = "-overlay.qcow2"

// CreateOverlay creates a qcow2 overlay backed by the given base image and
// returns its path.
//
// The guest only ever writes to the overlay, so the vendor image stays
// pristine across VM relaunches.
func CreateOverlay(ctx context.Context, baseImage string) (string, error) {
	overlay := strings.TrimSuffix(baseImage, ".qcow2") + overlaySuffix

	cmd := exec.CommandContext(
		ctx,
		"qemu-img",
		"create",
		"-f", "qcow2",
		"-F", "qcow2",
		"-b", baseImage,
		overlay,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf(
			"create overlay: %w: %s",
			err,
			strings.TrimSpace(string(out)),
		)
	}

	slog.Debug("Created overlay disk image",
		slog.String("base", baseImage),
		slog.String("overlay", overlay),
	)

	return overlay, nil
}
