// SPDX-License-Identifier: AGPL-3.0-or-later

// Package projectroot locates the repository a command operates on.
package projectroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Markers identify a repository root, in order of preference.
var Markers = []string{".vibe", ".git", "go.mod", "package.json"}

// ErrNotFound is returned when no ancestor of the start directory carries a marker.
var ErrNotFound = errors.New("project root not found")

// Find walks up from start and returns the first directory containing one of
// Markers.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}
	for {
		for _, m := range Markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w from %s", ErrNotFound, start)
		}
		dir = parent
	}
}

// FindOr returns Find(start), or the absolute start directory when no root is found.
func FindOr(start string) (string, error) {
	root, err := Find(start)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return filepath.Abs(start)
}
