// SPDX-License-Identifier: MPL-2.0

package module

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/semver"
)

// RootLocator finds installed modules under a set of versioned install
// roots. Each module lives at <root>/<name>/<version>/; lookups return
// the manifest of the highest installed version. A legacy flat layout
// (manifest directly under <root>/<name>/) is accepted as a fallback.
type RootLocator struct {
	Roots []string
}

// FindManifest returns the manifest path of the named module and whether
// it was found. Module name matching is case-insensitive.
func (l *RootLocator) FindManifest(name string) (string, bool) {
	for _, root := range l.Roots {
		dir, ok := findModuleDir(root, name)
		if !ok {
			continue
		}
		if path, ok := highestVersionManifest(dir); ok {
			return path, true
		}
		// Legacy flat layout.
		flat := filepath.Join(dir, manifest.FileName)
		if info, err := os.Stat(flat); err == nil && !info.IsDir() {
			return flat, true
		}
	}
	return "", false
}

func findModuleDir(root, name string) (string, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(root, entry.Name()), true
		}
	}
	return "", false
}

func highestVersionManifest(moduleDir string) (string, bool) {
	entries, err := os.ReadDir(moduleDir)
	if err != nil {
		return "", false
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() && semver.IsValid(entry.Name()) {
			versions = append(versions, entry.Name())
		}
	}

	for _, version := range semver.SortDescending(versions) {
		path := filepath.Join(moduleDir, version, manifest.FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
