// SPDX-License-Identifier: MPL-2.0

// Package installer places built module packages into versioned
// destination roots under a <root>/<name>/<version> layout.
//
// A candidate version is always fully materialized in a temporary
// directory under the module root before becoming visible at its final
// path, so an interrupted install never leaves a partially-written
// version directory. Installs into multiple roots are independent: a
// failure in one root is recorded and the remaining roots still proceed;
// the call only fails when every root failed.
package installer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modforge/modforge/internal/platform"
	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/semver"
)

// Strategy selects how an existing target version directory is handled.
type Strategy string

const (
	// StrategyExact installs the requested version verbatim, synchronizing
	// in place when the version directory already exists.
	StrategyExact Strategy = "exact"

	// StrategyAutoRevision appends/increments a numeric revision suffix
	// when the requested version directory already exists.
	StrategyAutoRevision Strategy = "auto-revision"
)

// LegacyMode selects how an unversioned flat install found directly under
// the module root is handled before installing.
type LegacyMode string

const (
	// LegacyIgnore leaves legacy flat content alone.
	LegacyIgnore LegacyMode = "ignore"
	// LegacyWarn logs the legacy layout and continues.
	LegacyWarn LegacyMode = "warn"
	// LegacyConvert moves legacy files into a version directory read from
	// the legacy manifest, quarantining them when that is not possible.
	LegacyConvert LegacyMode = "convert"
	// LegacyDelete removes legacy flat content outright.
	LegacyDelete LegacyMode = "delete"
)

// quarantineDir is the folder legacy content is moved into when a
// conversion target is unusable. It shares the leading underscore with
// tempDirPrefix so it is never mistaken for a version directory.
const quarantineDir = "_legacy_flat"

// tempDirPrefix names in-root staging directories. The prefix starts with
// a non-numeric character so listing/pruning never treats one as an
// installed version.
const tempDirPrefix = "_tmp-"

type (
	// Options configures an Install call.
	Options struct {
		// Roots are the destination roots. Empty means the
		// platform-specific user module directories.
		Roots []string

		// Strategy defaults to StrategyAutoRevision.
		Strategy Strategy

		// KeepCount is the number of non-preserved versions to retain
		// after install. Values below 1 are floored to 1.
		KeepCount int

		// LegacyMode defaults to LegacyIgnore.
		LegacyMode LegacyMode

		// Preserve lists version names pruning must never remove.
		Preserve []string

		// Logger receives progress and best-effort failure reports.
		// Nil means a silent logger.
		Logger *log.Logger

		// Now supplies timestamps for quarantine folder names.
		// Nil means time.Now. Injected for test reproducibility.
		Now func() time.Time
	}

	// Result reports what an Install call actually did.
	Result struct {
		// Version is the resolved installed version of the first
		// successful root (auto-revision may step the requested one).
		Version string

		// InstalledPaths are the final version directories written.
		InstalledPaths []string

		// Pruned are the version directories removed by pruning.
		Pruned []string
	}

	// InstallError aggregates per-root failures. It is only returned when
	// every destination root failed.
	InstallError struct {
		Errors []error
	}
)

// Error implements the error interface, listing all offending roots in
// one message.
func (e *InstallError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("install failed in all %d destination roots: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Install places the staged package at stagingPath into every destination
// root as <root>/<name>/<version>. It returns an *InstallError only when
// all roots failed.
func Install(stagingPath, name, version string, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyAutoRevision
	}
	if opts.LegacyMode == "" {
		opts.LegacyMode = LegacyIgnore
	}
	if opts.KeepCount < 1 {
		opts.KeepCount = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Roots) == 0 {
		roots, err := platform.DefaultModuleRoots()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default module roots: %w", err)
		}
		opts.Roots = roots
	}

	if err := validatePathSegment(name); err != nil {
		return nil, fmt.Errorf("invalid module name: %w", err)
	}
	if err := validatePathSegment(version); err != nil {
		return nil, fmt.Errorf("invalid version: %w", err)
	}
	if info, err := os.Stat(stagingPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("staging path %s is not a readable directory", stagingPath)
	}

	result := &Result{}
	var rootErrs []error

	for _, root := range opts.Roots {
		resolved, finalPath, pruned, err := installIntoRoot(stagingPath, root, name, version, &opts)
		if err != nil {
			opts.Logger.Error("install failed for root", "root", root, "error", err)
			rootErrs = append(rootErrs, fmt.Errorf("%s: %w", root, err))
			continue
		}
		if result.Version == "" {
			result.Version = resolved
		}
		result.InstalledPaths = append(result.InstalledPaths, finalPath)
		result.Pruned = append(result.Pruned, pruned...)
	}

	if len(rootErrs) == len(opts.Roots) {
		return nil, &InstallError{Errors: rootErrs}
	}
	return result, nil
}

// installIntoRoot performs the full install sequence for one destination
// root: legacy handling, temp staging, strategy resolution, placement,
// and pruning.
func installIntoRoot(stagingPath, root, name, version string, opts *Options) (resolved, finalPath string, pruned []string, err error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to canonicalize root: %w", err)
	}

	moduleRoot := filepath.Join(absRoot, name)
	if rel, relErr := filepath.Rel(absRoot, moduleRoot); relErr != nil || strings.HasPrefix(rel, "..") {
		return "", "", nil, fmt.Errorf("module root %s escapes destination root", moduleRoot)
	}
	if err := os.MkdirAll(moduleRoot, 0o755); err != nil {
		return "", "", nil, fmt.Errorf("failed to create module root: %w", err)
	}

	preserve := append([]string(nil), opts.Preserve...)
	legacyPreserve, err := handleLegacy(moduleRoot, opts)
	if err != nil {
		return "", "", nil, err
	}
	preserve = append(preserve, legacyPreserve...)

	// Materialize the candidate fully before it can become visible.
	tempDir, err := stageCandidate(stagingPath, moduleRoot)
	if err != nil {
		return "", "", nil, err
	}
	defer func() {
		// Best-effort: the temp directory is gone after a successful
		// rename, and stale on failure either way.
		_ = os.RemoveAll(tempDir)
	}()

	resolved = version
	target := filepath.Join(moduleRoot, resolved)

	if opts.Strategy == StrategyAutoRevision {
		if _, statErr := os.Stat(target); statErr == nil {
			siblings := listVersionDirs(moduleRoot)
			next, revErr := semver.NextRevision(version, siblings)
			if revErr != nil {
				return "", "", nil, fmt.Errorf("failed to step revision for %s: %w", version, revErr)
			}
			resolved = next
			target = filepath.Join(moduleRoot, resolved)
		}
	}

	if opts.Strategy == StrategyExact {
		if _, statErr := os.Stat(target); statErr == nil {
			// In-place synchronization: no delete-then-recreate window.
			if err := syncDir(tempDir, target); err != nil {
				return "", "", nil, fmt.Errorf("failed to synchronize %s: %w", target, err)
			}
			pruned = prune(moduleRoot, resolved, preserve, opts)
			return resolved, target, pruned, nil
		}
	}

	if err := placeDir(tempDir, target); err != nil {
		return "", "", nil, fmt.Errorf("failed to place %s: %w", target, err)
	}

	pruned = prune(moduleRoot, resolved, preserve, opts)
	return resolved, target, pruned, nil
}

// stageCandidate copies the staged package into a uniquely-named temp
// directory under the module root, falling back to the system temp
// location when the root cannot host it (permissions, locking).
func stageCandidate(stagingPath, moduleRoot string) (string, error) {
	tempDir := filepath.Join(moduleRoot, tempDirPrefix+randomSuffix())
	if err := copyDir(stagingPath, tempDir); err != nil {
		_ = os.RemoveAll(tempDir)

		fallback, tmpErr := os.MkdirTemp("", tempDirPrefix)
		if tmpErr != nil {
			return "", fmt.Errorf("failed to stage candidate: %w", err)
		}
		if copyErr := copyDir(stagingPath, fallback); copyErr != nil {
			_ = os.RemoveAll(fallback)
			return "", fmt.Errorf("failed to stage candidate: %w", copyErr)
		}
		return fallback, nil
	}
	return tempDir, nil
}

// placeDir makes src visible at dst, preferring an atomic rename and
// falling back to copy-then-delete for cross-volume or locked targets.
func placeDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyDir(src, dst); err != nil {
		// Never leave a half-copied directory at the final path.
		_ = os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

// handleLegacy resolves an unversioned flat install under moduleRoot
// according to the configured mode. It returns version names that must be
// preserved from pruning (a freshly converted version).
func handleLegacy(moduleRoot string, opts *Options) ([]string, error) {
	if opts.LegacyMode == LegacyIgnore {
		return nil, nil
	}

	legacyManifest := filepath.Join(moduleRoot, manifest.FileName)
	if _, err := os.Stat(legacyManifest); err != nil {
		return nil, nil //nolint:nilerr // No flat manifest means no legacy install.
	}

	switch opts.LegacyMode {
	case LegacyWarn:
		opts.Logger.Warn("legacy unversioned module layout detected", "path", moduleRoot)
		return nil, nil

	case LegacyDelete:
		entries, err := os.ReadDir(moduleRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to list module root: %w", err)
		}
		for _, entry := range entries {
			if isVersionName(entry.Name()) && entry.IsDir() {
				continue
			}
			if err := os.RemoveAll(filepath.Join(moduleRoot, entry.Name())); err != nil {
				return nil, fmt.Errorf("failed to delete legacy entry %s: %w", entry.Name(), err)
			}
		}
		opts.Logger.Info("deleted legacy flat module content", "path", moduleRoot)
		return nil, nil

	case LegacyConvert:
		return convertLegacy(moduleRoot, legacyManifest, opts)

	default:
		return nil, fmt.Errorf("unknown legacy mode %q", opts.LegacyMode)
	}
}

// convertLegacy moves flat legacy files into a version directory read
// from the legacy manifest. When the version is unusable (unsafe string,
// or the directory already exists) the files are quarantined under a
// timestamped _legacy_flat folder instead.
func convertLegacy(moduleRoot, legacyManifest string, opts *Options) ([]string, error) {
	legacyVersion, ok := manifest.GetTopLevelString(legacyManifest, "version")

	reason := ""
	switch {
	case !ok || validatePathSegment(legacyVersion) != nil || !isVersionName(legacyVersion):
		reason = "badversion"
	default:
		if _, err := os.Stat(filepath.Join(moduleRoot, legacyVersion)); err == nil {
			reason = "exists"
		}
	}

	var destDir string
	if reason != "" {
		stamp := opts.Now().UTC().Format("20060102T150405")
		destDir = filepath.Join(moduleRoot, quarantineDir, reason+"_"+stamp)
		opts.Logger.Warn("quarantining legacy flat module content",
			"path", moduleRoot, "reason", reason, "dest", destDir)
	} else {
		destDir = filepath.Join(moduleRoot, legacyVersion)
		opts.Logger.Info("converting legacy flat module content",
			"path", moduleRoot, "version", legacyVersion)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversion target: %w", err)
	}

	entries, err := os.ReadDir(moduleRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list module root: %w", err)
	}
	for _, entry := range entries {
		n := entry.Name()
		if (entry.IsDir() && isVersionName(n)) || n == quarantineDir || strings.HasPrefix(n, tempDirPrefix) {
			continue
		}
		if err := os.Rename(filepath.Join(moduleRoot, n), filepath.Join(destDir, n)); err != nil {
			return nil, fmt.Errorf("failed to move legacy entry %s: %w", n, err)
		}
	}

	if reason != "" {
		return nil, nil
	}
	// The converted version must survive the upcoming prune.
	return []string{legacyVersion}, nil
}

// prune removes version directories beyond the keep count, never touching
// the preserved set or the version just installed. Failures are logged
// and swallowed; pruning is best-effort by contract.
func prune(moduleRoot, installed string, preserve []string, opts *Options) []string {
	preserved := make(map[string]bool, len(preserve)+1)
	preserved[strings.ToLower(installed)] = true
	for _, p := range preserve {
		preserved[strings.ToLower(p)] = true
	}

	versions := semver.SortDescending(listVersionDirs(moduleRoot))

	// The keep count is a total across retained versions; the installed
	// and preserved versions are retained unconditionally but still count
	// toward it.
	var pruned []string
	kept := 0
	for _, v := range versions {
		if preserved[strings.ToLower(v)] {
			kept++
			continue
		}
		if kept < opts.KeepCount {
			kept++
			continue
		}
		dir := filepath.Join(moduleRoot, v)
		if err := os.RemoveAll(dir); err != nil {
			opts.Logger.Warn("failed to prune version directory", "path", dir, "error", err)
			continue
		}
		pruned = append(pruned, dir)
	}
	return pruned
}

// listVersionDirs returns the version-looking directory names directly
// under moduleRoot. Temporary and quarantine directories are name-prefixed
// distinctly and never qualify.
func listVersionDirs(moduleRoot string) []string {
	entries, err := os.ReadDir(moduleRoot)
	if err != nil {
		return nil
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() && isVersionName(entry.Name()) {
			versions = append(versions, entry.Name())
		}
	}
	return versions
}

// isVersionName reports whether name looks like an installed version:
// first character numeric and the whole name a parseable release
// identifier.
func isVersionName(name string) bool {
	if name == "" || name[0] < '0' || name[0] > '9' {
		return false
	}
	return semver.IsValid(name)
}

// validatePathSegment rejects names that cannot safely form a single path
// segment: separators, relative traversal, and drive specifiers.
func validatePathSegment(segment string) error {
	switch {
	case segment == "" || segment == "." || segment == "..":
		return fmt.Errorf("%q is not a valid path segment", segment)
	case strings.ContainsAny(segment, `/\:`):
		return fmt.Errorf("%q must not contain path separators or drive specifiers", segment)
	default:
		return nil
	}
}

// randomSuffix returns a process-unique random identifier for temp
// directory names.
func randomSuffix() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
