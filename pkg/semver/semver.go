// SPDX-License-Identifier: MPL-2.0

// Package semver implements version parsing, comparison, and auto-revision
// stepping for module release identifiers.
//
// A release identifier is one to four dotted numeric components with an
// optional prerelease label: "1.2", "1.2.3", "1.2.3.4", "1.2.3-beta.1".
// The fourth numeric component is the revision suffix used by the
// auto-revision install strategy.
package semver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// versionRegex matches release identifier strings.
var versionRegex = regexp.MustCompile(`^v?(\d+(?:\.\d+){0,3})(?:-([0-9A-Za-z\-\.]+))?(?:\+[0-9A-Za-z\-\.]+)?$`)

// Version represents a parsed release identifier.
type Version struct {
	// Parts are the numeric dotted components, most significant first.
	Parts []int
	// Prerelease is the label after "-", empty for a final release.
	Prerelease string
	// Original is the string the version was parsed from.
	Original string
}

// Parse parses a release identifier string into a Version.
func Parse(s string) (*Version, error) {
	matches := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return nil, fmt.Errorf("invalid version format: %s", s)
	}

	v := &Version{Original: s, Prerelease: matches[2]}
	for _, p := range strings.Split(matches[1], ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid version component %q: %w", p, err)
		}
		v.Parts = append(v.Parts, n)
	}

	return v, nil
}

// IsValid checks if a string is a parseable release identifier.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the version as a string.
func (v *Version) String() string {
	return v.Original
}

// part returns the i-th numeric component, treating missing components as 0
// so "1.2" and "1.2.0" compare equal.
func (v *Version) part(i int) int {
	if i < len(v.Parts) {
		return v.Parts[i]
	}
	return 0
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
//
// Numeric components are compared first. If equal, a version without a
// prerelease label is greater than one with a label. Labels are compared
// dot-segment by dot-segment: numeric segments numerically, non-numeric
// segments case-insensitively, and a shorter label sorts lower.
func (v *Version) Compare(other *Version) int {
	n := len(v.Parts)
	if len(other.Parts) > n {
		n = len(other.Parts)
	}
	for i := 0; i < n; i++ {
		switch {
		case v.part(i) < other.part(i):
			return -1
		case v.part(i) > other.part(i):
			return 1
		}
	}

	switch {
	case v.Prerelease == "" && other.Prerelease == "":
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	}

	return comparePrerelease(v.Prerelease, other.Prerelease)
}

// comparePrerelease compares two prerelease labels segment by segment.
func comparePrerelease(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aNum := atoi(as[i])
		bn, bNum := atoi(bs[i])

		switch {
		case aNum && bNum:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		case aNum:
			// Numeric segments sort below alphanumeric ones.
			return -1
		case bNum:
			return 1
		default:
			al, bl := strings.ToLower(as[i]), strings.ToLower(bs[i])
			if al != bl {
				if al < bl {
					return -1
				}
				return 1
			}
		}
	}

	// Shorter sequence sorts lower.
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// SortDescending sorts version strings newest first, dropping entries that
// do not parse as release identifiers.
func SortDescending(versions []string) []string {
	var parsed []*Version
	for _, vs := range versions {
		v, err := Parse(vs)
		if err != nil {
			continue
		}
		parsed = append(parsed, v)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Compare(parsed[j]) > 0
	})

	result := make([]string, len(parsed))
	for i, v := range parsed {
		result[i] = v.Original
	}

	return result
}

// NextRevision computes the auto-revision step for base among siblings.
//
// Sibling versions whose leading components equal base are scanned for a
// trailing numeric suffix one component longer than base; the result is
// base.(max suffix + 1), or base.1 when no numbered sibling exists.
func NextRevision(base string, siblings []string) (string, error) {
	bv, err := Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base version: %w", err)
	}
	if bv.Prerelease != "" {
		return "", fmt.Errorf("base version %q must not carry a prerelease label", base)
	}
	if len(bv.Parts) >= 4 {
		// A four-part base already is a revision; step its last component.
		bv.Parts = bv.Parts[:3]
	}

	maxSuffix := 0
	for _, s := range siblings {
		sv, err := Parse(s)
		if err != nil || sv.Prerelease != "" {
			continue
		}
		if len(sv.Parts) != len(bv.Parts)+1 {
			continue
		}
		match := true
		for i, p := range bv.Parts {
			if sv.Parts[i] != p {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if suffix := sv.Parts[len(sv.Parts)-1]; suffix > maxSuffix {
			maxSuffix = suffix
		}
	}

	parts := make([]string, 0, len(bv.Parts)+1)
	for _, p := range bv.Parts {
		parts = append(parts, strconv.Itoa(p))
	}
	parts = append(parts, strconv.Itoa(maxSuffix+1))
	return strings.Join(parts, "."), nil
}
