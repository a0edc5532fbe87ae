// SPDX-License-Identifier: MPL-2.0

// Package plan compiles an ordered list of heterogeneous configuration
// segments into one fully-resolved, immutable execution Plan.
//
// A Spec is the raw user-facing input: identity fields plus segments in
// declaration order. Order matters: for scalar fields a later segment of
// the same kind overrides an earlier one when its value is non-empty;
// list-valued fields accumulate with case-insensitive de-duplication;
// keyed collections (required modules) merge by name, last declaration
// winning per key.
package plan

import (
	"time"

	"github.com/modforge/modforge/pkg/installer"
)

// VersionAuto requests that the target version be read from the on-disk
// manifest instead of being supplied literally.
const VersionAuto = "auto"

// Spec is the immutable raw input to Compile. Callers construct it once
// per invocation and discard it afterwards.
type Spec struct {
	// Name is the module name. Required.
	Name string

	// SourcePath is the module project root. Required.
	SourcePath string

	// Version is either a literal version string or VersionAuto.
	// Empty means VersionAuto.
	Version string

	// Segments are applied in order during compilation.
	Segments []Segment
}

// Segment is one ordered unit of input configuration. The concrete
// segment types below form a closed set.
type Segment interface {
	segment()
}

// Severity grades a quality-gate check. A failing check only aborts the
// pipeline at SeverityError; SeverityWarning logs and continues.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type (
	// MetadataSegment contributes manifest metadata fields. All fields
	// are scalar except Tags; empty scalars leave earlier values intact.
	MetadataSegment struct {
		Description  string
		Authors      []string
		Company      string
		Copyright    string
		LicenseURL   string
		ProjectURL   string
		IconURL      string
		Tags         []string
		Prerelease   string
		ReleaseNotes string
	}

	// BuildSegment contributes build behavior options.
	BuildSegment struct {
		// MergeSources controls concatenation of functions/*.sh into a
		// single entry script. Nil leaves the earlier (or default: on)
		// value intact.
		MergeSources *bool

		// ManifestOnly limits the run to refreshing the manifest:
		// merging, signing, install, and all post-build validation,
		// test, artefact, and publish work are forced off.
		ManifestOnly bool

		// EntryScripts lists the script files whose exports are
		// scanned and declared. Empty falls back to "<name>.sh".
		EntryScripts []string

		// SignIdentity enables the signing step when non-empty.
		SignIdentity string

		// StagingDir overrides the auto-generated staging location.
		StagingDir string

		// KeepStaging leaves the staging directory in place after the
		// pipeline finishes.
		KeepStaging bool
	}

	// RequireScope assigns a required-module declaration to one of the
	// three dependency buckets.
	RequireScope string

	// RequireSegment declares module dependencies.
	RequireSegment struct {
		Scope   RequireScope
		Modules []RequiredModuleDraft

		// OnlineResolution explicitly enables or disables resolving
		// symbolic version tokens against a repository. Nil means
		// auto-enable when any declaration uses a symbolic token.
		OnlineResolution *bool
	}

	// CommandHintSegment names external commands the module expects on
	// PATH. Missing commands fail validation unless IgnoreMissing.
	CommandHintSegment struct {
		Commands      []string
		IgnoreMissing bool
	}

	// DocsSegment configures documentation generation.
	DocsSegment struct {
		Enabled   bool
		OutputDir string
	}

	// FormatSegment configures source formatting.
	FormatSegment struct {
		Enabled bool

		// ApplyToProject also rewrites the project tree, not just the
		// staging copy.
		ApplyToProject bool

		// IndentWidth of 0 means tab indentation.
		IndentWidth int
	}

	// ValidationSegment configures module-structure validation.
	ValidationSegment struct {
		Enabled  bool
		Severity Severity
	}

	// CompatSegment configures shell-dialect compatibility checking.
	CompatSegment struct {
		Enabled  bool
		Severity Severity

		// Dialects gives the shell language variants sources must
		// parse under, e.g. "posix", "bash", "mksh".
		Dialects []string
	}

	// ConsistencySegment configures file-consistency auditing
	// (line endings, encoding) of staging and optionally the project.
	ConsistencySegment struct {
		Enabled        bool
		Severity       Severity
		LineEnding     string
		IncludeProject bool
	}

	// PlaceholderSegment supplies substitution tokens applied to staged
	// text files. Built-in tokens (name, version, prerelease) are always
	// available; user tokens accumulate, last value per token winning.
	PlaceholderSegment struct {
		Tokens map[string]string
	}

	// TestSegment declares one functional test run.
	TestSegment struct {
		Name    string
		Path    string
		Timeout time.Duration
	}

	// ArtefactKind selects the archive format of an artefact build.
	ArtefactKind string

	// ArtefactSegment declares one distributable archive build.
	ArtefactSegment struct {
		Name      string
		Kind      ArtefactKind
		OutputDir string
	}

	// PublishSegment declares one publish target.
	PublishSegment struct {
		Name string

		// Repository is the endpoint URL the artefact is pushed to.
		Repository string

		// Artefact names the ArtefactSegment whose output is
		// published. Empty means the first declared artefact.
		Artefact string

		// CredentialKey selects an entry in the credentials file.
		CredentialKey string
	}

	// InstallSegment configures the install step.
	InstallSegment struct {
		// Enabled nil leaves the earlier (or default: on) value intact.
		Enabled *bool

		Strategy   installer.Strategy
		KeepCount  int
		Roots      []string
		LegacyMode installer.LegacyMode
		Preserve   []string
	}
)

const (
	// ScopeRequired modules affect both runtime import and packaging.
	ScopeRequired RequireScope = "required"

	// ScopeExternal modules are mirrored into the runtime-required list
	// so imports succeed, but excluded from packaging so third-party
	// modules are not bundled.
	ScopeExternal RequireScope = "external"

	// ScopeApproved names modules whose functions may be inlined
	// without triggering a missing-dependency failure.
	ScopeApproved RequireScope = "approved"
)

const (
	ArtefactZip   ArtefactKind = "zip"
	ArtefactTarGz ArtefactKind = "tar.gz"
)

// RequiredModuleDraft is a dependency declaration before merge and
// version resolution. Symbolic Version tokens ("auto", "latest") may be
// replaced with concrete versions during compilation.
type RequiredModuleDraft struct {
	Name    string
	Version string
	Minimum string
	Maximum string
	GUID    string
}

func (MetadataSegment) segment()    {}
func (BuildSegment) segment()       {}
func (RequireSegment) segment()     {}
func (CommandHintSegment) segment() {}
func (DocsSegment) segment()        {}
func (FormatSegment) segment()      {}
func (ValidationSegment) segment()  {}
func (CompatSegment) segment()      {}
func (ConsistencySegment) segment() {}
func (PlaceholderSegment) segment() {}
func (TestSegment) segment()        {}
func (ArtefactSegment) segment()    {}
func (PublishSegment) segment()     {}
func (InstallSegment) segment()     {}
