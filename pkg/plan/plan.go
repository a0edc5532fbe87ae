// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"time"

	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/manifest"
)

// Plan is the fully resolved output of Compile. It is created by exactly
// one Compile call, consumed by exactly one pipeline run, and must be
// treated as read-only afterwards.
type Plan struct {
	// Name is the module name.
	Name string

	// SourcePath is the module project root.
	SourcePath string

	// Version is the resolved target version.
	Version string

	// Prerelease is the optional pre-release label.
	Prerelease string

	// Metadata is the merged manifest metadata snapshot.
	Metadata Metadata

	// RequiredRuntime lists every module the installed package imports
	// at runtime, including external (unbundled) dependencies.
	RequiredRuntime []RequiredModule

	// RequiredPackaging lists the modules written into the packaged
	// manifest. External dependencies are excluded here.
	RequiredPackaging []RequiredModule

	// External names the dependencies excluded from packaging.
	External []string

	// Approved names modules whose functions may be inlined without a
	// missing-dependency failure.
	Approved []string

	// CommandHints names external commands checked during validation.
	CommandHints []string

	// IgnoreMissingCommands downgrades missing command hints from a
	// fatal dependency error to a warning.
	IgnoreMissingCommands bool

	// MergeSources enables concatenating functions/*.sh into the entry
	// script.
	MergeSources bool

	// ManifestOnly restricts the run to refreshing the manifest.
	ManifestOnly bool

	// EntryScripts are the script files scanned for exports.
	EntryScripts []string

	// SignIdentity enables signing when non-empty.
	SignIdentity string

	Docs        DocsSettings
	Format      FormatSettings
	Validation  CheckSettings
	Compat      CompatSettings
	Consistency ConsistencySettings

	// Placeholders maps substitution tokens to replacement values.
	// Built-in tokens are filled in by the executor.
	Placeholders map[string]string

	Tests     []TestSettings
	Artefacts []ArtefactSettings
	Publishes []PublishSettings

	// Install is the resolved install policy.
	Install InstallPolicy

	// StagingDir is the staging location; empty means the executor
	// generates one.
	StagingDir string

	// StagingAutoCreate records whether the staging directory is
	// pipeline-generated and therefore eligible for cleanup.
	StagingAutoCreate bool

	// KeepStaging suppresses staging cleanup even for auto-generated
	// directories.
	KeepStaging bool

	// OnlineResolution records whether symbolic dependency versions
	// were (or should be) resolved against a repository.
	OnlineResolution bool

	// Warnings are non-fatal findings recorded during compilation.
	Warnings []string
}

// Metadata is the merged manifest metadata carried by a Plan.
type Metadata struct {
	Description  string
	Authors      []string
	Company      string
	Copyright    string
	LicenseURL   string
	ProjectURL   string
	IconURL      string
	Tags         []string
	ReleaseNotes string
}

// RequiredModule is a resolved dependency declaration.
type RequiredModule struct {
	Name    string
	Version string
	Minimum string
	Maximum string
	GUID    string
}

// manifestModule converts to the manifest editor's representation.
func (m RequiredModule) manifestModule() manifest.RequiredModule {
	return manifest.RequiredModule{
		Name:    m.Name,
		Version: m.Version,
		Minimum: m.Minimum,
		Maximum: m.Maximum,
		GUID:    m.GUID,
	}
}

// ManifestModules converts a resolved dependency list into the manifest
// editor's representation, for patching the packaged manifest.
func ManifestModules(mods []RequiredModule) []manifest.RequiredModule {
	out := make([]manifest.RequiredModule, len(mods))
	for i, m := range mods {
		out[i] = m.manifestModule()
	}
	return out
}

type (
	// DocsSettings configures the documentation step.
	DocsSettings struct {
		Enabled   bool
		OutputDir string
	}

	// FormatSettings configures the formatting step.
	FormatSettings struct {
		Enabled        bool
		ApplyToProject bool
		IndentWidth    int
	}

	// CheckSettings configures a severity-gated check.
	CheckSettings struct {
		Enabled  bool
		Severity Severity
	}

	// CompatSettings configures the shell-dialect compatibility check.
	CompatSettings struct {
		Enabled  bool
		Severity Severity
		Dialects []string
	}

	// ConsistencySettings configures the file-consistency audit.
	ConsistencySettings struct {
		Enabled        bool
		Severity       Severity
		LineEnding     string
		IncludeProject bool
	}

	// TestSettings is one resolved functional test run.
	TestSettings struct {
		Name    string
		Path    string
		Timeout time.Duration
	}

	// ArtefactSettings is one resolved archive build.
	ArtefactSettings struct {
		Name      string
		Kind      ArtefactKind
		OutputDir string
	}

	// PublishSettings is one resolved publish target.
	PublishSettings struct {
		Name          string
		Repository    string
		Artefact      string
		CredentialKey string
	}

	// InstallPolicy is the resolved install step configuration.
	InstallPolicy struct {
		Enabled    bool
		Strategy   installer.Strategy
		KeepCount  int
		Roots      []string
		LegacyMode installer.LegacyMode
		Preserve   []string
	}
)
