// SPDX-License-Identifier: MPL-2.0

// Package buildfile loads forge.cue build files and turns them into
// plan.Spec values ready for compilation. The file carries the module
// identity plus an ordered list of kind-discriminated segments; order is
// preserved because the plan compiler's merge rules depend on it.
package buildfile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modforge/modforge/internal/cueutil"
	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/plan"
)

// FileName is the canonical build file name looked up in a project root.
const FileName = "forge.cue"

//go:embed forge_schema.cue
var forgeSchema []byte

// rawForge mirrors the #Forge schema definition.
type rawForge struct {
	Name     string       `json:"name"`
	Source   string       `json:"source,omitempty"`
	Version  string       `json:"version,omitempty"`
	Segments []rawSegment `json:"segments"`
}

// rawSegment is the union of every segment shape; Kind selects which
// fields are meaningful.
type rawSegment struct {
	Kind string `json:"kind"`

	// metadata
	Description  string   `json:"description,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	Company      string   `json:"company,omitempty"`
	Copyright    string   `json:"copyright,omitempty"`
	LicenseURL   string   `json:"license_url,omitempty"`
	ProjectURL   string   `json:"project_url,omitempty"`
	IconURL      string   `json:"icon_url,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Prerelease   string   `json:"prerelease,omitempty"`
	ReleaseNotes string   `json:"release_notes,omitempty"`

	// build
	MergeSources *bool    `json:"merge_sources,omitempty"`
	ManifestOnly bool     `json:"manifest_only,omitempty"`
	EntryScripts []string `json:"entry_scripts,omitempty"`
	SignIdentity string   `json:"sign_identity,omitempty"`
	StagingDir   string   `json:"staging_dir,omitempty"`
	KeepStaging  bool     `json:"keep_staging,omitempty"`

	// require
	Scope            string      `json:"scope,omitempty"`
	Modules          []rawModule `json:"modules,omitempty"`
	OnlineResolution *bool       `json:"online_resolution,omitempty"`

	// commands
	Commands      []string `json:"commands,omitempty"`
	IgnoreMissing bool     `json:"ignore_missing,omitempty"`

	// docs / format / validation / compat / consistency / install
	Enabled        *bool    `json:"enabled,omitempty"`
	OutputDir      string   `json:"output_dir,omitempty"`
	ApplyToProject bool     `json:"apply_to_project,omitempty"`
	IndentWidth    int      `json:"indent_width,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	Dialects       []string `json:"dialects,omitempty"`
	LineEnding     string   `json:"line_ending,omitempty"`
	IncludeProject bool     `json:"include_project,omitempty"`

	// placeholders
	Tokens map[string]string `json:"tokens,omitempty"`

	// test / artefact / publish
	Name           string `json:"name,omitempty"`
	Path           string `json:"path,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Format         string `json:"format,omitempty"`
	Repository     string `json:"repository,omitempty"`
	Artefact       string `json:"artefact,omitempty"`
	Credential     string `json:"credential,omitempty"`

	// install
	Strategy   string   `json:"strategy,omitempty"`
	KeepCount  int      `json:"keep_count,omitempty"`
	Roots      []string `json:"roots,omitempty"`
	LegacyMode string   `json:"legacy_mode,omitempty"`
	Preserve   []string `json:"preserve,omitempty"`
}

type rawModule struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Minimum string `json:"minimum,omitempty"`
	Maximum string `json:"maximum,omitempty"`
	GUID    string `json:"guid,omitempty"`
}

// Load reads and parses a forge.cue build file. When the file omits
// source, the project root defaults to the build file's directory.
func Load(path string) (plan.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return plan.Spec{}, fmt.Errorf("failed to read build file at %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses build file content from bytes. path is used for error
// messages and for the default source directory.
func Parse(data []byte, path string) (plan.Spec, error) {
	raw, err := cueutil.Decode[rawForge](forgeSchema, data, "#Forge", path)
	if err != nil {
		return plan.Spec{}, err
	}

	spec := plan.Spec{
		Name:    raw.Name,
		Version: raw.Version,
	}

	spec.SourcePath = raw.Source
	if spec.SourcePath == "" {
		abs, absErr := filepath.Abs(filepath.Dir(path))
		if absErr != nil {
			return plan.Spec{}, fmt.Errorf("failed to resolve project root for %s: %w", path, absErr)
		}
		spec.SourcePath = abs
	}

	for i, seg := range raw.Segments {
		converted, convErr := convertSegment(seg)
		if convErr != nil {
			return plan.Spec{}, fmt.Errorf("%s: segments[%d]: %w", path, i, convErr)
		}
		spec.Segments = append(spec.Segments, converted)
	}
	return spec, nil
}

func convertSegment(seg rawSegment) (plan.Segment, error) {
	switch seg.Kind {
	case "metadata":
		return plan.MetadataSegment{
			Description:  seg.Description,
			Authors:      seg.Authors,
			Company:      seg.Company,
			Copyright:    seg.Copyright,
			LicenseURL:   seg.LicenseURL,
			ProjectURL:   seg.ProjectURL,
			IconURL:      seg.IconURL,
			Tags:         seg.Tags,
			Prerelease:   seg.Prerelease,
			ReleaseNotes: seg.ReleaseNotes,
		}, nil
	case "build":
		return plan.BuildSegment{
			MergeSources: seg.MergeSources,
			ManifestOnly: seg.ManifestOnly,
			EntryScripts: seg.EntryScripts,
			SignIdentity: seg.SignIdentity,
			StagingDir:   seg.StagingDir,
			KeepStaging:  seg.KeepStaging,
		}, nil
	case "require":
		out := plan.RequireSegment{
			Scope:            plan.RequireScope(seg.Scope),
			OnlineResolution: seg.OnlineResolution,
		}
		if out.Scope == "" {
			out.Scope = plan.ScopeRequired
		}
		for _, m := range seg.Modules {
			out.Modules = append(out.Modules, plan.RequiredModuleDraft(m))
		}
		return out, nil
	case "commands":
		return plan.CommandHintSegment{
			Commands:      seg.Commands,
			IgnoreMissing: seg.IgnoreMissing,
		}, nil
	case "docs":
		return plan.DocsSegment{
			Enabled:   enabled(seg.Enabled),
			OutputDir: seg.OutputDir,
		}, nil
	case "format":
		return plan.FormatSegment{
			Enabled:        enabled(seg.Enabled),
			ApplyToProject: seg.ApplyToProject,
			IndentWidth:    seg.IndentWidth,
		}, nil
	case "validation":
		return plan.ValidationSegment{
			Enabled:  enabled(seg.Enabled),
			Severity: plan.Severity(seg.Severity),
		}, nil
	case "compat":
		return plan.CompatSegment{
			Enabled:  enabled(seg.Enabled),
			Severity: plan.Severity(seg.Severity),
			Dialects: seg.Dialects,
		}, nil
	case "consistency":
		return plan.ConsistencySegment{
			Enabled:        enabled(seg.Enabled),
			Severity:       plan.Severity(seg.Severity),
			LineEnding:     seg.LineEnding,
			IncludeProject: seg.IncludeProject,
		}, nil
	case "placeholders":
		return plan.PlaceholderSegment{Tokens: seg.Tokens}, nil
	case "test":
		return plan.TestSegment{
			Name:    seg.Name,
			Path:    seg.Path,
			Timeout: time.Duration(seg.TimeoutSeconds) * time.Second,
		}, nil
	case "artefact":
		return plan.ArtefactSegment{
			Name:      seg.Name,
			Kind:      plan.ArtefactKind(seg.Format),
			OutputDir: seg.OutputDir,
		}, nil
	case "publish":
		return plan.PublishSegment{
			Name:          seg.Name,
			Repository:    seg.Repository,
			Artefact:      seg.Artefact,
			CredentialKey: seg.Credential,
		}, nil
	case "install":
		return plan.InstallSegment{
			Enabled:    seg.Enabled,
			Strategy:   installer.Strategy(seg.Strategy),
			KeepCount:  seg.KeepCount,
			Roots:      seg.Roots,
			LegacyMode: installer.LegacyMode(seg.LegacyMode),
			Preserve:   seg.Preserve,
		}, nil
	default:
		// The schema's closed disjunction makes this unreachable for
		// data that validated; keep it as a guard for schema drift.
		return nil, fmt.Errorf("unknown segment kind %q", seg.Kind)
	}
}

func enabled(b *bool) bool {
	return b == nil || *b
}
