// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/modforge/modforge/pkg/installer"
)

func projectWithManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if content != "" {
		if err := os.WriteFile(filepath.Join(dir, "module.manifest"), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write manifest: %v", err)
		}
	}
	return dir
}

func TestCompileRejectsBlankIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Spec
	}{
		{name: "blank name", spec: Spec{Name: "  ", SourcePath: "/tmp/x"}},
		{name: "blank source path", spec: Spec{Name: "sample", SourcePath: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(tt.spec, CompileOptions{})
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Compile() error = %v, want *ConfigurationError", err)
			}
		})
	}
}

func TestCompileScalarOverride(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "version = '1.0.0'\n")
	spec := Spec{
		Name:       "sample",
		SourcePath: dir,
		Version:    "2.0.0",
		Segments: []Segment{
			MetadataSegment{Description: "A", Company: "Acme"},
			MetadataSegment{Description: "B"},
			MetadataSegment{Description: "   "}, // blank never overrides
		},
	}

	p, err := Compile(spec, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.Metadata.Description != "B" {
		t.Errorf("Description = %q, want B", p.Metadata.Description)
	}
	if p.Metadata.Company != "Acme" {
		t.Errorf("Company = %q, want Acme (unset fields leave earlier values)", p.Metadata.Company)
	}
}

func TestCompileRequiredModuleMerge(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "version = '1.0.0'\n")
	spec := Spec{
		Name:       "sample",
		SourcePath: dir,
		Version:    "2.0.0",
		Segments: []Segment{
			RequireSegment{Modules: []RequiredModuleDraft{
				{Name: "Foo", Minimum: "1.0"},
				{Name: "Bar"},
			}},
			RequireSegment{Modules: []RequiredModuleDraft{
				{Name: "foo", Version: "2.5"}, // same key, last wins
			}},
		},
	}

	p, err := Compile(spec, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(p.RequiredRuntime) != 2 {
		t.Fatalf("RequiredRuntime = %v, want exactly two entries", p.RequiredRuntime)
	}
	foo := p.RequiredRuntime[0]
	if foo.Name != "foo" || foo.Version != "2.5" || foo.Minimum != "" {
		t.Errorf("merged entry = %+v, want last-declared constraints", foo)
	}
	if !reflect.DeepEqual(p.RequiredRuntime, p.RequiredPackaging) {
		t.Errorf("runtime and packaging lists differ without external modules: %v vs %v",
			p.RequiredRuntime, p.RequiredPackaging)
	}
}

func TestCompileDependencyScopes(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "version = '1.0.0'\n")
	spec := Spec{
		Name:       "sample",
		SourcePath: dir,
		Version:    "2.0.0",
		Segments: []Segment{
			RequireSegment{Scope: ScopeRequired, Modules: []RequiredModuleDraft{{Name: "core"}}},
			RequireSegment{Scope: ScopeExternal, Modules: []RequiredModuleDraft{{Name: "vendor-tool"}}},
			RequireSegment{Scope: ScopeApproved, Modules: []RequiredModuleDraft{{Name: "inlined"}}},
		},
	}

	p, err := Compile(spec, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	runtimeNames := moduleNames(p.RequiredRuntime)
	if !reflect.DeepEqual(runtimeNames, []string{"core", "vendor-tool"}) {
		t.Errorf("RequiredRuntime = %v, want [core vendor-tool]", runtimeNames)
	}
	if names := moduleNames(p.RequiredPackaging); !reflect.DeepEqual(names, []string{"core"}) {
		t.Errorf("RequiredPackaging = %v, want [core] (external excluded)", names)
	}
	if !reflect.DeepEqual(p.External, []string{"vendor-tool"}) {
		t.Errorf("External = %v, want [vendor-tool]", p.External)
	}
	if !reflect.DeepEqual(p.Approved, []string{"inlined"}) {
		t.Errorf("Approved = %v, want [inlined]", p.Approved)
	}
}

func moduleNames(mods []RequiredModule) []string {
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	return names
}

func TestCompileVersionResolution(t *testing.T) {
	t.Parallel()

	t.Run("auto reads manifest", func(t *testing.T) {
		t.Parallel()
		dir := projectWithManifest(t, "name = 'sample'\nversion = '3.1.4'\n")
		p, err := Compile(Spec{Name: "sample", SourcePath: dir, Version: VersionAuto}, CompileOptions{})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if p.Version != "3.1.4" {
			t.Errorf("Version = %q, want 3.1.4", p.Version)
		}
	})

	t.Run("auto falls back with warning", func(t *testing.T) {
		t.Parallel()
		dir := projectWithManifest(t, "")
		p, err := Compile(Spec{Name: "sample", SourcePath: dir}, CompileOptions{})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if p.Version != "1.0.0" {
			t.Errorf("Version = %q, want fallback 1.0.0", p.Version)
		}
		if len(p.Warnings) == 0 {
			t.Error("fallback should record a warning")
		}
	})

	t.Run("literal used verbatim", func(t *testing.T) {
		t.Parallel()
		dir := projectWithManifest(t, "version = '1.0.0'\n")
		p, err := Compile(Spec{Name: "sample", SourcePath: dir, Version: "2.0.0"}, CompileOptions{})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if p.Version != "2.0.0" {
			t.Errorf("Version = %q, want 2.0.0", p.Version)
		}
	})

	t.Run("literal colliding with manifest version is stepped", func(t *testing.T) {
		t.Parallel()
		dir := projectWithManifest(t, "version = '2.0.0'\n")
		p, err := Compile(Spec{Name: "sample", SourcePath: dir, Version: "2.0.0"}, CompileOptions{})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if p.Version != "2.0.0.1" {
			t.Errorf("Version = %q, want stepped 2.0.0.1", p.Version)
		}
	})
}

func TestCompileDefaults(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "version = '1.0.0'\n")
	p, err := Compile(Spec{Name: "sample", SourcePath: dir, Version: "2.0.0"}, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if !p.MergeSources {
		t.Error("MergeSources should default to enabled")
	}
	if !reflect.DeepEqual(p.EntryScripts, []string{"sample.sh"}) {
		t.Errorf("EntryScripts = %v, want inferred [sample.sh]", p.EntryScripts)
	}
	if !p.Install.Enabled {
		t.Error("install should default to enabled")
	}
	if p.Install.Strategy != installer.StrategyAutoRevision {
		t.Errorf("Strategy = %q, want auto-revision default", p.Install.Strategy)
	}
	if p.Install.KeepCount != 1 {
		t.Errorf("KeepCount = %d, want floor 1", p.Install.KeepCount)
	}
	if !p.StagingAutoCreate {
		t.Error("StagingAutoCreate should be set without an explicit staging dir")
	}
}

func TestCompileManifestOnly(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "version = '1.0.0'\n")
	spec := Spec{
		Name:       "sample",
		SourcePath: dir,
		Version:    "2.0.0",
		Segments: []Segment{
			BuildSegment{ManifestOnly: true, SignIdentity: "release-key"},
			ValidationSegment{Enabled: true, Severity: SeverityError},
			TestSegment{Name: "smoke", Path: "tests"},
			ArtefactSegment{Name: "dist", Kind: ArtefactZip},
			PublishSegment{Name: "gallery", Repository: "https://example.com"},
			InstallSegment{Enabled: boolPtr(true)},
		},
	}

	p, err := Compile(spec, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if p.MergeSources || p.Install.Enabled || p.Validation.Enabled || p.SignIdentity != "" {
		t.Error("manifest-only mode must force off merge, install, validation, and signing")
	}
	if len(p.Tests)+len(p.Artefacts)+len(p.Publishes) != 0 {
		t.Error("manifest-only mode must drop test, artefact, and publish segments")
	}
}

func TestCompileOnlineResolution(t *testing.T) {
	t.Parallel()

	t.Run("auto-enabled by symbolic token", func(t *testing.T) {
		t.Parallel()
		dir := projectWithManifest(t, "version = '1.0.0'\n")
		spec := Spec{
			Name:       "sample",
			SourcePath: dir,
			Version:    "2.0.0",
			Segments: []Segment{
				RequireSegment{Modules: []RequiredModuleDraft{{Name: "util", Version: "latest"}}},
			},
		}
		p, err := Compile(spec, CompileOptions{Repository: stubRepository{"util": "4.2.0"}})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if !p.OnlineResolution {
			t.Error("online resolution should be auto-enabled by a symbolic token")
		}
		if p.RequiredRuntime[0].Version != "4.2.0" {
			t.Errorf("resolved version = %q, want 4.2.0", p.RequiredRuntime[0].Version)
		}
	})

	t.Run("explicit off wins", func(t *testing.T) {
		t.Parallel()
		dir := projectWithManifest(t, "version = '1.0.0'\n")
		spec := Spec{
			Name:       "sample",
			SourcePath: dir,
			Version:    "2.0.0",
			Segments: []Segment{
				RequireSegment{
					Modules:          []RequiredModuleDraft{{Name: "util", Version: "auto"}},
					OnlineResolution: boolPtr(false),
				},
			},
		}
		p, err := Compile(spec, CompileOptions{Repository: stubRepository{"util": "4.2.0"}})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if p.OnlineResolution {
			t.Error("explicit opt-out must not be overridden")
		}
		if p.RequiredRuntime[0].Version != "auto" {
			t.Errorf("version = %q, want untouched symbolic token", p.RequiredRuntime[0].Version)
		}
	})
}

type stubRepository map[string]string

func (r stubRepository) LatestVersion(name string) (string, error) {
	v, ok := r[name]
	if !ok {
		return "", errors.New("unknown module")
	}
	return v, nil
}

// stubLocator serves dependency manifests from a temp directory.
type stubLocator map[string]string

func (l stubLocator) FindManifest(name string) (string, bool) {
	path, ok := l[name]
	return path, ok
}

func TestCompileDependentWalk(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "version = '1.0.0'\n")

	writeDepManifest := func(requires string) string {
		depDir := t.TempDir()
		path := filepath.Join(depDir, "module.manifest")
		content := "name = 'dep'\nversion = '1.0.0'\nrequires = (" + requires + ")\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write dependency manifest: %v", err)
		}
		return path
	}

	// util requires transitive; transitive requires util back (cycle).
	locator := stubLocator{
		"util":       writeDepManifest("'transitive'"),
		"transitive": writeDepManifest("'util'"),
	}

	spec := Spec{
		Name:       "sample",
		SourcePath: dir,
		Version:    "2.0.0",
		Segments: []Segment{
			RequireSegment{Modules: []RequiredModuleDraft{{Name: "util"}}},
		},
	}

	p, err := Compile(spec, CompileOptions{Locator: locator})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	names := moduleNames(p.RequiredRuntime)
	if !reflect.DeepEqual(names, []string{"util", "transitive"}) {
		t.Errorf("RequiredRuntime = %v, want [util transitive]", names)
	}
}

func TestCompileEndToEndScenario(t *testing.T) {
	t.Parallel()

	dir := projectWithManifest(t, "name = 'Sample'\nversion = '1.0.0'\n")
	spec := Spec{
		Name:       "Sample",
		SourcePath: dir,
		Version:    "1.1.0",
		Segments: []Segment{
			RequireSegment{Modules: []RequiredModuleDraft{{Name: "Util"}}},
			ArtefactSegment{Name: "dist", Kind: ArtefactZip},
			InstallSegment{Enabled: boolPtr(false)},
		},
	}

	p, err := Compile(spec, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if names := moduleNames(p.RequiredRuntime); !reflect.DeepEqual(names, []string{"Util"}) {
		t.Errorf("RequiredRuntime = %v, want [Util]", names)
	}
	if len(p.Artefacts) != 1 {
		t.Errorf("Artefacts = %v, want one entry", p.Artefacts)
	}
	if p.Install.Enabled {
		t.Error("install must be disabled by the segment")
	}
}

func boolPtr(b bool) *bool { return &b }
