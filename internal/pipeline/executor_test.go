// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/modforge/modforge/internal/toolchain"
	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/plan"
)

// recordingSink captures the notification stream for assertions.
type recordingSink struct {
	started   []string
	completed []string
	failed    []string
	skipped   []string
}

func (s *recordingSink) StepStarting(step Step)      { s.started = append(s.started, step.Key) }
func (s *recordingSink) StepCompleted(step Step)     { s.completed = append(s.completed, step.Key) }
func (s *recordingSink) StepFailed(step Step, _ error) {
	s.failed = append(s.failed, step.Key)
}
func (s *recordingSink) StepSkipped(step Step) { s.skipped = append(s.skipped, step.Key) }

func scaffoldProject(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"module.manifest":    "name    = 'greeter'\nversion = '0.1.0'\n",
		"functions/greet.sh": script,
		"tests/ok.sh":        "true\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func basePlan(sourcePath, installRoot string) *plan.Plan {
	return &plan.Plan{
		Name:         "greeter",
		SourcePath:   sourcePath,
		Version:      "0.2.0",
		MergeSources: true,
		EntryScripts: []string{"greeter.sh"},
		Validation:   plan.CheckSettings{Enabled: true, Severity: plan.SeverityError},
		Compat:       plan.CompatSettings{Enabled: true, Severity: plan.SeverityError, Dialects: []string{"posix"}},
		Tests:        []plan.TestSettings{{Name: "unit", Path: "tests"}},
		Artefacts:    []plan.ArtefactSettings{{Name: "dist", Kind: plan.ArtefactZip}},
		Install: plan.InstallPolicy{
			Enabled:   true,
			Strategy:  installer.StrategyExact,
			KeepCount: 2,
			Roots:     []string{installRoot},
		},
	}
}

func TestExecuteFullRun(t *testing.T) {
	t.Parallel()

	project := scaffoldProject(t, "greet() {\n\techo hello\n}\n")
	root := t.TempDir()
	p := basePlan(project, root)

	sink := &recordingSink{}
	result, err := New(Options{}).Execute(p, sink)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(sink.failed)+len(sink.skipped) != 0 {
		t.Errorf("failed=%v skipped=%v, want none", sink.failed, sink.skipped)
	}
	if !reflect.DeepEqual(sink.started, sink.completed) {
		t.Errorf("started %v and completed %v diverge", sink.started, sink.completed)
	}

	// Exports discovered from the merged entry script.
	if !reflect.DeepEqual(result.Exports, []string{"greet"}) {
		t.Errorf("Exports = %v, want [greet]", result.Exports)
	}

	// One artefact under <project>/dist.
	if len(result.Artefacts) != 1 {
		t.Fatalf("Artefacts = %v, want one", result.Artefacts)
	}
	wantArtefact := filepath.Join(project, "dist", "greeter-0.2.0.zip")
	if result.Artefacts[0] != wantArtefact {
		t.Errorf("artefact = %s, want %s", result.Artefacts[0], wantArtefact)
	}
	if _, statErr := os.Stat(wantArtefact); statErr != nil {
		t.Errorf("artefact missing: %v", statErr)
	}

	// Test segment ran and passed.
	if summary := result.Tests["unit"]; summary.Passed != 1 || summary.Failed != 0 {
		t.Errorf("test summary = %+v, want one pass", summary)
	}

	// Installed package carries the refreshed manifest.
	installed := filepath.Join(root, "greeter", "0.2.0")
	if result.Install == nil || len(result.Install.InstalledPaths) != 1 ||
		result.Install.InstalledPaths[0] != installed {
		t.Fatalf("Install = %+v, want path %s", result.Install, installed)
	}
	version, ok := manifest.GetTopLevelString(filepath.Join(installed, manifest.FileName), "version")
	if !ok || version != "0.2.0" {
		t.Errorf("installed manifest version = %q, want 0.2.0", version)
	}
	exports := manifest.GetTopLevelStringArray(filepath.Join(installed, manifest.FileName), "exports")
	if !reflect.DeepEqual(exports.Values, []string{"greet"}) {
		t.Errorf("installed exports = %v, want [greet]", exports.Values)
	}

	// Merged layout: entry script present, per-file sources gone.
	if _, statErr := os.Stat(filepath.Join(installed, "greeter.sh")); statErr != nil {
		t.Errorf("entry script missing: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(installed, "functions")); !os.IsNotExist(statErr) {
		t.Error("merged per-file sources should not be packaged")
	}

	// Auto-generated staging is cleaned up.
	if result.StagingDir != "" {
		t.Errorf("StagingDir = %q, want empty after cleanup", result.StagingDir)
	}
}

func TestExecuteFailFastSkipsAndCleansUp(t *testing.T) {
	t.Parallel()

	// Bash-only syntax fails the posix compat gate at error severity.
	project := scaffoldProject(t, "greet() {\n\tlocal x=(1 2)\n\techo \"${x[@]}\"\n}\n")
	root := t.TempDir()
	p := basePlan(project, root)

	sink := &recordingSink{}
	result, err := New(Options{}).Execute(p, sink)
	if err == nil {
		t.Fatal("Execute() should fail on the compat gate")
	}
	var vf *ValidationFailure
	if !errors.As(err, &vf) || vf.Check != "compatibility" {
		t.Fatalf("error = %v, want compatibility ValidationFailure", err)
	}

	if len(sink.failed) != 1 || sink.failed[0] != "compat" {
		t.Errorf("failed = %v, want [compat]", sink.failed)
	}
	want := []string{"validate", "smoke", "test:unit", "artefact:dist", "install"}
	if !reflect.DeepEqual(sink.skipped, want) {
		t.Errorf("skipped = %v, want %v", sink.skipped, want)
	}

	// Cleanup still ran and nothing was installed.
	if sink.completed[len(sink.completed)-1] != "cleanup" {
		t.Errorf("last completed step = %v, want cleanup", sink.completed)
	}
	if result.Install != nil {
		t.Error("install must not run after a failed gate")
	}
	if _, statErr := os.Stat(filepath.Join(root, "greeter")); !os.IsNotExist(statErr) {
		t.Error("no module directory should exist under the install root")
	}
}

func TestExecuteAnalyzerGatesUnparsableScripts(t *testing.T) {
	t.Parallel()

	// A payload script that is not an entry script still gets staged and
	// must be caught by the static-analysis gate inside validate.
	project := scaffoldProject(t, "greet() {\n\techo hello\n}\n")
	badScript := filepath.Join(project, "payload", "broken.sh")
	if err := os.MkdirAll(filepath.Dir(badScript), 0o755); err != nil {
		t.Fatalf("failed to create payload dir: %v", err)
	}
	if err := os.WriteFile(badScript, []byte("if then fi (\n"), 0o644); err != nil {
		t.Fatalf("failed to write payload script: %v", err)
	}

	root := t.TempDir()
	p := basePlan(project, root)
	p.Compat.Enabled = false

	sink := &recordingSink{}
	result, err := New(Options{}).Execute(p, sink)
	if err == nil {
		t.Fatal("Execute() should fail on the static-analysis gate")
	}
	var vf *ValidationFailure
	if !errors.As(err, &vf) || vf.Check != "static analysis" {
		t.Fatalf("error = %v, want static analysis ValidationFailure", err)
	}
	if len(vf.Findings) != 1 || !strings.Contains(vf.Findings[0], filepath.Join("payload", "broken.sh")) {
		t.Errorf("Findings = %v, want one naming payload/broken.sh", vf.Findings)
	}

	if len(sink.failed) != 1 || sink.failed[0] != "validate" {
		t.Errorf("failed = %v, want [validate]", sink.failed)
	}
	if result.Install != nil {
		t.Error("install must not run after a failed analysis gate")
	}

	// At warning severity the same findings only annotate the run.
	p2 := basePlan(project, root)
	p2.Compat.Enabled = false
	p2.Validation.Severity = plan.SeverityWarning
	if _, err := New(Options{}).Execute(p2, nil); err != nil {
		t.Fatalf("Execute() error = %v, warning severity must not abort", err)
	}
}

func TestExecuteWarningSeverityContinues(t *testing.T) {
	t.Parallel()

	project := scaffoldProject(t, "greet() {\n\tlocal x=(1 2)\n\techo \"${x[@]}\"\n}\n")
	root := t.TempDir()
	p := basePlan(project, root)
	p.Compat.Severity = plan.SeverityWarning
	p.Compat.Dialects = []string{"posix"}
	// The entry script is valid bash, so smoke and validation still pass.

	sink := &recordingSink{}
	if _, err := New(Options{}).Execute(p, sink); err != nil {
		t.Fatalf("Execute() error = %v, warning severity must not abort", err)
	}
	if len(sink.failed) != 0 {
		t.Errorf("failed = %v, want none", sink.failed)
	}
}

func TestExecutePublishWithoutCredentials(t *testing.T) {
	t.Parallel()

	project := scaffoldProject(t, "greet() {\n\techo hello\n}\n")
	p := basePlan(project, t.TempDir())
	p.Publishes = []plan.PublishSettings{{
		Name:          "gallery",
		Repository:    "https://repo.example.com/modules",
		CredentialKey: "gallery-token",
	}}

	_, err := New(Options{}).Execute(p, nil)
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("error = %v, want *PublishError", err)
	}
	if pubErr.Target != "gallery" {
		t.Errorf("Target = %q, want gallery", pubErr.Target)
	}
}

func TestExecuteKeepStaging(t *testing.T) {
	t.Parallel()

	project := scaffoldProject(t, "greet() {\n\techo hello\n}\n")
	p := basePlan(project, t.TempDir())
	p.KeepStaging = true
	p.Install.Enabled = false
	p.Tests, p.Artefacts = nil, nil

	result, err := New(Options{}).Execute(p, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.StagingDir == "" {
		t.Fatal("StagingDir should be reported when staging is kept")
	}
	t.Cleanup(func() { _ = os.RemoveAll(result.StagingDir) })
	if _, statErr := os.Stat(result.StagingDir); statErr != nil {
		t.Errorf("kept staging directory missing: %v", statErr)
	}
}

// stubPublisher records requests without network access.
type stubPublisher struct {
	requests []toolchain.PublishRequest
}

func (s *stubPublisher) Publish(req toolchain.PublishRequest) (toolchain.PublishResult, error) {
	s.requests = append(s.requests, req)
	return toolchain.PublishResult{URL: req.Repository + "/" + filepath.Base(req.ArtefactPath)}, nil
}

type stubCreds map[string]toolchain.Credential

func (s stubCreds) Lookup(key string) (toolchain.Credential, bool) {
	c, ok := s[key]
	return c, ok
}

func TestExecutePublishUsesNamedArtefact(t *testing.T) {
	t.Parallel()

	project := scaffoldProject(t, "greet() {\n\techo hello\n}\n")
	p := basePlan(project, t.TempDir())
	p.Install.Enabled = false
	p.Artefacts = []plan.ArtefactSettings{
		{Name: "zipdist", Kind: plan.ArtefactZip},
		{Name: "tardist", Kind: plan.ArtefactTarGz},
	}
	p.Publishes = []plan.PublishSettings{{
		Name:          "gallery",
		Repository:    "https://repo.example.com/modules",
		Artefact:      "tardist",
		CredentialKey: "gallery",
	}}

	pub := &stubPublisher{}
	executor := New(Options{
		Tools:       toolchain.Toolchain{Publisher: pub},
		Credentials: stubCreds{"gallery": {Token: "secret"}},
	})
	result, err := executor.Execute(p, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(pub.requests) != 1 {
		t.Fatalf("publish requests = %d, want 1", len(pub.requests))
	}
	req := pub.requests[0]
	if filepath.Ext(req.ArtefactPath) != ".gz" {
		t.Errorf("published %s, want the tar.gz artefact", req.ArtefactPath)
	}
	if req.Credential.Token != "secret" {
		t.Error("credential was not resolved")
	}
	if len(result.Published) != 1 {
		t.Errorf("Published = %v, want one URL", result.Published)
	}
}
