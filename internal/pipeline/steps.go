// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modforge/modforge/internal/toolchain"
	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/module"
	"github.com/modforge/modforge/pkg/plan"
)

// stage materializes the working copy of the module tree. An
// auto-generated staging directory is process-unique and eligible for
// cleanup; a caller-supplied one is reused and never deleted.
func (r *runState) stage() error {
	staging := r.plan.StagingDir
	if staging == "" {
		dir, err := os.MkdirTemp("", "modforge-"+r.plan.Name+"-")
		if err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		staging = dir
		r.stagingAuto = true
	} else if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	if err := copyTree(r.plan.SourcePath, staging); err != nil {
		return fmt.Errorf("failed to stage %s: %w", r.plan.SourcePath, err)
	}

	r.staging = staging
	r.result.StagingDir = staging
	return nil
}

// placeholders rewrites substitution tokens in staged text files. The
// built-in name/version/prerelease tokens are always available.
func (r *runState) placeholders() error {
	tokens := map[string]string{
		"name":       r.plan.Name,
		"version":    r.plan.Version,
		"prerelease": r.plan.Prerelease,
	}
	for k, v := range r.plan.Placeholders {
		tokens[strings.ToLower(k)] = v
	}
	return substitutePlaceholders(r.staging, tokens)
}

// build invokes the compiler collaborator.
func (r *runState) build() error {
	res, err := r.exec.tools.Compiler.Compile(toolchain.CompileRequest{
		ProjectDir: r.staging,
		OutputDir:  filepath.Join(r.staging, "bin"),
	})
	if err != nil {
		return &BuildToolError{Tool: "compiler", Output: res.Output, Err: err}
	}
	r.exec.logger.Info("built binary components", "count", len(res.Binaries))
	return nil
}

// mergeSources concatenates functions/*.sh into the module entry script
// and drops the per-file layout from the staged package.
func (r *runState) mergeSources() error {
	funcDir := filepath.Join(r.staging, module.SourcesDir)
	entries, err := os.ReadDir(funcDir)
	if err != nil {
		if os.IsNotExist(err) {
			r.exec.logger.Info("no function sources to merge", "module", r.plan.Name)
			return nil
		}
		return fmt.Errorf("failed to list function sources: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sh") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(funcDir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		b.WriteString("\n")
		b.Write(data)
		if !strings.HasSuffix(string(data), "\n") {
			b.WriteString("\n")
		}
	}

	entryScript := filepath.Join(r.staging, module.EntryScriptName(r.plan.Name))
	if err := os.WriteFile(entryScript, []byte(b.String()), 0o755); err != nil {
		return fmt.Errorf("failed to write entry script: %w", err)
	}
	if err := os.RemoveAll(funcDir); err != nil {
		return fmt.Errorf("failed to drop merged sources: %w", err)
	}
	r.exec.logger.Info("merged function sources", "files", len(names), "entry", entryScript)
	return nil
}

// refreshManifest patches the staged manifest with the resolved plan
// values and the discovered export surface.
func (r *runState) refreshManifest() error {
	path := filepath.Join(r.staging, manifest.FileName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("staged manifest unavailable: %w", err)
	}

	set := func(ok bool, key string) error {
		if !ok {
			return fmt.Errorf("failed to patch manifest key %q in %s", key, path)
		}
		return nil
	}

	if err := set(manifest.SetTopLevelString(path, "name", r.plan.Name), "name"); err != nil {
		return err
	}
	if err := set(manifest.SetTopLevelString(path, "version", r.plan.Version), "version"); err != nil {
		return err
	}

	meta := r.plan.Metadata
	if meta.Description != "" {
		if err := set(manifest.SetTopLevelString(path, "description", meta.Description), "description"); err != nil {
			return err
		}
	}
	if len(meta.Authors) > 0 {
		if err := set(manifest.SetTopLevelStringArray(path, "authors", meta.Authors), "authors"); err != nil {
			return err
		}
	}
	if len(r.plan.RequiredPackaging) > 0 {
		mods := plan.ManifestModules(r.plan.RequiredPackaging)
		if err := set(manifest.SetRequiredModules(path, mods), manifest.RequiredModulesKey); err != nil {
			return err
		}
	}

	nested := map[string]string{
		"prerelease":   r.plan.Prerelease,
		"licenseurl":   meta.LicenseURL,
		"projecturl":   meta.ProjectURL,
		"iconurl":      meta.IconURL,
		"releasenotes": meta.ReleaseNotes,
	}
	for key, value := range nested {
		if value == "" {
			continue
		}
		if err := set(manifest.SetNestedString(path, "extra", key, value), key); err != nil {
			return err
		}
	}
	if len(meta.Tags) > 0 {
		if err := set(manifest.SetNestedStringArray(path, "extra", "tags", meta.Tags), "tags"); err != nil {
			return err
		}
	}

	return r.patchExports(path, false)
}

// patchExports scans the staged entry scripts and writes the discovered
// export list. A wildcard exports declaration is left untouched: the
// module explicitly exports everything. With bestEffort set, failures
// are logged instead of returned.
func (r *runState) patchExports(path string, bestEffort bool) error {
	fail := func(err error) error {
		if bestEffort {
			r.exec.logger.Warn("post-format manifest patch failed", "error", err)
			return nil
		}
		return err
	}

	if existing := manifest.GetTopLevelStringArray(path, "exports"); existing.Wildcard {
		return nil
	}

	exports, err := r.exec.tools.Exports.DetectExports(r.entryScriptPaths())
	if err != nil {
		return fail(fmt.Errorf("export detection failed: %w", err))
	}
	if len(exports) == 0 {
		return nil
	}
	if !manifest.SetTopLevelStringArray(path, "exports", exports) {
		return fail(fmt.Errorf("failed to patch manifest key %q in %s", "exports", path))
	}
	r.result.Exports = exports
	return nil
}

func (r *runState) entryScriptPaths() []string {
	paths := make([]string, len(r.plan.EntryScripts))
	for i, s := range r.plan.EntryScripts {
		paths[i] = filepath.Join(r.staging, s)
	}
	return paths
}

// docs generates documentation into the configured output directory.
func (r *runState) docs() error {
	outDir := r.plan.Docs.OutputDir
	if outDir == "" {
		outDir = filepath.Join(r.staging, "docs")
	}
	written, err := r.exec.tools.Docs.Generate(r.staging, outDir)
	if err != nil {
		return &BuildToolError{Tool: "doc generator", Err: err}
	}
	r.exec.logger.Info("generated documentation", "files", len(written), "dir", outDir)
	return nil
}

// format pretty-prints the staged scripts, optionally the project tree
// too, then re-patches the manifest exports because formatting can move
// function declarations. The re-patch is best-effort.
func (r *runState) format() error {
	if err := formatTree(r.staging, r.plan.Format.IndentWidth); err != nil {
		return err
	}
	if r.plan.Format.ApplyToProject {
		if err := formatTree(r.plan.SourcePath, r.plan.Format.IndentWidth); err != nil {
			return err
		}
	}
	return r.patchExports(filepath.Join(r.staging, manifest.FileName), true)
}

func formatTree(dir string, indentWidth int) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sh") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		formatted, err := module.FormatIndent(data, d.Name(), indentWidth)
		if err != nil {
			return err
		}
		if string(formatted) == string(data) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		return os.WriteFile(path, formatted, info.Mode().Perm())
	})
}

// sign runs the signing collaborator over the staged scripts.
func (r *runState) sign() error {
	if r.exec.tools.Signer == nil {
		return &BuildToolError{Tool: "signer", Err: fmt.Errorf("signing requested but no signer configured")}
	}

	var files []string
	err := filepath.WalkDir(r.staging, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".sh") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list files to sign: %w", err)
	}

	results, err := r.exec.tools.Signer.Sign(files, r.plan.SignIdentity)
	if err != nil {
		return &BuildToolError{Tool: "signer", Err: err}
	}
	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", res.Path, res.Err))
		}
	}
	if len(failed) > 0 {
		return &ValidationFailure{Check: "signing", Findings: failed}
	}
	return nil
}

// consistency audits file conventions in staging and optionally the
// project tree. Findings are severity-gated.
func (r *runState) consistency() error {
	cfg := r.plan.Consistency
	lineEnding := cfg.LineEnding
	if lineEnding == "" {
		lineEnding = "lf"
	}

	dirs := []string{r.staging}
	if cfg.IncludeProject {
		dirs = append(dirs, r.plan.SourcePath)
	}

	var findings []string
	for _, dir := range dirs {
		found, err := r.exec.tools.Auditor.Audit(dir, lineEnding)
		if err != nil {
			return &BuildToolError{Tool: "file auditor", Err: err}
		}
		for _, f := range found {
			findings = append(findings, fmt.Sprintf("%s:%d: %s", f.Path, f.Line, f.Message))
		}
	}
	return r.gate("file-consistency", cfg.Severity, findings)
}

// compat parses the entry scripts under each configured shell dialect.
// Findings are severity-gated.
func (r *runState) compat() error {
	dialects := r.plan.Compat.Dialects
	if len(dialects) == 0 {
		dialects = []string{"posix"}
	}

	var findings []string
	for _, path := range r.entryScriptPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read entry script: %w", err)
		}
		for _, dialect := range dialects {
			if err := module.CheckDialect(strings.NewReader(string(data)), filepath.Base(path), dialect); err != nil {
				findings = append(findings, err.Error())
			}
		}
	}
	return r.gate("compatibility", r.plan.Compat.Severity, findings)
}

// validate checks module structure and runs the static analyzer over
// the staged scripts (both severity-gated), then resolves
// command-dependency hints, which are fatal unless explicitly ignored.
func (r *runState) validate() error {
	if r.plan.Validation.Enabled {
		result, err := module.Validate(r.staging, r.plan.Name)
		if err != nil {
			return fmt.Errorf("module validation could not run: %w", err)
		}
		var findings []string
		for _, issue := range result.Issues {
			findings = append(findings, issue.Error())
		}
		if err := r.gate("module validation", r.plan.Validation.Severity, findings); err != nil {
			return err
		}

		found, err := r.exec.tools.Analyzer.Analyze(r.staging)
		if err != nil {
			return &BuildToolError{Tool: "analyzer", Err: err}
		}
		var analyzed []string
		for _, f := range found {
			analyzed = append(analyzed, fmt.Sprintf("%s:%d: %s", f.Path, f.Line, f.Message))
		}
		if err := r.gate("static analysis", r.plan.Validation.Severity, analyzed); err != nil {
			return err
		}
	}

	var missing []string
	for _, cmd := range r.plan.CommandHints {
		if _, err := exec.LookPath(cmd); err != nil {
			missing = append(missing, cmd)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if r.plan.IgnoreMissingCommands {
		r.exec.logger.Warn("ignoring missing command dependencies", "commands", strings.Join(missing, ", "))
		return nil
	}
	return &MissingDependencyError{Kind: "command", Names: missing}
}

// smoke sources every staged entry script in the embedded interpreter.
func (r *runState) smoke() error {
	for _, path := range r.entryScriptPaths() {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("entry script unavailable: %w", err)
		}
		if err := r.exec.tools.Runner.RunScript(path, r.staging, smokeTimeout); err != nil {
			return fmt.Errorf("import smoke test failed: %w", err)
		}
	}
	return nil
}

// runTests executes one functional test segment against the staged
// tree. Any failed test is fatal.
func (r *runState) runTests(seg plan.TestSettings) error {
	path := seg.Path
	if path == "" {
		path = module.TestsDir
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.staging, path)
	}

	summary, err := r.exec.tools.Tests.Run(path, seg.Timeout)
	if err != nil {
		return &BuildToolError{Tool: "test runner", Err: err}
	}
	r.result.Tests[seg.Name] = summary
	if summary.Failed > 0 {
		return &ValidationFailure{
			Check: "tests",
			Findings: []string{fmt.Sprintf("%s: %d passed, %d failed, %d skipped",
				seg.Name, summary.Passed, summary.Failed, summary.Skipped)},
		}
	}
	return nil
}

// buildArtefact archives the staged package. Entries are rooted at
// <name>/<version>/ so extraction matches the installed layout.
func (r *runState) buildArtefact(seg plan.ArtefactSettings) error {
	outDir := seg.OutputDir
	if outDir == "" {
		outDir = filepath.Join(r.plan.SourcePath, "dist")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create artefact directory: %w", err)
	}

	rootPrefix := filepath.Join(r.plan.Name, r.plan.Version)
	base := fmt.Sprintf("%s-%s", r.plan.Name, r.plan.Version)

	var outputPath string
	var err error
	switch seg.Kind {
	case plan.ArtefactTarGz:
		outputPath = filepath.Join(outDir, base+".tar.gz")
		err = buildTarGz(r.staging, outputPath, rootPrefix)
	case plan.ArtefactZip, "":
		outputPath = filepath.Join(outDir, base+".zip")
		err = buildZip(r.staging, outputPath, rootPrefix)
	default:
		return fmt.Errorf("unknown artefact kind %q", seg.Kind)
	}
	if err != nil {
		return err
	}

	r.result.Artefacts = append(r.result.Artefacts, outputPath)
	r.artefactsByName[strings.ToLower(seg.Name)] = outputPath
	return nil
}

// publish uploads one artefact to its repository target.
func (r *runState) publish(seg plan.PublishSettings) error {
	artefact, err := r.lookupArtefact(seg)
	if err != nil {
		return err
	}

	var cred toolchain.Credential
	if seg.CredentialKey != "" {
		if r.exec.creds == nil {
			return &PublishError{Target: seg.Name, Reason: "no credential source configured"}
		}
		var ok bool
		cred, ok = r.exec.creds.Lookup(seg.CredentialKey)
		if !ok {
			return &PublishError{Target: seg.Name,
				Reason: fmt.Sprintf("credential %q not found", seg.CredentialKey)}
		}
	}

	res, err := r.exec.tools.Publisher.Publish(toolchain.PublishRequest{
		ArtefactPath: artefact,
		Repository:   seg.Repository,
		Credential:   cred,
	})
	if err != nil {
		return &PublishError{Target: seg.Name, Err: err}
	}
	r.result.Published = append(r.result.Published, res.URL)
	return nil
}

func (r *runState) lookupArtefact(seg plan.PublishSettings) (string, error) {
	if seg.Artefact != "" {
		path, ok := r.artefactsByName[strings.ToLower(seg.Artefact)]
		if !ok {
			return "", &PublishError{Target: seg.Name,
				Reason: fmt.Sprintf("no artefact named %q was built", seg.Artefact)}
		}
		return path, nil
	}
	if len(r.result.Artefacts) == 0 {
		return "", &PublishError{Target: seg.Name, Reason: "no matching artefact"}
	}
	return r.result.Artefacts[0], nil
}

// install places the staged package into the destination roots.
func (r *runState) install() error {
	res, err := installer.Install(r.staging, r.plan.Name, r.plan.Version, installer.Options{
		Roots:      r.plan.Install.Roots,
		Strategy:   r.plan.Install.Strategy,
		KeepCount:  r.plan.Install.KeepCount,
		LegacyMode: r.plan.Install.LegacyMode,
		Preserve:   r.plan.Install.Preserve,
		Logger:     r.exec.logger,
	})
	if err != nil {
		return err
	}
	r.result.Install = res
	return nil
}

// cleanup removes an auto-generated staging directory unless the caller
// asked to keep it. Deletion is best-effort and never fails the run.
func (r *runState) cleanup() error {
	if r.staging == "" || !r.stagingAuto || r.plan.KeepStaging {
		return nil
	}
	if err := os.RemoveAll(r.staging); err != nil {
		r.exec.logger.Warn("failed to remove staging directory", "path", r.staging, "error", err)
		return nil
	}
	r.result.StagingDir = ""
	return nil
}

// gate converts findings into a fatal error only at error severity;
// lower severities log and continue.
func (r *runState) gate(check string, sev plan.Severity, findings []string) error {
	if len(findings) == 0 {
		return nil
	}
	if sev == plan.SeverityError {
		return &ValidationFailure{Check: check, Findings: findings}
	}
	r.exec.logger.Warn(check+" reported findings",
		"count", len(findings), "first", findings[0])
	return nil
}
