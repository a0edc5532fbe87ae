// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/semver"
)

// defaultVersion is used when the version token is "auto" and the
// project manifest cannot supply one.
const defaultVersion = "1.0.0"

// ModuleLocator finds the manifest of an already-known module by name,
// so dependency declarations of dependencies can be walked.
type ModuleLocator interface {
	// FindManifest returns the manifest path of the named module and
	// whether it was found. Lookup is case-insensitive.
	FindManifest(name string) (string, bool)
}

// VersionLookup resolves a symbolic dependency version ("auto",
// "latest") against a module repository.
type VersionLookup interface {
	// LatestVersion returns the newest published version of the named
	// module.
	LatestVersion(name string) (string, error)
}

// CompileOptions carries the collaborators Compile may consult. All
// fields are optional.
type CompileOptions struct {
	// Logger receives merge decisions and recorded warnings. Nil means
	// a silent logger.
	Logger *log.Logger

	// Locator enables the recursive dependent-module walk. Nil skips
	// the walk.
	Locator ModuleLocator

	// Repository resolves symbolic dependency versions when online
	// resolution is active. Nil leaves symbolic tokens in place with a
	// recorded warning.
	Repository VersionLookup
}

// Compile merges the spec's segments in order into a resolved Plan.
// It fails with a *ConfigurationError when the module name or source
// path is blank. Compilation reads the project manifest (for "auto"
// version resolution and the dependent-module walk) but has no other
// externally observable side effects.
func Compile(spec Spec, opts CompileOptions) (*Plan, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, configErrorf("name", "module name must not be blank")
	}
	if strings.TrimSpace(spec.SourcePath) == "" {
		return nil, configErrorf("sourcePath", "source path must not be blank")
	}

	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	c := newCompiler(spec, opts)
	for _, seg := range spec.Segments {
		c.apply(seg)
	}
	return c.finish()
}

// compiler is the explicit merge-pass context: per-concern accumulator
// state threaded through segment application, plus recorded warnings.
// It exists for the duration of one Compile call.
type compiler struct {
	spec   Spec
	opts   CompileOptions
	logger *log.Logger

	meta         Metadata
	prerelease   string
	mergeSources *bool
	manifestOnly bool
	entryScripts []string
	signIdentity string
	stagingDir   string
	keepStaging  bool

	required []RequiredModuleDraft
	byName   map[string]int // lowercase name -> index into required
	scopes   map[string]RequireScope

	online *bool

	commandHints  []string
	ignoreMissing bool

	docs        DocsSettings
	format      FormatSettings
	validation  CheckSettings
	compat      CompatSettings
	consistency ConsistencySettings

	placeholders map[string]string

	tests     []TestSettings
	artefacts []ArtefactSettings
	publishes []PublishSettings

	install        InstallSegment
	installEnabled *bool

	warnings []string
}

func newCompiler(spec Spec, opts CompileOptions) *compiler {
	return &compiler{
		spec:         spec,
		opts:         opts,
		logger:       opts.Logger,
		byName:       map[string]int{},
		scopes:       map[string]RequireScope{},
		placeholders: map[string]string{},
	}
}

func (c *compiler) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn(msg)
	c.warnings = append(c.warnings, msg)
}

// apply folds one segment into the accumulator state.
func (c *compiler) apply(seg Segment) {
	switch s := seg.(type) {
	case MetadataSegment:
		setScalar(&c.meta.Description, s.Description)
		setScalar(&c.meta.Company, s.Company)
		setScalar(&c.meta.Copyright, s.Copyright)
		setScalar(&c.meta.LicenseURL, s.LicenseURL)
		setScalar(&c.meta.ProjectURL, s.ProjectURL)
		setScalar(&c.meta.IconURL, s.IconURL)
		setScalar(&c.meta.ReleaseNotes, s.ReleaseNotes)
		setScalar(&c.prerelease, s.Prerelease)
		c.meta.Authors = appendUnique(c.meta.Authors, s.Authors)
		c.meta.Tags = appendUnique(c.meta.Tags, s.Tags)

	case BuildSegment:
		if s.MergeSources != nil {
			c.mergeSources = s.MergeSources
		}
		if s.ManifestOnly {
			c.manifestOnly = true
		}
		c.entryScripts = appendUnique(c.entryScripts, s.EntryScripts)
		setScalar(&c.signIdentity, s.SignIdentity)
		setScalar(&c.stagingDir, s.StagingDir)
		if s.KeepStaging {
			c.keepStaging = true
		}

	case RequireSegment:
		for _, m := range s.Modules {
			c.mergeModule(m, s.Scope)
		}
		if s.OnlineResolution != nil {
			c.online = s.OnlineResolution
		}

	case CommandHintSegment:
		c.commandHints = appendUnique(c.commandHints, s.Commands)
		if s.IgnoreMissing {
			c.ignoreMissing = true
		}

	case DocsSegment:
		c.docs.Enabled = s.Enabled
		setScalar(&c.docs.OutputDir, s.OutputDir)

	case FormatSegment:
		c.format.Enabled = s.Enabled
		if s.ApplyToProject {
			c.format.ApplyToProject = true
		}
		if s.IndentWidth > 0 {
			c.format.IndentWidth = s.IndentWidth
		}

	case ValidationSegment:
		c.validation.Enabled = s.Enabled
		if s.Severity != "" {
			c.validation.Severity = s.Severity
		}

	case CompatSegment:
		c.compat.Enabled = s.Enabled
		if s.Severity != "" {
			c.compat.Severity = s.Severity
		}
		c.compat.Dialects = appendUnique(c.compat.Dialects, s.Dialects)

	case ConsistencySegment:
		c.consistency.Enabled = s.Enabled
		if s.Severity != "" {
			c.consistency.Severity = s.Severity
		}
		setScalar(&c.consistency.LineEnding, s.LineEnding)
		if s.IncludeProject {
			c.consistency.IncludeProject = true
		}

	case PlaceholderSegment:
		for k, v := range s.Tokens {
			c.placeholders[strings.ToLower(k)] = v
		}

	case TestSegment:
		c.tests = append(c.tests, TestSettings(s))

	case ArtefactSegment:
		c.artefacts = append(c.artefacts, ArtefactSettings(s))

	case PublishSegment:
		c.publishes = append(c.publishes, PublishSettings(s))

	case InstallSegment:
		if s.Enabled != nil {
			c.installEnabled = s.Enabled
		}
		if s.Strategy != "" {
			c.install.Strategy = s.Strategy
		}
		if s.KeepCount > 0 {
			c.install.KeepCount = s.KeepCount
		}
		c.install.Roots = appendUnique(c.install.Roots, s.Roots)
		if s.LegacyMode != "" {
			c.install.LegacyMode = s.LegacyMode
		}
		c.install.Preserve = appendUnique(c.install.Preserve, s.Preserve)
	}
}

// mergeModule folds one dependency declaration into the keyed required
// set. Names compare case-insensitively; the last declaration wins both
// the constraint fields and the scope.
func (c *compiler) mergeModule(draft RequiredModuleDraft, scope RequireScope) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		c.warnf("skipping dependency declaration with blank name")
		return
	}
	if scope == "" {
		scope = ScopeRequired
	}
	draft.Name = name

	key := strings.ToLower(name)
	if i, ok := c.byName[key]; ok {
		c.required[i] = draft
	} else {
		c.byName[key] = len(c.required)
		c.required = append(c.required, draft)
	}
	c.scopes[key] = scope
}

// finish resolves every post-scan concern and freezes the Plan.
func (c *compiler) finish() (*Plan, error) {
	p := &Plan{
		Name:         c.spec.Name,
		SourcePath:   c.spec.SourcePath,
		Prerelease:   c.prerelease,
		Metadata:     c.meta,
		ManifestOnly: c.manifestOnly,
		SignIdentity: c.signIdentity,
		Docs:         c.docs,
		Format:       c.format,
		Validation:   c.validation,
		Compat:       c.compat,
		Consistency:  c.consistency,
		Placeholders: c.placeholders,
		Tests:        c.tests,
		Artefacts:    c.artefacts,
		Publishes:    c.publishes,
		StagingDir:   c.stagingDir,
		KeepStaging:  c.keepStaging,

		CommandHints:          c.commandHints,
		IgnoreMissingCommands: c.ignoreMissing,
	}
	p.StagingAutoCreate = c.stagingDir == ""

	p.Version = c.resolveVersion()

	p.MergeSources = c.mergeSources == nil || *c.mergeSources

	p.EntryScripts = c.entryScripts
	if len(p.EntryScripts) == 0 {
		// Infer the single merged entry script.
		p.EntryScripts = []string{c.spec.Name + ".sh"}
	}

	c.resolveOnline()
	p.OnlineResolution = c.online != nil && *c.online

	c.walkDependents()

	for _, draft := range c.required {
		mod := RequiredModule(draft)
		switch c.scopes[strings.ToLower(draft.Name)] {
		case ScopeApproved:
			p.Approved = append(p.Approved, draft.Name)
		case ScopeExternal:
			p.External = append(p.External, draft.Name)
			p.RequiredRuntime = append(p.RequiredRuntime, mod)
		default:
			p.RequiredRuntime = append(p.RequiredRuntime, mod)
			p.RequiredPackaging = append(p.RequiredPackaging, mod)
		}
	}

	p.Install = InstallPolicy{
		Enabled:    c.installEnabled == nil || *c.installEnabled,
		Strategy:   c.install.Strategy,
		KeepCount:  c.install.KeepCount,
		Roots:      c.install.Roots,
		LegacyMode: c.install.LegacyMode,
		Preserve:   c.install.Preserve,
	}
	if p.Install.Strategy == "" {
		p.Install.Strategy = installer.StrategyAutoRevision
	}
	if p.Install.KeepCount < 1 {
		p.Install.KeepCount = 1
	}

	if p.ManifestOnly {
		c.forceManifestOnly(p)
	}

	p.Warnings = c.warnings
	return p, nil
}

// resolveVersion turns the spec's version token into a concrete target
// version, reading the project manifest for "auto" and stepping a
// literal that collides with the current manifest version.
func (c *compiler) resolveVersion() string {
	manifestPath := filepath.Join(c.spec.SourcePath, manifest.FileName)
	current, haveCurrent := manifest.GetTopLevelString(manifestPath, "version")

	token := strings.TrimSpace(c.spec.Version)
	if token == "" || strings.EqualFold(token, VersionAuto) {
		if haveCurrent && semver.IsValid(current) {
			return current
		}
		c.warnf("manifest version unreadable at %s, defaulting to %s", manifestPath, defaultVersion)
		return defaultVersion
	}

	if haveCurrent && versionCollides(token, current) {
		next, err := semver.NextRevision(token, []string{current})
		if err == nil {
			c.logger.Info("stepping requested version past current manifest version",
				"requested", token, "current", current, "resolved", next)
			return next
		}
		c.warnf("cannot step version %q: %v", token, err)
	}
	return token
}

// versionCollides reports whether current already occupies the requested
// base version, either exactly or as a numbered revision of it.
func versionCollides(requested, current string) bool {
	if strings.EqualFold(requested, current) {
		return true
	}
	if !strings.HasPrefix(current, requested+".") {
		return false
	}
	suffix := current[len(requested)+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return suffix != ""
}

// resolveOnline auto-enables online resolution when a symbolic version
// token appears and the caller did not decide explicitly, then replaces
// symbolic tokens via the repository collaborator when available.
func (c *compiler) resolveOnline() {
	symbolic := false
	for _, m := range c.required {
		if isSymbolicVersion(m.Version) {
			symbolic = true
			break
		}
	}

	if c.online == nil && symbolic {
		on := true
		c.online = &on
		c.logger.Info("enabling online dependency resolution: symbolic version tokens present")
	}
	if c.online == nil || !*c.online || !symbolic {
		return
	}

	if c.opts.Repository == nil {
		c.warnf("online resolution requested but no repository available; symbolic versions left unresolved")
		return
	}
	for i, m := range c.required {
		if !isSymbolicVersion(m.Version) {
			continue
		}
		resolved, err := c.opts.Repository.LatestVersion(m.Name)
		if err != nil {
			c.warnf("cannot resolve version of dependency %s: %v", m.Name, err)
			continue
		}
		c.required[i].Version = resolved
	}
}

func isSymbolicVersion(v string) bool {
	return strings.EqualFold(v, "auto") || strings.EqualFold(v, "latest")
}

// walkDependents recursively pulls in dependencies of dependencies not
// already covered by the required or approved sets. The walk is keyed by
// lowercase name and cycle-safe.
func (c *compiler) walkDependents() {
	if c.opts.Locator == nil {
		return
	}

	visited := map[string]bool{}
	queue := make([]string, 0, len(c.required))
	for _, m := range c.required {
		queue = append(queue, m.Name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		key := strings.ToLower(name)
		if visited[key] {
			continue
		}
		visited[key] = true

		path, ok := c.opts.Locator.FindManifest(name)
		if !ok {
			continue
		}
		deps, ok := manifest.GetRequiredModules(path)
		if !ok {
			continue
		}
		for _, dep := range deps {
			depKey := strings.ToLower(dep.Name)
			if _, known := c.byName[depKey]; known {
				queue = append(queue, dep.Name)
				continue
			}
			c.logger.Info("adding dependent module", "module", dep.Name, "requiredBy", name)
			c.mergeModule(RequiredModuleDraft{
				Name:    dep.Name,
				Version: dep.Version,
				Minimum: dep.Minimum,
				Maximum: dep.Maximum,
				GUID:    dep.GUID,
			}, ScopeRequired)
			queue = append(queue, dep.Name)
		}
	}
}

// forceManifestOnly turns off every step beyond the manifest refresh,
// logging each suppression.
func (c *compiler) forceManifestOnly(p *Plan) {
	off := func(name string, was bool) bool {
		if was {
			c.logger.Info("manifest-only mode: disabling "+name, "module", p.Name)
		}
		return false
	}

	p.MergeSources = off("source merge", p.MergeSources)
	p.Install.Enabled = off("install", p.Install.Enabled)
	p.Validation.Enabled = off("validation", p.Validation.Enabled)
	p.Compat.Enabled = off("compatibility check", p.Compat.Enabled)
	p.Consistency.Enabled = off("file-consistency audit", p.Consistency.Enabled)
	p.Docs.Enabled = off("documentation", p.Docs.Enabled)
	p.Format.Enabled = off("formatting", p.Format.Enabled)
	if p.SignIdentity != "" {
		c.logger.Info("manifest-only mode: disabling signing", "module", p.Name)
		p.SignIdentity = ""
	}
	if len(p.Tests)+len(p.Artefacts)+len(p.Publishes) > 0 {
		c.logger.Info("manifest-only mode: dropping test, artefact, and publish segments",
			"module", p.Name)
		p.Tests, p.Artefacts, p.Publishes = nil, nil, nil
	}
}

// setScalar overwrites dst only when v is non-empty: the last non-empty
// segment value wins.
func setScalar(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// appendUnique appends items not yet present, comparing case-insensitively.
func appendUnique(dst, items []string) []string {
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		present := slices.ContainsFunc(dst, func(existing string) bool {
			return strings.EqualFold(existing, item)
		})
		if !present {
			dst = append(dst, item)
		}
	}
	return dst
}
