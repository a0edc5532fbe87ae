// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modforge/modforge/internal/toolchain"
	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/plan"
)

// smokeTimeout bounds the import smoke test of each entry script.
const smokeTimeout = 30 * time.Second

// CredentialSource resolves a publish credential by its key in the
// credentials file.
type CredentialSource interface {
	Lookup(key string) (toolchain.Credential, bool)
}

// Options configures an Executor.
type Options struct {
	// Tools supplies the external collaborators. Nil fields are filled
	// with defaults where one exists.
	Tools toolchain.Toolchain

	// Logger receives step progress and best-effort failure reports.
	// Nil means a silent logger.
	Logger *log.Logger

	// Credentials resolves publish credentials. Nil fails publish
	// targets that name a credential key.
	Credentials CredentialSource
}

// Executor drives the packaging step sequence for one plan at a time.
// Steps run strictly sequentially on the calling goroutine.
type Executor struct {
	tools  toolchain.Toolchain
	logger *log.Logger
	creds  CredentialSource
}

// New creates an Executor.
func New(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Executor{
		tools:  opts.Tools.Defaults(),
		logger: logger,
		creds:  opts.Credentials,
	}
}

// Result reports what one pipeline run did. It is populated even when
// the run fails, up to the failing step.
type Result struct {
	// Steps records the final status of every derived step.
	Steps []StepReport

	// StagingDir is the staging location used by the run. Empty after
	// cleanup removed an auto-generated directory.
	StagingDir string

	// Exports are the exported function names written to the manifest.
	Exports []string

	// Artefacts are the archive paths built.
	Artefacts []string

	// Published are the URLs artefacts were published to.
	Published []string

	// Tests holds one summary per executed test segment, keyed by
	// segment name.
	Tests map[string]toolchain.TestSummary

	// Install is the installer outcome, nil when install was disabled
	// or never reached.
	Install *installer.Result
}

// runState is the mutable context threaded through one run's steps.
type runState struct {
	exec *Executor
	plan *plan.Plan

	staging     string
	stagingAuto bool

	// artefactsByName maps artefact segment names to built paths for
	// publish target lookup.
	artefactsByName map[string]string

	result *Result
}

// Execute runs the plan's step sequence. The sink may be nil. The first
// step error aborts all remaining steps except cleanup, which always
// runs; steps never started are reported to the sink as skipped.
// Completed steps are not rolled back.
func (e *Executor) Execute(p *plan.Plan, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}

	state := &runState{
		exec:            e,
		plan:            p,
		artefactsByName: map[string]string{},
		result:          &Result{Tests: map[string]toolchain.TestSummary{}},
	}

	steps := e.buildSteps(p)
	cleanup := Step{Key: "cleanup", Kind: KindCleanup, run: (*runState).cleanup}

	var failure error
	for i, step := range steps {
		if err := e.runStep(state, step, sink); err != nil {
			failure = fmt.Errorf("step %s failed: %w", step.Name(), err)
			for _, skipped := range steps[i+1:] {
				state.result.Steps = append(state.result.Steps, StepReport{
					Key: skipped.Key, Kind: skipped.Kind, Target: skipped.Target,
					Status: StatusSkipped,
				})
				sink.StepSkipped(skipped)
			}
			break
		}
	}

	// Cleanup runs no matter how the step loop ended.
	if err := e.runStep(state, cleanup, sink); err != nil && failure == nil {
		failure = fmt.Errorf("step %s failed: %w", cleanup.Name(), err)
	}

	return state.result, failure
}

// runStep executes one step under the fixed notification protocol.
func (e *Executor) runStep(state *runState, step Step, sink ProgressSink) error {
	sink.StepStarting(step)
	e.logger.Info("step starting", "step", step.Name())

	report := StepReport{Key: step.Key, Kind: step.Kind, Target: step.Target}
	if err := step.run(state); err != nil {
		report.Status = StatusFailed
		report.Err = err
		state.result.Steps = append(state.result.Steps, report)
		e.logger.Error("step failed", "step", step.Name(), "error", err)
		sink.StepFailed(step, err)
		return err
	}

	report.Status = StatusDone
	state.result.Steps = append(state.result.Steps, report)
	e.logger.Info("step completed", "step", step.Name())
	sink.StepCompleted(step)
	return nil
}

// buildSteps derives the ordered step list from the plan. Disabled
// features contribute no step at all.
func (e *Executor) buildSteps(p *plan.Plan) []Step {
	steps := []Step{
		{Key: "stage", Kind: KindStage, run: (*runState).stage},
	}
	if len(p.Placeholders) > 0 {
		steps = append(steps, Step{Key: "placeholder", Kind: KindPlaceholder, run: (*runState).placeholders})
	}
	if e.tools.Compiler != nil {
		steps = append(steps, Step{Key: "build", Kind: KindBuild, run: (*runState).build})
	}
	if p.MergeSources {
		steps = append(steps, Step{Key: "merge", Kind: KindMerge, run: (*runState).mergeSources})
	}
	steps = append(steps, Step{Key: "manifest", Kind: KindManifest, run: (*runState).refreshManifest})
	if p.Docs.Enabled {
		steps = append(steps, Step{Key: "docs", Kind: KindDocs, run: (*runState).docs})
	}
	if p.Format.Enabled {
		steps = append(steps, Step{Key: "format", Kind: KindFormat, run: (*runState).format})
	}
	if p.SignIdentity != "" {
		steps = append(steps, Step{Key: "sign", Kind: KindSign, run: (*runState).sign})
	}
	if p.Consistency.Enabled {
		steps = append(steps, Step{Key: "consistency", Kind: KindConsistency, run: (*runState).consistency})
	}
	if p.Compat.Enabled {
		steps = append(steps, Step{Key: "compat", Kind: KindCompat, run: (*runState).compat})
	}
	if p.Validation.Enabled || len(p.CommandHints) > 0 {
		steps = append(steps, Step{Key: "validate", Kind: KindValidate, run: (*runState).validate})
	}
	if !p.ManifestOnly {
		steps = append(steps, Step{Key: "smoke", Kind: KindSmoke, run: (*runState).smoke})
	}
	for _, t := range p.Tests {
		seg := t
		steps = append(steps, Step{
			Key: "test:" + seg.Name, Kind: KindTest, Target: seg.Name,
			run: func(r *runState) error { return r.runTests(seg) },
		})
	}
	for _, a := range p.Artefacts {
		seg := a
		steps = append(steps, Step{
			Key: "artefact:" + seg.Name, Kind: KindArtefact, Target: seg.Name,
			run: func(r *runState) error { return r.buildArtefact(seg) },
		})
	}
	for _, pub := range p.Publishes {
		seg := pub
		steps = append(steps, Step{
			Key: "publish:" + seg.Name, Kind: KindPublish, Target: seg.Name,
			run: func(r *runState) error { return r.publish(seg) },
		})
	}
	if p.Install.Enabled {
		steps = append(steps, Step{Key: "install", Kind: KindInstall, run: (*runState).install})
	}
	return steps
}
