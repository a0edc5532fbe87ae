// SPDX-License-Identifier: MPL-2.0

// Package pipeline executes the packaging step sequence against a
// compiled plan: staging, build, source merge, manifest refresh,
// documentation, formatting, signing, quality gates, tests, artefact
// builds, publishing, and install, with progress reporting, fail-fast
// semantics, and a cleanup step that always runs.
package pipeline

import "fmt"

// StepKind classifies a pipeline step.
type StepKind string

const (
	KindStage       StepKind = "stage"
	KindPlaceholder StepKind = "placeholder"
	KindBuild       StepKind = "build"
	KindMerge       StepKind = "merge"
	KindManifest    StepKind = "manifest"
	KindDocs        StepKind = "docs"
	KindFormat      StepKind = "format"
	KindSign        StepKind = "sign"
	KindConsistency StepKind = "consistency"
	KindCompat      StepKind = "compat"
	KindValidate    StepKind = "validate"
	KindSmoke       StepKind = "smoke"
	KindTest        StepKind = "test"
	KindArtefact    StepKind = "artefact"
	KindPublish     StepKind = "publish"
	KindInstall     StepKind = "install"
	KindCleanup     StepKind = "cleanup"
)

// StepStatus is the lifecycle state of one step.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusDone    StepStatus = "done"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// Step is one named unit of pipeline work. Steps are derived from the
// plan before execution starts and never mutate it.
type Step struct {
	// Key is the stable identifier of the step, unique within one run.
	Key string

	// Kind classifies the step.
	Kind StepKind

	// Target names the test, artefact, or publish segment the step
	// belongs to, for kinds that expand one-to-many. Empty otherwise.
	Target string

	run func(*runState) error
}

// Name is the human-readable step label.
func (s Step) Name() string {
	if s.Target == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s[%s]", s.Kind, s.Target)
}

// ProgressSink receives step lifecycle notifications. Implementations
// must tolerate being called from a single goroutine in step order.
type ProgressSink interface {
	// StepStarting fires immediately before a step runs.
	StepStarting(step Step)

	// StepCompleted fires after a step returns without error.
	StepCompleted(step Step)

	// StepFailed fires after a step returns an error, before the
	// pipeline aborts.
	StepFailed(step Step, err error)

	// StepSkipped fires once for every step that never started because
	// an earlier step failed.
	StepSkipped(step Step)
}

// NopSink is a ProgressSink that ignores every notification.
type NopSink struct{}

func (NopSink) StepStarting(Step)      {}
func (NopSink) StepCompleted(Step)     {}
func (NopSink) StepFailed(Step, error) {}
func (NopSink) StepSkipped(Step)       {}

// StepReport records the final status of one step in a Result.
type StepReport struct {
	Key    string
	Kind   StepKind
	Target string
	Status StepStatus
	Err    error
}
