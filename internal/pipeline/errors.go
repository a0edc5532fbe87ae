// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"strings"
)

// BuildToolError reports a failed external tool invocation. It carries
// the captured tool output for diagnosis.
type BuildToolError struct {
	// Tool names the collaborator that failed.
	Tool string

	// Output is the captured tool output, possibly empty.
	Output string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *BuildToolError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns the underlying failure.
func (e *BuildToolError) Unwrap() error { return e.Err }

// MissingDependencyError reports unresolved command or module
// dependencies. All offending names are listed in one message.
type MissingDependencyError struct {
	// Kind is "command" or "module".
	Kind string

	// Names are the unresolved dependency names.
	Names []string
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing %s dependencies: %s", e.Kind, strings.Join(e.Names, ", "))
}

// ValidationFailure reports a failed quality-gate check at error
// severity.
type ValidationFailure struct {
	// Check names the gate that failed.
	Check string

	// Findings are the individual failure messages.
	Findings []string
}

// Error implements the error interface.
func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s check failed: %s", e.Check, strings.Join(e.Findings, "; "))
}

// PublishError reports a failed publish target.
type PublishError struct {
	// Target names the publish segment.
	Target string

	// Reason describes the failure when there is no underlying error.
	Reason string

	// Err is the underlying failure, possibly nil.
	Err error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("publish %s failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("publish %s failed: %s", e.Target, e.Reason)
}

// Unwrap returns the underlying failure, possibly nil.
func (e *PublishError) Unwrap() error { return e.Err }
