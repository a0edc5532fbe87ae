// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/internal/pipeline"
	"github.com/modforge/modforge/pkg/installer"
)

// renderIssue prints the diagnostics catalog entry matching err to
// stderr, when one exists. The error itself still propagates to the
// caller; the catalog adds context and remediation steps on top of it.
func renderIssue(err error) {
	id, ok := classifyIssue(err)
	if !ok {
		return
	}
	renderIssueId(id)
}

// renderIssueId prints the named catalog entry to stderr. Render
// failures are swallowed: diagnostics must never mask the real error.
func renderIssueId(id issue.Id) {
	rendered, err := issue.Get(id).Render(string(appConfig.UI.ColorScheme))
	if err != nil {
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}

// classifyIssue maps the pipeline and installer error taxonomy onto the
// diagnostics catalog. Errors outside the taxonomy carry no catalog
// entry and are reported as-is.
func classifyIssue(err error) (issue.Id, bool) {
	var (
		gate    *pipeline.ValidationFailure
		missing *pipeline.MissingDependencyError
		pub     *pipeline.PublishError
		inst    *installer.InstallError
	)

	switch {
	case errors.As(err, &gate):
		switch gate.Check {
		case "compatibility":
			return issue.CompatCheckFailedId, true
		case "tests":
			return issue.TestsFailedId, true
		case "signing":
			return issue.SigningFailedId, true
		default:
			return issue.ValidationFailedId, true
		}
	case errors.As(err, &missing):
		return issue.MissingDependenciesId, true
	case errors.As(err, &pub):
		return issue.PublishFailedId, true
	case errors.As(err, &inst):
		return issue.InstallFailedId, true
	default:
		return 0, false
	}
}
