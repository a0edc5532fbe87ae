// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// InterpRunner executes shell scripts in an embedded interpreter rather
// than a child shell process, so script behavior does not depend on
// which /bin/sh the host happens to have.
type InterpRunner struct {
	// Stdout and Stderr receive script output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Env overrides the interpreter environment. Nil inherits the
	// process environment.
	Env []string
}

// RunScript implements ScriptRunner.
func (r *InterpRunner) RunScript(path, workDir string, timeout time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle.

	parser := syntax.NewParser()
	prog, err := parser.Parse(f, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to parse script %s: %w", path, err)
	}

	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return fmt.Errorf("script %s exited with status %d", path, int(exitStatus))
		}
		return fmt.Errorf("script %s failed: %w", path, err)
	}
	return nil
}

// InterpTestRunner runs every *.sh file under a test path through the
// embedded interpreter. A script exiting zero counts as passed, non-zero
// as failed; scripts whose name ends in .skip.sh are counted as skipped
// without running.
type InterpTestRunner struct {
	// Runner executes individual test scripts. Nil means a fresh
	// InterpRunner per call.
	Runner ScriptRunner
}

// Run implements TestRunner.
func (t *InterpTestRunner) Run(path string, timeout time.Duration) (TestSummary, error) {
	runner := t.Runner
	if runner == nil {
		runner = &InterpRunner{}
	}

	scripts, err := collectTestScripts(path)
	if err != nil {
		return TestSummary{}, err
	}

	var summary TestSummary
	for _, script := range scripts {
		if strings.HasSuffix(script, ".skip.sh") {
			summary.Skipped++
			continue
		}
		if err := runner.RunScript(script, filepath.Dir(script), timeout); err != nil {
			summary.Failed++
			continue
		}
		summary.Passed++
	}
	return summary, nil
}

// collectTestScripts returns the *.sh files under path in a stable
// order. A path that is itself a script is a single-element run.
func collectTestScripts(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("test path unavailable: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var scripts []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".sh") {
			scripts = append(scripts, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list test scripts: %w", err)
	}
	sort.Strings(scripts)
	return scripts, nil
}
