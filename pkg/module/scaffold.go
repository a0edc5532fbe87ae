// SPDX-License-Identifier: MPL-2.0

package module

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/modforge/modforge/pkg/manifest"
)

// CreateOptions contains options for scaffolding a new module project.
type CreateOptions struct {
	// Name is the module name (e.g., "com.example.mytools")
	Name string
	// ParentDir is the directory where the project will be created
	// (defaults to the current directory)
	ParentDir string
	// Version is the initial module version (defaults to "0.1.0")
	Version string
	// Description is an optional description for the manifest
	Description string
	// CreateTestsDir creates a tests/ subdirectory if true
	CreateTestsDir bool
}

// Create scaffolds a new module project: a forge.cue build file, a
// module.manifest, and a functions/ directory holding a sample function.
// Returns the path to the created project or an error.
func Create(opts CreateOptions) (string, error) {
	if err := ValidateName(opts.Name); err != nil {
		return "", err
	}

	parentDir := opts.ParentDir
	if parentDir == "" {
		var err error
		parentDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	absParentDir, err := filepath.Abs(parentDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve parent directory: %w", err)
	}

	version := opts.Version
	if version == "" {
		version = "0.1.0"
	}
	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Shell functions from the %s module", opts.Name)
	}

	projectPath := filepath.Join(absParentDir, opts.Name)
	if _, err := os.Stat(projectPath); err == nil {
		return "", fmt.Errorf("project already exists at %s", projectPath)
	}

	if err := os.MkdirAll(filepath.Join(projectPath, SourcesDir), 0o755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}

	cleanup := func() { _ = os.RemoveAll(projectPath) }

	forgeContent := fmt.Sprintf(`// Build configuration for %s.

name: %q
version: %q

segments: [
	{kind: "metadata", description: %q},
	{kind: "build"},
	{kind: "format"},
	{kind: "validation"},
]
`, opts.Name, opts.Name, version, description)

	if err := os.WriteFile(filepath.Join(projectPath, "forge.cue"), []byte(forgeContent), 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to create forge.cue: %w", err)
	}

	manifestContent := fmt.Sprintf(`# %s module manifest
name        = '%s'
version     = '%s'
description = '%s'
exports     = ('greet')
`, opts.Name, opts.Name, version, description)

	if err := os.WriteFile(filepath.Join(projectPath, manifest.FileName), []byte(manifestContent), 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to create %s: %w", manifest.FileName, err)
	}

	sampleFunction := fmt.Sprintf(`greet() {
	printf 'Hello from %s!\n'
}
`, opts.Name)

	if err := os.WriteFile(filepath.Join(projectPath, SourcesDir, "greet.sh"), []byte(sampleFunction), 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to create sample function: %w", err)
	}

	if opts.CreateTestsDir {
		testsDir := filepath.Join(projectPath, TestsDir)
		if err := os.MkdirAll(testsDir, 0o755); err != nil {
			cleanup()
			return "", fmt.Errorf("failed to create tests directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(testsDir, ".gitkeep"), []byte(""), 0o644); err != nil {
			cleanup()
			return "", fmt.Errorf("failed to create .gitkeep: %w", err)
		}
	}

	return projectPath, nil
}
