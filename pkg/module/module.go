// SPDX-License-Identifier: MPL-2.0

// Package module provides module tree operations: naming rules, structure
// validation, and script export discovery.
package module

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/modforge/modforge/internal/platform"
	"github.com/modforge/modforge/pkg/manifest"
)

const (
	// SourcesDir is the subdirectory holding one shell function per file.
	SourcesDir = "functions"

	// TestsDir is the subdirectory holding test scripts.
	TestsDir = "tests"

	// MaxPathLength is the maximum allowed length for file paths.
	MaxPathLength = 4096
)

// nameRegex validates module names: must start with a letter, contain only
// alphanumeric characters, with optional dot-separated segments.
// Compatible with RDNS naming (e.g., "com.example.mytools").
var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*(\.[a-zA-Z][a-zA-Z0-9]*)*$`)

type (
	// ValidationIssue represents a single domain-level validation problem
	// in a module tree. Issues are collected and reported as a batch via
	// ValidationResult; error returns are reserved for I/O failures that
	// prevent validation from continuing.
	ValidationIssue struct {
		// Type categorizes the issue (e.g., "structure", "naming", "manifest")
		Type string
		// Message describes the specific problem
		Message string
		// Path is the relative path within the module where the issue was found (optional)
		Path string
	}

	// ValidationResult contains the result of module tree validation.
	ValidationResult struct {
		// Valid is true if the module passed all validation checks
		Valid bool
		// ModulePath is the absolute path to the validated module
		ModulePath string
		// ManifestPath is the path to the module.manifest within the module
		ManifestPath string
		// Issues contains all validation problems found
		Issues []ValidationIssue
	}
)

// Error implements the error interface for ValidationIssue.
func (v ValidationIssue) Error() string {
	if v.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", v.Type, v.Path, v.Message)
	}
	return fmt.Sprintf("[%s] %s", v.Type, v.Message)
}

// AddIssue adds a validation issue to the result.
func (r *ValidationResult) AddIssue(issueType, message, path string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Type:    issueType,
		Message: message,
		Path:    path,
	})
	r.Valid = false
}

// ValidateName checks if a module name is valid.
// Returns nil if valid, or an error describing the problem.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("module name cannot start with a dot")
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("module name %q is invalid: must start with a letter, contain only alphanumeric characters, with optional dot-separated segments (e.g., 'mytools', 'com.example.utils')", name)
	}

	return nil
}

// Validate performs comprehensive validation of a module tree at the given
// path. Returns a ValidationResult with all issues found, or an error if
// the path cannot be accessed.
func Validate(modulePath, name string) (*ValidationResult, error) {
	absPath, err := filepath.Abs(modulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	result := &ValidationResult{
		Valid:      true,
		ModulePath: absPath,
		Issues:     []ValidationIssue{},
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			result.AddIssue("structure", "path does not exist", "")
			return result, nil
		}
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		result.AddIssue("structure", "path is not a directory", "")
		return result, nil
	}

	if err := ValidateName(name); err != nil {
		result.AddIssue("naming", err.Error(), "")
	}

	// module.manifest is required at the tree root.
	manifestPath := filepath.Join(absPath, manifest.FileName)
	manifestInfo, err := os.Stat(manifestPath)
	switch {
	case err != nil && os.IsNotExist(err):
		result.AddIssue("structure", "missing required "+manifest.FileName, "")
	case err != nil:
		result.AddIssue("structure", fmt.Sprintf("cannot access %s: %v", manifest.FileName, err), "")
	case manifestInfo.IsDir():
		result.AddIssue("structure", manifest.FileName+" must be a file, not a directory", "")
	default:
		result.ManifestPath = manifestPath

		if declared, ok := manifest.GetTopLevelString(manifestPath, "name"); !ok {
			result.AddIssue("manifest", "manifest is malformed or missing the name key", manifest.FileName)
		} else if name != "" && !strings.EqualFold(declared, name) {
			result.AddIssue("naming", fmt.Sprintf(
				"name %q in %s must match the module name %q",
				declared, manifest.FileName, name), manifest.FileName)
		}
	}

	// Check for symlinks and reserved filenames.
	err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Intentionally skip errors to continue walking
		}

		if path == absPath {
			return nil
		}

		// Symlinks could point outside the package and are a security
		// concern during archive extraction.
		if d.Type()&os.ModeSymlink != 0 {
			relPath, _ := filepath.Rel(absPath, path)
			result.AddIssue("security", "symlinks are not allowed in modules (security risk during extraction)", relPath)
		}

		// Windows reserved filenames break cross-platform installs.
		if platform.IsWindowsReservedName(d.Name()) {
			relPath, _ := filepath.Rel(absPath, path)
			result.AddIssue("compatibility", fmt.Sprintf("filename %q is reserved on Windows", d.Name()), relPath)
		}

		if len(path) > MaxPathLength {
			relPath, _ := filepath.Rel(absPath, path)
			result.AddIssue("compatibility", "path exceeds maximum length", relPath)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk module directory: %w", err)
	}

	return result, nil
}
