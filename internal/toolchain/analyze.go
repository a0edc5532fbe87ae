// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// SyntaxAnalyzer reports scripts that fail to parse. It is the minimal
// built-in analyzer; richer linters plug in behind the same interface.
type SyntaxAnalyzer struct{}

// Analyze implements Analyzer.
func (SyntaxAnalyzer) Analyze(dir string) ([]Finding, error) {
	var findings []Finding
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sh") {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close() //nolint:errcheck // Read-only handle.

		parser := syntax.NewParser()
		if _, parseErr := parser.Parse(f, d.Name()); parseErr != nil {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				rel = path
			}
			line := 0
			var se syntax.ParseError
			if errors.As(parseErr, &se) {
				line = int(se.Pos.Line())
			}
			findings = append(findings, Finding{Path: rel, Line: line, Message: parseErr.Error()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}
