// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LineEndingAuditor flags text files whose line endings deviate from the
// wanted convention. Binary-looking files (NUL byte in the first block)
// are ignored.
type LineEndingAuditor struct{}

// Audit implements FileAuditor.
func (LineEndingAuditor) Audit(dir, lineEnding string) ([]Finding, error) {
	wantCRLF := strings.EqualFold(lineEnding, "crlf")

	var findings []Finding
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if looksBinary(data) {
			return nil
		}
		if line, bad := firstDeviantLine(data, wantCRLF); bad {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				rel = path
			}
			want := "LF"
			if wantCRLF {
				want = "CRLF"
			}
			findings = append(findings, Finding{
				Path:    rel,
				Line:    line,
				Message: fmt.Sprintf("line ending differs from %s", want),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

func looksBinary(data []byte) bool {
	probe := data
	if len(probe) > 4096 {
		probe = probe[:4096]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// firstDeviantLine returns the 1-based number of the first line whose
// ending does not match the wanted convention.
func firstDeviantLine(data []byte, wantCRLF bool) (int, bool) {
	line := 1
	for i := 0; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		isCRLF := i > 0 && data[i-1] == '\r'
		if isCRLF != wantCRLF {
			return line, true
		}
		line++
	}
	return 0, false
}
