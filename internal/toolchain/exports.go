// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modforge/modforge/pkg/module"
)

// ParserExportScanner detects exports by parsing scripts, never by
// executing them.
type ParserExportScanner struct{}

// DetectExports implements ExportScanner. Missing script files are
// skipped so the scanner can run before and after optional build steps.
func (ParserExportScanner) DetectExports(scriptPaths []string) ([]string, error) {
	var exports []string
	seen := make(map[string]bool)

	for _, path := range scriptPaths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		names, err := module.DiscoverExports(f, filepath.Base(path))
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if seen[strings.ToLower(name)] {
				continue
			}
			seen[strings.ToLower(name)] = true
			exports = append(exports, name)
		}
	}
	return exports, nil
}
