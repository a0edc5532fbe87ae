// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// CommentDocGenerator writes one markdown file per script, listing each
// exported function together with the comment block directly above its
// declaration.
type CommentDocGenerator struct{}

// Generate implements DocGenerator.
func (CommentDocGenerator) Generate(sourceDir, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create docs directory: %w", err)
	}

	var scripts []string
	err := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".sh") {
			scripts = append(scripts, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	sort.Strings(scripts)

	var written []string
	for _, script := range scripts {
		doc, err := describeScript(script)
		if err != nil {
			return nil, err
		}
		if doc == "" {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(script), ".sh")
		out := filepath.Join(outDir, base+".md")
		if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", out, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// describeScript renders the markdown body for one script, or "" when
// the script declares no documentable functions.
func describeScript(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle.

	parser := syntax.NewParser(syntax.KeepComments(true))
	file, err := parser.Parse(f, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", filepath.Base(path))

	count := 0
	for _, stmt := range file.Stmts {
		decl, ok := stmt.Cmd.(*syntax.FuncDecl)
		if !ok || strings.HasPrefix(decl.Name.Value, "_") {
			continue
		}
		count++
		fmt.Fprintf(&b, "\n## %s\n\n", decl.Name.Value)
		for _, c := range stmt.Comments {
			// Only leading comments, not trailing same-line ones.
			if c.Pos().Line() >= decl.Pos().Line() {
				continue
			}
			fmt.Fprintf(&b, "%s\n", strings.TrimSpace(c.Text))
		}
	}
	if count == 0 {
		return "", nil
	}
	return b.String(), nil
}
