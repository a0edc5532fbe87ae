// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// copyTree copies src into dst, creating dst. Symbolic links and
// version-control metadata are not copied.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path: %w", err)
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // Read-only handle.

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// textExtensions are the file suffixes placeholder substitution and
// formatting touch.
var textExtensions = map[string]bool{
	".sh":       true,
	".md":       true,
	".txt":      true,
	".manifest": true,
}

// substitutePlaceholders rewrites {{token}} occurrences in every text
// file under dir. Token lookup is case-insensitive.
func substitutePlaceholders(dir string, tokens map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !textExtensions[filepath.Ext(d.Name())] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		replaced := expandTokens(string(data), tokens)
		if replaced == string(data) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(replaced), info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to rewrite %s: %w", path, err)
		}
		return nil
	})
}

// expandTokens replaces {{token}} markers. Unknown tokens are left in
// place so later pipeline stages can report them.
func expandTokens(content string, tokens map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(content[start:], "}}")
		if end < 0 {
			break
		}
		end += start
		token := strings.ToLower(strings.TrimSpace(content[start+2 : end]))
		value, ok := tokens[token]
		if !ok {
			b.WriteString(content[:end+2])
			content = content[end+2:]
			continue
		}
		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+2:]
	}
	b.WriteString(content)
	return b.String()
}
