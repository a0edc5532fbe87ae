// SPDX-License-Identifier: MPL-2.0

package module

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// EntryScriptName returns the merged entry script file name for a module.
func EntryScriptName(name string) string {
	return name + ".sh"
}

// CheckSyntax parses src as a POSIX-compatible shell script and returns
// the parse error, if any. name appears in error positions.
func CheckSyntax(src io.Reader, name string) error {
	parser := syntax.NewParser(syntax.KeepComments(true))
	if _, err := parser.Parse(src, name); err != nil {
		return fmt.Errorf("syntax error in %s: %w", name, err)
	}
	return nil
}

// CheckDialect parses src under the named shell dialect ("posix",
// "bash", "mksh", "bats") and returns the parse error, if any.
func CheckDialect(src io.Reader, name, dialect string) error {
	variant, err := langVariant(dialect)
	if err != nil {
		return err
	}
	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(variant))
	if _, err := parser.Parse(src, name); err != nil {
		return fmt.Errorf("%s is not valid %s: %w", name, dialect, err)
	}
	return nil
}

func langVariant(dialect string) (syntax.LangVariant, error) {
	switch strings.ToLower(dialect) {
	case "", "bash":
		return syntax.LangBash, nil
	case "posix", "sh":
		return syntax.LangPOSIX, nil
	case "mksh":
		return syntax.LangMirBSDKorn, nil
	case "bats":
		return syntax.LangBats, nil
	default:
		return 0, fmt.Errorf("unknown shell dialect %q", dialect)
	}
}

// DiscoverExports parses src and returns the names of all top-level
// function declarations, in declaration order without duplicates. These
// are the candidate export names for the manifest exports list.
func DiscoverExports(src io.Reader, name string) ([]string, error) {
	parser := syntax.NewParser()
	file, err := parser.Parse(src, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	var exports []string
	seen := make(map[string]bool)
	for _, stmt := range file.Stmts {
		decl, ok := stmt.Cmd.(*syntax.FuncDecl)
		if !ok {
			continue
		}
		fn := decl.Name.Value
		// Names with a leading underscore are module-private by convention.
		if strings.HasPrefix(fn, "_") || seen[fn] {
			continue
		}
		seen[fn] = true
		exports = append(exports, fn)
	}

	return exports, nil
}

// Format pretty-prints a shell script with the canonical style (tab
// indentation, normalized redirects and binary operators). Formatting a
// script that does not parse returns the original content and the error.
func Format(src []byte, name string) ([]byte, error) {
	return FormatIndent(src, name, 0)
}

// FormatIndent is Format with an explicit indent width; 0 means tabs.
func FormatIndent(src []byte, name string, indentWidth int) ([]byte, error) {
	parser := syntax.NewParser(syntax.KeepComments(true))
	file, err := parser.Parse(bytes.NewReader(src), name)
	if err != nil {
		return src, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	var out bytes.Buffer
	printer := syntax.NewPrinter(syntax.Indent(uint(indentWidth)))
	if err := printer.Print(&out, file); err != nil {
		return src, fmt.Errorf("failed to print %s: %w", name, err)
	}

	return out.Bytes(), nil
}
