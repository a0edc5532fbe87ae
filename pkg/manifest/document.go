// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// utf8BOM is the byte-order marker prepended to every persisted manifest.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type (
	// Node is a parsed value with its source byte span. Offsets are
	// relative to the document content after BOM stripping.
	Node interface {
		// Span returns the [start, end) byte range of the value literal.
		Span() (start, end int)
	}

	// StringNode is a quoted string literal.
	StringNode struct {
		Value      string
		start, end int
	}

	// BoolNode is a true/false literal.
	BoolNode struct {
		Value      bool
		start, end int
	}

	// ListNode is a parenthesized sequence of strings and/or tables.
	ListNode struct {
		Items      []Node
		start, end int
	}

	// TableNode is a braced { ... } table, or the top-level document
	// table (which has no braces and spans the whole content).
	TableNode struct {
		Entries    []*Entry
		braced     bool
		start, end int
	}

	// Entry is one key = value pair inside a table.
	Entry struct {
		Key        string
		Value      Node
		start, end int
	}

	// Document is a parsed manifest plus its raw content. The content is
	// held without the BOM; Save re-attaches it.
	Document struct {
		Root    *TableNode
		content []byte
		path    string
	}
)

// Span implements Node.
func (n *StringNode) Span() (int, int) { return n.start, n.end }

// Span implements Node.
func (n *BoolNode) Span() (int, int) { return n.start, n.end }

// Span implements Node.
func (n *ListNode) Span() (int, int) { return n.start, n.end }

// Span implements Node.
func (n *TableNode) Span() (int, int) { return n.start, n.end }

// Parse parses manifest content into a Document. A leading UTF-8 BOM is
// accepted and stripped.
func Parse(content []byte) (*Document, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	p := &parser{src: content}
	root, err := p.parseDocument()
	if err != nil {
		return nil, err
	}

	return &Document{Root: root, content: content}, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Content returns the document content without the BOM.
func (d *Document) Content() []byte {
	return d.content
}

// Save persists the document to its load path atomically (temp file +
// rename), always prepending the UTF-8 BOM.
func (d *Document) Save() error {
	if d.path == "" {
		return fmt.Errorf("document has no backing file")
	}
	return d.SaveTo(d.path)
}

// SaveTo persists the document to the given path atomically.
func (d *Document) SaveTo(path string) error {
	data := make([]byte, 0, len(utf8BOM)+len(d.content))
	data = append(data, utf8BOM...)
	data = append(data, d.content...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// find returns the entry for key, matched case-insensitively, or nil.
func (t *TableNode) find(key string) *Entry {
	for _, e := range t.Entries {
		if strings.EqualFold(e.Key, key) {
			return e
		}
	}
	return nil
}

// subTable returns the entry's value as a table, or nil if the key is
// absent or not table-valued.
func (t *TableNode) subTable(key string) *TableNode {
	e := t.find(key)
	if e == nil {
		return nil
	}
	tbl, ok := e.Value.(*TableNode)
	if !ok {
		return nil
	}
	return tbl
}

// stringValues extracts the list's items as strings. The second result is
// false if any item is not a string literal.
func (l *ListNode) stringValues() ([]string, bool) {
	values := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		s, ok := item.(*StringNode)
		if !ok {
			return nil, false
		}
		values = append(values, s.Value)
	}
	return values, true
}
