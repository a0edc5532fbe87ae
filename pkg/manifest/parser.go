// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"strings"
)

// parser is a single-pass scanner over manifest content that records the
// source byte span of every value node it produces.
type parser struct {
	src []byte
	pos int
}

// parseDocument parses the top-level table, which spans the whole content
// and has no braces.
func (p *parser) parseDocument() (*TableNode, error) {
	root := &TableNode{start: 0, end: len(p.src)}

	for {
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return root, nil
		}
		entry, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		root.Entries = append(root.Entries, entry)
	}
}

// parseEntry parses one key = value pair.
func (p *parser) parseEntry() (*Entry, error) {
	start := p.pos

	key, err := p.parseKey()
	if err != nil {
		return nil, err
	}

	p.skipInlineTrivia()
	if p.pos >= len(p.src) || p.src[p.pos] != '=' {
		return nil, p.errorf("expected '=' after key %q", key)
	}
	p.pos++
	p.skipInlineTrivia()

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	_, end := value.Span()
	return &Entry{Key: key, Value: value, start: start, end: end}, nil
}

// parseKey consumes a bare identifier key.
func (p *parser) parseKey() (string, error) {
	start := p.pos
	for p.pos < len(p.src) && isKeyByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected a key")
	}
	return string(p.src[start:p.pos]), nil
}

// parseValue dispatches on the first byte of a value literal.
func (p *parser) parseValue() (Node, error) {
	if p.pos >= len(p.src) {
		return nil, p.errorf("expected a value")
	}

	switch c := p.src[p.pos]; {
	case c == '\'' || c == '"':
		return p.parseString()
	case c == '(':
		return p.parseList()
	case c == '{':
		return p.parseTable()
	case c == 't' || c == 'f':
		return p.parseBool()
	default:
		return nil, p.errorf("unexpected value start %q", string(c))
	}
}

// parseString parses a single- or double-quoted string literal.
// Single-quoted strings are raw except for '' escaping a quote;
// double-quoted strings support backslash escapes.
func (p *parser) parseString() (*StringNode, error) {
	start := p.pos
	quote := p.src[p.pos]
	p.pos++

	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote && quote == '\'':
			// '' inside a single-quoted string is an escaped quote.
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return &StringNode{Value: sb.String(), start: start, end: p.pos}, nil
		case c == quote:
			p.pos++
			return &StringNode{Value: sb.String(), start: start, end: p.pos}, nil
		case c == '\\' && quote == '"':
			if p.pos+1 >= len(p.src) {
				return nil, p.errorf("unterminated escape sequence")
			}
			switch esc := p.src[p.pos+1]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"':
				sb.WriteByte(esc)
			default:
				return nil, p.errorf("unsupported escape \\%s", string(esc))
			}
			p.pos += 2
		case c == '\n':
			return nil, p.errorf("unterminated string literal")
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return nil, p.errorf("unterminated string literal")
}

// parseBool parses a true/false literal.
func (p *parser) parseBool() (*BoolNode, error) {
	start := p.pos
	rest := p.src[p.pos:]
	switch {
	case hasWordPrefix(rest, "true"):
		p.pos += len("true")
		return &BoolNode{Value: true, start: start, end: p.pos}, nil
	case hasWordPrefix(rest, "false"):
		p.pos += len("false")
		return &BoolNode{Value: false, start: start, end: p.pos}, nil
	default:
		return nil, p.errorf("expected boolean literal")
	}
}

// parseList parses a parenthesized sequence of strings and/or tables.
// Items are separated by commas and/or newlines; a trailing comma is
// allowed.
func (p *parser) parseList() (*ListNode, error) {
	start := p.pos
	p.pos++ // consume '('

	list := &ListNode{start: start}
	for {
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated list")
		}
		if p.src[p.pos] == ')' {
			p.pos++
			list.end = p.pos
			return list, nil
		}

		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		switch item.(type) {
		case *StringNode, *TableNode:
			list.Items = append(list.Items, item)
		default:
			return nil, p.errorf("lists may only contain strings and tables")
		}

		p.skipTrivia()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
		}
	}
}

// parseTable parses a braced { ... } table.
func (p *parser) parseTable() (*TableNode, error) {
	start := p.pos
	p.pos++ // consume '{'

	table := &TableNode{braced: true, start: start}
	for {
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated table")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			table.end = p.pos
			return table, nil
		}
		if p.src[p.pos] == ',' {
			// Entry separators inside inline tables.
			p.pos++
			continue
		}

		entry, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		table.Entries = append(table.Entries, entry)
	}
}

// skipTrivia consumes whitespace, newlines, and # comments.
func (p *parser) skipTrivia() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// skipInlineTrivia consumes spaces and tabs only (not newlines), so a
// value must start on the same line as its key.
func (p *parser) skipInlineTrivia() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	line := 1
	for _, c := range p.src[:min(p.pos, len(p.src))] {
		if c == '\n' {
			line++
		}
	}
	return fmt.Errorf("manifest parse error at line %d: %s", line, fmt.Sprintf(format, args...))
}

func isKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

// hasWordPrefix reports whether b starts with word not followed by another
// identifier byte, so "truething" is not parsed as a boolean.
func hasWordPrefix(b []byte, word string) bool {
	if len(b) < len(word) || string(b[:len(word)]) != word {
		return false
	}
	return len(b) == len(word) || !isKeyByte(b[len(word)])
}
