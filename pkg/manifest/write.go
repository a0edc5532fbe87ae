// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/slices"
)

// edit is a pending splice: content[start:end] is replaced by text.
type edit struct {
	start, end int
	text       string
}

// SetTopLevelString writes a top-level string value, inserting the key if
// absent. Returns false if the file is missing or malformed; the file is
// never modified on failure.
func SetTopLevelString(path, key, value string) bool {
	return mutate(path, func(doc *Document) ([]edit, bool) {
		return setInTable(doc, doc.Root, key, formatString(value)), true
	})
}

// SetTopLevelStringArray writes a top-level string-array value.
func SetTopLevelStringArray(path, key string, values []string) bool {
	return mutate(path, func(doc *Document) ([]edit, bool) {
		return setInTable(doc, doc.Root, key, formatArray(values)), true
	})
}

// SetRequiredModules replaces the whole requires list.
func SetRequiredModules(path string, mods []RequiredModule) bool {
	return mutate(path, func(doc *Document) ([]edit, bool) {
		return setInTable(doc, doc.Root, RequiredModulesKey, formatRequiredModules(mods, doc.entryIndent(doc.Root))), true
	})
}

// UpsertRequiredModule adds or replaces one requires entry, matched by
// name case-insensitively.
func UpsertRequiredModule(path string, mod RequiredModule) bool {
	if mod.Name == "" {
		return false
	}
	return mutate(path, func(doc *Document) ([]edit, bool) {
		entry := doc.Root.find(RequiredModulesKey)
		if entry == nil {
			return setInTable(doc, doc.Root, RequiredModulesKey,
				formatRequiredModules([]RequiredModule{mod}, doc.entryIndent(doc.Root))), true
		}
		list, ok := entry.Value.(*ListNode)
		if !ok {
			return nil, false
		}

		inner := doc.entryIndent(doc.Root) + "\t"
		if item := findModuleItem(list, mod.Name); item != nil {
			start, end := item.Span()
			return []edit{{start: start, end: end, text: formatRequiredModule(mod)}}, true
		}

		if !strings.Contains(string(doc.content[list.start:list.end]), "\n") {
			// Single-line list: splice before the closing ')', comma-separated
			// from the last item.
			sep := ", "
			if len(list.Items) == 0 {
				sep = ""
			}
			at := list.end - 1
			return []edit{{start: at, end: at, text: sep + formatRequiredModule(mod)}}, true
		}

		// Insert before the closing ')', on its own line.
		insertAt := doc.lineStart(list.end - 1)
		return []edit{{start: insertAt, end: insertAt, text: inner + formatRequiredModule(mod) + ",\n"}}, true
	})
}

// RemoveRequiredModule removes one requires entry by name. Removing an
// absent name succeeds without modifying the file (idempotent).
func RemoveRequiredModule(path, name string) bool {
	return mutate(path, func(doc *Document) ([]edit, bool) {
		entry := doc.Root.find(RequiredModulesKey)
		if entry == nil {
			return nil, true
		}
		list, ok := entry.Value.(*ListNode)
		if !ok {
			return nil, false
		}
		item := findModuleItem(list, name)
		if item == nil {
			return nil, true
		}

		start, end := item.Span()
		start = doc.lineStart(start)
		end = doc.consumeSeparator(end)
		return []edit{{start: start, end: end, text: ""}}, true
	})
}

// SetNestedString writes metadata.<parentKey>.<key> as a string, creating
// the metadata and parent tables when absent.
func SetNestedString(path, parentKey, key, value string) bool {
	return setNested(path, parentKey, key, formatString(value))
}

// SetNestedStringArray writes metadata.<parentKey>.<key> as a string array.
func SetNestedStringArray(path, parentKey, key string, values []string) bool {
	return setNested(path, parentKey, key, formatArray(values))
}

// SetNestedBool writes metadata.<parentKey>.<key> as a boolean.
func SetNestedBool(path, parentKey, key string, value bool) bool {
	return setNested(path, parentKey, key, fmt.Sprintf("%t", value))
}

// SetNestedHashtableArray writes metadata.<parentKey>.<key> as a sequence
// of tables with string values (delivery options, link sets, and the like).
// Table keys are emitted in sorted order for reproducible output.
func SetNestedHashtableArray(path, parentKey, key string, tables []map[string]string) bool {
	return mutate(path, func(doc *Document) ([]edit, bool) {
		parent, indent, edits, ok := ensureNestedTable(doc, parentKey)
		if !ok {
			return nil, false
		}
		if edits != nil {
			// Parent table was just synthesized; the key rides along.
			text := strings.Replace(edits[0].text, placeholderMarker, key+" = "+formatTableArray(tables, indent), 1)
			edits[0].text = text
			return edits, true
		}
		return setInTableIndent(doc, parent, key, formatTableArray(tables, indent), indent), true
	})
}

// setNested writes a pre-formatted literal at metadata.<parentKey>.<key>.
func setNested(path, parentKey, key, literal string) bool {
	return mutate(path, func(doc *Document) ([]edit, bool) {
		parent, indent, edits, ok := ensureNestedTable(doc, parentKey)
		if !ok {
			return nil, false
		}
		if edits != nil {
			text := strings.Replace(edits[0].text, placeholderMarker, key+" = "+literal, 1)
			edits[0].text = text
			return edits, true
		}
		return setInTableIndent(doc, parent, key, literal, indent), true
	})
}

// placeholderMarker stands in for the leaf assignment when a missing
// metadata/parent table chain is synthesized in one insertion.
const placeholderMarker = "\x00LEAF\x00"

// ensureNestedTable resolves metadata.<parentKey>. When the chain exists
// the table and its entry indent are returned. When part of the chain is
// missing, a single insertion edit containing placeholderMarker is
// returned instead; the caller substitutes the leaf assignment.
func ensureNestedTable(doc *Document, parentKey string) (*TableNode, string, []edit, bool) {
	meta := doc.Root.subTable(MetadataKey)
	if meta == nil {
		if doc.Root.find(MetadataKey) != nil {
			return nil, "", nil, false // metadata exists but is not a table
		}
		block := fmt.Sprintf("%s = {\n\t%s = {\n\t\t%s\n\t}\n}", MetadataKey, parentKey, placeholderMarker)
		edits := appendToTable(doc, doc.Root, block)
		return nil, "\t\t", edits, true
	}

	parent := meta.subTable(parentKey)
	if parent == nil {
		if meta.find(parentKey) != nil {
			return nil, "", nil, false
		}
		indent := doc.entryIndent(meta)
		block := fmt.Sprintf("%s = {\n%s\t%s\n%s}", parentKey, indent, placeholderMarker, indent)
		edits := insertEntry(doc, meta, block, indent)
		return nil, indent + "\t", edits, true
	}

	return parent, doc.entryIndent(parent), nil, true
}

// mutate loads, edits, and atomically saves a manifest. Any failure leaves
// the file untouched and reports false.
func mutate(path string, fn func(*Document) ([]edit, bool)) bool {
	doc, err := Load(path)
	if err != nil {
		return false
	}

	edits, ok := fn(doc)
	if !ok {
		return false
	}
	if len(edits) == 0 {
		return true
	}

	doc.apply(edits)
	return doc.Save() == nil
}

// apply performs the splices in descending offset order so earlier edits
// cannot invalidate later offsets.
func (d *Document) apply(edits []edit) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	for _, e := range edits {
		content := make([]byte, 0, len(d.content)-(e.end-e.start)+len(e.text))
		content = append(content, d.content[:e.start]...)
		content = append(content, e.text...)
		content = append(content, d.content[e.end:]...)
		d.content = content
	}
}

// setInTable replaces the value literal for key, or inserts a new
// key = value line near the end of the table when the key is absent.
func setInTable(doc *Document, table *TableNode, key, literal string) []edit {
	return setInTableIndent(doc, table, key, literal, doc.entryIndent(table))
}

func setInTableIndent(doc *Document, table *TableNode, key, literal, indent string) []edit {
	if entry := table.find(key); entry != nil {
		start, end := entry.Value.Span()
		return []edit{{start: start, end: end, text: literal}}
	}
	return insertEntry(doc, table, key+" = "+literal, indent)
}

// insertEntry inserts a formatted entry line near the end of the table.
func insertEntry(doc *Document, table *TableNode, text, indent string) []edit {
	if !table.braced {
		return appendToTable(doc, doc.Root, text)
	}
	// Insert on its own line before the closing brace.
	insertAt := doc.lineStart(table.end - 1)
	return []edit{{start: insertAt, end: insertAt, text: indent + text + "\n"}}
}

// appendToTable appends an entry at the end of the top-level document.
func appendToTable(doc *Document, _ *TableNode, text string) []edit {
	end := len(doc.content)
	// Trim trailing blank lines so the entry lands after the last line.
	for end > 0 && (doc.content[end-1] == '\n' || doc.content[end-1] == '\r' ||
		doc.content[end-1] == ' ' || doc.content[end-1] == '\t') {
		end--
	}
	prefix := "\n"
	if end == 0 {
		prefix = ""
	}
	return []edit{{start: end, end: len(doc.content), text: prefix + text + "\n"}}
}

// entryIndent reports the leading whitespace used by the table's entries,
// defaulting to one tab inside braced tables.
func (d *Document) entryIndent(table *TableNode) string {
	if !table.braced {
		return ""
	}
	for _, e := range table.Entries {
		start := d.lineStart(e.start)
		line := string(d.content[start:e.start])
		if strings.TrimSpace(line) == "" {
			return line
		}
	}
	return "\t"
}

// lineStart returns the offset of the first byte of the line containing
// pos, but only walks back across whitespace: if non-blank bytes precede
// pos on its line, pos itself is returned.
func (d *Document) lineStart(pos int) int {
	i := pos
	for i > 0 {
		c := d.content[i-1]
		if c == '\n' {
			return i
		}
		if c != ' ' && c != '\t' {
			return pos
		}
		i--
	}
	return i
}

// consumeSeparator extends end past a trailing comma and, when the rest of
// the line is blank, past the newline, so removing a list item removes its
// whole line.
func (d *Document) consumeSeparator(end int) int {
	i := end
	for i < len(d.content) && (d.content[i] == ' ' || d.content[i] == '\t') {
		i++
	}
	if i < len(d.content) && d.content[i] == ',' {
		i++
	}
	j := i
	for j < len(d.content) && (d.content[j] == ' ' || d.content[j] == '\t' || d.content[j] == '\r') {
		j++
	}
	if j < len(d.content) && d.content[j] == '\n' {
		return j + 1
	}
	return i
}

// formatString renders a string literal, preferring single quotes and
// falling back to double quotes for values with control characters.
func formatString(value string) string {
	if strings.ContainsAny(value, "\n\t") {
		escaped := strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n", "\t", "\\t").Replace(value)
		return "\"" + escaped + "\""
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// formatArray renders a single-line string sequence literal.
func formatArray(values []string) string {
	if len(values) == 0 {
		return "()"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = formatString(v)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// formatRequiredModule renders one requires entry. A bare name renders as
// a plain string; version bounds and identity render as an inline table.
func formatRequiredModule(mod RequiredModule) string {
	if mod.Version == "" && mod.Minimum == "" && mod.Maximum == "" && mod.GUID == "" {
		return formatString(mod.Name)
	}

	fields := []string{"name = " + formatString(mod.Name)}
	if mod.Version != "" {
		fields = append(fields, "version = "+formatString(mod.Version))
	}
	if mod.Minimum != "" {
		fields = append(fields, "min = "+formatString(mod.Minimum))
	}
	if mod.Maximum != "" {
		fields = append(fields, "max = "+formatString(mod.Maximum))
	}
	if mod.GUID != "" {
		fields = append(fields, "guid = "+formatString(mod.GUID))
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

// formatRequiredModules renders the whole requires list, one entry per
// line, indented one level past the owning entry.
func formatRequiredModules(mods []RequiredModule, indent string) string {
	if len(mods) == 0 {
		return "()"
	}

	var sb strings.Builder
	sb.WriteString("(\n")
	for _, mod := range mods {
		sb.WriteString(indent + "\t" + formatRequiredModule(mod) + ",\n")
	}
	sb.WriteString(indent + ")")
	return sb.String()
}

// formatTableArray renders a sequence of string-valued tables.
func formatTableArray(tables []map[string]string, indent string) string {
	if len(tables) == 0 {
		return "()"
	}

	var sb strings.Builder
	sb.WriteString("(\n")
	for _, table := range tables {
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, k+" = "+formatString(table[k]))
		}
		sb.WriteString(indent + "\t{ " + strings.Join(fields, ", ") + " },\n")
	}
	sb.WriteString(indent + ")")
	return sb.String()
}

// findModuleItem locates a requires list item by module name.
func findModuleItem(list *ListNode, name string) Node {
	for _, item := range list.Items {
		switch n := item.(type) {
		case *StringNode:
			if strings.EqualFold(n.Value, name) {
				return item
			}
		case *TableNode:
			if v, ok := stringFrom(n, "name"); ok && strings.EqualFold(v, name) {
				return item
			}
		}
	}
	return nil
}
