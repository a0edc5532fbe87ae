// SPDX-License-Identifier: MPL-2.0

package manifest

import "strings"

// MetadataKey is the designated top-level table for extended metadata.
// Nested read/write operations address sub-tables beneath it.
const MetadataKey = "metadata"

// RequiredModulesKey is the top-level key declaring module dependencies.
const RequiredModulesKey = "requires"

type (
	// RequiredModule is one declared module dependency. Names are
	// compared case-insensitively. All version fields are optional;
	// Version pins an exact release while Minimum/Maximum bound a range.
	RequiredModule struct {
		Name    string
		Version string
		Minimum string
		Maximum string
		GUID    string
	}

	// ArrayValue is the result of reading a string-array key. A value of
	// a single "*" string is the wildcard sentinel and is reported
	// distinctly from an absent key: "exports everything" is not
	// "exports nothing declared".
	ArrayValue struct {
		Values   []string
		Wildcard bool
		Found    bool
	}
)

// GetTopLevelString reads a top-level string value. The second result is
// false when the file is missing/malformed, the key is absent, or the
// value is not a string.
func GetTopLevelString(path, key string) (string, bool) {
	doc, err := Load(path)
	if err != nil {
		return "", false
	}
	return stringFrom(doc.Root, key)
}

// GetTopLevelStringArray reads a top-level string-array value.
func GetTopLevelStringArray(path, key string) ArrayValue {
	doc, err := Load(path)
	if err != nil {
		return ArrayValue{}
	}
	return arrayFrom(doc.Root, key)
}

// GetNestedString reads metadata.<parentKey>.<key> as a string.
func GetNestedString(path, parentKey, key string) (string, bool) {
	doc, err := Load(path)
	if err != nil {
		return "", false
	}
	parent := nestedTable(doc, parentKey)
	if parent == nil {
		return "", false
	}
	return stringFrom(parent, key)
}

// GetNestedStringArray reads metadata.<parentKey>.<key> as a string array.
func GetNestedStringArray(path, parentKey, key string) ArrayValue {
	doc, err := Load(path)
	if err != nil {
		return ArrayValue{}
	}
	parent := nestedTable(doc, parentKey)
	if parent == nil {
		return ArrayValue{}
	}
	return arrayFrom(parent, key)
}

// GetRequiredModules reads the requires list. Plain string items declare a
// dependency by name alone; table items carry version bounds and identity.
// The second result is false when the file or list cannot be read.
func GetRequiredModules(path string) ([]RequiredModule, bool) {
	doc, err := Load(path)
	if err != nil {
		return nil, false
	}

	entry := doc.Root.find(RequiredModulesKey)
	if entry == nil {
		return nil, false
	}
	list, ok := entry.Value.(*ListNode)
	if !ok {
		return nil, false
	}

	mods := make([]RequiredModule, 0, len(list.Items))
	for _, item := range list.Items {
		switch n := item.(type) {
		case *StringNode:
			mods = append(mods, RequiredModule{Name: n.Value})
		case *TableNode:
			mod := RequiredModule{}
			if v, ok := stringFrom(n, "name"); ok {
				mod.Name = v
			}
			if v, ok := stringFrom(n, "version"); ok {
				mod.Version = v
			}
			if v, ok := stringFrom(n, "min"); ok {
				mod.Minimum = v
			}
			if v, ok := stringFrom(n, "max"); ok {
				mod.Maximum = v
			}
			if v, ok := stringFrom(n, "guid"); ok {
				mod.GUID = v
			}
			if mod.Name == "" {
				return nil, false
			}
			mods = append(mods, mod)
		default:
			return nil, false
		}
	}

	return mods, true
}

// nestedTable resolves metadata.<parentKey>, or nil if absent.
func nestedTable(doc *Document, parentKey string) *TableNode {
	meta := doc.Root.subTable(MetadataKey)
	if meta == nil {
		return nil
	}
	return meta.subTable(parentKey)
}

func stringFrom(t *TableNode, key string) (string, bool) {
	entry := t.find(key)
	if entry == nil {
		return "", false
	}
	s, ok := entry.Value.(*StringNode)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func arrayFrom(t *TableNode, key string) ArrayValue {
	entry := t.find(key)
	if entry == nil {
		return ArrayValue{}
	}

	switch n := entry.Value.(type) {
	case *StringNode:
		// A bare '*' string in place of a sequence is the wildcard form.
		if strings.TrimSpace(n.Value) == "*" {
			return ArrayValue{Wildcard: true, Found: true}
		}
		return ArrayValue{}
	case *ListNode:
		values, ok := n.stringValues()
		if !ok {
			return ArrayValue{}
		}
		if len(values) == 1 && strings.TrimSpace(values[0]) == "*" {
			return ArrayValue{Wildcard: true, Found: true}
		}
		return ArrayValue{Values: values, Found: true}
	default:
		return ArrayValue{}
	}
}
