// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleManifest = `# sample module manifest
name        = 'sample'
version     = '1.2.0'   # current release
description = "A sample module"
authors     = ('jane', 'li')
exports     = ('greet', 'farewell')

requires = (
	{ name = 'util', min = '1.0' },
	'plainname',
)

metadata = {
	extra = {
		tags       = ('shell', 'tooling')
		licenseurl = 'https://example.com/license'
		prerelease = 'beta.1'
		signed     = false
	}
}
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestGetTopLevelString(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, sampleManifest)

	tests := []struct {
		name   string
		key    string
		want   string
		wantOK bool
	}{
		{name: "single quoted", key: "name", want: "sample", wantOK: true},
		{name: "double quoted", key: "description", want: "A sample module", wantOK: true},
		{name: "case insensitive key", key: "Version", want: "1.2.0", wantOK: true},
		{name: "absent key", key: "homepage", wantOK: false},
		{name: "non-string value", key: "authors", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := GetTopLevelString(path, tt.key)
			if ok != tt.wantOK {
				t.Fatalf("GetTopLevelString(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("GetTopLevelString(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetTopLevelStringArray(t *testing.T) {
	t.Parallel()

	t.Run("explicit list", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)
		got := GetTopLevelStringArray(path, "exports")
		if !got.Found || got.Wildcard {
			t.Fatalf("exports = %+v, want found non-wildcard", got)
		}
		if want := []string{"greet", "farewell"}; !reflect.DeepEqual(got.Values, want) {
			t.Errorf("exports values = %v, want %v", got.Values, want)
		}
	})

	t.Run("wildcard list", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "exports = ('*')\n")
		got := GetTopLevelStringArray(path, "exports")
		if !got.Found || !got.Wildcard {
			t.Errorf("wildcard exports = %+v, want found wildcard", got)
		}
	})

	t.Run("bare wildcard string", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "exports = '*'\n")
		got := GetTopLevelStringArray(path, "exports")
		if !got.Found || !got.Wildcard {
			t.Errorf("bare wildcard exports = %+v, want found wildcard", got)
		}
	})

	t.Run("absent is distinct from wildcard", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "name = 'x'\n")
		got := GetTopLevelStringArray(path, "exports")
		if got.Found || got.Wildcard {
			t.Errorf("absent exports = %+v, want not found", got)
		}
	})
}

func TestGetNestedValues(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, sampleManifest)

	if got, ok := GetNestedString(path, "extra", "prerelease"); !ok || got != "beta.1" {
		t.Errorf("GetNestedString(extra, prerelease) = %q, %v", got, ok)
	}

	tags := GetNestedStringArray(path, "extra", "tags")
	if !tags.Found || !reflect.DeepEqual(tags.Values, []string{"shell", "tooling"}) {
		t.Errorf("GetNestedStringArray(extra, tags) = %+v", tags)
	}

	if _, ok := GetNestedString(path, "missing", "key"); ok {
		t.Error("GetNestedString on a missing parent table should fail")
	}
}

func TestGetRequiredModules(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, sampleManifest)

	mods, ok := GetRequiredModules(path)
	if !ok {
		t.Fatal("GetRequiredModules failed")
	}
	want := []RequiredModule{
		{Name: "util", Minimum: "1.0"},
		{Name: "plainname"},
	}
	if !reflect.DeepEqual(mods, want) {
		t.Errorf("GetRequiredModules = %+v, want %+v", mods, want)
	}
}

func TestSetTopLevelString(t *testing.T) {
	t.Parallel()

	t.Run("round trip with byte fidelity outside the edit", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		if !SetTopLevelString(path, "version", "2.0.0") {
			t.Fatal("SetTopLevelString failed")
		}

		if got, ok := GetTopLevelString(path, "version"); !ok || got != "2.0.0" {
			t.Fatalf("read-back version = %q, %v", got, ok)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read result: %v", err)
		}
		got := string(data)
		if !strings.HasPrefix(got, "\xEF\xBB\xBF") {
			t.Error("saved manifest must carry a UTF-8 BOM")
		}
		// Everything outside the edited literal survives byte for byte,
		// including the trailing comment on the edited line.
		if !strings.Contains(got, "version     = '2.0.0'   # current release") {
			t.Errorf("edited line lost surrounding bytes:\n%s", got)
		}
		if !strings.Contains(got, "# sample module manifest") {
			t.Error("leading comment was not preserved")
		}
		if !strings.Contains(got, "description = \"A sample module\"") {
			t.Error("untouched entries were rewritten")
		}
	})

	t.Run("absent key is inserted at the end", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "name = 'x'\n")

		if !SetTopLevelString(path, "homepage", "https://example.com") {
			t.Fatal("SetTopLevelString failed")
		}

		data, _ := os.ReadFile(path)
		if !strings.HasSuffix(string(data), "name = 'x'\nhomepage = 'https://example.com'\n") {
			t.Errorf("unexpected content:\n%s", string(data))
		}
	})

	t.Run("malformed document never modified", func(t *testing.T) {
		t.Parallel()
		broken := "name = 'unterminated\n"
		path := writeManifest(t, broken)

		if SetTopLevelString(path, "name", "y") {
			t.Fatal("write to a malformed document should fail")
		}

		data, _ := os.ReadFile(path)
		if string(data) != broken {
			t.Error("failed write must leave the file untouched")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if SetTopLevelString(filepath.Join(t.TempDir(), "nope"), "k", "v") {
			t.Error("write to a missing file should fail")
		}
	})
}

func TestSetTopLevelStringArray(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, sampleManifest)

	if !SetTopLevelStringArray(path, "exports", []string{"a", "b", "c"}) {
		t.Fatal("SetTopLevelStringArray failed")
	}
	got := GetTopLevelStringArray(path, "exports")
	if !reflect.DeepEqual(got.Values, []string{"a", "b", "c"}) {
		t.Errorf("read-back exports = %+v", got)
	}
}

func TestRequiredModuleEdits(t *testing.T) {
	t.Parallel()

	t.Run("set replaces whole list", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		mods := []RequiredModule{{Name: "core", Version: "3.1.4", GUID: "abc-123"}}
		if !SetRequiredModules(path, mods) {
			t.Fatal("SetRequiredModules failed")
		}
		got, ok := GetRequiredModules(path)
		if !ok || !reflect.DeepEqual(got, mods) {
			t.Errorf("read-back requires = %+v", got)
		}
	})

	t.Run("upsert appends new entry", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		if !UpsertRequiredModule(path, RequiredModule{Name: "extra", Minimum: "2.0"}) {
			t.Fatal("UpsertRequiredModule failed")
		}
		got, ok := GetRequiredModules(path)
		if !ok || len(got) != 3 {
			t.Fatalf("requires after upsert = %+v", got)
		}
		if got[2].Name != "extra" || got[2].Minimum != "2.0" {
			t.Errorf("appended entry = %+v", got[2])
		}
	})

	t.Run("upsert into single-line list separates with a comma", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "name = 'x'\nrequires = ('util', 'plainname')\n")

		if !UpsertRequiredModule(path, RequiredModule{Name: "extra"}) {
			t.Fatal("UpsertRequiredModule failed")
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "requires = ('util', 'plainname', 'extra')") {
			t.Errorf("single-line list corrupted: %q", data)
		}
		got, ok := GetRequiredModules(path)
		if !ok || len(got) != 3 || got[2].Name != "extra" {
			t.Errorf("requires = %+v, %v", got, ok)
		}
	})

	t.Run("upsert into empty single-line list", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "name = 'x'\nrequires = ()\n")

		if !UpsertRequiredModule(path, RequiredModule{Name: "util", Minimum: "1.0"}) {
			t.Fatal("UpsertRequiredModule failed")
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "requires = ({ name = 'util', min = '1.0' })") {
			t.Errorf("empty list splice = %q", data)
		}
	})

	t.Run("upsert replaces by name case-insensitively", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		if !UpsertRequiredModule(path, RequiredModule{Name: "UTIL", Version: "9.9"}) {
			t.Fatal("UpsertRequiredModule failed")
		}
		got, ok := GetRequiredModules(path)
		if !ok || len(got) != 2 {
			t.Fatalf("requires after upsert = %+v", got)
		}
		if got[0].Name != "UTIL" || got[0].Version != "9.9" || got[0].Minimum != "" {
			t.Errorf("replaced entry = %+v", got[0])
		}
	})

	t.Run("upsert creates requires block when absent", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "name = 'x'\n")

		if !UpsertRequiredModule(path, RequiredModule{Name: "util"}) {
			t.Fatal("UpsertRequiredModule failed")
		}
		got, ok := GetRequiredModules(path)
		if !ok || len(got) != 1 || got[0].Name != "util" {
			t.Errorf("requires = %+v, %v", got, ok)
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		if !RemoveRequiredModule(path, "plainname") {
			t.Fatal("RemoveRequiredModule failed")
		}
		got, _ := GetRequiredModules(path)
		if len(got) != 1 || got[0].Name != "util" {
			t.Fatalf("requires after remove = %+v", got)
		}

		if !RemoveRequiredModule(path, "plainname") {
			t.Error("removing an absent entry should succeed")
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "{ name = 'util', min = '1.0' },") {
			t.Error("surviving entry was reformatted")
		}
	})
}

func TestSetNestedValues(t *testing.T) {
	t.Parallel()

	t.Run("existing chain", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		if !SetNestedString(path, "extra", "prerelease", "rc.2") {
			t.Fatal("SetNestedString failed")
		}
		if got, _ := GetNestedString(path, "extra", "prerelease"); got != "rc.2" {
			t.Errorf("prerelease = %q", got)
		}

		if !SetNestedBool(path, "extra", "signed", true) {
			t.Fatal("SetNestedBool failed")
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "signed     = true") {
			t.Errorf("bool edit lost alignment:\n%s", string(data))
		}
	})

	t.Run("missing parent table is created", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		if !SetNestedString(path, "delivery", "channel", "stable") {
			t.Fatal("SetNestedString failed")
		}
		if got, _ := GetNestedString(path, "delivery", "channel"); got != "stable" {
			t.Errorf("channel = %q", got)
		}
		// The existing extra table is untouched.
		if got, _ := GetNestedString(path, "extra", "licenseurl"); got != "https://example.com/license" {
			t.Errorf("licenseurl = %q", got)
		}
	})

	t.Run("missing metadata table is created", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, "name = 'x'\n")

		if !SetNestedStringArray(path, "extra", "tags", []string{"a"}) {
			t.Fatal("SetNestedStringArray failed")
		}
		tags := GetNestedStringArray(path, "extra", "tags")
		if !tags.Found || !reflect.DeepEqual(tags.Values, []string{"a"}) {
			t.Errorf("tags = %+v", tags)
		}
	})

	t.Run("hashtable array", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, sampleManifest)

		tables := []map[string]string{
			{"name": "zip", "kind": "archive"},
			{"name": "tarball", "kind": "archive"},
		}
		if !SetNestedHashtableArray(path, "extra", "artefacts", tables) {
			t.Fatal("SetNestedHashtableArray failed")
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "{ kind = 'archive', name = 'zip' },") {
			t.Errorf("hashtable array not rendered:\n%s", string(data))
		}
	})
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "missing equals", content: "name 'x'\n"},
		{name: "unterminated string", content: "name = 'x\n"},
		{name: "unterminated table", content: "metadata = {\n"},
		{name: "unterminated list", content: "exports = ('a'\n"},
		{name: "bad escape", content: `name = "\q"` + "\n"},
		{name: "number value", content: "count = 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Errorf("Parse(%q) should fail", tt.content)
			}
		})
	}
}

func TestParseAcceptsBOM(t *testing.T) {
	t.Parallel()

	doc, err := Parse(append([]byte{0xEF, 0xBB, 0xBF}, []byte("name = 'x'\n")...))
	if err != nil {
		t.Fatalf("Parse with BOM failed: %v", err)
	}
	if len(doc.Root.Entries) != 1 || doc.Root.Entries[0].Key != "name" {
		t.Errorf("unexpected document: %+v", doc.Root.Entries)
	}
}
