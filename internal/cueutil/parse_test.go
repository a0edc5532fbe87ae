// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Settings: {
	name:    string
	count:   int
	enabled: bool
	label?:  string
}
`

type settings struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label,omitempty"`
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid document decodes", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"demo\"\ncount: 42\nenabled: true\nlabel: \"x\"\n")
		got, err := Decode[settings](
			[]byte(testSchema), data, "#Settings", "demo.cue")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.Name != "demo" || got.Count != 42 || !got.Enabled || got.Label != "x" {
			t.Errorf("unexpected value: %+v", got)
		}
	})

	t.Run("optional field may be omitted", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"demo\"\ncount: 1\nenabled: false\n")
		got, err := Decode[settings](
			[]byte(testSchema), data, "#Settings", "demo.cue")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.Label != "" {
			t.Errorf("expected empty label, got %q", got.Label)
		}
	})

	t.Run("wrong type is rejected with path", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"demo\"\ncount: \"not a number\"\nenabled: true\n")
		_, err := Decode[settings](
			[]byte(testSchema), data, "#Settings", "demo.cue")
		if err == nil {
			t.Fatal("expected error for mistyped field")
		}
		if !strings.Contains(err.Error(), "count") {
			t.Errorf("error should name the offending field: %v", err)
		}
		if !strings.Contains(err.Error(), "demo.cue") {
			t.Errorf("error should carry the file name: %v", err)
		}
	})

	t.Run("missing required field fails concreteness", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"demo\"\nenabled: true\n")
		_, err := Decode[settings](
			[]byte(testSchema), data, "#Settings", "demo.cue")
		if err == nil {
			t.Fatal("expected error for missing required field")
		}
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"demo\"\ncount: 1\nenabled: true\nbogus: 9\n")
		_, err := Decode[settings](
			[]byte(testSchema), data, "#Settings", "demo.cue")
		if err == nil {
			t.Fatal("expected error for field not in schema")
		}
	})

	t.Run("syntax error is reported", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"unterminated\ncount: 1\n")
		_, err := Decode[settings](
			[]byte(testSchema), data, "#Settings", "demo.cue")
		if err == nil {
			t.Fatal("expected error for malformed CUE")
		}
	})
}

// Config-style schemas keep every field optional so partial files merge
// cleanly. DecodeMap mirrors that usage.
const optionalSchema = `
#Partial: {
	name?:    string
	count?:   int
	enabled?: bool
}
`

func TestDecodeMap(t *testing.T) {
	t.Parallel()

	t.Run("partial document decodes to map", func(t *testing.T) {
		t.Parallel()
		data := []byte("name: \"demo\"\n")
		got, err := DecodeMap(
			[]byte(optionalSchema), data, "#Partial", "demo.cue")
		if err != nil {
			t.Fatalf("DecodeMap failed: %v", err)
		}
		if got["name"] != "demo" {
			t.Errorf("expected name entry, got %v", got)
		}
		if _, ok := got["count"]; ok {
			t.Errorf("unset optional field should be absent, got %v", got)
		}
	})

	t.Run("type violations still fail", func(t *testing.T) {
		t.Parallel()
		data := []byte("count: \"nope\"\n")
		_, err := DecodeMap(
			[]byte(optionalSchema), data, "#Partial", "demo.cue")
		if err == nil {
			t.Fatal("expected error for mistyped field")
		}
	})
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 10), 10, "small.cue"); err != nil {
		t.Errorf("size at limit should pass: %v", err)
	}
	err := CheckFileSize(make([]byte, 11), 10, "big.cue")
	if err == nil {
		t.Fatal("expected error above limit")
	}
	if !strings.Contains(err.Error(), "big.cue") {
		t.Errorf("error should carry the file name: %v", err)
	}
}
