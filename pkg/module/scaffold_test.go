// SPDX-License-Identifier: MPL-2.0

package module

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modforge/modforge/pkg/manifest"
)

func TestCreateScaffoldsProject(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	path, err := Create(CreateOptions{
		Name:      "com.example.greeter",
		ParentDir: parent,
		Version:   "1.0.0",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if path != filepath.Join(parent, "com.example.greeter") {
		t.Errorf("Create() path = %q", path)
	}

	forgeData, err := os.ReadFile(filepath.Join(path, "forge.cue"))
	if err != nil {
		t.Fatalf("reading forge.cue: %v", err)
	}
	if !strings.Contains(string(forgeData), `name: "com.example.greeter"`) {
		t.Errorf("forge.cue missing name: %s", forgeData)
	}

	manifestPath := filepath.Join(path, manifest.FileName)
	if name, ok := manifest.GetTopLevelString(manifestPath, "name"); !ok || name != "com.example.greeter" {
		t.Errorf("manifest name = %q, ok = %v", name, ok)
	}
	if version, ok := manifest.GetTopLevelString(manifestPath, "version"); !ok || version != "1.0.0" {
		t.Errorf("manifest version = %q, ok = %v", version, ok)
	}
	if exports := manifest.GetTopLevelStringArray(manifestPath, "exports"); !exports.Found || len(exports.Values) != 1 {
		t.Errorf("manifest exports = %+v", exports)
	}

	sample, err := os.ReadFile(filepath.Join(path, SourcesDir, "greet.sh"))
	if err != nil {
		t.Fatalf("reading sample function: %v", err)
	}
	if !strings.Contains(string(sample), "greet()") {
		t.Errorf("sample function missing greet(): %s", sample)
	}

	result, err := Validate(path, "com.example.greeter")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("scaffolded project failed validation: %v", result.Issues)
	}
}

func TestCreateDefaults(t *testing.T) {
	t.Parallel()

	path, err := Create(CreateOptions{Name: "mytools", ParentDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	manifestPath := filepath.Join(path, manifest.FileName)
	if version, ok := manifest.GetTopLevelString(manifestPath, "version"); !ok || version != "0.1.0" {
		t.Errorf("default version = %q, ok = %v", version, ok)
	}
	if _, err := os.Stat(filepath.Join(path, TestsDir)); !os.IsNotExist(err) {
		t.Errorf("tests dir should not exist without CreateTestsDir")
	}
}

func TestCreateTestsDir(t *testing.T) {
	t.Parallel()

	path, err := Create(CreateOptions{Name: "mytools", ParentDir: t.TempDir(), CreateTestsDir: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(path, TestsDir, ".gitkeep")); err != nil {
		t.Errorf("expected tests/.gitkeep: %v", err)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()

	if _, err := Create(CreateOptions{Name: "9tools", ParentDir: parent}); err == nil {
		t.Error("expected error for invalid name")
	}

	if _, err := Create(CreateOptions{Name: "dup", ParentDir: parent}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if _, err := Create(CreateOptions{Name: "dup", ParentDir: parent}); err == nil {
		t.Error("expected error for existing project")
	}
}
