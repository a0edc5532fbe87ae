// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	// Verify all IDs are unique and sequential
	ids := []Id{
		BuildFileNotFoundId,
		BuildFileParseErrorId,
		ManifestNotFoundId,
		ManifestParseErrorId,
		MissingDependenciesId,
		ValidationFailedId,
		CompatCheckFailedId,
		TestsFailedId,
		SigningFailedId,
		InstallFailedId,
		PublishFailedId,
		ConfigLoadFailedId,
	}

	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if BuildFileNotFoundId != 1 {
		t.Errorf("BuildFileNotFoundId = %d, want 1", BuildFileNotFoundId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(BuildFileNotFoundId)
	if issue == nil {
		t.Fatal("Get(BuildFileNotFoundId) returned nil")
	}

	if issue.Id() != BuildFileNotFoundId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), BuildFileNotFoundId)
	}
}

func TestIssue_MarkdownMsg(t *testing.T) {
	issue := Get(BuildFileNotFoundId)
	if issue == nil {
		t.Fatal("Get(BuildFileNotFoundId) returned nil")
	}

	msg := issue.MarkdownMsg()
	if msg == "" {
		t.Error("MarkdownMsg() returned empty string")
	}

	// Verify it contains expected content
	if !strings.Contains(string(msg), "No forge.cue found") {
		t.Error("MarkdownMsg() should contain 'No forge.cue found'")
	}
}

func TestIssue_DocLinks(t *testing.T) {
	issue := Get(BuildFileNotFoundId)
	if issue == nil {
		t.Fatal("Get(BuildFileNotFoundId) returned nil")
	}

	// DocLinks returns a clone of the links
	links := issue.DocLinks()
	links = append(links, "https://example.test/injected")
	_ = links

	if len(issue.DocLinks()) != len(issue.docLinks) {
		t.Error("DocLinks() should return a defensive copy")
	}
}

func TestIssue_ExtLinks(t *testing.T) {
	issue := Get(PublishFailedId)
	if issue == nil {
		t.Fatal("Get(PublishFailedId) returned nil")
	}

	links := issue.ExtLinks()
	links = append(links, "https://example.test/injected")
	_ = links

	if len(issue.ExtLinks()) != len(issue.extLinks) {
		t.Error("ExtLinks() should return a defensive copy")
	}
}

func TestGet_AllCatalogEntries(t *testing.T) {
	tests := []struct {
		name string
		id   Id
		want string
	}{
		{"build file not found", BuildFileNotFoundId, "forge.cue"},
		{"build file parse error", BuildFileParseErrorId, "parse forge.cue"},
		{"manifest not found", ManifestNotFoundId, "manifest"},
		{"manifest parse error", ManifestParseErrorId, "hashtable"},
		{"missing dependencies", MissingDependenciesId, "Dependencies not satisfied"},
		{"validation failed", ValidationFailedId, "validation failed"},
		{"compat check failed", CompatCheckFailedId, "compatibility check failed"},
		{"tests failed", TestsFailedId, "tests failed"},
		{"signing failed", SigningFailedId, "signing failed"},
		{"install failed", InstallFailedId, "install failed"},
		{"publish failed", PublishFailedId, "Publish failed"},
		{"config load failed", ConfigLoadFailedId, "load configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := Get(tt.id)
			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.want) {
				t.Errorf("issue %d should mention %q", tt.id, tt.want)
			}
		})
	}
}

func TestGet_UnknownId(t *testing.T) {
	if got := Get(Id(9999)); got != nil {
		t.Errorf("Get(9999) = %v, want nil", got)
	}
}

func TestValues_ReturnsAllIssues(t *testing.T) {
	values := Values()
	if len(values) != len(issues) {
		t.Errorf("Values() returned %d issues, want %d", len(values), len(issues))
	}

	seen := make(map[Id]bool)
	for _, issue := range values {
		if seen[issue.Id()] {
			t.Errorf("Values() contains duplicate issue %d", issue.Id())
		}
		seen[issue.Id()] = true
	}
}

func TestIssue_Render(t *testing.T) {
	// Swap the renderer so the test does not depend on terminal detection.
	origRender := render
	defer func() { render = origRender }()
	var rendered string
	render = func(in, stylePath string) (string, error) {
		rendered = in
		return in, nil
	}

	issue := &Issue{
		id:       BuildFileNotFoundId,
		mdMsg:    "# Heading",
		docLinks: []HttpLink{"https://example.test/docs"},
		extLinks: []HttpLink{"https://example.test/extra"},
	}

	out, err := issue.Render("auto")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out == "" {
		t.Error("Render returned empty output")
	}
	if !strings.Contains(rendered, "See also") {
		t.Error("Render should append the links section when links exist")
	}
	if !strings.Contains(rendered, "https://example.test/docs") {
		t.Error("Render should include doc links")
	}
}
