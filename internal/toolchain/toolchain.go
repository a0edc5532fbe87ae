// SPDX-License-Identifier: MPL-2.0

// Package toolchain defines the narrow contracts the packaging pipeline
// uses to talk to external tools (compilers, test frameworks, signing
// utilities, publish endpoints), together with small default
// implementations so a pipeline run works out of the box.
//
// The pipeline never depends on how a collaborator does its work, only
// on these request/result shapes. Collaborator calls are synchronous and
// honor caller-supplied timeouts; a timeout surfaces as an ordinary
// error.
package toolchain

import (
	"time"
)

// Compiler builds binary helper assemblies shipped alongside a module.
// Script-only modules have no compiler; a nil Compiler skips the step.
type Compiler interface {
	// Compile builds the project's binary components and returns the
	// paths of the produced binaries.
	Compile(req CompileRequest) (CompileResult, error)
}

// CompileRequest describes one build invocation.
type CompileRequest struct {
	// ProjectDir is the source tree handed to the compiler.
	ProjectDir string

	// OutputDir receives the produced binaries.
	OutputDir string

	// Timeout bounds the build. Zero means no limit.
	Timeout time.Duration
}

// CompileResult reports what a build produced.
type CompileResult struct {
	// Binaries are the paths of the produced binary files.
	Binaries []string

	// Output is the captured tool output, kept for error reporting.
	Output string
}

// TestRunner executes a test path and reports aggregate counts.
type TestRunner interface {
	Run(path string, timeout time.Duration) (TestSummary, error)
}

// TestSummary is the aggregate outcome of one test run.
type TestSummary struct {
	Passed  int
	Failed  int
	Skipped int
}

// DocGenerator produces documentation for the staged module.
type DocGenerator interface {
	// Generate writes documentation for the scripts under sourceDir
	// into outDir and returns the files written.
	Generate(sourceDir, outDir string) ([]string, error)
}

// Analyzer performs static analysis of the staged module.
type Analyzer interface {
	// Analyze returns the findings for the scripts under dir.
	Analyze(dir string) ([]Finding, error)
}

// Finding is one static-analysis or audit result.
type Finding struct {
	Path    string
	Line    int
	Message string
}

// FileAuditor checks file-level consistency (line endings, stray bytes)
// across a directory tree.
type FileAuditor interface {
	// Audit checks every text file under dir against the wanted line
	// ending ("lf" or "crlf") and returns the offending files.
	Audit(dir, lineEnding string) ([]Finding, error)
}

// Signer signs a list of files with a named identity.
type Signer interface {
	// Sign returns one result per input file, in input order.
	Sign(files []string, identity string) ([]SignResult, error)
}

// SignResult reports the signing outcome for one file.
type SignResult struct {
	Path string
	Err  error
}

// Publisher pushes an artefact to a repository endpoint.
type Publisher interface {
	Publish(req PublishRequest) (PublishResult, error)
}

// PublishRequest describes one artefact upload.
type PublishRequest struct {
	// ArtefactPath is the local archive to upload.
	ArtefactPath string

	// Repository is the destination endpoint URL.
	Repository string

	// Credential authenticates the upload.
	Credential Credential

	// Timeout bounds the request. Zero means a sensible default.
	Timeout time.Duration
}

// PublishResult reports where a published artefact landed.
type PublishResult struct {
	URL string
}

// Credential is one entry from the publish credentials file.
type Credential struct {
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

// ScriptRunner executes one shell script to completion.
type ScriptRunner interface {
	// RunScript runs the script at path with the given working
	// directory and timeout. A non-zero exit or parse failure is an
	// error.
	RunScript(path, workDir string, timeout time.Duration) error
}

// ExportScanner detects the exportable surface of entry scripts.
type ExportScanner interface {
	// DetectExports returns the exported function names declared by
	// the given script files, in declaration order without duplicates.
	DetectExports(scriptPaths []string) ([]string, error)
}

// Toolchain bundles the collaborators one pipeline run uses. Nil fields
// disable the corresponding optional steps; required collaborators are
// filled with defaults by Defaults.
type Toolchain struct {
	Compiler  Compiler
	Tests     TestRunner
	Docs      DocGenerator
	Analyzer  Analyzer
	Auditor   FileAuditor
	Signer    Signer
	Publisher Publisher
	Runner    ScriptRunner
	Exports   ExportScanner
}

// Defaults fills every nil collaborator that has a reasonable default
// implementation. Compiler stays nil: script-only modules have nothing
// to compile.
func (t Toolchain) Defaults() Toolchain {
	if t.Tests == nil {
		t.Tests = &InterpTestRunner{}
	}
	if t.Docs == nil {
		t.Docs = &CommentDocGenerator{}
	}
	if t.Analyzer == nil {
		t.Analyzer = &SyntaxAnalyzer{}
	}
	if t.Auditor == nil {
		t.Auditor = &LineEndingAuditor{}
	}
	if t.Publisher == nil {
		t.Publisher = &HTTPPublisher{}
	}
	if t.Runner == nil {
		t.Runner = &InterpRunner{}
	}
	if t.Exports == nil {
		t.Exports = &ParserExportScanner{}
	}
	return t
}
