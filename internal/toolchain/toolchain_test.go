// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLineEndingAuditor(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"clean.sh":  "echo one\necho two\n",
		"mixed.txt": "line one\r\nline two\n",
		"binary":    "prefix\x00suffix\r\n",
	})

	findings, err := LineEndingAuditor{}.Audit(dir, "lf")
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %v, want exactly one", findings)
	}
	if findings[0].Path != "mixed.txt" || findings[0].Line != 1 {
		t.Errorf("finding = %+v, want mixed.txt line 1", findings[0])
	}
}

func TestParserExportScanner(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"a.sh": "greet() {\n\techo hi\n}\n_private() {\n\t:\n}\n",
		"b.sh": "farewell() {\n\techo bye\n}\ngreet() {\n\techo dup\n}\n",
	})

	exports, err := ParserExportScanner{}.DetectExports([]string{
		filepath.Join(dir, "a.sh"),
		filepath.Join(dir, "b.sh"),
		filepath.Join(dir, "missing.sh"), // skipped, not an error
	})
	if err != nil {
		t.Fatalf("DetectExports() error = %v", err)
	}
	if want := []string{"greet", "farewell"}; !reflect.DeepEqual(exports, want) {
		t.Errorf("exports = %v, want %v", exports, want)
	}
}

// failingRunner fails scripts whose name contains "bad".
type failingRunner struct{}

func (failingRunner) RunScript(path, _ string, _ time.Duration) error {
	if strings.Contains(filepath.Base(path), "bad") {
		return errors.New("exit status 1")
	}
	return nil
}

func TestInterpTestRunnerCounts(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"01_ok.sh":       "true\n",
		"02_bad.sh":      "false\n",
		"03_flaky.skip.sh": "exit 1\n",
		"notes.txt":      "not a script\n",
	})

	summary, err := (&InterpTestRunner{Runner: failingRunner{}}).Run(dir, time.Second)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := TestSummary{Passed: 1, Failed: 1, Skipped: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestInterpRunnerExecutesScript(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"make.sh": "printf done > out.txt\n",
	})

	runner := &InterpRunner{}
	if err := runner.RunScript(filepath.Join(dir, "make.sh"), dir, 5*time.Second); err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("script side effect missing: %v", err)
	}
	if string(data) != "done" {
		t.Errorf("out.txt = %q, want done", string(data))
	}
}

func TestInterpRunnerReportsExitStatus(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"fail.sh": "exit 3\n",
	})

	err := (&InterpRunner{}).RunScript(filepath.Join(dir, "fail.sh"), dir, 5*time.Second)
	if err == nil || !strings.Contains(err.Error(), "status 3") {
		t.Errorf("RunScript() error = %v, want exit status 3", err)
	}
}

func TestExecSignerRequiresCommand(t *testing.T) {
	t.Parallel()

	if _, err := (&ExecSigner{}).Sign([]string{"x"}, "id"); err == nil {
		t.Error("Sign() without a command should fail")
	}
	signer := &ExecSigner{Command: "definitely-not-a-real-signer-command"}
	if _, err := signer.Sign([]string{"x"}, "id"); err == nil {
		t.Error("Sign() with an unavailable command should fail")
	}
}
