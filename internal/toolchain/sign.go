// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecSigner shells out to an external signing command, once per file.
// The command receives the identity and the file path as arguments, e.g.
// `gpg --local-user <identity> --detach-sign <file>`.
type ExecSigner struct {
	// Command is the signing executable. Required.
	Command string

	// Args are templated arguments; occurrences of {identity} and
	// {file} are substituted per call. Empty defaults to
	// ["{identity}", "{file}"].
	Args []string
}

// Sign implements Signer. Per-file failures are reported in the result
// list; only a missing command fails the whole call.
func (s *ExecSigner) Sign(files []string, identity string) ([]SignResult, error) {
	if s.Command == "" {
		return nil, fmt.Errorf("no signing command configured")
	}
	if _, err := exec.LookPath(s.Command); err != nil {
		return nil, fmt.Errorf("signing command unavailable: %w", err)
	}

	argTemplate := s.Args
	if len(argTemplate) == 0 {
		argTemplate = []string{"{identity}", "{file}"}
	}

	results := make([]SignResult, 0, len(files))
	for _, file := range files {
		args := make([]string, len(argTemplate))
		for i, a := range argTemplate {
			a = strings.ReplaceAll(a, "{identity}", identity)
			a = strings.ReplaceAll(a, "{file}", file)
			args[i] = a
		}

		out, err := exec.Command(s.Command, args...).CombinedOutput()
		if err != nil {
			err = fmt.Errorf("signing %s failed: %w: %s", file, err, strings.TrimSpace(string(out)))
		}
		results = append(results, SignResult{Path: file, Err: err})
	}
	return results, nil
}
