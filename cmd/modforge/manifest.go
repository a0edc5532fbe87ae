// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/manifest"

	"github.com/spf13/cobra"
)

// newManifestCommand creates the `modforge manifest` command group for
// scripting against module.manifest files. Keys use dotted paths: a bare
// key reads the top level, "metadata.extra.<key>" reads the nested
// extended-metadata region.
func newManifestCommand() *cobra.Command {
	var manifestFile string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Read and edit module.manifest values",
		Long: `Read and edit module.manifest values without disturbing formatting.

Edits are byte-range splices against the parsed document: comments,
whitespace, and every byte outside the edited value survive unchanged.

Examples:
  modforge manifest get version
  modforge manifest get exports
  modforge manifest get metadata.extra.licenseurl
  modforge manifest set version 2.0.0
  modforge manifest set exports greet,farewell`,
	}

	cmd.PersistentFlags().StringVar(&manifestFile, "file", manifest.FileName, "manifest file path")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a manifest value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifestGet(manifestFile, args[0])
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a manifest value (comma-separated values become an array)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifestSet(manifestFile, args[0], args[1])
		},
	}

	cmd.AddCommand(getCmd)
	cmd.AddCommand(setCmd)
	return cmd
}

// checkManifestReadable loads the manifest once up front so a missing or
// malformed file renders its catalog entry instead of surfacing as a
// bare key-not-found result.
func checkManifestReadable(path string) error {
	if _, err := manifest.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			renderIssueId(issue.ManifestNotFoundId)
		} else {
			renderIssueId(issue.ManifestParseErrorId)
		}
		return err
	}
	return nil
}

func runManifestGet(path, key string) error {
	if err := checkManifestReadable(path); err != nil {
		return err
	}
	parent, leaf, nested, err := splitKey(key)
	if err != nil {
		return err
	}

	if nested {
		if value, ok := manifest.GetNestedString(path, parent, leaf); ok {
			fmt.Println(value)
			return nil
		}
		if arr := manifest.GetNestedStringArray(path, parent, leaf); arr.Found {
			printArray(arr)
			return nil
		}
		return fmt.Errorf("key %q not found in %s", key, path)
	}

	if value, ok := manifest.GetTopLevelString(path, leaf); ok {
		fmt.Println(value)
		return nil
	}
	if arr := manifest.GetTopLevelStringArray(path, leaf); arr.Found {
		printArray(arr)
		return nil
	}
	if leaf == "requires" {
		if mods, ok := manifest.GetRequiredModules(path); ok {
			for _, mod := range mods {
				line := mod.Name
				if mod.Version != "" {
					line += " " + mod.Version
				}
				fmt.Println(line)
			}
			return nil
		}
	}
	return fmt.Errorf("key %q not found in %s", key, path)
}

func runManifestSet(path, key, value string) error {
	if err := checkManifestReadable(path); err != nil {
		return err
	}
	parent, leaf, nested, err := splitKey(key)
	if err != nil {
		return err
	}

	values := strings.Split(value, ",")
	isArray := len(values) > 1
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}

	var ok bool
	switch {
	case nested && isArray:
		ok = manifest.SetNestedStringArray(path, parent, leaf, values)
	case nested:
		ok = manifest.SetNestedString(path, parent, leaf, value)
	case isArray:
		ok = manifest.SetTopLevelStringArray(path, leaf, values)
	default:
		ok = manifest.SetTopLevelString(path, leaf, value)
	}
	if !ok {
		return fmt.Errorf("failed to set %q in %s", key, path)
	}

	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("✓"), StepStyle.Render(key), value)
	return nil
}

// splitKey classifies a dotted key. Bare keys address the top level;
// "metadata.<table>.<key>" addresses a sub-table of the extended-metadata
// region. Anything else is rejected.
func splitKey(key string) (parent, leaf string, nested bool, err error) {
	parts := strings.Split(key, ".")
	switch {
	case len(parts) == 1:
		return "", key, false, nil
	case len(parts) == 3 && parts[0] == manifest.MetadataKey:
		return parts[1], parts[2], true, nil
	default:
		return "", "", false, fmt.Errorf("unsupported key %q: use a bare key or %s.<table>.<key>", key, manifest.MetadataKey)
	}
}

func printArray(arr manifest.ArrayValue) {
	if arr.Wildcard {
		fmt.Println("*")
		return
	}
	for _, v := range arr.Values {
		fmt.Println(v)
	}
}
