// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/module"

	"github.com/spf13/cobra"
)

// newInitCommand creates the `modforge init` command.
func newInitCommand() *cobra.Command {
	var (
		initPath        string
		initVersion     string
		initDescription string
		initTests       bool
	)

	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Scaffold a new module project",
		Long: `Scaffold a new module project with the given name.

The module name must follow naming conventions:
  - Start with a letter
  - Contain only alphanumeric characters
  - Use dots to separate segments (RDNS style recommended)

The project is created with a forge.cue build file, a module.manifest,
and a functions/ directory holding a sample function.

Examples:
  modforge init mytools
  modforge init com.example.mytools
  modforge init mytools --tests
  modforge init mytools --path /path/to/dir --module-version 1.0.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], initPath, initVersion, initDescription, initTests)
		},
	}

	cmd.Flags().StringVarP(&initPath, "path", "p", "", "parent directory for the project (default: current directory)")
	cmd.Flags().StringVar(&initVersion, "module-version", "", "initial module version (default: 0.1.0)")
	cmd.Flags().StringVarP(&initDescription, "description", "d", "", "description for the manifest")
	cmd.Flags().BoolVar(&initTests, "tests", false, "create a tests/ subdirectory")

	return cmd
}

func runInit(name, parentDir, version, description string, withTests bool) error {
	if err := module.ValidateName(name); err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("New Module Project"))

	projectPath, err := module.Create(module.CreateOptions{
		Name:           name,
		ParentDir:      parentDir,
		Version:        version,
		Description:    description,
		CreateTestsDir: withTests,
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	fmt.Printf("%s Project created\n", SuccessStyle.Render("✓"))
	fmt.Println()
	fmt.Printf("  Path: %s\n", SubtitleStyle.Render(projectPath))
	fmt.Printf("  Name: %s\n", StepStyle.Render(name))
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add functions to %s\n", SubtitleStyle.Render(filepath.Join(projectPath, module.SourcesDir)))
	fmt.Printf("  2. Declare exports in %s\n", SubtitleStyle.Render(filepath.Join(projectPath, manifest.FileName)))
	fmt.Printf("  3. Run %s to build and package\n", StepStyle.Render("modforge build -C "+projectPath))

	return nil
}
