// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/modforge/modforge/pkg/installer"
	"github.com/modforge/modforge/pkg/manifest"
	"github.com/modforge/modforge/pkg/plan"

	"github.com/spf13/cobra"
)

// newInstallCommand creates the `modforge install` command: direct access
// to the versioned installer without running the full pipeline.
func newInstallCommand() *cobra.Command {
	var (
		installRoots    []string
		installStrategy string
		installKeep     int
		installLegacy   string
		installPreserve []string
	)

	cmd := &cobra.Command{
		Use:   "install <package-dir> <name> <version>",
		Short: "Install a packaged module into the versioned module roots",
		Long: `Install a packaged module directory as <root>/<name>/<version>.

The package directory is copied into a temporary sibling inside each root
first and only renamed into place once complete, so a crashed install
never leaves a half-written version directory.

Version may be a literal or 'auto' to read it from the package manifest.

Examples:
  modforge install ./dist/mymodule mymodule 1.2.0
  modforge install ./dist/mymodule mymodule auto --keep 2
  modforge install ./dist/mymodule mymodule 1.2.0 --strategy exact --root /opt/modules`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(args, installRoots, installStrategy, installKeep, installLegacy, installPreserve)
		},
	}

	cmd.Flags().StringArrayVar(&installRoots, "root", nil, "destination root (repeatable; default: configured roots)")
	cmd.Flags().StringVar(&installStrategy, "strategy", string(installer.StrategyAutoRevision), "version collision strategy: exact or auto-revision")
	cmd.Flags().IntVar(&installKeep, "keep", 0, "total versions retained after pruning (default: configured keep count)")
	cmd.Flags().StringVar(&installLegacy, "legacy", string(installer.LegacyWarn), "legacy flat-layout handling: ignore, warn, convert, or delete")
	cmd.Flags().StringArrayVar(&installPreserve, "preserve", nil, "version to retain regardless of age (repeatable)")

	return cmd
}

func runInstall(args, roots []string, strategy string, keep int, legacy string, preserve []string) error {
	packageDir, name, version := args[0], args[1], args[2]

	if version == plan.VersionAuto {
		manifestPath := filepath.Join(packageDir, manifest.FileName)
		if err := checkManifestReadable(manifestPath); err != nil {
			return fmt.Errorf("version 'auto' needs the package manifest: %w", err)
		}
		resolved, ok := manifest.GetTopLevelString(manifestPath, "version")
		if !ok {
			return fmt.Errorf("version 'auto' requires a version key in %s", manifestPath)
		}
		version = resolved
	}

	if len(roots) == 0 {
		roots = moduleRoots()
	}
	if keep <= 0 {
		keep = appConfig.KeepCount
	}

	result, err := installer.Install(packageDir, name, version, installer.Options{
		Roots:      roots,
		Strategy:   installer.Strategy(strategy),
		KeepCount:  keep,
		LegacyMode: installer.LegacyMode(legacy),
		Preserve:   preserve,
		Logger:     newLogger("install"),
	})
	if err != nil {
		renderIssue(err)
		return fmt.Errorf("failed to install %s: %w", name, err)
	}

	fmt.Printf("%s Installed %s %s\n", SuccessStyle.Render("✓"),
		StepStyle.Render(name), StepStyle.Render(result.Version))
	for _, path := range result.InstalledPaths {
		fmt.Printf("  %s\n", StepStyle.Render(path))
	}
	if len(result.Pruned) > 0 {
		fmt.Printf("%s Pruned %d old version(s)\n", SubtitleStyle.Render("•"), len(result.Pruned))
	}
	return nil
}
