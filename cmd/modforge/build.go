// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/modforge/modforge/internal/buildfile"
	"github.com/modforge/modforge/internal/config"
	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/internal/pipeline"
	"github.com/modforge/modforge/internal/platform"
	"github.com/modforge/modforge/internal/toolchain"
	"github.com/modforge/modforge/pkg/module"
	"github.com/modforge/modforge/pkg/plan"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	buildProjectDir string
	buildFilePath   string

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Run the packaging pipeline for a module project",
		Long: `Run the packaging pipeline described by the project's forge.cue.

The build file's ordered segments are compiled into one immutable plan,
then executed as a fixed sequence of steps: staging, placeholder
substitution, source merging, manifest refresh, docs, formatting,
signing, quality gates, tests, artefacts, publishing, and install.

A failing step aborts the remainder of the pipeline, but staging cleanup
always runs.

Examples:
  modforge build
  modforge build -C ./mymodule
  modforge build --file ./custom-forge.cue --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild()
		},
	}
)

func init() {
	buildCmd.Flags().StringVarP(&buildProjectDir, "project", "C", ".", "module project directory")
	buildCmd.Flags().StringVar(&buildFilePath, "file", "", "build file path (default: <project>/forge.cue)")
}

func runBuild() error {
	path := buildFilePath
	if path == "" {
		path = filepath.Join(buildProjectDir, buildfile.FileName)
	}

	spec, err := buildfile.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			renderIssueId(issue.BuildFileNotFoundId)
		} else {
			renderIssueId(issue.BuildFileParseErrorId)
		}
		return fmt.Errorf("failed to load build file: %w", err)
	}

	logger := newLogger("build")

	compiled, err := plan.Compile(spec, plan.CompileOptions{
		Logger:     logger,
		Locator:    &module.RootLocator{Roots: moduleRoots()},
		Repository: repositoryLookup(),
	})
	if err != nil {
		return fmt.Errorf("failed to compile build plan: %w", err)
	}
	for _, warning := range compiled.Warnings {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+warning)
	}

	creds, err := loadCredentials()
	if err != nil {
		return err
	}

	executor := pipeline.New(pipeline.Options{
		Logger:      logger,
		Credentials: creds,
		Tools:       toolchain.Toolchain{Signer: configuredSigner()},
	})

	fmt.Println(TitleStyle.Render("Build ") + StepStyle.Render(compiled.Name) +
		SubtitleStyle.Render(" "+compiled.Version))

	result, execErr := executor.Execute(compiled, &consoleSink{})
	printBuildSummary(result)
	if execErr != nil {
		renderIssue(execErr)
		return &ExitError{Code: 1, Err: execErr}
	}
	return nil
}

// configuredSigner builds the exec-based signer from the config, or nil
// when no signing command is configured.
func configuredSigner() toolchain.Signer {
	if appConfig.SignCommand == "" {
		return nil
	}
	return &toolchain.ExecSigner{
		Command: appConfig.SignCommand,
		Args:    appConfig.SignArgs,
	}
}

// moduleRoots resolves the install roots used for dependency lookup,
// falling back to the platform default when the config does not name any.
func moduleRoots() []string {
	if len(appConfig.InstallRoots) > 0 {
		return appConfig.InstallRoots
	}
	roots, err := platformRoots()
	if err != nil {
		return nil
	}
	return roots
}

// repositoryLookup returns the symbolic-version resolver, or nil when no
// repository is configured.
func repositoryLookup() plan.VersionLookup {
	if appConfig.Repository == "" {
		return nil
	}
	return &toolchain.HTTPRepository{BaseURL: appConfig.Repository}
}

// loadCredentials reads the publish credentials file named by the config.
func loadCredentials() (config.Credentials, error) {
	path, err := appConfig.CredentialsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials file: %w", err)
	}
	creds, err := config.LoadCredentials(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return creds, nil
}

// newLogger builds the shared stderr logger. Verbose mode lowers the
// level to debug so merge decisions and step details become visible.
func newLogger(prefix string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: prefix,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// consoleSink renders pipeline progress as styled terminal lines.
type consoleSink struct{}

func (consoleSink) StepStarting(step pipeline.Step) {
	fmt.Printf("%s %s\n", SubtitleStyle.Render("→"), StepStyle.Render(step.Name()))
}

func (consoleSink) StepCompleted(step pipeline.Step) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), step.Name())
}

func (consoleSink) StepFailed(step pipeline.Step, err error) {
	fmt.Printf("%s %s: %s\n", ErrorStyle.Render("✗"), step.Name(), formatErrorForDisplay(err, verbose))
}

func (consoleSink) StepSkipped(step pipeline.Step) {
	fmt.Printf("%s %s\n", VerboseStyle.Render("- skipped"), VerboseStyle.Render(step.Name()))
}

// printBuildSummary reports the pipeline outcome: artefacts, test counts,
// publish URLs, and install locations.
func printBuildSummary(result *pipeline.Result) {
	if result == nil {
		return
	}

	fmt.Println()
	if len(result.Exports) > 0 {
		fmt.Printf("%s Exports: %v\n", SuccessStyle.Render("•"), result.Exports)
	}
	for name, summary := range result.Tests {
		fmt.Printf("%s Tests %s: %d passed, %d failed, %d skipped\n",
			SuccessStyle.Render("•"), StepStyle.Render(name),
			summary.Passed, summary.Failed, summary.Skipped)
	}
	for _, artefact := range result.Artefacts {
		fmt.Printf("%s Artefact: %s\n", SuccessStyle.Render("•"), StepStyle.Render(artefact))
	}
	for _, url := range result.Published {
		fmt.Printf("%s Published: %s\n", SuccessStyle.Render("•"), StepStyle.Render(url))
	}
	if result.Install != nil {
		for _, path := range result.Install.InstalledPaths {
			fmt.Printf("%s Installed: %s\n", SuccessStyle.Render("•"), StepStyle.Render(path))
		}
		if len(result.Install.Pruned) > 0 {
			fmt.Printf("%s Pruned %d old version(s)\n", SubtitleStyle.Render("•"), len(result.Install.Pruned))
		}
	}
	if result.StagingDir != "" {
		fmt.Printf("%s Staging kept at: %s\n", SubtitleStyle.Render("•"), StepStyle.Render(result.StagingDir))
	}
}

// platformRoots is indirected for tests.
var platformRoots = platform.DefaultModuleRoots
