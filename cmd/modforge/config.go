// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/modforge/modforge/internal/config"
	"github.com/modforge/modforge/internal/issue"

	"github.com/spf13/cobra"
)

// configCmd is the `modforge config` command tree.
var configCmd = newConfigCommand()

func newConfigCommand() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modforge configuration",
		Long: `Manage modforge configuration.

Configuration is stored in:
  - Linux: ~/.config/modforge/config.cue
  - macOS: ~/Library/Application Support/modforge/config.cue
  - Windows: %APPDATA%\modforge\config.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewProvider().Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
			if err != nil {
				return err
			}
			fmt.Print(config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context) error {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
		return err
	}

	keyStyle := StepStyle
	valueStyle := SuccessStyle

	fmt.Println(TitleStyle.Render("Current Configuration"))
	fmt.Println()

	if cfgDir, dirErr := config.ConfigDir(); dirErr == nil {
		cfgPath := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
		if fileExistsCheck(cfgPath) {
			fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), cfgPath)
		} else {
			fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
		}
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	fmt.Printf("%s:\n", keyStyle.Render("install_roots"))
	if len(cfg.InstallRoots) == 0 {
		fmt.Printf("  %s\n", SubtitleStyle.Render("(platform defaults)"))
	} else {
		for _, root := range cfg.InstallRoots {
			fmt.Printf("  - %s\n", valueStyle.Render(root))
		}
	}

	fmt.Println()
	fmt.Printf("%s: %s\n", keyStyle.Render("keep_count"), valueStyle.Render(strconv.Itoa(cfg.KeepCount)))
	if cfg.Repository == "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("repository"), SubtitleStyle.Render("(not configured)"))
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("repository"), valueStyle.Render(cfg.Repository))
	}
	if credPath, credErr := cfg.CredentialsPath(); credErr == nil {
		fmt.Printf("%s: %s\n", keyStyle.Render("credentials_file"), valueStyle.Render(credPath))
	}
	if cfg.SignCommand == "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("sign_command"), SubtitleStyle.Render("(signing disabled)"))
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("sign_command"), valueStyle.Render(cfg.SignCommand))
	}

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("ui"))
	fmt.Printf("  color_scheme: %s\n", valueStyle.Render(string(cfg.UI.ColorScheme)))
	fmt.Printf("  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))

	return nil
}

func initConfig() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	if err = config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Printf("%s Created default configuration at %s\n", SuccessStyle.Render("✓"),
		filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}

func showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Printf("Config directory: %s\n", cfgDir)
	fmt.Printf("Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}

func setConfigValue(ctx context.Context, key, value string) error {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}

	switch key {
	case "keep_count":
		n, convErr := strconv.Atoi(value)
		if convErr != nil || n < 1 {
			return fmt.Errorf("invalid keep_count: must be a positive integer")
		}
		cfg.KeepCount = n

	case "repository":
		cfg.Repository = value

	case "credentials_file":
		cfg.CredentialsFile = value

	case "sign_command":
		cfg.SignCommand = value

	case "ui.verbose":
		cfg.UI.Verbose = value == "true" || value == "1"

	case "ui.color_scheme":
		scheme := config.ColorScheme(value)
		if validErr := scheme.Validate(); validErr != nil {
			return validErr
		}
		cfg.UI.ColorScheme = scheme

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: keep_count, repository, credentials_file, sign_command, ui.verbose, ui.color_scheme", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
