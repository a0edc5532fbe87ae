// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultKeepCount is the number of versions retained per module
	// after pruning when the config does not say otherwise.
	DefaultKeepCount = 3

	// CredentialsFileName is the default credentials file name inside
	// the config directory.
	CredentialsFileName = "credentials.toml"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidKeepCount is returned when keep_count is below 1.
	ErrInvalidKeepCount = errors.New("invalid keep count")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// UIConfig holds terminal presentation settings.
	UIConfig struct {
		ColorScheme ColorScheme `mapstructure:"color_scheme"`
		Verbose     bool        `mapstructure:"verbose"`
	}

	// Config is the application configuration.
	Config struct {
		// InstallRoots are the destination roots for versioned module
		// installs. Empty means the platform default.
		InstallRoots []string `mapstructure:"install_roots"`

		// KeepCount is the total number of versions retained per module
		// after pruning.
		KeepCount int `mapstructure:"keep_count"`

		// Repository is the default repository URL for publishing and
		// online version resolution.
		Repository string `mapstructure:"repository"`

		// CredentialsFile is the TOML credentials file path. Empty means
		// CredentialsFileName inside the config directory.
		CredentialsFile string `mapstructure:"credentials_file"`

		// SignCommand is the external signing executable used when a plan
		// requests signing. Empty disables signing support.
		SignCommand string `mapstructure:"sign_command"`

		// SignArgs is the argument template for SignCommand; {identity}
		// and {file} are substituted per signed file.
		SignArgs []string `mapstructure:"sign_args"`

		UI UIConfig `mapstructure:"ui"`
	}
)

func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("%v: %q (valid: auto, dark, light)", ErrInvalidColorScheme, e.Value)
}

func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// Validate checks the color scheme value.
func (s ColorScheme) Validate() error {
	switch s {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: s}
	}
}

// DefaultConfig returns the built-in defaults. InstallRoots stays empty
// so the installer resolves the platform default at use time.
func DefaultConfig() *Config {
	return &Config{
		KeepCount: DefaultKeepCount,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}

// Validate checks constraints the CUE schema already enforces for file
// values but that programmatic construction can still violate.
func (c *Config) Validate() error {
	if err := c.UI.ColorScheme.Validate(); err != nil {
		return err
	}
	if c.KeepCount < 1 {
		return fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidKeepCount, c.KeepCount)
	}
	return nil
}
