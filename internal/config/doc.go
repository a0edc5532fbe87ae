// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/modforge/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/modforge/config.cue on macOS, %APPDATA%\modforge\config.cue
// on Windows). The package provides type-safe configuration access covering module install
// roots, version retention, the default publish repository, the credentials file location,
// and UI settings.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
