// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modforge.
//
// This package implements the Cobra command hierarchy for the modforge CLI:
// the root command, the build pipeline entry point, installer access,
// manifest scripting helpers, and configuration management.
package cmd
