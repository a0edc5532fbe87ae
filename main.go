// SPDX-License-Identifier: MPL-2.0

// modforge builds, packages, and installs shell-script modules.
package main

import cmd "github.com/modforge/modforge/cmd/modforge"

func main() {
	cmd.Execute()
}
