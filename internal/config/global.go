// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride redirects the per-user config directory lookup.
// Tests set it through SetConfigDirOverride; os.UserHomeDir does not
// honor a reassigned HOME on every platform, so an env-based override
// is not enough.
var configDirOverride string

// SetConfigDirOverride redirects config directory resolution to dir.
// Intended for tests; pair with Reset in cleanup.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset restores default config directory resolution.
func Reset() {
	configDirOverride = ""
}
