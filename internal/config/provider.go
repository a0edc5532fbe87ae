// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects where configuration comes from. The zero value
// resolves the per-user config directory and reads config.cue from it.
type LoadOptions struct {
	// ConfigFilePath reads exactly this file, skipping directory lookup.
	ConfigFilePath string
	// ConfigDirPath looks for config.cue under this directory instead of
	// the per-user default.
	ConfigDirPath string
}

// Provider resolves the effective tool configuration: built-in defaults
// overlaid with whatever the selected config.cue declares.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

// NewProvider returns the CUE-file-backed provider.
func NewProvider() Provider {
	return cueProvider{}
}

type cueProvider struct{}

func (cueProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}
