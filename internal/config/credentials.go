// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"

	"github.com/modforge/modforge/internal/toolchain"

	"github.com/pelletier/go-toml/v2"
)

// Credentials maps credential keys (as referenced by publish segments) to
// repository credentials. The on-disk format is a TOML file with one table
// per key:
//
//	[gallery]
//	username = "me"
//	token    = "..."
type Credentials map[string]toolchain.Credential

// Lookup returns the credential stored under key.
func (c Credentials) Lookup(key string) (toolchain.Credential, bool) {
	cred, ok := c[key]
	return cred, ok
}

// LoadCredentials reads a TOML credentials file. A missing file is not an
// error; it yields an empty set so builds without publish steps never
// require one.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	var creds Credentials
	if err := toml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	return creds, nil
}

// SaveCredentials writes the credential set to path with owner-only
// permissions.
func SaveCredentials(path string, creds Credentials) error {
	data, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file %s: %w", path, err)
	}
	return nil
}
