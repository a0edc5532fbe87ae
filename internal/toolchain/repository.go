// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultLookupTimeout bounds version lookups against a repository.
const defaultLookupTimeout = 30 * time.Second

// HTTPRepository resolves symbolic dependency versions against a module
// repository with a single GET to <base>/<module-name>/latest. The
// response body is the plain-text version string.
type HTTPRepository struct {
	// BaseURL is the repository endpoint.
	BaseURL string

	// Client overrides the HTTP client. Nil means a client with the
	// default lookup timeout.
	Client *http.Client
}

// LatestVersion returns the newest published version of the named module.
func (r *HTTPRepository) LatestVersion(name string) (string, error) {
	if r.BaseURL == "" {
		return "", fmt.Errorf("no repository URL configured")
	}

	endpoint, err := url.JoinPath(r.BaseURL, name, "latest")
	if err != nil {
		return "", fmt.Errorf("failed to build lookup URL for %s: %w", name, err)
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: defaultLookupTimeout}
	}

	resp, err := client.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to query repository for %s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body.

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("repository lookup for %s returned %s", name, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("failed to read repository response for %s: %w", name, err)
	}

	version := strings.TrimSpace(string(body))
	if version == "" {
		return "", fmt.Errorf("repository returned no version for %s", name)
	}
	return version, nil
}
