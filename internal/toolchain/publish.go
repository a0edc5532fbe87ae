// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"time"
)

// defaultPublishTimeout bounds uploads when the request does not say.
const defaultPublishTimeout = 2 * time.Minute

// HTTPPublisher uploads an artefact with a single HTTP PUT to
// <repository>/<artefact-file-name>.
type HTTPPublisher struct {
	// Client overrides the HTTP client. Nil means a client with the
	// request timeout applied.
	Client *http.Client
}

// Publish implements Publisher.
func (p *HTTPPublisher) Publish(req PublishRequest) (PublishResult, error) {
	f, err := os.Open(req.ArtefactPath)
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to open artefact: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle.

	info, err := f.Stat()
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to stat artefact: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	url := req.Repository + "/" + path.Base(req.ArtefactPath)
	httpReq, err := http.NewRequest(http.MethodPut, url, f)
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to build publish request: %w", err)
	}
	httpReq.ContentLength = info.Size()
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	if req.Credential.Token != "" {
		if req.Credential.Username != "" {
			httpReq.SetBasicAuth(req.Credential.Username, req.Credential.Token)
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+req.Credential.Token)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Response body is drained by Close.

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PublishResult{}, fmt.Errorf("repository rejected artefact: %s", resp.Status)
	}
	return PublishResult{URL: url}, nil
}
