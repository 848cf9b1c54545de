/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	apiKeyHeader     = "X-Api-Key"
	maxDownloadBytes = 512 << 20
	maxBodyPreview   = 256
)

// VersionInfo is the server's latest release descriptor.
type VersionInfo struct {
	Version     int    `json:"version"`
	DownloadURL string `json:"download_url"`
}

// UnmarshalJSON accepts the version as a number or a numeric string.
func (v *VersionInfo) UnmarshalJSON(b []byte) error {
	var raw struct {
		Version     json.RawMessage `json:"version"`
		DownloadURL string          `json:"download_url"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	v.DownloadURL = raw.DownloadURL
	v.Version = 0

	if len(raw.Version) == 0 || string(raw.Version) == "null" {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw.Version, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw.Version, &s); err != nil {
			return errInvalidVersion
		}

		n = json.Number(strings.TrimSpace(s))
	}

	i, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", errInvalidVersion, n)
	}

	v.Version = int(i)

	return nil
}

// Client talks to the monitoring endpoint.
type Client struct {
	serverURL string
	apiKey    string
	api       *http.Client
	download  *http.Client
}

// NewClient returns a client with separate timeouts for API calls and
// binary downloads.
func NewClient(serverURL, apiKey string, requestTimeout, downloadTimeout time.Duration) (*Client, error) {
	if serverURL == "" {
		return nil, ErrMissingServerURL
	}

	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		api:       &http.Client{Timeout: requestTimeout},
		download:  &http.Client{Timeout: downloadTimeout},
	}, nil
}

// PostHeartbeat sends one status payload.
func (c *Client) PostHeartbeat(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c.api, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// CheckVersion fetches the latest release descriptor.
func (c *Client) CheckVersion(ctx context.Context) (VersionInfo, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: parse server url: %w", ErrNetwork, err)
	}

	q := u.Query()
	q.Set("action", "version")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}

	resp, err := c.do(c.api, req)
	if err != nil {
		return VersionInfo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return VersionInfo{}, fmt.Errorf("%w: decode version descriptor: %w", ErrNetwork, err)
	}

	return info, nil
}

// Download fetches a release binary into memory.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}

	resp, err := c.do(c.download, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read download: %w", ErrNetwork, err)
	}

	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, errDownloadTooLarge)
	}

	return data, nil
}

func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.URL.Redacted(), err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyPreview))
		_ = resp.Body.Close()

		return nil, fmt.Errorf("%w: %s %s: status %d: %s",
			ErrNetwork, req.Method, req.URL.Redacted(), resp.StatusCode, strings.TrimSpace(string(preview)))
	}

	return resp, nil
}
