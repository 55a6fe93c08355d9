// SPDX-License-Identifier: MPL-2.0

// Package remote is the HTTP client side of the federation: it fetches a
// remote's entry manifest and chunk bytes and verifies chunk integrity
// against the digests the manifest declares.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fedkit/internal/manifest"
	"fedkit/pkg/fedfile"
)

const (
	// maxManifestBytes is the upper bound on manifest response size (1 MB).
	// Prevents unbounded memory consumption from malformed or hostile
	// servers.
	maxManifestBytes = 1 << 20

	// maxChunkBytes is the upper bound on chunk response size (64 MB).
	maxChunkBytes = 64 << 20

	// defaultTimeout bounds a single HTTP exchange. Retry policy lives in
	// the loader, not here.
	defaultTimeout = 30 * time.Second
)

var (
	// ErrRemoteUnavailable is returned when the remote cannot be reached or
	// responds with a non-success status.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrDigestMismatch is returned when fetched chunk bytes do not match
	// the digest the manifest declared.
	ErrDigestMismatch = errors.New("chunk digest mismatch")
	// ErrResponseTooLarge is returned when a response exceeds its size cap.
	ErrResponseTooLarge = errors.New("response exceeds size limit")
)

// Client talks to one remote's dev server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Used by tests and by
// callers that need custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the remote served at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the remote's base URL as configured.
func (c *Client) BaseURL() string { return c.baseURL }

// Manifest fetches and validates the remote's entry manifest.
func (c *Client) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	body, err := c.get(ctx, manifest.Path, maxManifestBytes)
	if err != nil {
		return nil, err
	}

	m, err := manifest.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", c.baseURL, err)
	}
	return m, nil
}

// Module fetches the chunk bytes for an exposed module and verifies them
// against the manifest's digest and size.
func (c *Client) Module(ctx context.Context, exp manifest.ExposedModule) ([]byte, error) {
	body, err := c.get(ctx, manifest.ModuleURL(exp.Name), maxChunkBytes)
	if err != nil {
		return nil, err
	}

	if int64(len(body)) != exp.Size {
		return nil, fmt.Errorf("%w: module %q: got %d bytes, manifest declares %d",
			ErrDigestMismatch, exp.Name, len(body), exp.Size)
	}
	if got := manifest.Digest(body); got != exp.Digest {
		return nil, fmt.Errorf("%w: module %q: got %s, manifest declares %s",
			ErrDigestMismatch, exp.Name, got, exp.Digest)
	}

	return body, nil
}

// Healthy probes the remote's /health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// get performs a GET against path and returns the body, enforcing the size
// cap by reading one byte past it.
func (c *Client) get(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s: %v", ErrRemoteUnavailable, c.baseURL, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s%s: unexpected status %d",
			ErrRemoteUnavailable, c.baseURL, path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s: read body: %v", ErrRemoteUnavailable, c.baseURL, path, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: %s%s: more than %d bytes", ErrResponseTooLarge, c.baseURL, path, maxBytes)
	}

	return body, nil
}

// ClientForRef builds a client from a fedfile remote reference.
func ClientForRef(ref fedfile.RemoteRef, opts ...Option) (*Client, error) {
	return NewClient(ref.URL, opts...)
}
