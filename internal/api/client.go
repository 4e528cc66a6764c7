// Package api is the HTTP client for the remote livestock service. It owns
// the bearer-authenticated request helper that transparently refreshes the
// session once on a 401 and the typed wrappers over the service endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// TokenSource provides the current access token and a way to refresh it
// after the server reports unauthorized.
type TokenSource interface {
	// AccessToken returns the current token, or empty when none is stored.
	AccessToken(ctx context.Context) (string, error)
	// Refresh exchanges the refresh token for a new access token and
	// returns it.
	Refresh(ctx context.Context) (string, error)
}

// Client talks to the remote service. Safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
	tokens  TokenSource
}

// NewClient creates a Client for the service rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string { return c.baseURL }

// do issues an authenticated request. The token travels in both the bearer
// authorization header and X-Session-Token; the server requires the pair.
// On a 401 the session is refreshed and the request replayed exactly once;
// there is no retry for any other failure at this layer.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoToken
	}

	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		slog.Debug("token rejected, refreshing session", "path", path)

		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		resp, err = c.send(ctx, method, path, body, token)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Session-Token", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.hc.Do(req)
}

// getJSON issues an authenticated GET and decodes the response body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// searchPath builds "/{resource}/search", appending the percent-encoded
// pipe-delimited relation list when one is given.
func searchPath(resource, loadRelated string) string {
	path := "/" + resource + "/search"
	if loadRelated != "" {
		path += "?loadRelated=" + url.QueryEscape(loadRelated)
	}
	return path
}
