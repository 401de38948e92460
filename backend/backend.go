// Package backend is the HTTP client for the incident backend.
//
// It fetches the full-state seed, issues control actions (trigger, reset)
// and manages workflows. Failed requests are never retried here; a non-2xx
// response is returned as a *StatusError and the caller decides.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/warroom/codec"
	"github.com/pithecene-io/warroom/iox"
	"github.com/pithecene-io/warroom/types"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultWSPath is appended to the base path to reach the duplex endpoint.
const DefaultWSPath = "/ws"

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// Config configures the backend client.
type Config struct {
	// BaseURL is the HTTP base address (required), e.g. http://localhost:8000.
	BaseURL string
	// WSPath is the duplex endpoint suffix (default /ws).
	WSPath string
	// Headers are added to every request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s). Ignored when
	// HTTPClient is set.
	Timeout time.Duration
	// HTTPClient overrides the default client, e.g. from BuildHTTP2Client.
	HTTPClient *http.Client
}

// Client talks to the backend HTTP surface.
type Client struct {
	base   *url.URL
	config Config
	http   *http.Client
}

// New creates a backend client from the given config.
// Returns an error if the base URL is empty or not http(s).
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend client requires a base URL")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: base URL scheme must be http or https, got %q", base.Scheme)
	}
	if cfg.WSPath == "" {
		cfg.WSPath = DefaultWSPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{base: base, config: cfg, http: hc}, nil
}

// BaseURL returns the configured base address.
func (c *Client) BaseURL() string { return c.base.String() }

// WebSocketURL returns the duplex endpoint derived from the base address.
func (c *Client) WebSocketURL() string {
	u, _ := DeriveWebSocketURL(c.base.String(), c.config.WSPath)
	return u
}

// DeriveWebSocketURL maps an HTTP base address to its duplex endpoint:
// http becomes ws, https becomes wss, and suffix is appended to the path.
func DeriveWebSocketURL(base, suffix string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if suffix == "" {
		suffix = DefaultWSPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(suffix, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	// Body is the start of the response body, for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// FetchState fetches the full-state document used to seed the mirror.
func (c *Client) FetchState(ctx context.Context) (*types.SystemState, error) {
	raw, err := c.do(ctx, http.MethodGet, "/state", nil)
	if err != nil {
		return nil, err
	}
	state, err := codec.DecodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: decode state: %w", err)
	}
	return state, nil
}

// Trigger starts a simulated incident. payload may be nil.
func (c *Client) Trigger(ctx context.Context, payload any) error {
	_, err := c.do(ctx, http.MethodPost, "/trigger", payload)
	return err
}

// Reset asks the backend to return to its initial state.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/reset", nil)
	return err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer iox.DiscardClose(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   snippet(data),
		}
	}
	return data, nil
}

// endpoint joins the base path with an already-escaped path.
func (c *Client) endpoint(path string) string {
	u := *c.base
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + path
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	}
	return u.String()
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
