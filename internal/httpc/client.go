// Package httpc provides a shared HTTP client with sensible defaults and
// a small client for the qrcam REST API.
package httpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/teslashibe/go-qrcam/pkg/protocol"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// maxBody caps responses read into memory.
const maxBody = 32 << 20

// NewHTTPClient creates an HTTP client with the specified timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx reply from the qrcam API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("qrcam api: status %d", e.Status)
	}
	return fmt.Sprintf("qrcam api: status %d: %s", e.Status, e.Message)
}

// Client talks to a running qrcam server.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for the server at addr (host:port or a full URL).
func New(addr string) (*Client, error) {
	raw := addr
	if u, err := url.Parse(addr); err != nil || u.Scheme == "" || u.Host == "" {
		raw = "http://" + addr
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("httpc: bad address %q: %w", addr, err)
	}
	return &Client{base: base, http: NewHTTPClient(DefaultTimeout)}, nil
}

// Status fetches the session state.
func (c *Client) Status(ctx context.Context) (*protocol.StatusData, error) {
	body, _, err := c.get(ctx, "/api/status", nil)
	if err != nil {
		return nil, err
	}
	var st protocol.StatusData
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("httpc: decode status: %w", err)
	}
	return &st, nil
}

// Health is the reply of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Active  bool   `json:"active"`
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	body, _, err := c.get(ctx, "/health", nil)
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("httpc: decode health: %w", err)
	}
	return &h, nil
}

// Photo fetches an encoded still of the current frame and its MIME type.
func (c *Client) Photo(ctx context.Context) ([]byte, string, error) {
	return c.get(ctx, "/api/photo", url.Values{"raw": {"true"}})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil {
			apiErr.Message = e.Error
		}
		return nil, "", apiErr
	}
	return body, resp.Header.Get("Content-Type"), nil
}
