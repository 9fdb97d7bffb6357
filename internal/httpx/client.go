// Package httpx is the shared HTTP helper used by sources and notifiers. It
// bounds every call with a timeout, applies a small retry loop, and reports
// non-2xx responses as typed errors so callers can tell "missing" apart
// from "unhealthy".
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	maxBodyBytes       = 16 << 20
)

// ErrTransport marks failures that happened before a response was received.
var ErrTransport = errors.New("http transport failure")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// StatusOf extracts the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// IsTransient reports whether err is a network or upstream health failure
// rather than a definitive answer about the requested resource.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) {
		return true
	}
	_, ok := StatusOf(err)
	return ok
}

// Config controls client behavior.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	UserAgent   string
}

// Response is a fully-read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client performs bounded, retried HTTP calls.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Client with its own pooled transport.
func New(cfg Config, logger *zap.Logger) *Client {
	cfg = withDefaults(cfg)
	return NewWithHTTPClient(&http.Client{Timeout: cfg.Timeout, Transport: NewTransport()}, cfg, logger)
}

// NewWithHTTPClient wraps an existing http.Client (primarily for testing).
func NewWithHTTPClient(hc *http.Client, cfg Config, logger *zap.Logger) *Client {
	cfg = withDefaults(cfg)
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if hc.Timeout == 0 {
		hc.Timeout = cfg.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: hc, cfg: cfg, logger: logger}
}

// NewTransport returns the pooled transport shared by every outbound client.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return cfg
}

// HTTPClient exposes the underlying client for libraries that accept one.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// UserAgent returns the configured User-Agent header value.
func (c *Client) UserAgent() string {
	return c.cfg.UserAgent
}

// Get fetches url and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON marshals payload and posts it to url.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, body, "application/json")
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) (Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.once(ctx, method, url, body, contentType)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !shouldRetry(err) || attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.Debug("retrying request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return Response{}, lastErr
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, contentType string) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read %s: %w", ErrTransport, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Snippet: snippet(data)}
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

// shouldRetry retries transport failures, throttling and server errors. A 4xx
// answer is definitive and is returned immediately.
func shouldRetry(err error) bool {
	if status, ok := StatusOf(err); ok {
		return status == http.StatusTooManyRequests || status >= 500
	}
	return errors.Is(err, ErrTransport)
}

func snippet(data []byte) string {
	const limit = 200
	if len(data) > limit {
		data = data[:limit]
	}
	return string(data)
}
