// Package transport sends wiki API requests over HTTP.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/olgasafonova/mediawiki-bot/metrics"
)

const (
	// DefaultTimeout for a single API round trip
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when no user agent is configured
	DefaultUserAgent = "mediawiki-bot/1.0"

	// MaxBodySize caps how much of a response body is read
	MaxBodySize = 32 << 20
)

// HTTP sends requests with a shared cookie jar so the login session carries
// across calls. It satisfies scheduler.Transport.
type HTTP struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures an HTTP transport
type Option func(*HTTP)

// WithHTTPClient sets a custom HTTP client. A client without a cookie jar gets one.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTP) {
		if c != nil {
			t.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(t *HTTP) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout on the default client
func WithTimeout(d time.Duration) Option {
	return func(t *HTTP) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(t *HTTP) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates an HTTP transport
func New(opts ...Option) *HTTP {
	t := &HTTP{
		client:    newHTTPClient(DefaultTimeout),
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		t.client.Jar = jar
	}
	return t
}

// Client returns the underlying HTTP client
func (t *HTTP) Client() *http.Client {
	return t.client
}

// Send performs one request. GET parameters travel in the query string, POST
// parameters in a form-encoded body. Any status is returned with its body; only
// network and read failures are errors.
func (t *HTTP) Send(ctx context.Context, endpoint, method string, params url.Values) (int, []byte, error) {
	req, err := t.newRequest(ctx, endpoint, method, params)
	if err != nil {
		return 0, nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(method, "error").Inc()
		t.logger.Warn("API request failed",
			"method", method,
			"action", params.Get("action"),
			"error", err)
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readAndClose(resp)
	metrics.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("API returned non-OK status",
			"status", resp.StatusCode,
			"action", params.Get("action"),
			"body", truncate(string(body), 200))
	}
	return resp.StatusCode, body, nil
}

func (t *HTTP) newRequest(ctx context.Context, endpoint, method string, params url.Values) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case http.MethodGet, "":
		target := endpoint
		if q := params.Encode(); q != "" {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			target = endpoint + sep + q
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	return req, nil
}

// readAndClose reads the response body and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	_ = resp.Body.Close()
	return body, err
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// newHTTPClient creates an HTTP client tuned for one long-lived API session
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
