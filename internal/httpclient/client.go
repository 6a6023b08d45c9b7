// Package httpclient provides the HTTP client used to talk to the release catalog
// and to download release artifacts
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default timeout for catalog requests
	DefaultTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds the TCP connect of every request
	DefaultConnectTimeout = 5 * time.Second

	// MaxResponseSize is the maximum allowed size of a catalog response (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// downloadBufferSize is the chunk size progress is reported at
	downloadBufferSize = 32 * 1024
)

// ProgressFunc receives the number of bytes downloaded so far and the expected total.
// total is -1 when the server did not announce a length.
type ProgressFunc func(downloaded, total int64)

// RequestOption customises a single request
type RequestOption func(*http.Request)

// WithHeader sets a header on the request
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string, opts ...RequestOption) ([]byte, error)

	// Download streams the body of url into dst and returns the number of bytes written.
	// Download has no timeout of its own; callers bound it through ctx.
	Download(ctx context.Context, url string, dst io.Writer, progress ProgressFunc) (int64, error)
}

// ClientOption configures a DefaultClient
type ClientOption func(*DefaultClient)

// WithConnectTimeout overrides the TCP connect timeout
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(c *DefaultClient) {
		if timeout > 0 {
			c.connectTimeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) ClientOption {
	return func(c *DefaultClient) {
		c.userAgent = userAgent
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client         *http.Client
	streamClient   *http.Client
	timeout        time.Duration
	connectTimeout time.Duration
	userAgent      string
}

// NewDefaultClient creates a new default HTTP client with the specified timeout
// If timeout is 0, uses DefaultTimeout
func NewDefaultClient(timeout time.Duration, opts ...ClientOption) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	c := &DefaultClient{
		timeout:        timeout,
		connectTimeout: DefaultConnectTimeout,
		userAgent:      "plugin-updater/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   c.connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	c.client = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	c.streamClient = &http.Client{
		Transport: transport,
	}

	return c
}

// Get performs an HTTP GET request
func (c *DefaultClient) Get(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	req, err := c.newRequest(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes (%.2f MB)",
			resp.ContentLength, MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	// +1 to detect if limit exceeded
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes (%.2f MB)",
			MaxResponseSize, float64(MaxResponseSize)/(1024*1024))
	}

	return body, nil
}

// Download performs an HTTP GET request and copies the body into dst
func (c *DefaultClient) Download(ctx context.Context, url string, dst io.Writer, progress ProgressFunc) (int64, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return 0, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	counter := &progressWriter{
		dst:      dst,
		total:    resp.ContentLength,
		progress: progress,
	}
	written, err := io.CopyBuffer(counter, resp.Body, make([]byte, downloadBufferSize))
	if err != nil {
		return written, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return written, fmt.Errorf("short download: got %d of %d bytes", written, resp.ContentLength)
	}

	return written, nil
}

func (c *DefaultClient) newRequest(ctx context.Context, url string, opts ...RequestOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	for _, opt := range opts {
		opt(req)
	}

	return req, nil
}

// progressWriter reports the running byte count after every write
type progressWriter struct {
	dst        io.Writer
	total      int64
	downloaded int64
	progress   ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.downloaded += int64(n)
	if w.progress != nil {
		w.progress(w.downloaded, w.total)
	}
	return n, err
}
