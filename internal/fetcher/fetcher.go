// Package fetcher retrieves pages for the crawler, falling back to a
// headless-browser render when a plain HTTP fetch fails.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// ErrFetchFailed reports that both the plain and the rendered fetch failed.
var ErrFetchFailed = errors.New("fetch failed")

// Fetcher retrieves a page and extracts its snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.PageSnapshot, error)
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// HTTPFetcher implements the plain GET path via the Go http.Client.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	extraHeaders map[string]string
	maxBodyBytes int64
}

// NewHTTPFetcher constructs an HTTP fetcher using the provided options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024 // 5MB cap
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPFetcher{
		client:       &http.Client{Timeout: opts.Timeout, Transport: transport},
		userAgent:    opts.UserAgent,
		extraHeaders: headers,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Get downloads a single URL and returns the response body as HTML.
// Non-HTTP schemes (mailto:, tel:) and 404 responses short-circuit to empty
// content without error: there is no document behind them and rendering
// would not change that. Any other non-2xx status or transport error is
// returned to the caller so it can escalate to the renderer.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http fetch failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, f.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodyBytes)
	}
	return body, nil
}

// Renderer navigates a headless browser to a URL and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// Client is the page-fetch primitive used by the scheduler: plain GET first,
// rendered fetch when the plain one fails, snapshot extraction on top.
type Client struct {
	http     *HTTPFetcher
	renderer Renderer
	logger   *slog.Logger
}

// NewClient builds a composite fetcher. The renderer is optional.
func NewClient(httpFetcher *HTTPFetcher, renderer Renderer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpFetcher, renderer: renderer, logger: logger}
}

// Fetch retrieves rawURL and extracts its snapshot. It returns an error
// wrapping ErrFetchFailed only when the plain fetch failed and the renderer
// was unavailable or failed as well.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*types.PageSnapshot, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	htmlStr, err := c.http.Get(ctx, rawURL)
	if err != nil {
		if c.renderer == nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		c.logger.Debug("plain fetch failed, falling back to renderer", "url", rawURL, "error", err)
		rendered, rerr := c.renderer.Render(ctx, rawURL)
		if rerr != nil {
			return nil, fmt.Errorf("%w: http: %v; render: %v", ErrFetchFailed, err, rerr)
		}
		htmlStr = rendered
	}

	return Extract(htmlStr, base), nil
}
