package downloader

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"

	"github.com/erov/webcrawler/internal/crawler"
)

// Defaults used by NewHTTPDownloader.
const (
	DefaultUserAgent   = "webcrawler/1.0 (+https://github.com/erov/webcrawler)"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 5 * 1024 * 1024

	maxRedirects = 10
)

// Fetcher fetches a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HeaderFunc returns extra request headers for a host. It may return nil.
type HeaderFunc func(host string) map[string]string

// HTTPDownloader fetches pages over HTTP(S).
type HTTPDownloader struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	headers     HeaderFunc

	timeout   time.Duration
	proxyAddr string
}

// Option configures an HTTPDownloader.
type Option func(*HTTPDownloader)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *HTTPDownloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithTimeout sets the timeout of a single request, redirects included.
func WithTimeout(timeout time.Duration) Option {
	return func(d *HTTPDownloader) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxBodySize limits how many decoded bytes are read from a response.
func WithMaxBodySize(size int64) Option {
	return func(d *HTTPDownloader) {
		if size > 0 {
			d.maxBodySize = size
		}
	}
}

// WithHeaders adds per-host request headers, such as cookies.
func WithHeaders(fn HeaderFunc) Option {
	return func(d *HTTPDownloader) {
		d.headers = fn
	}
}

// WithSOCKS5Proxy routes every connection through the SOCKS5 proxy at addr.
func WithSOCKS5Proxy(addr string) Option {
	return func(d *HTTPDownloader) {
		d.proxyAddr = addr
	}
}

// NewHTTPDownloader creates an HTTPDownloader.
func NewHTTPDownloader(opts ...Option) (*HTTPDownloader, error) {
	d := &HTTPDownloader{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Bodies are decoded by readBody, which also knows brotli.
		DisableCompression: true,
	}

	if d.proxyAddr != "" {
		if _, _, err := net.SplitHostPort(d.proxyAddr); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, d.proxyAddr)
		}
		dialer, err := proxy.SOCKS5("tcp", d.proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer(dialer)
	}

	d.client = &http.Client{
		Transport: transport,
		Timeout:   d.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}
	return d, nil
}

// contextDialer adapts a proxy.Dialer, using its DialContext when available.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// Download implements crawler.Downloader.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (crawler.Document, error) {
	page, err := d.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Fetch downloads url and returns the decoded page.
// Responses with a status of 400 or above fail with *StatusError.
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if d.headers != nil {
		for k, v := range d.headers(req.URL.Hostname()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := d.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (d *HTTPDownloader) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, d.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > d.maxBodySize {
		return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, d.maxBodySize)
	}
	return body, nil
}
