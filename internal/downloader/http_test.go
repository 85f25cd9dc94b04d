package downloader

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/erov/webcrawler/internal/crawler"
)

func TestNewHTTPDownloader(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		d, err := NewHTTPDownloader()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.userAgent != DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", d.userAgent)
		}
		if d.maxBodySize != DefaultMaxBodySize {
			t.Errorf("expected default max body size, got %d", d.maxBodySize)
		}
		if d.client.Timeout != DefaultTimeout {
			t.Errorf("expected default timeout, got %v", d.client.Timeout)
		}
	})

	t.Run("invalid proxy address", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"localhost", "socks5://127.0.0.1", "127.0.0.1:1:2"} {
			_, err := NewHTTPDownloader(WithSOCKS5Proxy(addr))
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("%q: expected ErrInvalidProxyAddress, got %v", addr, err)
			}
		}
	})

	t.Run("valid proxy address", func(t *testing.T) {
		t.Parallel()

		d, err := NewHTTPDownloader(WithSOCKS5Proxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transport, ok := d.client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", d.client.Transport)
		}
		if transport.Proxy != nil {
			t.Error("HTTP proxy must be disabled when dialing through SOCKS5")
		}
	})

}

func TestHTTPDownloaderFetch(t *testing.T) {
	t.Parallel()

	const html = `<html><head><title>Home</title></head><body><a href="/next">next</a></body></html>`

	t.Run("sends headers and returns page", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotCookie string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotCookie = r.Header.Get("Cookie")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, html)
		}))
		defer srv.Close()

		headers := func(host string) map[string]string {
			if host == "127.0.0.1" {
				return map[string]string{"Cookie": "session=abc"}
			}
			return nil
		}
		d, err := NewHTTPDownloader(WithUserAgent("test-agent"), WithHeaders(headers))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		page, err := d.Fetch(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotUA != "test-agent" {
			t.Errorf("expected user agent test-agent, got %q", gotUA)
		}
		if gotCookie != "session=abc" {
			t.Errorf("expected cookie header, got %q", gotCookie)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", page.StatusCode)
		}
		if string(page.Body) != html {
			t.Errorf("unexpected body %q", page.Body)
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		d, _ := NewHTTPDownloader()
		_, err := d.Fetch(context.Background(), srv.URL+"/missing")

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected *StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", statusErr.StatusCode)
		}
	})

	t.Run("body over limit", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("x"), 100))
		}))
		defer srv.Close()

		d, _ := NewHTTPDownloader(WithMaxBodySize(10))
		_, err := d.Fetch(context.Background(), srv.URL)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("redirect target becomes final URL", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dir/new", http.StatusFound)
		})
		mux.HandleFunc("/dir/new", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, `<a href="sibling">s</a>`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		d, _ := NewHTTPDownloader()
		page, err := d.Fetch(context.Background(), srv.URL+"/old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.FinalURL != srv.URL+"/dir/new" {
			t.Errorf("expected final URL %s/dir/new, got %s", srv.URL, page.FinalURL)
		}
		links, _ := page.ExtractLinks()
		if !slices.Equal(links, []string{srv.URL + "/dir/sibling"}) {
			t.Errorf("expected link relative to final URL, got %v", links)
		}
	})

	t.Run("endless redirects fail", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := hits.Add(1)
			http.Redirect(w, r, fmt.Sprintf("/loop/%d", n), http.StatusFound)
		}))
		defer srv.Close()

		d, _ := NewHTTPDownloader()
		page, err := d.Fetch(context.Background(), srv.URL+"/loop/0")
		if !errors.Is(err, ErrTooManyRedirects) {
			t.Fatalf("expected ErrTooManyRedirects, got page=%v err=%v", page, err)
		}
		if got := hits.Load(); got != maxRedirects {
			t.Errorf("expected %d requests, got %d", maxRedirects, got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d, _ := NewHTTPDownloader()
		if _, err := d.Fetch(ctx, srv.URL); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestHTTPDownloaderDecoding(t *testing.T) {
	t.Parallel()

	const body = "<html><body>compressed</body></html>"

	encode := map[string]func(io.Writer) io.WriteCloser{
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		"deflate": func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		},
		"br": func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) },
	}

	for encoding, newWriter := range encode {
		t.Run(encoding, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			zw := newWriter(&buf)
			_, _ = io.WriteString(zw, body)
			if err := zw.Close(); err != nil {
				t.Fatalf("failed to encode: %v", err)
			}

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write(buf.Bytes())
			}))
			defer srv.Close()

			d, _ := NewHTTPDownloader()
			page, err := d.Fetch(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(page.Body) != body {
				t.Errorf("expected %q, got %q", body, page.Body)
			}
		})
	}
}

// TestCrawlOverHTTP runs the crawler against a small local site.
func TestCrawlOverHTTP(t *testing.T) {
	t.Parallel()

	site := map[string]string{
		"/":       `<a href="/a">a</a> <a href="/b#top">b</a> <a href="mailto:x@example.com">m</a>`,
		"/a":      `<a href="/a/deep">deep</a> <a href="/">home</a>`,
		"/b":      `<a href="/gone">gone</a>`,
		"/a/deep": `<p>end</p>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := site[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, content)
	}))
	defer srv.Close()

	d, err := NewHTTPDownloader()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := crawler.New(d, 4, 2, 2, crawler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to create crawler: %v", err)
	}
	defer c.Close()

	result, err := c.Crawl(srv.URL+"/", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	downloaded := slices.Clone(result.Downloaded)
	slices.Sort(downloaded)
	want := []string{srv.URL + "/", srv.URL + "/a", srv.URL + "/a/deep", srv.URL + "/b"}
	if !slices.Equal(downloaded, want) {
		t.Errorf("expected %v, got %v", want, downloaded)
	}

	gone := srv.URL + "/gone"
	var statusErr *StatusError
	if !errors.As(result.Errors[gone], &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for %s, got %v", gone, result.Errors[gone])
	}
	for u := range result.Errors {
		if !strings.HasPrefix(u, srv.URL) {
			t.Errorf("unexpected error entry %s", u)
		}
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %s", fmt.Sprint(result.Errors))
	}
}
