package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// countingFetcher returns a fixed page and counts calls.
type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (*Page, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Page{
		URL:         url,
		FinalURL:    url,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(`<a href="/next">n</a>`),
	}, nil
}

func TestCachingDownloader(t *testing.T) {
	t.Parallel()

	const url = "http://example.com/"

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()

		_, err := NewCachingDownloader(&countingFetcher{}, "")
		if !errors.Is(err, ErrEmptyCacheDir) {
			t.Errorf("expected ErrEmptyCacheDir, got %v", err)
		}
	})

	t.Run("second fetch is served from disk", func(t *testing.T) {
		t.Parallel()

		next := &countingFetcher{}
		c, err := NewCachingDownloader(next, t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		first, err := c.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := c.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := next.calls.Load(); got != 1 {
			t.Errorf("expected 1 network fetch, got %d", got)
		}
		if string(second.Body) != string(first.Body) || second.FinalURL != first.FinalURL {
			t.Errorf("cached page differs: %+v vs %+v", second, first)
		}
		links, err := second.ExtractLinks()
		if err != nil || len(links) != 1 || links[0] != "http://example.com/next" {
			t.Errorf("unexpected links from cached page: %v, %v", links, err)
		}
	})

	t.Run("cache survives a new instance", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		next := &countingFetcher{}
		c1, _ := NewCachingDownloader(next, dir)
		if _, err := c1.Fetch(context.Background(), url); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c2, _ := NewCachingDownloader(next, dir)
		if _, err := c2.Download(context.Background(), url); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := next.calls.Load(); got != 1 {
			t.Errorf("expected 1 network fetch, got %d", got)
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		t.Parallel()

		fetchErr := errors.New("unreachable")
		next := &countingFetcher{err: fetchErr}
		dir := t.TempDir()
		c, _ := NewCachingDownloader(next, dir)

		for range 2 {
			if _, err := c.Download(context.Background(), url); !errors.Is(err, fetchErr) {
				t.Errorf("expected fetch error, got %v", err)
			}
		}
		if got := next.calls.Load(); got != 2 {
			t.Errorf("expected 2 fetches, got %d", got)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected empty cache, got %d entries", len(entries))
		}
	})

	t.Run("corrupt entry is refetched", func(t *testing.T) {
		t.Parallel()

		next := &countingFetcher{}
		c, _ := NewCachingDownloader(next, t.TempDir())
		if err := os.WriteFile(c.path(url), []byte("{not json"), 0o600); err != nil {
			t.Fatalf("failed to write entry: %v", err)
		}

		if _, err := c.Fetch(context.Background(), url); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := next.calls.Load(); got != 1 {
			t.Errorf("expected 1 fetch, got %d", got)
		}
	})

	t.Run("concurrent fetches agree", func(t *testing.T) {
		t.Parallel()

		next := &countingFetcher{}
		c, _ := NewCachingDownloader(next, t.TempDir())

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				page, err := c.Fetch(context.Background(), url)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if page.URL != url {
					t.Errorf("unexpected page %s", page.URL)
				}
			}()
		}
		wg.Wait()

		if got := next.calls.Load(); got < 1 || got > 8 {
			t.Errorf("unexpected fetch count %d", got)
		}
	})

	t.Run("clear removes entries", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		next := &countingFetcher{}
		c, _ := NewCachingDownloader(next, dir)
		_, _ = c.Fetch(context.Background(), url)
		_, _ = c.Fetch(context.Background(), url+"other")

		matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
		if len(matches) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(matches))
		}
		if err := c.Clear(); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		matches, _ = filepath.Glob(filepath.Join(dir, "*.json"))
		if len(matches) != 0 {
			t.Errorf("expected no entries, got %d", len(matches))
		}
	})
}
