package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/erov/webcrawler/internal/crawler"
)

// CachingDownloader serves pages from an on-disk cache and falls back to
// the wrapped Fetcher on a miss. Failed fetches are not cached.
// Concurrent requests for the same uncached URL share one fetch.
type CachingDownloader struct {
	next   Fetcher
	dir    string
	group  singleflight.Group
	logger *slog.Logger
}

// CacheOption configures a CachingDownloader.
type CacheOption func(*CachingDownloader)

// WithCacheLogger sets the logger used for cache hits and write failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachingDownloader) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachingDownloader creates dir if needed and returns a caching wrapper
// around next.
func NewCachingDownloader(next Fetcher, dir string, opts ...CacheOption) (*CachingDownloader, error) {
	if dir == "" {
		return nil, ErrEmptyCacheDir
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &CachingDownloader{
		next:   next,
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Download implements crawler.Downloader.
func (c *CachingDownloader) Download(ctx context.Context, url string) (crawler.Document, error) {
	page, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Fetch returns the cached page for url, fetching and storing it on a miss.
func (c *CachingDownloader) Fetch(ctx context.Context, url string) (*Page, error) {
	path := c.path(url)

	page, err := c.load(path)
	if err == nil {
		c.logger.Debug("cache hit", "url", url)
		return page, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("ignoring unreadable cache entry", "url", url, "error", err)
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		page, err := c.next.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := c.store(path, page); err != nil {
			c.logger.Warn("failed to write cache entry", "url", url, "error", err)
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// path maps url to its cache file.
func (c *CachingDownloader) path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func (c *CachingDownloader) load(path string) (*Page, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a hash
	if err != nil {
		return nil, err
	}
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &page, nil
}

// store writes page atomically so readers never see a partial entry.
func (c *CachingDownloader) store(path string, page *Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Clear removes every cache entry.
func (c *CachingDownloader) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cache entry: %w", err)
		}
	}
	return nil
}
