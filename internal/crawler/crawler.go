package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erov/webcrawler/internal/urlutil"
)

// DefaultQueueSize is the default capacity of each worker pool queue.
const DefaultQueueSize = 4096

// Crawler downloads pages breadth-first with bounded concurrency.
// It is safe for concurrent use; concurrent Crawl calls share the worker
// pools and the per-host limits.
type Crawler struct {
	downloader  Downloader
	resolveHost func(string) (string, error)
	logger      *slog.Logger

	downloaders *workerPool
	extractors  *workerPool
	hosts       *hostAdmission
	limits      Limits

	// ctx is passed to every download and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Limits are the concurrency bounds a Crawler was created with.
type Limits struct {
	Downloaders int
	Extractors  int
	PerHost     int
}

// Option configures a Crawler.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	queueSize   int
	resolveHost func(string) (string, error)
}

// WithLogger sets the logger used by the crawler and its workers.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithQueueSize sets the queue capacity of each worker pool.
// Non-positive values are ignored.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithHostResolver replaces urlutil.HostOf as the function mapping a URL to
// the host its downloads are limited by.
func WithHostResolver(fn func(string) (string, error)) Option {
	return func(o *options) {
		if fn != nil {
			o.resolveHost = fn
		}
	}
}

// New creates a Crawler and starts its worker pools.
//
// downloaders and extractors are the sizes of the download and extraction
// pools, perHost the maximum number of simultaneous downloads per host.
// All three must be positive.
func New(d Downloader, downloaders, extractors, perHost int, opts ...Option) (*Crawler, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: downloader must not be nil", ErrInvalidArgument)
	}
	if downloaders <= 0 {
		return nil, fmt.Errorf("%w: downloaders must be positive, got %d", ErrInvalidArgument, downloaders)
	}
	if extractors <= 0 {
		return nil, fmt.Errorf("%w: extractors must be positive, got %d", ErrInvalidArgument, extractors)
	}
	if perHost <= 0 {
		return nil, fmt.Errorf("%w: perHost must be positive, got %d", ErrInvalidArgument, perHost)
	}

	o := options{
		queueSize:   DefaultQueueSize,
		resolveHost: urlutil.HostOf,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	downloadPool := newWorkerPool("download", downloaders, o.queueSize, o.logger)

	c := &Crawler{
		downloader:  d,
		resolveHost: o.resolveHost,
		logger:      o.logger,
		downloaders: downloadPool,
		extractors:  newWorkerPool("extract", extractors, o.queueSize, o.logger),
		hosts:       newHostAdmission(perHost, downloadPool),
		limits:      Limits{Downloaders: downloaders, Extractors: extractors, PerHost: perHost},
		ctx:         ctx,
		cancel:      cancel,
	}

	c.logger.Debug("crawler started",
		"downloaders", downloaders,
		"extractors", extractors,
		"perHost", perHost,
		"queueSize", o.queueSize,
	)
	return c, nil
}

// Crawl downloads url and the pages reachable from it, following links on
// any host. Depth 1 downloads only url itself; depth 0 does nothing.
func (c *Crawler) Crawl(url string, depth int) (*Result, error) {
	return c.crawl(url, depth, nil)
}

// CrawlHosts is like Crawl but only downloads URLs whose host is in hosts.
// The root URL is filtered too. A nil hosts slice is a usage error; an empty
// one allows nothing.
func (c *Crawler) CrawlHosts(url string, depth int, hosts []string) (*Result, error) {
	if hosts == nil {
		return nil, ErrNilHosts
	}
	return c.crawl(url, depth, hosts)
}

func (c *Crawler) crawl(url string, depth int, hosts []string) (*Result, error) {
	if depth < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	start := time.Now()
	w := newWalker(c, hosts)
	if err := w.walk(url, depth); err != nil {
		c.logger.Error("crawl aborted", "url", url, "depth", depth, "error", err)
		return nil, err
	}

	result := w.results.result()
	c.logger.Info("crawl completed",
		"url", url,
		"depth", depth,
		"downloaded", len(result.Downloaded),
		"errors", len(result.Errors),
		"elapsed", time.Since(start),
	)
	return result, nil
}

// Close stops both pools, interrupts running downloads and waits for all
// workers to exit. Crawl calls made afterwards fail with ErrClosed.
func (c *Crawler) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.downloaders.close()
		c.extractors.close()
		c.logger.Debug("crawler closed")
	})
	return nil
}

// Limits returns the pool sizes and per-host limit of c.
func (c *Crawler) Limits() Limits {
	return c.limits
}

// HostLoad reports the downloads currently running for host and the number
// waiting for a slot.
func (c *Crawler) HostLoad(host string) (active, queued int) {
	v, ok := c.hosts.controllers.Load(normalizeHost(host))
	if !ok {
		return 0, 0
	}
	return v.(*hostController).snapshot()
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
