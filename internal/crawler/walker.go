package crawler

import (
	"log/slog"
	"sync"
)

// frontier is the FIFO queue of URLs waiting to be downloaded.
// Workers append to it while the walker drains it.
type frontier struct {
	mu    sync.Mutex
	items []string
}

func (f *frontier) push(urls ...string) {
	f.mu.Lock()
	f.items = append(f.items, urls...)
	f.mu.Unlock()
}

func (f *frontier) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == 0 {
		return "", false
	}
	u := f.items[0]
	f.items[0] = ""
	f.items = f.items[1:]
	return u, true
}

func (f *frontier) peek() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == 0 {
		return "", false
	}
	return f.items[0], true
}

// walker runs a single traversal on behalf of a Crawler.
type walker struct {
	crawler *Crawler
	logger  *slog.Logger

	// allowed is the host allow-list; nil means every host is followed.
	allowed map[string]struct{}

	frontier frontier

	// visited maps a URL to the remaining depth it was first discovered with.
	visited sync.Map

	// pending counts download and extraction tasks of the current level.
	pending sync.WaitGroup

	results aggregator
	fatal   fatalErrors
}

func newWalker(c *Crawler, hosts []string) *walker {
	w := &walker{crawler: c, logger: c.logger}
	if hosts != nil {
		w.allowed = make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			w.allowed[normalizeHost(h)] = struct{}{}
		}
	}
	return w
}

// walk downloads rootURL and everything reachable from it within depth levels.
func (w *walker) walk(rootURL string, depth int) error {
	if depth == 0 {
		return nil
	}

	w.visited.Store(rootURL, depth)
	w.frontier.push(rootURL)

	for !w.fatal.failed() {
		url, ok := w.frontier.pop()
		if !ok {
			break
		}

		if err := w.submitDownload(url); err != nil {
			break
		}

		// Level boundary: let every task of this level finish, so the links
		// they discover form the complete next level.
		next, ok := w.frontier.peek()
		if !ok || w.depthOf(next) != w.depthOf(url) {
			w.pending.Wait()
		}
	}

	// Tasks already scheduled finish even when the traversal aborts.
	w.pending.Wait()
	return w.fatal.err()
}

// depthOf returns the remaining depth recorded for url.
func (w *walker) depthOf(url string) int {
	d, ok := w.visited.Load(url)
	if !ok {
		return 0
	}
	return d.(int)
}

func (w *walker) follows(host string) bool {
	if w.allowed == nil {
		return true
	}
	_, ok := w.allowed[host]
	return ok
}

// submitDownload hands url to the host admission controller.
// The returned error is fatal for the traversal.
func (w *walker) submitDownload(url string) error {
	host, err := w.crawler.resolveHost(url)
	if err != nil {
		w.fatal.add("invalid URL found during traversal", err)
		return w.fatal.err()
	}
	host = normalizeHost(host)

	if !w.follows(host) {
		w.logger.Debug("skipping host outside allow-list", "url", url, "host", host)
		return nil
	}

	w.pending.Add(1)
	err = w.crawler.hosts.acquire(host, admission{
		run:    func() { w.download(host, url) },
		reject: func(err error) { w.rejected(url, err) },
	})
	if err != nil {
		w.pending.Done()
		w.fatal.add("cannot schedule download of "+url, err)
		return w.fatal.err()
	}

	if active, queued := w.crawler.HostLoad(host); queued > 0 {
		w.logger.Debug("download waiting for host slot", "url", url, "host", host, "active", active, "queued", queued)
	}
	return nil
}

// rejected accounts for a queued download the pool refused to run.
func (w *walker) rejected(url string, err error) {
	defer w.pending.Done()
	w.logger.Error("download rejected", "url", url, "error", err)
	w.fatal.add("cannot schedule download of "+url, err)
}

// download is the download task body.
func (w *walker) download(host, url string) {
	defer w.pending.Done()

	doc, err := w.fetch(host, url)
	if err != nil {
		w.logger.Warn("download failed", "url", url, "error", err)
		w.results.addError(url, err)
		return
	}

	w.logger.Debug("downloaded", "url", url, "depth", w.depthOf(url))
	w.results.addDownloaded(url)

	if w.depthOf(url) > 1 {
		w.submitExtract(url, doc)
	}
}

// fetch calls the downloader and gives the host slot back as soon as it returns.
func (w *walker) fetch(host, url string) (Document, error) {
	defer w.crawler.hosts.release(host)
	return w.crawler.downloader.Download(w.crawler.ctx, url)
}

func (w *walker) submitExtract(url string, doc Document) {
	w.pending.Add(1)
	err := w.crawler.extractors.submit(func() { w.extract(url, doc) })
	if err != nil {
		w.pending.Done()
		w.logger.Error("extraction rejected", "url", url, "error", err)
		w.fatal.add("cannot schedule link extraction of "+url, err)
	}
}

// extract is the extraction task body.
func (w *walker) extract(url string, doc Document) {
	defer w.pending.Done()

	links, err := doc.ExtractLinks()
	if err != nil {
		w.logger.Warn("link extraction failed", "url", url, "error", err)
		w.results.addExtractError(url, err)
		return
	}

	remaining := w.depthOf(url) - 1
	fresh := make([]string, 0, len(links))
	for _, link := range links {
		if _, loaded := w.visited.LoadOrStore(link, remaining); !loaded {
			fresh = append(fresh, link)
		}
	}
	w.frontier.push(fresh...)

	w.logger.Debug("links extracted", "url", url, "links", len(links), "new", len(fresh))
}
