package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/erov/webcrawler/internal/crawler"
	"github.com/erov/webcrawler/internal/urlutil"
)

// PageStatus is the outcome of one URL in a run.
type PageStatus string

const (
	// PageDownloaded means the page was downloaded and its links extracted.
	PageDownloaded PageStatus = "downloaded"

	// PageFailed means the download failed.
	PageFailed PageStatus = "failed"

	// PageExtractFailed means the page was downloaded but link extraction failed.
	PageExtractFailed PageStatus = "extract_failed"
)

// PageError describes a failed URL.
type PageError struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// CrawlReport is the outcome of one crawl run.
type CrawlReport struct {
	// ID identifies the run.
	ID string `json:"id"`

	// Root is the URL the crawl started from.
	Root string `json:"root"`

	// Depth is the requested number of levels.
	Depth int `json:"depth"`

	// AllowHosts is the host allow-list, nil when every host was followed.
	AllowHosts []string `json:"allowHosts,omitempty"`

	Downloaders int `json:"downloaders"`
	Extractors  int `json:"extractors"`
	PerHost     int `json:"perHost"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	// Downloaded lists downloaded URLs in completion order.
	Downloaded []string `json:"downloaded"`

	// Errors maps URLs whose download failed to the failure.
	Errors map[string]PageError `json:"errors"`

	// ExtractErrors maps downloaded URLs whose links could not be extracted.
	ExtractErrors map[string]PageError `json:"extractErrors,omitempty"`

	// Fatal is set when the traversal was aborted.
	Fatal string `json:"fatal,omitempty"`
}

// NewCrawlReport creates an empty report for a run starting now.
func NewCrawlReport(root string, depth int) *CrawlReport {
	return &CrawlReport{
		ID:            uuid.NewString(),
		Root:          root,
		Depth:         depth,
		StartedAt:     time.Now().UTC(),
		Downloaded:    []string{},
		Errors:        make(map[string]PageError),
		ExtractErrors: make(map[string]PageError),
	}
}

// ApplyResult copies the outcome of a traversal into r.
func (r *CrawlReport) ApplyResult(result *crawler.Result) {
	if result == nil {
		return
	}
	r.Downloaded = slices.Clone(result.Downloaded)
	for url, err := range result.Errors {
		r.Errors[url] = PageError{Message: err.Error(), Kind: ClassifyError(err)}
	}
	for url, err := range result.ExtractErrors {
		r.ExtractErrors[url] = PageError{Message: err.Error(), Kind: ErrorKindExtract}
	}
}

// Fail records a fatal traversal error.
func (r *CrawlReport) Fail(err error) {
	if err != nil {
		r.Fatal = err.Error()
	}
}

// Finish records the run duration.
func (r *CrawlReport) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// Succeeded reports whether the traversal ran to completion.
func (r *CrawlReport) Succeeded() bool {
	return r.Fatal == ""
}

// PageRecord is one URL of a report.
type PageRecord struct {
	URL    string     `json:"url"`
	Host   string     `json:"host"`
	Status PageStatus `json:"status"`
	Error  *PageError `json:"error,omitempty"`
}

// Pages returns every URL of the report, sorted by URL.
func (r *CrawlReport) Pages() []PageRecord {
	pages := make([]PageRecord, 0, len(r.Downloaded)+len(r.Errors))
	for _, url := range r.Downloaded {
		rec := PageRecord{URL: url, Host: hostOf(url), Status: PageDownloaded}
		if pe, ok := r.ExtractErrors[url]; ok {
			rec.Status = PageExtractFailed
			rec.Error = &pe
		}
		pages = append(pages, rec)
	}
	for url, pe := range r.Errors {
		pages = append(pages, PageRecord{URL: url, Host: hostOf(url), Status: PageFailed, Error: &pe})
	}
	slices.SortFunc(pages, func(a, b PageRecord) int {
		return cmp.Compare(a.URL, b.URL)
	})
	return pages
}

// ErrorURLs returns the URLs whose download failed, sorted.
func (r *CrawlReport) ErrorURLs() []string {
	urls := make([]string, 0, len(r.Errors))
	for url := range r.Errors {
		urls = append(urls, url)
	}
	slices.Sort(urls)
	return urls
}

func hostOf(url string) string {
	host, err := urlutil.HostOf(url)
	if err != nil {
		return ""
	}
	return host
}
