package crawler

import "context"

// Downloader fetches a page.
// Any error is treated as a failure of that URL only.
type Downloader interface {
	Download(ctx context.Context, url string) (Document, error)
}

// Document is a downloaded page.
type Document interface {
	// ExtractLinks returns the absolute URLs the page links to.
	ExtractLinks() ([]string, error)
}

// DownloaderFunc adapts a function to the Downloader interface.
type DownloaderFunc func(ctx context.Context, url string) (Document, error)

// Download calls f(ctx, url).
func (f DownloaderFunc) Download(ctx context.Context, url string) (Document, error) {
	return f(ctx, url)
}
