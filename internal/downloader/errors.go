package downloader

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidProxyAddress is returned when a SOCKS5 proxy address is not
	// in "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrTooManyRedirects is returned when a redirect chain is longer than
	// the downloader follows.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrEmptyCacheDir is returned when a CachingDownloader is created without
	// a directory.
	ErrEmptyCacheDir = errors.New("cache directory must not be empty")
)

// StatusError reports an HTTP response with a 4xx or 5xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
