package model

import (
	"context"
	"errors"
	"net"

	"github.com/erov/webcrawler/internal/downloader"
	"github.com/erov/webcrawler/internal/urlutil"
)

// ErrorKind classifies why a URL failed.
type ErrorKind string

// Error kinds, from most to least specific.
const (
	ErrorKindHTTPStatus ErrorKind = "http_status"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindCanceled   ErrorKind = "canceled"
	ErrorKindTooLarge   ErrorKind = "too_large"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindMalformed  ErrorKind = "malformed_url"
	ErrorKindExtract    ErrorKind = "extract"
	ErrorKindOther      ErrorKind = "other"
)

// ErrorKinds lists every kind in display order.
var ErrorKinds = []ErrorKind{
	ErrorKindHTTPStatus,
	ErrorKindTimeout,
	ErrorKindCanceled,
	ErrorKindTooLarge,
	ErrorKindNetwork,
	ErrorKindMalformed,
	ErrorKindExtract,
	ErrorKindOther,
}

// Description returns a short human-readable label.
func (k ErrorKind) Description() string {
	switch k {
	case ErrorKindHTTPStatus:
		return "HTTP error status"
	case ErrorKindTimeout:
		return "Timed out"
	case ErrorKindCanceled:
		return "Interrupted"
	case ErrorKindTooLarge:
		return "Body too large"
	case ErrorKindNetwork:
		return "Network error"
	case ErrorKindMalformed:
		return "Malformed URL"
	case ErrorKindExtract:
		return "Link extraction failed"
	default:
		return "Other error"
	}
}

// ClassifyError maps a download error to its kind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindOther
	}

	var statusErr *downloader.StatusError
	if errors.As(err, &statusErr) || errors.Is(err, downloader.ErrTooManyRedirects) {
		return ErrorKindHTTPStatus
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}
	if errors.Is(err, downloader.ErrBodyTooLarge) {
		return ErrorKindTooLarge
	}
	if errors.Is(err, urlutil.ErrMalformedURL) {
		return ErrorKindMalformed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindNetwork
	}
	return ErrorKindOther
}
