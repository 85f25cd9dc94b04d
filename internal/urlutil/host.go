package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedURL is returned when a URL cannot be parsed or has no host.
var ErrMalformedURL = errors.New("malformed URL")

// HostOf returns the lower-cased host name of rawURL without the port.
//
// The URL must be absolute: a scheme and a non-empty host are required.
// Any failure wraps ErrMalformedURL.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrMalformedURL, rawURL, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: %q: missing scheme", ErrMalformedURL, rawURL)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: %q: missing host", ErrMalformedURL, rawURL)
	}
	return strings.ToLower(host), nil
}

// StripFragment removes the #fragment part of rawURL.
// Unparseable input is returned unchanged.
func StripFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
