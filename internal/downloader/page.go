package downloader

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/erov/webcrawler/internal/urlutil"
)

// Page is a fetched document.
type Page struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string `json:"finalUrl"`

	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// IsHTML reports whether the page declares an HTML media type.
// A missing Content-Type is treated as HTML.
func (p *Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(p.ContentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// ExtractLinks implements crawler.Document.
//
// It returns the absolute http(s) targets of every <a href> on the page,
// resolved against <base href> when present, without fragments and without
// duplicates. Non-HTML pages have no links.
func (p *Page) ExtractLinks() ([]string, error) {
	if !p.IsHTML() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.URL, err)
	}

	base, err := url.Parse(p.baseURL())
	if err != nil {
		return nil, fmt.Errorf("parse base of %s: %w", p.URL, err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

func (p *Page) baseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// resolveLink turns href into an absolute http(s) URL without fragment.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return urlutil.StripFragment(u.String()), true
}
