// Package downloader provides the HTTP implementation of crawler.Downloader.
//
// HTTPDownloader fetches pages with net/http, optionally through a SOCKS5
// proxy, and decodes gzip, deflate and brotli bodies. Every fetched Page can
// extract its outgoing links with goquery.
//
// CachingDownloader wraps a Fetcher and keeps successful fetches on disk, so
// repeated crawls of the same site do not hit the network again:
//
//	d, err := downloader.NewHTTPDownloader(downloader.WithTimeout(10 * time.Second))
//	if err != nil {
//		return err
//	}
//	cached, err := downloader.NewCachingDownloader(d, cacheDir)
package downloader
