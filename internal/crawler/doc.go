// Package crawler implements a concurrent, depth-bounded web crawler.
//
// # Architecture
//
// A Crawler owns two fixed-size worker pools for its whole lifetime: one runs
// downloads, the other runs link extraction on pages that were already
// downloaded. Every Crawl call creates a walker that drives a breadth-first
// traversal level by level:
//
//   - the frontier queue holds URLs waiting to be downloaded
//   - the visited registry maps each discovered URL to the remaining depth it
//     was first seen with (first writer wins)
//   - a wait group counts outstanding download and extraction tasks; the
//     walker waits for it to drain at every level boundary, so no URL of
//     level n+1 is downloaded before all level n links have been discovered
//
// Downloads are admitted per host: at most perHost downloads of the same host
// run at once, and the rest wait in a FIFO backlog that is promoted as slots
// are released. Host controllers are created lazily and shared by every Crawl
// call on the same Crawler.
//
// # Errors
//
// Download and extraction failures are recorded per URL in the Result and
// never stop the traversal. A malformed URL or a task rejected by a saturated
// pool queue aborts the whole call with a *CrawlError; concurrent fatal causes
// are kept as suppressed errors of the first one.
//
// # Usage
//
//	c, err := crawler.New(d, 8, 4, 2)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	result, err := c.Crawl("https://example.com/", 3)
package crawler
