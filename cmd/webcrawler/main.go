// Package main provides the entry point for the webcrawler CLI.
//
// webcrawler downloads a web site breadth-first up to a given depth with
// bounded concurrency, reports which pages were downloaded and which
// failed, and keeps a history of runs for comparison.
//
// Usage:
//
//	webcrawler crawl <url> [depth [downloads [extractors [perHost]]]]
//	webcrawler crawl --list <file> [depth [downloads [extractors [perHost]]]]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
