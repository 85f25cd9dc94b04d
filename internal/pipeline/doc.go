// Package pipeline runs crawl runs as a sequence of steps.
//
// A Pipeline executes its steps in order over one model.CrawlReport:
// CrawlStep fills the report from a crawler.Crawler and SaveStep stores
// it. BatchProcessor runs one pipeline per root URL with bounded
// concurrency, typically with every pipeline sharing a single Crawler so
// that the per-host limits hold across roots.
package pipeline
