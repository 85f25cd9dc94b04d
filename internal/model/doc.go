// Package model defines the data structures shared by the storage,
// reporting and pipeline packages.
//
//   - CrawlReport: the persisted outcome of one crawl run
//   - PageRecord: one URL of a run with its status
//   - Summary: per-host and per-error-kind counts of a report
//   - ErrorKind: a coarse classification of download failures
//
// All types serialize to JSON for report output and database storage.
package model
