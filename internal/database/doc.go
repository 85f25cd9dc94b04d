// Package database provides SQLite-based storage for finished crawl runs.
//
// ResultDB keeps one row per run in crawl_runs, with the full report as
// JSON, and one row per URL in crawl_pages so history and per-host queries
// do not need to decode reports. It uses modernc.org/sqlite, a CGO-free
// driver, in WAL mode.
//
// Only finished reports are stored; an interrupted crawl cannot be resumed
// from the database.
package database
