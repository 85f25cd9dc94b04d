package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no root URL or list file is specified.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidDownloaders is returned when the download pool size is not positive.
	ErrInvalidDownloaders = errors.New("invalid number of downloaders: must be positive")

	// ErrInvalidExtractors is returned when the extraction pool size is not positive.
	ErrInvalidExtractors = errors.New("invalid number of extractors: must be positive")

	// ErrInvalidPerHost is returned when the per-host download limit is not positive.
	ErrInvalidPerHost = errors.New("invalid per-host limit: must be positive")

	// ErrInvalidQueueSize is returned when the pool queue size is negative.
	ErrInvalidQueueSize = errors.New("invalid queue size: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrOnionWithoutProxy is returned when a .onion root is given without
	// --proxy. Hidden services are only reachable through Tor.
	ErrOnionWithoutProxy = errors.New("onion address requires a SOCKS5 proxy: use --proxy")

	// ErrInvalidLogFormat is returned when the log format is neither text nor json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
