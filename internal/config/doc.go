// Package config provides configuration structures and utilities for webcrawler.
// It defines the crawl parameters, HTTP client settings, report preferences
// and the optional .webcrawler file with per-host request settings.
package config
