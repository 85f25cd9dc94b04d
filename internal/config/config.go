package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/erov/webcrawler/internal/urlutil"
)

// Default configuration values.
const (
	// DefaultDepth, DefaultDownloaders, DefaultExtractors and DefaultPerHost
	// are the values used for omitted positional crawl arguments.
	DefaultDepth       = 1
	DefaultDownloaders = 1
	DefaultExtractors  = 1
	DefaultPerHost     = 1

	// DefaultQueueSize is the capacity of each worker pool queue.
	DefaultQueueSize = 4096

	// DefaultTimeout bounds a single HTTP request, redirects included.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of roots crawled at once in list mode.
	DefaultBatchSize = 1

	// DefaultMaxBodySize limits the decoded response body size.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies webcrawler in HTTP requests.
	DefaultUserAgent = "webcrawler/1.0 (+https://github.com/erov/webcrawler)"

	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawler"
)

// Log formats accepted by --log-format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all options of a crawl run.
// It is populated from CLI flags and the config file and passed down
// explicitly rather than kept in global state.
type Config struct {
	// Targets is the list of root URLs to crawl.
	Targets []string

	// Depth is the number of BFS levels to download. 1 means only the root.
	Depth int

	// Downloaders is the size of the download worker pool.
	Downloaders int

	// Extractors is the size of the link extraction worker pool.
	Extractors int

	// PerHost is the maximum number of simultaneous downloads from one host.
	PerHost int

	// QueueSize is the capacity of each worker pool queue. 0 means the default.
	QueueSize int

	// AllowHosts restricts the crawl to these hosts. Nil means every host.
	AllowHosts []string

	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum decoded response body size in bytes.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseCache serves repeated downloads from the on-disk page cache.
	UseCache bool

	// CacheDir is the page cache directory. Defaults to XDGCacheDir()/pages.
	CacheDir string

	// ClearCache empties the page cache before crawling.
	ClearCache bool

	// BatchSize is the number of roots crawled concurrently in list mode.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string

	// ConfigFilePath is the path to the configuration file.
	// If empty, .webcrawler is searched in the current and home directories.
	ConfigFilePath string

	// Hosts holds the per-host settings loaded from the config file.
	Hosts *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// DBDir is the directory of the SQLite result database.
	DBDir string

	// SaveToDB stores finished crawl reports in the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:       DefaultDepth,
		Downloaders: DefaultDownloaders,
		Extractors:  DefaultExtractors,
		PerHost:     DefaultPerHost,
		QueueSize:   DefaultQueueSize,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		BatchSize:   DefaultBatchSize,
		LogFormat:   LogFormatText,
	}
}

// XDGDataDir returns the XDG data directory for webcrawler.
// On Linux: ~/.local/share/webcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webcrawler.
// On Linux: ~/.config/webcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for webcrawler.
// On Linux: ~/.cache/webcrawler
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// PageCacheDir returns CacheDir, or the default page cache location.
func (c *Config) PageCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(XDGCacheDir(), "pages")
}

// ApplyFile merges settings from the config file into c.
// Values already set on the command line win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.Hosts = f
	if c.AllowHosts == nil && f.AllowHosts != nil {
		c.AllowHosts = append([]string{}, f.AllowHosts...)
	}
}

// HeadersFor returns the request headers configured for host.
func (c *Config) HeadersFor(host string) map[string]string {
	if c.Hosts == nil {
		return nil
	}
	return c.Hosts.HostConfig(host).RequestHeaders()
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.Downloaders <= 0 {
		return ErrInvalidDownloaders
	}
	if c.Extractors <= 0 {
		return ErrInvalidExtractors
	}
	if c.PerHost <= 0 {
		return ErrInvalidPerHost
	}
	if c.QueueSize < 0 {
		return ErrInvalidQueueSize
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	return c.validateOnionTargets()
}

// validateOnionTargets rejects malformed .onion roots and onion roots that
// would be fetched without a proxy. Other malformed roots are left to the
// crawler, which reports them per root.
func (c *Config) validateOnionTargets() error {
	for _, target := range c.Targets {
		host, err := urlutil.HostOf(target)
		if err != nil || !urlutil.IsOnionHost(host) {
			continue
		}
		if err := urlutil.ValidateOnionHost(host); err != nil {
			return fmt.Errorf("%w: %s", err, target)
		}
		if c.ProxyAddress == "" {
			return fmt.Errorf("%w: %s", ErrOnionWithoutProxy, target)
		}
	}
	return nil
}
