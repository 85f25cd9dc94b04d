package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erov/webcrawler/internal/config"
	"github.com/erov/webcrawler/internal/crawler"
	"github.com/erov/webcrawler/internal/database"
	"github.com/erov/webcrawler/internal/downloader"
	"github.com/erov/webcrawler/internal/log"
	"github.com/erov/webcrawler/internal/model"
	"github.com/erov/webcrawler/internal/pipeline"
	"github.com/erov/webcrawler/internal/report"
)

// crawlUsage is the positional argument synopsis of the crawl command.
const crawlUsage = "url [depth [downloads [extractors [perHost]]]]"

// errAborted is returned when at least one crawl did not run to completion.
var errAborted = errors.New("crawl aborted")

// numericParams names the optional positional arguments, in order.
var numericParams = []string{"depth", "downloads", "extractors", "perHost"}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl " + crawlUsage,
		Short: "Crawl a web site breadth-first",
		Long: `Crawl downloads url and the pages reachable from it, level by level.

  depth       number of levels to download; 1 downloads only url (default 1)
  downloads   size of the download worker pool (default 1)
  extractors  size of the link extraction worker pool (default 1)
  perHost     maximum simultaneous downloads from one host (default 1)

With --list the url is omitted and the roots are read from a file, one per
line; the numeric arguments then start at depth.

Examples:
  # Download a page and the pages it links to
  webcrawler crawl https://example.com/ 2

  # Eight downloaders, two extractors, at most two connections per host
  webcrawler crawl https://example.com/ 3 8 2 2

  # Stay on example.com
  webcrawler crawl --hosts example.com https://example.com/ 3

  # Crawl every root in roots.txt, four at a time, and keep the results
  webcrawler crawl --list roots.txt --batch 4 --save 2

  # Crawl through Tor
  webcrawler crawl --proxy 127.0.0.1:9050 http://<v3-address>.onion/ 2

Configuration file (.webcrawler) example:
  defaults:
    headers:
      Accept-Language: "en-US"
  hosts:
    example.com:
      cookie: "session=abc123"
  allowHosts:
    - example.com`,
		Args: cobra.MaximumNArgs(len(numericParams) + 1),
		RunE: runCrawlCmd,
	}

	// Crawl scope
	cmd.Flags().StringSliceP("hosts", "H", nil,
		"Only download pages on these hosts (comma separated; the root is filtered too)")
	cmd.Flags().StringP("list", "l", "",
		"Read root URLs from a file, one per line")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of roots crawled concurrently with --list")
	cmd.Flags().IntP("queue-size", "q", config.DefaultQueueSize,
		"Capacity of each worker pool queue")

	// HTTP
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum decoded response body size in bytes")

	// Page cache
	cmd.Flags().Bool("cache", false,
		"Serve repeated downloads from the on-disk page cache")
	cmd.Flags().String("cache-dir", "",
		"Page cache directory (default: XDG cache directory)")
	cmd.Flags().Bool("clear-cache", false,
		"Empty the page cache before crawling (implies --cache)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawler in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("summary", false,
		"Output only per-host and per-error-kind counts")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path and a summary to stdout (creates directories if needed)")
	cmd.Flags().BoolP("save", "s", false,
		"Save the report in the result database for history and compare")

	// Logging
	cmd.Flags().String("log-format", config.LogFormatText,
		"Log format on stderr: text or json")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summaryOnly, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return err
	}
	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), summaryOnly)
}

// newLogger builds the stderr logger in the format selected in cfg.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogFormat == config.LogFormatJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// parseCrawlArgs splits the positional arguments into roots and the four
// numeric parameters. When fromList is set there is no url argument.
func parseCrawlArgs(args []string, fromList bool) (roots []string, params [4]int, err error) {
	if !fromList {
		if len(args) == 0 {
			return nil, params, fmt.Errorf("usage: webcrawler crawl %s", crawlUsage)
		}
		roots, args = args[:1], args[1:]
	}
	if len(args) > len(numericParams) {
		return nil, params, fmt.Errorf("too many arguments: usage: webcrawler crawl %s", crawlUsage)
	}

	for i, name := range numericParams {
		params[i] = 1
		if i >= len(args) {
			continue
		}
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, params, fmt.Errorf("optional argument %s must be an integer value, got %q", name, args[i])
		}
		params[i] = n
	}
	return roots, params, nil
}

// readRootList reads one URL per line. Blank lines and lines starting with
// '#' are skipped.
func readRootList(r io.Reader) ([]string, error) {
	var roots []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		roots = append(roots, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return roots, nil
}

// buildConfig creates a Config from cobra command flags and arguments.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	listPath, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}

	roots, params, err := parseCrawlArgs(args, listPath != "")
	if err != nil {
		return nil, err
	}
	cfg.Depth, cfg.Downloaders, cfg.Extractors, cfg.PerHost = params[0], params[1], params[2], params[3]

	if listPath != "" {
		f, err := os.Open(listPath) //nolint:gosec // User-provided list path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to open root list: %w", err)
		}
		defer f.Close()
		roots, err = readRootList(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read root list %s: %w", listPath, err)
		}
	}
	cfg.Targets = roots

	if flags.Changed("hosts") {
		hosts, err := flags.GetStringSlice("hosts")
		if err != nil {
			return nil, err
		}
		cfg.AllowHosts = append([]string{}, hosts...)
	}

	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = flags.GetInt("queue-size"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.UseCache, err = flags.GetBool("cache"); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
		return nil, err
	}
	if cfg.ClearCache, err = flags.GetBool("clear-cache"); err != nil {
		return nil, err
	}
	if cfg.ClearCache {
		cfg.UseCache = true
	}
	if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit --config must exist; otherwise the file is optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.DBDir = config.XDGDataDir()
	return cfg, nil
}

// newDownloader builds the HTTP downloader described by cfg, wrapped in the
// page cache when enabled.
func newDownloader(cfg *config.Config, logger *slog.Logger) (crawler.Downloader, error) {
	opts := []downloader.Option{
		downloader.WithUserAgent(cfg.UserAgent),
		downloader.WithTimeout(cfg.Timeout),
		downloader.WithMaxBodySize(cfg.MaxBodySize),
		downloader.WithHeaders(cfg.HeadersFor),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, downloader.WithSOCKS5Proxy(cfg.ProxyAddress))
	}

	httpDownloader, err := downloader.NewHTTPDownloader(opts...)
	if err != nil {
		return nil, err
	}
	if !cfg.UseCache {
		return httpDownloader, nil
	}

	cached, err := downloader.NewCachingDownloader(httpDownloader, cfg.PageCacheDir(),
		downloader.WithCacheLogger(logger))
	if err != nil {
		return nil, err
	}
	if cfg.ClearCache {
		if err := cached.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear page cache: %w", err)
		}
		logger.Info("page cache cleared", "dir", cfg.PageCacheDir())
	}
	logger.Debug("page cache enabled", "dir", cfg.PageCacheDir())
	return cached, nil
}

// runCrawl crawls every target of cfg and writes one report per target to
// stdout, or to cfg.ReportFile.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, summaryOnly bool) error {
	d, err := newDownloader(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create downloader: %w", err)
	}

	c, err := crawler.New(d, cfg.Downloaders, cfg.Extractors, cfg.PerHost,
		crawler.WithLogger(logger),
		crawler.WithQueueSize(cfg.QueueSize),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	// Interrupting the context stops downloads in flight.
	stopClose := context.AfterFunc(ctx, func() {
		logger.Warn("interrupted, stopping crawler")
		_ = c.Close()
	})
	defer stopClose()

	var saver pipeline.ReportSaver
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		saver = db
		logger.Debug("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)
	if cfg.ReportFile != "" {
		writer = report.NewMultiWriter(writer, report.NewSummaryOnlyWriter(report.NewSimpleWriter(stdout)))
	}

	logger.Info("starting crawl",
		"targets", len(cfg.Targets),
		"depth", cfg.Depth,
		"downloaders", cfg.Downloaders,
		"extractors", cfg.Extractors,
		"perHost", cfg.PerHost,
	)
	start := time.Now()

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.CrawlPipeline(c, saver, cfg.AllowHosts, logger)
		},
		cfg.Depth,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu       sync.Mutex
		aborted  int
		writeErr error
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.CrawlReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if !r.Succeeded() {
			aborted++
		}
		var werr error
		if summaryOnly {
			_, werr = writer.WriteSummary(model.NewSummary(r))
		} else {
			_, werr = writer.Write(r)
		}
		if werr != nil && writeErr == nil {
			writeErr = fmt.Errorf("failed to write report: %w", werr)
		}
	})

	logger.Info("crawl finished", "elapsed", time.Since(start).Round(time.Millisecond))

	switch {
	case err != nil:
		return err
	case writeErr != nil:
		return writeErr
	case aborted > 0:
		return fmt.Errorf("%w: %d of %d root(s) did not complete", errAborted, aborted, len(cfg.Targets))
	}
	return nil
}

// newReportWriter picks the report format selected in cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithShowEmpty(cfg.Verbose),
		)
	}
}

// openOutput returns the report destination. An empty path means stdout.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain URLs with session tokens.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
