package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erov/webcrawler/internal/crawler"
	"github.com/erov/webcrawler/internal/model"
)

// CrawlStep crawls the report's root URL and records the outcome.
//
// A traversal aborted by a *crawler.CrawlError is recorded in the report
// and is not returned: the URLs and errors up to that point are lost but
// the run still counts. Usage errors such as crawler.ErrClosed are returned.
type CrawlStep struct {
	crawler *crawler.Crawler

	// hosts is the allow-list; nil follows every host.
	hosts []string

	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlHosts restricts the crawl to hosts. A nil slice lifts the
// restriction; an empty one allows nothing.
func WithCrawlHosts(hosts []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.hosts = hosts
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that uses c. c may be shared by many
// steps running concurrently.
func NewCrawlStep(c *crawler.Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl.
func (s *CrawlStep) Do(_ context.Context, report *model.CrawlReport) error {
	limits := s.crawler.Limits()
	report.Downloaders = limits.Downloaders
	report.Extractors = limits.Extractors
	report.PerHost = limits.PerHost
	report.AllowHosts = s.hosts
	defer report.Finish()

	var (
		result *crawler.Result
		err    error
	)
	if s.hosts != nil {
		result, err = s.crawler.CrawlHosts(report.Root, report.Depth, s.hosts)
	} else {
		result, err = s.crawler.Crawl(report.Root, report.Depth)
	}

	var crawlErr *crawler.CrawlError
	switch {
	case errors.As(err, &crawlErr):
		s.logger.Warn("crawl aborted", "root", report.Root, "error", err)
		report.Fail(err)
		return nil
	case err != nil:
		return fmt.Errorf("crawl %s: %w", report.Root, err)
	}

	report.ApplyResult(result)
	s.logger.Debug("crawl recorded",
		"root", report.Root,
		"downloaded", len(report.Downloaded),
		"errors", len(report.Errors),
	)
	return nil
}

// ReportSaver stores finished reports.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *model.CrawlReport) error
}

// SaveStep stores the report, for example in a database.ResultDB.
type SaveStep struct {
	saver  ReportSaver
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a step that stores reports with saver.
func NewSaveStep(saver ReportSaver, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		saver:  saver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the report.
func (s *SaveStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if err := s.saver.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("save report %s: %w", report.ID, err)
	}
	s.logger.Debug("report saved", "root", report.Root, "id", report.ID)
	return nil
}

// CrawlPipeline builds the usual pipeline: crawl, then save when saver is
// not nil. The save step runs even when the crawl step fails so aborted
// runs are kept.
func CrawlPipeline(c *crawler.Crawler, saver ReportSaver, hosts []string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := New(WithLogger(logger), WithContinueOnError(saver != nil))
	p.AddStep(NewCrawlStep(c, WithCrawlHosts(hosts), WithCrawlLogger(logger)))
	if saver != nil {
		p.AddStep(NewSaveStep(saver, WithSaveLogger(logger)))
	}
	return p
}
