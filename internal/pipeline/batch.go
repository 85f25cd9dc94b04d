package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erov/webcrawler/internal/model"
)

// DefaultConcurrency is the default number of roots crawled at once.
const DefaultConcurrency = 1

// BatchProcessor crawls many roots concurrently, one pipeline per root.
type BatchProcessor struct {
	// pipelineFactory creates the pipeline for each root.
	pipelineFactory func() *Pipeline

	depth       int
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of roots crawled at once.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that crawls every root to depth.
func NewBatchProcessor(pipelineFactory func() *Pipeline, depth int, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		depth:           depth,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls roots and returns one report per root, in input order.
// A failed root does not stop the others; its error is in its report.
// Roots not started before ctx is cancelled have a nil report and the
// context error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(roots))
	err := bp.ProcessBatchWithCallback(ctx, roots, func(report *model.CrawlReport, i int) {
		reports[i] = report
	})
	return reports, err
}

// ProcessBatchWithCallback crawls roots and calls callback with each
// finished report and the index of its root. callback is called from the
// worker goroutines and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	roots []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch",
		"roots", len(roots),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling root",
				"root", root,
				"index", i+1,
				"total", len(roots),
			)

			report := model.NewCrawlReport(root, bp.depth)
			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				bp.logger.Warn("root failed", "root", root, "error", err)
			}
			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"roots", len(roots),
		"elapsed", time.Since(start),
	)
	return err
}
