package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/erov/webcrawler/internal/crawler"
	"github.com/erov/webcrawler/internal/database"
	"github.com/erov/webcrawler/internal/model"
)

const (
	rootURL  = "http://example.com/"
	childURL = "http://example.com/child"
	otherURL = "http://other.test/"
	deadURL  = "http://example.com/dead"
)

type staticPage []string

func (p staticPage) ExtractLinks() ([]string, error) {
	return p, nil
}

// testSite is a small link graph served by a crawler.DownloaderFunc.
var testSite = map[string]staticPage{
	rootURL:  {childURL, otherURL, deadURL},
	childURL: {rootURL},
	otherURL: {},
}

func newTestCrawler(t *testing.T) *crawler.Crawler {
	t.Helper()

	d := crawler.DownloaderFunc(func(_ context.Context, url string) (crawler.Document, error) {
		page, ok := testSite[url]
		if !ok {
			return nil, errors.New("404 not found")
		}
		return page, nil
	})
	c, err := crawler.New(d, 2, 1, 1, crawler.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("failed to create crawler: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type memorySaver struct {
	mu      sync.Mutex
	reports []*model.CrawlReport
	err     error
}

func (m *memorySaver) SaveReport(_ context.Context, report *model.CrawlReport) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("records result and limits", func(t *testing.T) {
		t.Parallel()

		step := NewCrawlStep(newTestCrawler(t), WithCrawlLogger(testLogger()))
		report := model.NewCrawlReport(rootURL, 2)

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := slices.Clone(report.Downloaded)
		slices.Sort(got)
		if !slices.Equal(got, []string{rootURL, childURL, otherURL}) {
			t.Errorf("Downloaded = %v", got)
		}
		if _, ok := report.Errors[deadURL]; !ok {
			t.Errorf("expected %s in errors, got %v", deadURL, report.Errors)
		}
		if report.Downloaders != 2 || report.Extractors != 1 || report.PerHost != 1 {
			t.Errorf("limits = %d/%d/%d", report.Downloaders, report.Extractors, report.PerHost)
		}
		if step.Name() != "crawl" {
			t.Errorf("Name() = %q", step.Name())
		}
	})

	t.Run("applies host allow-list", func(t *testing.T) {
		t.Parallel()

		step := NewCrawlStep(newTestCrawler(t),
			WithCrawlHosts([]string{"example.com"}),
			WithCrawlLogger(testLogger()),
		)
		report := model.NewCrawlReport(rootURL, 2)

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if slices.Contains(report.Downloaded, otherURL) {
			t.Errorf("expected %s to be filtered, got %v", otherURL, report.Downloaded)
		}
		if !slices.Equal(report.AllowHosts, []string{"example.com"}) {
			t.Errorf("AllowHosts = %v", report.AllowHosts)
		}
	})

	t.Run("records aborted traversal", func(t *testing.T) {
		t.Parallel()

		step := NewCrawlStep(newTestCrawler(t), WithCrawlLogger(testLogger()))
		report := model.NewCrawlReport("://not a url", 1)

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("expected abort to be recorded, got %v", err)
		}
		if report.Succeeded() {
			t.Error("expected report to be marked as failed")
		}
	})

	t.Run("returns usage errors", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(t)
		_ = c.Close()
		step := NewCrawlStep(c, WithCrawlLogger(testLogger()))

		err := step.Do(context.Background(), model.NewCrawlReport(rootURL, 1))
		if !errors.Is(err, crawler.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	})
}

func TestSaveStep(t *testing.T) {
	t.Parallel()

	t.Run("saves to the database", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		p := CrawlPipeline(newTestCrawler(t), db, nil, testLogger())
		report := model.NewCrawlReport(rootURL, 2)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		saved, err := db.GetReport(context.Background(), report.ID)
		if err != nil {
			t.Fatalf("GetReport: %v", err)
		}
		if saved == nil {
			t.Fatal("expected saved report")
		}
		if len(saved.Downloaded) != len(report.Downloaded) {
			t.Errorf("saved %d downloads, want %d", len(saved.Downloaded), len(report.Downloaded))
		}
	})

	t.Run("wraps save errors", func(t *testing.T) {
		t.Parallel()

		errDisk := errors.New("disk full")
		step := NewSaveStep(&memorySaver{err: errDisk}, WithSaveLogger(testLogger()))

		err := step.Do(context.Background(), model.NewCrawlReport(rootURL, 1))
		if !errors.Is(err, errDisk) {
			t.Fatalf("expected errDisk, got %v", err)
		}
		if !strings.Contains(err.Error(), "save report") {
			t.Errorf("unexpected message %q", err)
		}
	})

	t.Run("saves aborted runs", func(t *testing.T) {
		t.Parallel()

		saver := &memorySaver{}
		p := CrawlPipeline(newTestCrawler(t), saver, nil, testLogger())
		report := model.NewCrawlReport("://not a url", 1)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(saver.reports) != 1 || saver.reports[0].Succeeded() {
			t.Errorf("expected one aborted report, got %v", saver.reports)
		}
	})
}

func TestCrawlPipeline(t *testing.T) {
	t.Parallel()

	c := newTestCrawler(t)
	if got := CrawlPipeline(c, nil, nil, nil).StepNames(); !slices.Equal(got, []string{"crawl"}) {
		t.Errorf("without saver: %v", got)
	}
	if got := CrawlPipeline(c, &memorySaver{}, nil, nil).StepNames(); !slices.Equal(got, []string{"crawl", "save"}) {
		t.Errorf("with saver: %v", got)
	}
}
