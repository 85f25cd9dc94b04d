package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/erov/webcrawler/internal/model"
)

type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.CrawlReport) error
	callCount atomic.Int32
}

func (m *mockStep) Do(ctx context.Context, report *model.CrawlReport) error {
	m.callCount.Add(1)
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		logger := testLogger()
		p := New(WithContinueOnError(true), WithLogger(logger))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
		if p.logger != logger {
			t.Error("expected custom logger")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "one"})
	p.AddSteps(&mockStep{name: "two"}, &mockStep{name: "three"})

	if got := p.StepNames(); !slices.Equal(got, []string{"one", "two", "three"}) {
		t.Errorf("StepNames() = %v", got)
	}
	if p.StepCount() != 3 {
		t.Errorf("StepCount() = %d, want 3", p.StepCount())
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.CrawlReport) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New(WithLogger(testLogger()))
		p.AddSteps(record("a"), record("b"), record("c"))

		report := model.NewCrawlReport("http://example.com/", 1)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(order, []string{"a", "b", "c"}) {
			t.Errorf("order = %v", order)
		}
		if !report.Succeeded() {
			t.Errorf("expected success, got %q", report.Fatal)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.CrawlReport) error {
			return errBoom
		}}
		after := &mockStep{name: "after"}

		p := New(WithLogger(testLogger()))
		p.AddSteps(failing, after)

		report := model.NewCrawlReport("http://example.com/", 1)
		if err := p.Execute(context.Background(), report); !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if after.callCount.Load() != 0 {
			t.Error("expected later step to be skipped")
		}
		if report.Fatal != "boom" {
			t.Errorf("Fatal = %q, want %q", report.Fatal, "boom")
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		p := New(WithLogger(testLogger()), WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "a", doFunc: func(context.Context, *model.CrawlReport) error { return first }},
			&mockStep{name: "b", doFunc: func(context.Context, *model.CrawlReport) error { return errors.New("second") }},
		)
		last := &mockStep{name: "c"}
		p.AddStep(last)

		report := model.NewCrawlReport("http://example.com/", 1)
		if err := p.Execute(context.Background(), report); !errors.Is(err, first) {
			t.Fatalf("expected first error, got %v", err)
		}
		if last.callCount.Load() != 1 {
			t.Error("expected last step to run")
		}
		if report.Fatal != "first" {
			t.Errorf("Fatal = %q, want the first failure", report.Fatal)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "never"}
		p := New(WithLogger(testLogger()))
		p.AddStep(step)

		report := model.NewCrawlReport("http://example.com/", 1)
		if err := p.Execute(ctx, report); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if step.callCount.Load() != 0 {
			t.Error("expected step to be skipped")
		}
		if report.Succeeded() {
			t.Error("expected report to record the cancellation")
		}
	})
}
