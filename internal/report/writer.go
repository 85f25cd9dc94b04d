package report

import (
	"io"

	"github.com/erov/webcrawler/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the full report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the condensed summary of a report.
	WriteSummary(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// SummaryOnlyWriter writes the summary of every report, even when the full
// report is requested.
type SummaryOnlyWriter struct {
	next Writer
}

// NewSummaryOnlyWriter wraps next so that Write emits only the summary.
func NewSummaryOnlyWriter(next Writer) *SummaryOnlyWriter {
	return &SummaryOnlyWriter{next: next}
}

// Write outputs the summary of report.
func (s *SummaryOnlyWriter) Write(report *model.CrawlReport) (int, error) {
	return s.next.WriteSummary(model.NewSummary(report))
}

// WriteSummary outputs summary.
func (s *SummaryOnlyWriter) WriteSummary(summary *model.Summary) (int, error) {
	return s.next.WriteSummary(summary)
}
