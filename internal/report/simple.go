package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/erov/webcrawler/internal/model"
)

const (
	bannerWidth = 70
	timeFormat  = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have no entries.
	showEmpty bool

	// verbose adds error kinds and a per-host breakdown.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the downloaded URLs and the failed URLs of report.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeDownloaded(&sb, report)
	w.writeErrors(&sb, "Errors", report.Errors)
	if len(report.ExtractErrors) > 0 || w.showEmpty {
		w.writeErrors(&sb, "Extract errors", report.ExtractErrors)
	}
	if w.verbose {
		w.writeHosts(&sb, model.NewSummary(report).Hosts)
	}

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs counts per host and per error kind.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	banner(&sb, "CRAWL SUMMARY")
	fmt.Fprintf(&sb, "Root:            %s\n", summary.Root)
	fmt.Fprintf(&sb, "Downloaded:      %d\n", summary.Downloaded)
	fmt.Fprintf(&sb, "Failed:          %d\n", summary.Failed)
	fmt.Fprintf(&sb, "Extract failed:  %d\n", summary.ExtractFailed)
	if summary.Fatal != "" {
		fmt.Fprintf(&sb, "Aborted:         %s\n", summary.Fatal)
	}

	if len(summary.ErrorKinds) > 0 || w.showEmpty {
		sb.WriteString("\nErrors by kind:\n")
		for _, kind := range model.ErrorKinds {
			n := summary.ErrorKinds[kind]
			if n == 0 && !w.showEmpty {
				continue
			}
			fmt.Fprintf(&sb, "  %-24s %d\n", kind.Description()+":", n)
		}
	}
	w.writeHosts(&sb, summary.Hosts)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	banner(sb, "CRAWL REPORT")
	fmt.Fprintf(sb, "Root:      %s\n", report.Root)
	fmt.Fprintf(sb, "Depth:     %d\n", report.Depth)
	if len(report.AllowHosts) > 0 {
		fmt.Fprintf(sb, "Hosts:     %s\n", strings.Join(report.AllowHosts, ", "))
	}
	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format(timeFormat))
	fmt.Fprintf(sb, "Duration:  %s\n", report.Duration.Round(time.Millisecond))
	if report.Succeeded() {
		sb.WriteString("Status:    Complete\n")
	} else {
		fmt.Fprintf(sb, "Status:    ABORTED - %s\n", report.Fatal)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDownloaded(sb *strings.Builder, report *model.CrawlReport) {
	fmt.Fprintf(sb, "Downloaded: %d\n", len(report.Downloaded))
	for _, url := range report.Downloaded {
		fmt.Fprintf(sb, "    %s\n", url)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, title string, errs map[string]model.PageError) {
	fmt.Fprintf(sb, "%s: %d\n", title, len(errs))
	urls := make([]string, 0, len(errs))
	for url := range errs {
		urls = append(urls, url)
	}
	slices.Sort(urls)
	for _, url := range urls {
		pe := errs[url]
		if w.verbose {
			fmt.Fprintf(sb, "    %s [%s]\n        %s\n", url, pe.Kind, pe.Message)
			continue
		}
		fmt.Fprintf(sb, "    %s\n        %s\n", url, pe.Message)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, hosts []model.HostSummary) {
	if len(hosts) == 0 && !w.showEmpty {
		return
	}
	sb.WriteString("\nHosts:\n")
	fmt.Fprintf(sb, "  %-40s  %10s  %6s\n", "Host", "Downloaded", "Failed")
	sb.WriteString("  " + strings.Repeat("-", 60) + "\n")
	for _, h := range hosts {
		fmt.Fprintf(sb, "  %-40s  %10d  %6d\n", truncateString(h.Host, 40), h.Downloaded, h.Failed)
	}
}

func banner(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", bannerWidth))
	sb.WriteString("\n")
	pad := max(0, (bannerWidth-len(title))/2)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", bannerWidth))
	sb.WriteString("\n\n")
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
