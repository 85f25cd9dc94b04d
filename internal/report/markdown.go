package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/erov/webcrawler/internal/model"
)

// maxListedPages caps the page table so huge crawls stay readable.
const maxListedPages = 500

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)

	w.writeHeader(md, report)
	w.writeCounts(md, summary)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Summary")
	md.PlainText("")
	md.PlainTextf("Root: `%s`", summary.Root)
	md.PlainText("")
	w.writeCounts(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Root", "`" + report.Root + "`"},
		{"Depth", strconv.Itoa(report.Depth)},
		{"Started", report.StartedAt.Format(timeFormat)},
		{"Duration", report.Duration.String()},
		{"Downloaders / Extractors / Per host", strconv.Itoa(report.Downloaders) + " / " +
			strconv.Itoa(report.Extractors) + " / " + strconv.Itoa(report.PerHost)},
		{"Status", statusText(report)},
	}
	if len(report.AllowHosts) > 0 {
		rows = append(rows, []string{"Allowed hosts", "`" + strings.Join(report.AllowHosts, "`, `") + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(report *model.CrawlReport) string {
	if !report.Succeeded() {
		return "❌ Aborted - " + report.Fatal
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Overview")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "URLs"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(summary.Downloaded)},
			{"Failed", strconv.Itoa(summary.Failed)},
			{"Extraction failed", strconv.Itoa(summary.ExtractFailed)},
		},
	})
	md.PlainText("")

	if len(summary.ErrorKinds) > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)

	if len(summary.Hosts) > 0 {
		md.H2("Hosts")
		md.PlainText("")
		rows := make([][]string, len(summary.Hosts))
		for i, h := range summary.Hosts {
			rows[i] = []string{"`" + h.Host + "`", strconv.Itoa(h.Downloaded), strconv.Itoa(h.Failed)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Host", "Downloaded", "Failed"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Errors by Kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range model.ErrorKinds {
		if n := summary.ErrorKinds[kind]; n > 0 {
			chart.LabelAndIntValue(kind.Description(), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.Fatal != "":
		md.Cautionf("The crawl was aborted: %s", summary.Fatal)
	case summary.Failed > 0:
		md.Warningf("%d URL(s) could not be downloaded.", summary.Failed)
	case summary.ExtractFailed > 0:
		md.Importantf("%d page(s) were downloaded but their links could not be read.", summary.ExtractFailed)
	case summary.Downloaded == 0:
		md.Note("No pages were downloaded.")
	default:
		md.Tip("Every reachable page was downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	pages := report.Pages()
	md.H2("Pages")
	md.PlainText("")
	if len(pages) == 0 {
		md.PlainText("No pages.")
		md.PlainText("")
		return
	}

	shown := pages
	if len(shown) > maxListedPages {
		shown = shown[:maxListedPages]
	}
	rows := make([][]string, len(shown))
	for i, p := range shown {
		detail := "-"
		if p.Error != nil {
			detail = truncateString(p.Error.Message, 80)
		}
		rows[i] = []string{truncateString(p.URL, 80), string(p.Status), detail}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
	if len(pages) > len(shown) {
		md.Note(strconv.Itoa(len(pages)-len(shown)) + " more page(s) omitted; use JSON output for the full list.")
		md.PlainText("")
	}

	for _, p := range pages {
		if p.Error != nil && len(p.Error.Message) > 80 {
			md.Details(truncateString(p.URL, 80), p.Error.Message)
		}
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by webcrawler*")
}
