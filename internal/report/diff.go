package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/erov/webcrawler/internal/model"
)

// Trend values of a Comparison.
const (
	TrendImproved  = "improved"
	TrendWorsened  = "worsened"
	TrendUnchanged = "unchanged"
)

// RunMetadata describes one side of a Comparison.
type RunMetadata struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
}

// Comparison is the difference between two runs of the same root.
type Comparison struct {
	Root     string      `json:"root"`
	Previous RunMetadata `json:"previous"`
	Current  RunMetadata `json:"current"`

	// NewURLs were downloaded now but not before.
	NewURLs []string `json:"newUrls,omitempty"`

	// MissingURLs were downloaded before but not now.
	MissingURLs []string `json:"missingUrls,omitempty"`

	// NewErrors failed now but not before.
	NewErrors map[string]model.PageError `json:"newErrors,omitempty"`

	// FixedErrors failed before but not now.
	FixedErrors map[string]model.PageError `json:"fixedErrors,omitempty"`

	// Unchanged counts URLs downloaded in both runs.
	Unchanged int `json:"unchanged"`

	Trend string `json:"trend"`
}

// Compare returns the difference from previous to current.
func Compare(previous, current *model.CrawlReport) *Comparison {
	c := &Comparison{
		Root:        current.Root,
		Previous:    metadataOf(previous),
		Current:     metadataOf(current),
		NewErrors:   make(map[string]model.PageError),
		FixedErrors: make(map[string]model.PageError),
	}

	before := make(map[string]struct{}, len(previous.Downloaded))
	for _, url := range previous.Downloaded {
		before[url] = struct{}{}
	}
	now := make(map[string]struct{}, len(current.Downloaded))
	for _, url := range current.Downloaded {
		now[url] = struct{}{}
		if _, ok := before[url]; ok {
			c.Unchanged++
		} else {
			c.NewURLs = append(c.NewURLs, url)
		}
	}
	for url := range before {
		if _, ok := now[url]; !ok {
			c.MissingURLs = append(c.MissingURLs, url)
		}
	}
	slices.Sort(c.NewURLs)
	slices.Sort(c.MissingURLs)

	for url, pe := range current.Errors {
		if _, ok := previous.Errors[url]; !ok {
			c.NewErrors[url] = pe
		}
	}
	for url, pe := range previous.Errors {
		if _, ok := current.Errors[url]; !ok {
			c.FixedErrors[url] = pe
		}
	}

	switch {
	case len(current.Errors) < len(previous.Errors):
		c.Trend = TrendImproved
	case len(current.Errors) > len(previous.Errors):
		c.Trend = TrendWorsened
	default:
		c.Trend = TrendUnchanged
	}
	return c
}

func metadataOf(r *model.CrawlReport) RunMetadata {
	return RunMetadata{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		Downloaded: len(r.Downloaded),
		Failed:     len(r.Errors),
	}
}

// HasChanges reports whether the two runs differ.
func (c *Comparison) HasChanges() bool {
	return len(c.NewURLs)+len(c.MissingURLs)+len(c.NewErrors)+len(c.FixedErrors) > 0
}

// DiffFormat selects the DiffWriter output format.
type DiffFormat int

const (
	// DiffText is plain text for the terminal.
	DiffText DiffFormat = iota
	// DiffJSON is indented JSON.
	DiffJSON
	// DiffMarkdown is GitHub-flavored Markdown.
	DiffMarkdown
)

// DiffWriter renders comparisons.
type DiffWriter struct {
	baseWriter

	format DiffFormat
}

// NewDiffWriter creates a DiffWriter.
func NewDiffWriter(output io.Writer, format DiffFormat) *DiffWriter {
	return &DiffWriter{baseWriter: newBaseWriter(output), format: format}
}

// Write renders c.
func (w *DiffWriter) Write(c *Comparison) (int, error) {
	switch w.format {
	case DiffJSON:
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return 0, err
		}
		return w.output.Write(append(data, '\n'))
	case DiffMarkdown:
		return w.writeMarkdown(c)
	default:
		return io.WriteString(w.output, w.text(c))
	}
}

func (w *DiffWriter) text(c *Comparison) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", c.Root)
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "\nTrend: %s\n", trendText(c.Trend))
	fmt.Fprintf(&sb, "\nPrevious run: %s\n", c.Previous.StartedAt.Format(time.DateTime))
	fmt.Fprintf(&sb, "Current run:  %s\n", c.Current.StartedAt.Format(time.DateTime))

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  %-12s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 48) + "\n")
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Downloaded",
		c.Previous.Downloaded, c.Current.Downloaded, formatDelta(c.Current.Downloaded-c.Previous.Downloaded))
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Failed",
		c.Previous.Failed, c.Current.Failed, formatDelta(c.Current.Failed-c.Previous.Failed))

	writeList := func(title, mark string, urls []string) {
		if len(urls) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", title, len(urls))
		for _, url := range urls {
			fmt.Fprintf(&sb, "  [%s] %s\n", mark, url)
		}
	}
	writeList("New URLs", "+", c.NewURLs)
	writeList("Missing URLs", "-", c.MissingURLs)

	writeErrors := func(title, mark string, errs map[string]model.PageError) {
		if len(errs) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", title, len(errs))
		for _, url := range sortedKeys(errs) {
			fmt.Fprintf(&sb, "  [%s] %s: %s\n", mark, url, errs[url].Message)
		}
	}
	writeErrors("New Errors", "+", c.NewErrors)
	writeErrors("Fixed Errors", "-", c.FixedErrors)

	if c.Unchanged > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d URLs\n", c.Unchanged)
	}
	return sb.String()
}

func (w *DiffWriter) writeMarkdown(c *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1f("Crawl Comparison: %s", c.Root)
	md.PlainText("")
	md.PlainTextf("**Trend:** %s", trendText(c.Trend))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", c.Previous.StartedAt.Format("2006-01-02 15:04"), c.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Downloaded", strconv.Itoa(c.Previous.Downloaded), strconv.Itoa(c.Current.Downloaded),
				formatDelta(c.Current.Downloaded - c.Previous.Downloaded)},
			{"Failed", strconv.Itoa(c.Previous.Failed), strconv.Itoa(c.Current.Failed),
				formatDelta(c.Current.Failed - c.Previous.Failed)},
		},
	})
	md.PlainText("")

	if len(c.NewURLs) > 0 {
		md.H2f("New URLs (%d)", len(c.NewURLs))
		md.BulletList(c.NewURLs...)
		md.PlainText("")
	}
	if len(c.MissingURLs) > 0 {
		md.H2f("Missing URLs (%d)", len(c.MissingURLs))
		md.BulletList(c.MissingURLs...)
		md.PlainText("")
	}
	if len(c.NewErrors) > 0 {
		md.H2f("New Errors (%d)", len(c.NewErrors))
		md.BulletList(errorItems(c.NewErrors, false)...)
		md.PlainText("")
	}
	if len(c.FixedErrors) > 0 {
		md.H2f("Fixed Errors (%d)", len(c.FixedErrors))
		md.BulletList(errorItems(c.FixedErrors, true)...)
		md.PlainText("")
	}
	if !c.HasChanges() {
		md.Tip("No differences between the two runs.")
		md.PlainText("")
	}
	if c.Unchanged > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d URLs unchanged*", c.Unchanged)
	}

	return len(md.String()), md.Build()
}

func errorItems(errs map[string]model.PageError, struck bool) []string {
	items := make([]string, 0, len(errs))
	for _, url := range sortedKeys(errs) {
		item := "`" + url + "`: " + errs[url].Message
		if struck {
			item = "~~" + item + "~~"
		}
		items = append(items, item)
	}
	return items
}

func sortedKeys(errs map[string]model.PageError) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func trendText(trend string) string {
	switch trend {
	case TrendImproved:
		return "IMPROVED (fewer errors)"
	case TrendWorsened:
		return "WORSENED (more errors)"
	default:
		return "UNCHANGED"
	}
}

func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
