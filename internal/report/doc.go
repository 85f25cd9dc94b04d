// Package report renders crawl reports.
//
// Writers share the Writer interface so they can be combined with
// MultiWriter:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter and FullJSONWriter: JSON for other tools
//   - MarkdownWriter: Markdown with tables and a mermaid chart of error kinds
//
// DiffWriter renders a Comparison of two runs of the same root.
package report
