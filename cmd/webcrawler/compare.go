package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/erov/webcrawler/internal/config"
	"github.com/erov/webcrawler/internal/database"
	"github.com/erov/webcrawler/internal/model"
	"github.com/erov/webcrawler/internal/report"
)

// errNotEnoughRuns is returned when a root has fewer than two saved runs.
var errNotEnoughRuns = errors.New("at least two saved runs are needed to compare")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare the latest crawl of a root with an earlier one",
		Long: `Compare shows what changed between two saved runs of the same root URL:
- URLs downloaded now but not before, and the reverse
- URLs that started failing, and URLs that no longer fail

By default the two latest runs are compared. Runs are saved with
'webcrawler crawl --save'; 'webcrawler history <url>' lists their IDs.

Examples:
  # Compare the two latest runs
  webcrawler compare https://example.com/

  # Compare the latest run with a specific earlier run
  webcrawler compare --with-run 1b4e28ba-2fa1-11d2-883f-0016d3cca427 https://example.com/

  # Output the comparison in JSON format
  webcrawler compare --json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-run", "i", "",
		"Compare with the run with this ID instead of the previous one")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	withRun, err := cmd.Flags().GetString("with-run")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	format := report.DiffText
	switch {
	case jsonOutput:
		format = report.DiffJSON
	case markdownOutput:
		format = report.DiffMarkdown
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runComparison(cmd.Context(), db, args[0], withRun, format, cmd.OutOrStdout())
}

// runComparison compares the latest run of root with the run withRun, or
// with the run before it when withRun is empty.
func runComparison(ctx context.Context, db *database.ResultDB, root, withRun string, format report.DiffFormat, out io.Writer) error {
	previous, current, err := selectRuns(ctx, db, root, withRun)
	if err != nil {
		return err
	}
	_, err = report.NewDiffWriter(out, format).Write(report.Compare(previous, current))
	return err
}

func selectRuns(ctx context.Context, db *database.ResultDB, root, withRun string) (previous, current *model.CrawlReport, err error) {
	latest, err := db.LatestReports(ctx, root, 2)
	if err != nil {
		return nil, nil, err
	}

	if withRun == "" {
		if len(latest) < 2 {
			return nil, nil, fmt.Errorf("%w: %s has %d", errNotEnoughRuns, root, len(latest))
		}
		return latest[1], latest[0], nil
	}

	if len(latest) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has none", errNotEnoughRuns, root)
	}
	previous, err = db.GetReport(ctx, withRun)
	if err != nil {
		return nil, nil, err
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("run %s not found", withRun)
	}
	if previous.Root != root {
		return nil, nil, fmt.Errorf("run %s belongs to %s, not %s", withRun, previous.Root, root)
	}
	if previous.ID == latest[0].ID {
		return nil, nil, fmt.Errorf("run %s is the latest run; pick an earlier one", withRun)
	}
	return previous, latest[0], nil
}
