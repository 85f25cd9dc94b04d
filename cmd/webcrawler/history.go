package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erov/webcrawler/internal/config"
	"github.com/erov/webcrawler/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List saved crawl runs",
		Long: `History lists the crawl runs saved with 'webcrawler crawl --save'.

Without arguments it lists every root URL in the database. With a root URL
it lists the runs of that root, newest first.

Examples:
  # List crawled roots
  webcrawler history

  # List runs of a root
  webcrawler history https://example.com/

  # Per-host counts of one run
  webcrawler history --run 1b4e28ba-2fa1-11d2-883f-0016d3cca427 https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("run", "r", "",
		"Show per-host counts of the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case runID != "":
		return showRunHosts(ctx, db, runID, out, asJSON)
	case len(args) == 0:
		return listRoots(ctx, db, out, asJSON)
	default:
		return listRunHistory(ctx, db, args[0], out, asJSON)
	}
}

func listRoots(ctx context.Context, db *database.ResultDB, out io.Writer, asJSON bool) error {
	roots, err := db.ListRoots(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeIndentedJSON(out, roots)
	}

	if len(roots) == 0 {
		fmt.Fprintln(out, "No crawl runs in the database.")
		fmt.Fprintln(out, "Use 'webcrawler crawl --save <url>' to record one.")
		return nil
	}
	fmt.Fprintf(out, "Crawled roots (%d):\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(out, "  %s\n", root)
	}
	return nil
}

func listRunHistory(ctx context.Context, db *database.ResultDB, root string, out io.Writer, asJSON bool) error {
	runs, err := db.History(ctx, root)
	if err != nil {
		return err
	}
	if asJSON {
		return writeIndentedJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl runs found for %s\n", root)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", root, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %10s  %6s  %s\n", "ID", "Started", "Depth", "Downloaded", "Failed", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, run := range runs {
		status := "complete"
		if run.Fatal != "" {
			status = "aborted: " + run.Fatal
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %10d  %6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Depth,
			run.Downloaded,
			run.Failed,
			status,
		)
	}
	return nil
}

func showRunHosts(ctx context.Context, db *database.ResultDB, runID string, out io.Writer, asJSON bool) error {
	hosts, err := db.HostCounts(ctx, runID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeIndentedJSON(out, hosts)
	}

	if len(hosts) == 0 {
		fmt.Fprintf(out, "No pages recorded for run %s\n", runID)
		return nil
	}
	fmt.Fprintf(out, "Hosts of run %s:\n\n", runID)
	fmt.Fprintf(out, "  %-40s  %10s  %6s\n", "Host", "Downloaded", "Failed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, h := range hosts {
		fmt.Fprintf(out, "  %-40s  %10d  %6d\n", h.Host, h.Downloaded, h.Failed)
	}
	return nil
}

func writeIndentedJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
