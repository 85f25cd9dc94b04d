package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/erov/webcrawler/internal/database"
	"github.com/erov/webcrawler/internal/model"
)

const testRoot = "http://example.com/"

func openTestDB(t *testing.T) *database.ResultDB {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// saveRun stores a run of testRoot started at started.
func saveRun(t *testing.T, db *database.ResultDB, started time.Time, downloaded []string, errs map[string]string) *model.CrawlReport {
	t.Helper()

	r := model.NewCrawlReport(testRoot, 2)
	r.StartedAt = started
	r.Downloaded = downloaded
	for url, msg := range errs {
		r.Errors[url] = model.PageError{Message: msg, Kind: model.ErrorKindHTTPStatus}
	}
	if err := db.SaveReport(context.Background(), r); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	return r
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history [url]" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	for flag, shorthand := range map[string]string{"run": "r", "json": "j"} {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
}

func TestListRoots(t *testing.T) {
	t.Parallel()

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := listRoots(context.Background(), openTestDB(t), &out, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No crawl runs") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("lists roots", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		saveRun(t, db, time.Now().UTC(), []string{testRoot}, nil)

		var out bytes.Buffer
		if err := listRoots(context.Background(), db, &out, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Crawled roots (1)") || !strings.Contains(out.String(), testRoot) {
			t.Errorf("unexpected output:\n%s", out.String())
		}

		out.Reset()
		if err := listRoots(context.Background(), db, &out, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var roots []string
		if err := json.Unmarshal(out.Bytes(), &roots); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(roots) != 1 || roots[0] != testRoot {
			t.Errorf("roots = %v", roots)
		}
	})
}

func TestListRunHistory(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	now := time.Now().UTC()
	older := saveRun(t, db, now.Add(-time.Hour), []string{testRoot}, nil)
	newer := saveRun(t, db, now, []string{testRoot}, map[string]string{testRoot + "x": "404"})

	var out bytes.Buffer
	if err := listRunHistory(context.Background(), db, testRoot, &out, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "2 runs") {
		t.Errorf("expected run count, got:\n%s", output)
	}
	if strings.Index(output, newer.ID) > strings.Index(output, older.ID) {
		t.Error("expected newest run first")
	}

	out.Reset()
	if err := listRunHistory(context.Background(), db, "http://unknown.test/", &out, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No crawl runs found") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestShowRunHosts(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	run := saveRun(t, db, time.Now().UTC(),
		[]string{testRoot, "http://other.test/"},
		map[string]string{"http://example.com/missing": "404"},
	)

	var out bytes.Buffer
	if err := showRunHosts(context.Background(), db, run.ID, &out, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var hosts []model.HostSummary
	if err := json.Unmarshal(out.Bytes(), &hosts); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := []model.HostSummary{
		{Host: "example.com", Downloaded: 1, Failed: 1},
		{Host: "other.test", Downloaded: 1},
	}
	if len(hosts) != len(want) {
		t.Fatalf("hosts = %+v", hosts)
	}
	for i := range want {
		if hosts[i] != want[i] {
			t.Errorf("hosts[%d] = %+v, want %+v", i, hosts[i], want[i])
		}
	}
}
