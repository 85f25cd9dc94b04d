package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/erov/webcrawler/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "webcrawler.db"

// timeLayout is fixed-width so that started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ResultDB stores crawl reports in SQLite.
type ResultDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

func (rdb *ResultDB) createTables() error {
	schema := `
	-- One row per finished crawl run
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		downloaded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		fatal TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON crawl_runs(root);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- One row per URL of a run
	CREATE TABLE IF NOT EXISTS crawl_pages (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		PRIMARY KEY (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_host ON crawl_pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON crawl_pages(url);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a finished report and its pages in one transaction.
func (rdb *ResultDB) SaveReport(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, root, depth, started_at, duration_ms, downloaded, failed, fatal, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Root,
		report.Depth,
		report.StartedAt.UTC().Format(timeLayout),
		report.Duration.Milliseconds(),
		len(report.Downloaded),
		len(report.Errors),
		nullString(report.Fatal),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (run_id, url, host, status, error_kind, error)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, page := range report.Pages() {
		var kind, msg sql.NullString
		if page.Error != nil {
			kind = nullString(string(page.Error.Kind))
			msg = nullString(page.Error.Message)
		}
		if _, err := stmt.ExecContext(ctx, report.ID, page.URL, page.Host, string(page.Status), kind, msg); err != nil {
			return fmt.Errorf("failed to save page %s: %w", page.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// GetReport returns the report with the given run ID, or nil if none exists.
func (rdb *ResultDB) GetReport(ctx context.Context, id string) (*model.CrawlReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// LatestReports returns up to n reports for root, newest first.
func (rdb *ResultDB) LatestReports(ctx context.Context, root string, n int) ([]*model.CrawlReport, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT report_json FROM crawl_runs
	WHERE root = ?
	ORDER BY started_at DESC
	LIMIT ?
	`, root, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// ListRoots returns every root URL with at least one stored run.
func (rdb *ResultDB) ListRoots(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT root FROM crawl_runs ORDER BY root`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// RunMetadata summarizes a stored run without decoding its report.
type RunMetadata struct {
	ID         string        `json:"id"`
	Root       string        `json:"root"`
	Depth      int           `json:"depth"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Downloaded int           `json:"downloaded"`
	Failed     int           `json:"failed"`
	Fatal      string        `json:"fatal,omitempty"`
}

// History returns metadata of every run of root, newest first.
func (rdb *ResultDB) History(ctx context.Context, root string) ([]RunMetadata, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id, root, depth, started_at, duration_ms, downloaded, failed, fatal
	FROM crawl_runs
	WHERE root = ?
	ORDER BY started_at DESC
	`, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var durationMS int64
		var fatal sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Root, &meta.Depth, &startedAt, &durationMS,
			&meta.Downloaded, &meta.Failed, &fatal); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		meta.Fatal = fatal.String
		results = append(results, meta)
	}
	return results, rows.Err()
}

// HostCounts returns per-host outcome counts of a run, ordered by host.
func (rdb *ResultDB) HostCounts(ctx context.Context, runID string) ([]model.HostSummary, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT host,
		SUM(CASE WHEN status = ? THEN 0 ELSE 1 END),
		SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
	FROM crawl_pages
	WHERE run_id = ?
	GROUP BY host
	ORDER BY host
	`, string(model.PageFailed), string(model.PageFailed), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count hosts: %w", err)
	}
	defer rows.Close()

	var counts []model.HostSummary
	for rows.Next() {
		var hs model.HostSummary
		if err := rows.Scan(&hs.Host, &hs.Downloaded, &hs.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan host counts: %w", err)
		}
		counts = append(counts, hs)
	}
	return counts, rows.Err()
}

func decodeReport(reportJSON string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
