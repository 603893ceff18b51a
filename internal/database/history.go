package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawler/internal/model"
)

// DBFileName is the history database file inside the data directory.
const DBFileName = "webcrawler.db"

var (
	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")
)

// HistoryDB stores crawl runs, the pages they produced and the URLs that
// failed. It is safe for concurrent use; writes are serialized on a single
// connection.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Run is one crawl invocation.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress or was killed
	Source     string
	OutputPath string
	Format     string
	Summary    model.Summary
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	// Source is the --url value or the input file path.
	Source     string
	OutputPath string
	Format     string
}

// Page is a stored crawl result.
type Page struct {
	RunID       int64
	URL         string
	StatusCode  int
	ContentHash string
	Titles      []string
	Links       []string
	Images      []string
	Paragraphs  int
	Attempts    int
	FetchedAt   time.Time
}

// Failure is a URL that produced no result.
type Failure struct {
	RunID      int64
	URL        string
	State      string
	Attempts   int
	RecordedAt time.Time
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection serializes all access.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		source TEXT NOT NULL,
		output_path TEXT NOT NULL,
		format TEXT NOT NULL,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_hash TEXT,
		titles TEXT,
		links TEXT,
		images TEXT,
		paragraphs INTEGER,
		attempts INTEGER,
		fetched_at TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		state TEXT NOT NULL,
		attempts INTEGER,
		recorded_at TEXT,
		UNIQUE(run_id, url)
	);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// StartRun inserts a new run and returns its ID.
func (h *HistoryDB) StartRun(ctx context.Context, info RunInfo) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, source, output_path, format) VALUES (?, ?, ?, ?)`,
		formatTimestamp(time.Now()), info.Source, info.OutputPath, info.Format,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun stores the final summary of a run.
func (h *HistoryDB) FinishRun(ctx context.Context, runID int64, summary model.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}
	result, err := h.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, summary_json = ? WHERE id = ?`,
		formatTimestamp(time.Now()), string(summaryJSON), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// RecordPage stores one crawl result of a run. Recording the same URL
// twice for a run keeps the latest result.
func (h *HistoryDB) RecordPage(ctx context.Context, runID int64, result model.CrawlResult) error {
	titles, err := encodeList(result.Titles)
	if err != nil {
		return err
	}
	links, err := encodeList(result.Links)
	if err != nil {
		return err
	}
	images, err := encodeList(result.Images)
	if err != nil {
		return err
	}

	fetchedAt := result.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	query := `
	INSERT INTO pages (run_id, url, status_code, content_hash, titles, links, images, paragraphs, attempts, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		status_code = excluded.status_code,
		content_hash = excluded.content_hash,
		titles = excluded.titles,
		links = excluded.links,
		images = excluded.images,
		paragraphs = excluded.paragraphs,
		attempts = excluded.attempts,
		fetched_at = excluded.fetched_at
	`
	if _, err := h.db.ExecContext(ctx, query,
		runID,
		result.URL,
		result.StatusCode,
		result.ContentHash,
		titles,
		links,
		images,
		len(result.Paragraphs),
		result.Attempts,
		formatTimestamp(fetchedAt),
	); err != nil {
		return fmt.Errorf("failed to record page: %w", err)
	}
	return nil
}

// RecordFailure stores a task that ended without a result.
func (h *HistoryDB) RecordFailure(ctx context.Context, runID int64, task model.CrawlTask) error {
	query := `
	INSERT INTO failures (run_id, url, state, attempts, recorded_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		state = excluded.state,
		attempts = excluded.attempts,
		recorded_at = excluded.recorded_at
	`
	attempts := task.Attempt + 1
	if task.State == model.TaskDisallowed || task.State == model.TaskPending {
		attempts = 0
	}
	if _, err := h.db.ExecContext(ctx, query,
		runID, task.URL, task.State.String(), attempts, formatTimestamp(time.Now()),
	); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// GetRun returns one run.
func (h *HistoryDB) GetRun(ctx context.Context, runID int64) (*Run, error) {
	row := h.db.QueryRowContext(ctx, `
	SELECT id, started_at, finished_at, source, output_path, format, summary_json
	FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `
	SELECT id, started_at, finished_at, source, output_path, format, summary_json
	FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunPages returns the pages of a run in the order they were recorded.
func (h *HistoryDB) RunPages(ctx context.Context, runID int64) ([]Page, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT run_id, url, status_code, content_hash, titles, links, images, paragraphs, attempts, fetched_at
	FROM pages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]Page, 0)
	for rows.Next() {
		var p Page
		var titles, links, images, fetchedAt sql.NullString
		var hash sql.NullString
		if err := rows.Scan(
			&p.RunID, &p.URL, &p.StatusCode, &hash,
			&titles, &links, &images,
			&p.Paragraphs, &p.Attempts, &fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.ContentHash = hash.String
		p.Titles = decodeList(titles.String)
		p.Links = decodeList(links.String)
		p.Images = decodeList(images.String)
		p.FetchedAt = parseTimestamp(fetchedAt.String)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// RunFailures returns the failed URLs of a run.
func (h *HistoryDB) RunFailures(ctx context.Context, runID int64) ([]Failure, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT run_id, url, state, attempts, recorded_at
	FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	failures := make([]Failure, 0)
	for rows.Next() {
		var f Failure
		var recordedAt sql.NullString
		if err := rows.Scan(&f.RunID, &f.URL, &f.State, &f.Attempts, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.RecordedAt = parseTimestamp(recordedAt.String)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt, summaryJSON sql.NullString
	if err := row.Scan(
		&run.ID, &startedAt, &finishedAt,
		&run.Source, &run.OutputPath, &run.Format, &summaryJSON,
	); err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		if err := json.Unmarshal([]byte(summaryJSON.String), &run.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse summary: %w", err)
		}
	}
	return &run, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize list: %w", err)
	}
	return string(data), nil
}

func decodeList(s string) []string {
	items := []string{}
	if s == "" {
		return items
	}
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return []string{}
	}
	return items
}

// timestampFormats are the layouts parseTimestamp accepts, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp returns the zero time for values no layout matches.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
