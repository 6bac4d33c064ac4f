// Package history keeps a local record of configuration builds in SQLite so
// the daemon and CLI can answer "what did recent builds do" without parsing
// report files. Use ":memory:" as the path for a throwaway store.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/llnl/doxysite/internal/sphinx"
)

// Entry is one recorded build.
type Entry struct {
	ID            int64           `json:"id"`
	Project       string          `json:"project"`
	Hosted        bool            `json:"hosted"`
	Outcome       string          `json:"outcome"`
	Headers       int             `json:"headers"`
	Pages         int             `json:"pages"`
	ExtractorRan  bool            `json:"extractor_ran"`
	ExtractorExit int             `json:"extractor_exit"`
	Duration      time.Duration   `json:"duration"`
	Warnings      int             `json:"warnings"`
	Errors        int             `json:"errors"`
	CreatedAt     time.Time       `json:"created_at"`
	Report        json.RawMessage `json:"report,omitempty"`
}

// Store is a SQLite-backed build record store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// A second pooled connection would see a separate ":memory:" database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL,
		hosted INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		headers INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		extractor_ran INTEGER NOT NULL,
		extractor_exit INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		report BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
	CREATE INDEX IF NOT EXISTS idx_builds_outcome ON builds(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a build report and returns its row id. The full serialized
// report rides along as a blob for later inspection.
func (s *Store) Record(ctx context.Context, report *sphinx.BuildReport) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(report.Serializable())
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO builds
		 (project, hosted, outcome, headers, pages, extractor_ran, extractor_exit, duration_ms, warnings, errors, created_at, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Project,
		boolToInt(report.Hosted),
		report.Outcome,
		report.Headers,
		report.Pages,
		boolToInt(report.ExtractorRan),
		report.ExtractorExit,
		report.End.Sub(report.Start).Milliseconds(),
		len(report.Warnings),
		len(report.Errors),
		report.End.Unix(),
		payload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert build record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("build record id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, hosted, outcome, headers, pages, extractor_ran, extractor_exit, duration_ms, warnings, errors, created_at, report
		 FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Prune deletes all but the newest keep records, returning how many rows went
// away. keep <= 0 clears the store.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM builds WHERE id NOT IN (SELECT id FROM builds ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}

// OutcomeCounts returns how many recorded builds ended in each outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM builds GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var hosted, ran int
		var durationMS, createdUnix int64
		err := rows.Scan(&e.ID, &e.Project, &hosted, &e.Outcome, &e.Headers, &e.Pages,
			&ran, &e.ExtractorExit, &durationMS, &e.Warnings, &e.Errors, &createdUnix, &e.Report)
		if err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		e.Hosted = hosted != 0
		e.ExtractorRan = ran != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build records: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
