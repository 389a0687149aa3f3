// Package history keeps finalized audit reports in SQLite so runs can be
// listed, reloaded and diffed later.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/report"
)

//go:embed schema.sql
var schemaFS embed.FS

var ErrRunNotFound = errors.New("run not found")

// Latest resolves to the most recently started run.
const Latest = "latest"

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Totals     report.Totals `json:"totals"`
}

// PageTrend is one page's counts in one run.
type PageTrend struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Status    string            `json:"status"`
	Counts    report.PageCounts `json:"counts"`
}

// Store is a report archive on top of a *sql.DB.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, logger logging.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore applies pragmas and the embedded schema to db.
func NewStore(db *sql.DB, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger.With(logging.Field{Key: "component", Value: "history"})}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Persist lets a Store sit in a report.Chain.
func (s *Store) Persist(ctx context.Context, r *report.Report) error {
	if err := s.SaveReport(ctx, r); err != nil {
		return fmt.Errorf("%w: history: %w", report.ErrPersistence, err)
	}
	return nil
}

// SaveReport stores r and its page rows in one transaction. Saving the
// same run id twice replaces the earlier copy.
func (s *Store) SaveReport(ctx context.Context, r *report.Report) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("report with a run id is required")
	}
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("rollback failed", logging.Field{Key: "error", Value: rbErr})
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_pages WHERE run_id = ?`, r.RunID); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}

	t := r.Totals
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
             (id, started_at, finished_at, pages, pages_failed, total_violations,
              total_contrast_violations, checks_passed, checks_failed, report_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), t.Pages, t.PagesFailed,
		t.TotalViolations, t.TotalContrastViolations, t.TotalChecksPassed, t.TotalChecksFailed,
		string(blob), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, p := range r.Pages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_pages
                 (run_id, position, name, url, status, total_violations, contrast_violations, checks_passed, checks_failed)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, i, p.Name, p.URL, string(p.Status),
			p.Counts.TotalViolations, p.Counts.ContrastViolations, p.Counts.ChecksPassed, p.Counts.ChecksFailed,
		)
		if err != nil {
			return fmt.Errorf("insert page %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("run saved", logging.Field{Key: "run_id", Value: r.RunID}, logging.Field{Key: "pages", Value: len(r.Pages)})
	return nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := `SELECT id, started_at, finished_at, pages, pages_failed, total_violations,
                 total_contrast_violations, checks_passed, checks_failed
          FROM runs
          ORDER BY started_at DESC, created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var rs RunSummary
		var started, finished int64
		t := &rs.Totals
		if err := rows.Scan(&rs.ID, &started, &finished, &t.Pages, &t.PagesFailed, &t.TotalViolations,
			&t.TotalContrastViolations, &t.TotalChecksPassed, &t.TotalChecksFailed); err != nil {
			return nil, err
		}
		rs.StartedAt = time.UnixMilli(started).UTC()
		rs.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ResolveRunID maps Latest to a concrete id and checks that id exists.
func (s *Store) ResolveRunID(ctx context.Context, id string) (string, error) {
	var row *sql.Row
	if id == Latest {
		row = s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, created_at DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE id = ? LIMIT 1`, id)
	}
	var out string
	if err := row.Scan(&out); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return "", err
	}
	return out, nil
}

// GetReport reloads a stored report by id or Latest.
func (s *Store) GetReport(ctx context.Context, id string) (*report.Report, error) {
	runID, err := s.ResolveRunID(ctx, id)
	if err != nil {
		return nil, err
	}
	var blob string
	if err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, runID).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	var r report.Report
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &r, nil
}

// PageHistory returns the counts of the named page across runs, newest first.
func (s *Store) PageHistory(ctx context.Context, name string, limit int) ([]PageTrend, error) {
	q := `SELECT p.run_id, r.started_at, p.status, p.total_violations, p.contrast_violations,
                 p.checks_passed, p.checks_failed
          FROM run_pages p JOIN runs r ON r.id = p.run_id
          WHERE p.name = ?
          ORDER BY r.started_at DESC`
	args := []any{name}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PageTrend{}
	for rows.Next() {
		var pt PageTrend
		var started int64
		c := &pt.Counts
		if err := rows.Scan(&pt.RunID, &started, &pt.Status, &c.TotalViolations, &c.ContrastViolations,
			&c.ChecksPassed, &c.ChecksFailed); err != nil {
			return nil, err
		}
		pt.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, pt)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its page rows. The explicit page delete
// covers connections opened without foreign_keys.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_pages WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
