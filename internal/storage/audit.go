package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
	_ "modernc.org/sqlite"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS site_runs (
    run_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    accepted_days INTEGER NOT NULL,
    excluded_days INTEGER NOT NULL,
    rows_written INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    PRIMARY KEY (run_id, site_id)
);
CREATE TABLE IF NOT EXISTS exclusion_decisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    date TEXT,
    reason TEXT NOT NULL,
    scope TEXT NOT NULL,
    field TEXT,
    hours TEXT,
    detail TEXT
);
CREATE INDEX IF NOT EXISTS exclusion_decisions_run_site ON exclusion_decisions (run_id, site_id);
`

// RunSummary is the final audit record of one site run.
type RunSummary struct {
	RunID        string
	SiteID       string
	StartedAt    time.Time
	FinishedAt   time.Time
	AcceptedDays int
	ExcludedDays int
	RowsWritten  int
	Status       string
	Error        string
}

// AuditStore keeps exclusion decisions and run summaries in SQLite.
// Concurrent site runs share one store.
type AuditStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenAudit opens or creates the audit database at path.
func OpenAudit(ctx context.Context, path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &UnrecoverableIOError{Path: path, Err: err}
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}
	return &AuditStore{db: db}, nil
}

// RecordDecisions stores the decisions of a site run in one transaction.
func (a *AuditStore) RecordDecisions(ctx context.Context, runID string, decisions []types.ExclusionDecision) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exclusion_decisions (run_id, site_id, date, reason, scope, field, hours, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		date := ""
		if !d.Date.IsZero() {
			date = d.Date.Format(types.DateLayout)
		}
		if _, err := stmt.ExecContext(ctx, runID, d.SiteID, date, string(d.Reason), string(d.Scope), d.Field, joinHours(d.Hours), d.Detail); err != nil {
			return fmt.Errorf("failed to insert decision: %w", err)
		}
	}
	return tx.Commit()
}

// RecordRun stores the summary of a site run.
func (a *AuditStore) RecordRun(ctx context.Context, s RunSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO site_runs
		    (run_id, site_id, started_at, finished_at, accepted_days, excluded_days, rows_written, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.SiteID, s.StartedAt.UTC(), s.FinishedAt.UTC(), s.AcceptedDays, s.ExcludedDays, s.RowsWritten, s.Status, s.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	return nil
}

// Decisions returns the decisions stored for a site run in insertion order.
func (a *AuditStore) Decisions(ctx context.Context, runID, siteID string) ([]types.ExclusionDecision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx, `
		SELECT site_id, date, reason, scope, field, hours, detail
		FROM exclusion_decisions
		WHERE run_id = ? AND site_id = ?
		ORDER BY id`, runID, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []types.ExclusionDecision
	for rows.Next() {
		var d types.ExclusionDecision
		var date, reason, scope, hours string
		if err := rows.Scan(&d.SiteID, &date, &reason, &scope, &d.Field, &hours, &d.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if date != "" {
			if d.Date, err = time.Parse(types.DateLayout, date); err != nil {
				return nil, fmt.Errorf("bad stored date %q: %w", date, err)
			}
		}
		d.Reason = types.Reason(reason)
		d.Scope = types.Scope(scope)
		d.Hours = splitHours(hours)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Run returns the stored summary of a site run.
func (a *AuditStore) Run(ctx context.Context, runID, siteID string) (RunSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := RunSummary{RunID: runID, SiteID: siteID}
	var errText sql.NullString
	err := a.db.QueryRowContext(ctx, `
		SELECT accepted_days, excluded_days, rows_written, status, error
		FROM site_runs WHERE run_id = ? AND site_id = ?`, runID, siteID).
		Scan(&s.AcceptedDays, &s.ExcludedDays, &s.RowsWritten, &s.Status, &errText)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to query run summary: %w", err)
	}
	s.Error = errText.String
	return s, nil
}

// Close closes the database.
func (a *AuditStore) Close() error {
	return a.db.Close()
}

func joinHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = strconv.Itoa(h)
	}
	return strings.Join(parts, ",")
}

func splitHours(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if h, err := strconv.Atoi(p); err == nil {
			out = append(out, h)
		}
	}
	return out
}
