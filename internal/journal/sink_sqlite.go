package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink keeps run history on disk so `groundtruth report` can explain
// a run after the process is gone.
type SQLiteSink struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS journal_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	ts        TEXT NOT NULL,
	type      TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT '',
	kind      TEXT NOT NULL DEFAULT '',
	entity_id TEXT NOT NULL DEFAULT '',
	tbl       TEXT NOT NULL DEFAULT '',
	detail    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_journal_events_run ON journal_events(run_id);
`

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under the worker plus report reads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_events (run_id, ts, type, role, kind, entity_id, tbl, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Time.UTC().Format(time.RFC3339Nano), event.Type,
		event.Role, event.Kind, event.EntityID, event.Table, string(detail),
	)
	if err != nil {
		return fmt.Errorf("insert journal event: %w", err)
	}
	return nil
}

// ListRun returns a run's events in append order.
func (s *SQLiteSink) ListRun(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, ts, type, role, kind, entity_id, tbl, detail
		FROM journal_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query journal events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			ts     string
			detail string
		)
		if err := rows.Scan(&e.RunID, &ts, &e.Type, &e.Role, &e.Kind, &e.EntityID, &e.Table, &detail); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse journal timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
			return nil, fmt.Errorf("unmarshal detail: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LastRunID returns the most recently written run.
func (s *SQLiteSink) LastRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM journal_events ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("journal is empty")
	}
	if err != nil {
		return "", fmt.Errorf("query last run: %w", err)
	}
	return runID, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
