// Package journal keeps a SQLite history of pipeline runs and the role
// tables they decoded.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pasket/internal/accessor"
	"pasket/internal/logging"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// MemoryPath opens a private in-memory journal.
const MemoryPath = ":memory:"

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	Started    time.Time
	Finished   time.Time
	Aux        string
	Mode       string
	Status     string
	Error      string
	Inputs     []string
	Invoked    int
	Violations int
	Roles      accessor.RoleTable
}

// Store is the run journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one connection: an in-memory database is per connection, and a file
	// journal sees one writer at a time anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.JournalDebug("journal opened at %s", path)
	return s, nil
}

func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		aux TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		inputs TEXT,
		invoked INTEGER DEFAULT 0,
		violations INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	rolesTable := `
	CREATE TABLE IF NOT EXISTS roles (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		category TEXT NOT NULL,
		slot INTEGER NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (run_id, kind, category, slot)
	);
	`
	for _, table := range []string{runsTable, rolesTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores r and its role table in one transaction. Recording the
// same id twice replaces the earlier entry.
func (s *Store) Record(ctx context.Context, r *Run) error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	inputs, err := json.Marshal(r.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE run_id = ?`, r.ID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, aux, mode, status, error, inputs, invoked, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.Started), formatTime(r.Finished), r.Aux, r.Mode, r.Status,
		r.Error, string(inputs), r.Invoked, r.Violations)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, key := range r.Roles.Keys() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO roles (run_id, kind, category, slot, value) VALUES (?, ?, ?, ?, ?)`,
			r.ID, key.Kind, key.Category.String(), key.Slot, r.Roles[key])
		if err != nil {
			return fmt.Errorf("insert role %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.JournalDebug("recorded run %s (%s, %d roles)", r.ID, r.Status, len(r.Roles))
	return nil
}

const runColumns = `id, started_at, finished_at, aux, mode, status, error, inputs, invoked, violations`

// Runs lists the most recent runs first, without their role tables. A
// limit of zero or less lists everything.
func (s *Store) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns run id with its role table.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r.Roles, err = s.roles(ctx, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) roles(ctx context.Context, id string) (accessor.RoleTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, category, slot, value FROM roles WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	table := make(accessor.RoleTable)
	for rows.Next() {
		var (
			kind, category string
			slot, value    int
		)
		if err := rows.Scan(&kind, &category, &slot, &value); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		cat, ok := accessor.ParseRoleCategory(category)
		if !ok {
			logging.JournalDebug("run %s: skipping role with unknown category %q", id, category)
			continue
		}
		table[accessor.RoleKey{Kind: kind, Category: cat, Slot: slot}] = value
	}
	return table, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                 Run
		started, finished string
		errText, inputs   sql.NullString
	)
	err := sc.Scan(&r.ID, &started, &finished, &r.Aux, &r.Mode, &r.Status, &errText, &inputs, &r.Invoked, &r.Violations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Started = parseTime(started)
	r.Finished = parseTime(finished)
	r.Error = errText.String
	if inputs.Valid && inputs.String != "" {
		if err := json.Unmarshal([]byte(inputs.String), &r.Inputs); err != nil {
			return nil, fmt.Errorf("decode inputs of %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
