// Package history records vault operations in a local SQLite database.
//
// Only metadata is stored: operation, paths, namespace, outcome and reason.
// Passwords and credential contents never reach the database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Operation types
const (
	OpEncrypt        = "encrypt"
	OpDecrypt        = "decrypt"
	OpCheck          = "check"
	OpEncryptAll     = "encrypt_all"
	OpDecryptAll     = "decrypt_all"
	OpFragmentCreate = "fragment.create"
	OpFragmentJoin   = "fragment.join"
)

// Source identifies where the operation originated
const (
	SourceCLI = "cli"
	SourceMCP = "mcp"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// ErrClosed is returned when the store has been closed.
var ErrClosed = errors.New("history: store is closed")

// Event is one recorded operation.
type Event struct {
	ID        string
	Timestamp time.Time
	Operation string
	Source    string
	Namespace string
	Target    string // Batch target name, if any
	Input     string
	Output    string
	Success   bool
	Reason    string // Failure reason, empty on success
}

// Filter narrows List results.
type Filter struct {
	Operation string
	Since     time.Time
	Limit     int
}

// Store is a SQLite-backed event log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if path != ":memory:" {
		if err := os.Chmod(path, 0600); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set history permissions: %w", err)
		}
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		op TEXT NOT NULL,
		source TEXT NOT NULL,
		namespace TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL DEFAULT '',
		input TEXT NOT NULL DEFAULT '',
		output TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	CREATE INDEX IF NOT EXISTS idx_events_op ON events(op, ts);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record stores e, filling in ID and Timestamp when they are zero.
func (s *Store) Record(ctx context.Context, e *Event) error {
	if s.db == nil {
		return ErrClosed
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	if e.Source == "" {
		e.Source = SourceCLI
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, ts, op, source, namespace, target, input, output, success, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UnixNano(), e.Operation, e.Source, e.Namespace,
		e.Target, e.Input, e.Output, e.Success, e.Reason)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// List returns events newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Event, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, ts, op, source, namespace, target, input, output, success, reason
		FROM events WHERE ts >= ?`
	args := []any{f.Since.UnixNano()}
	if f.Since.IsZero() {
		args[0] = int64(0)
	}
	if f.Operation != "" {
		query += ` AND op = ?`
		args = append(args, f.Operation)
	}
	query += ` ORDER BY ts DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Operation, &e.Source, &e.Namespace,
			&e.Target, &e.Input, &e.Output, &e.Success, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return events, nil
}

// Prune deletes events older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}
