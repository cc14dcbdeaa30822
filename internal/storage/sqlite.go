package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteAudit implements AuditLog using SQLite.
type SQLiteAudit struct {
	db *sql.DB
}

// New opens (or creates) the audit database at dbPath and initializes
// the schema. Use ":memory:" in tests.
func New(dbPath string) (*SQLiteAudit, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// modernc.org/sqlite needs a single connection for in-process file
	// databases to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	return &SQLiteAudit{db: db}, nil
}

// initSchema creates the events table. Idempotent.
func initSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to execute DDL: %w", err)
	}
	return nil
}

// Append records one lifecycle event.
func (s *SQLiteAudit) Append(ctx context.Context, kind, detail string) error {
	if kind == "" {
		return fmt.Errorf("event kind cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (kind, detail) VALUES (?, ?)", kind, detail)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first, up to limit.
func (s *SQLiteAudit) List(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, detail, created_at FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

// Purge deletes all recorded events. Used by uninstall.
func (s *SQLiteAudit) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("failed to purge events: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteAudit) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
