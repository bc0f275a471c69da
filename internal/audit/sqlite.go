package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLog stores entries in the exchange_log table of a SQLite database.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and prepares the table.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if path == "" {
		path = "exchange_logs.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping sqlite %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set WAL mode: %w", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS exchange_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			executed_at TEXT NOT NULL,
			message TEXT NOT NULL
		)`
	if _, err := db.Exec(query); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create exchange_log: %w", err)
	}

	return &SQLiteLog{db: db}, nil
}

// Record inserts one entry.
func (l *SQLiteLog) Record(ctx context.Context, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO exchange_log (executed_at, message) VALUES (?, ?)",
		at.Format(TimeLayout), Line(at))
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// Entries returns the stored messages, oldest first.
func (l *SQLiteLog) Entries(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT message FROM exchange_log ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("audit: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
