package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

type Entry struct {
	ID          int64
	Method      string
	Path        string
	Status      int
	Duration    time.Duration
	RemoteAddr  string
	UserAgent   string
	RequestedAt time.Time
}

// Recorder receives one entry per served request.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open access log %s: %w", path, err)
	}

	_, _ = db.Exec(`PRAGMA journal_mode = WAL`)
	_, _ = db.Exec(`PRAGMA synchronous = NORMAL`)
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000`)

	_, err = db.Exec("CREATE TABLE IF NOT EXISTS requests\n(\n    id           INTEGER PRIMARY KEY,\n    method       TEXT    NOT NULL,\n    path         TEXT    NOT NULL,\n    status       INTEGER NOT NULL,\n    duration_ms  INTEGER NOT NULL,\n    remote_addr  TEXT,\n    user_agent   TEXT,\n    requested_at TEXT    NOT NULL\n);\n\nCREATE INDEX IF NOT EXISTS requests_requested_at\n    on requests (requested_at desc);\n")

	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot create access log schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.RequestedAt.IsZero() {
		entry.RequestedAt = time.Now()
	}

	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO requests (method, path, status, duration_ms, remote_addr, user_agent, requested_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.Method,
		entry.Path,
		entry.Status,
		entry.Duration.Milliseconds(),
		entry.RemoteAddr,
		entry.UserAgent,
		entry.RequestedAt.UTC().Format(timeLayout),
	)

	return err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, method, path, status, duration_ms, remote_addr, user_agent, requested_at FROM requests ORDER BY requested_at DESC, id DESC LIMIT ?", limit)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var entry Entry
		var durationMs int64
		var remoteAddr, userAgent sql.NullString
		var requestedAt string

		if err := rows.Scan(&entry.ID, &entry.Method, &entry.Path, &entry.Status, &durationMs, &remoteAddr, &userAgent, &requestedAt); err != nil {
			return nil, err
		}

		entry.Duration = time.Duration(durationMs) * time.Millisecond
		entry.RemoteAddr = remoteAddr.String
		entry.UserAgent = userAgent.String

		entry.RequestedAt, err = time.ParseInLocation(timeLayout, requestedAt, time.UTC)

		if err != nil {
			return nil, fmt.Errorf("entry %d has an invalid timestamp: %w", entry.ID, err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Prune deletes all entries requested before the given time.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE requested_at < ?", before.UTC().Format(timeLayout))

	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
