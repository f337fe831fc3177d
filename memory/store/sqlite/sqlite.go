// Package sqlite stores memory state in a single SQLite database, one row per
// owner per day.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/becomeliminal/bridge-go-sdk/memory"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS memory_state (
	owner      TEXT NOT NULL,
	day        TEXT NOT NULL,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (owner, day)
)`

const upsertSQL = `INSERT INTO memory_state (owner, day, state, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(owner, day) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`

// Storage is a memory.Storage backed by modernc.org/sqlite.
type Storage struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: writes are serialised and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create memory_state: %w", err)
	}
	return &Storage{db: db}, nil
}

// Load returns the state for key, or (nil, nil) when no row exists.
func (s *Storage) Load(ctx context.Context, key memory.Key) (*memory.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM memory_state WHERE owner = ? AND day = ?`,
		key.Owner, key.Day).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query memory_state: %w", err)
	}

	var st memory.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode memory_state %s/%s: %w", key.Owner, key.Day, err)
	}
	return &st, nil
}

// Save upserts the state for key.
func (s *Storage) Save(ctx context.Context, key memory.Key, state *memory.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode memory state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL,
		key.Owner, key.Day, string(data), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert memory_state: %w", err)
	}
	return nil
}

// Days lists the days stored for owner, newest first.
func (s *Storage) Days(ctx context.Context, owner string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day FROM memory_state WHERE owner = ? ORDER BY day DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}
