package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultSuggestions is how many recent devices the search box offers.
const DefaultSuggestions = 5

var ErrBlankDeviceID = errors.New("device id is blank")

const schema = `
CREATE TABLE IF NOT EXISTS recent_devices (
	owner     TEXT    NOT NULL,
	device_id TEXT    NOT NULL,
	added_at  INTEGER NOT NULL,
	PRIMARY KEY (owner, device_id)
);
CREATE INDEX IF NOT EXISTS idx_recent_devices_owner ON recent_devices (owner, added_at DESC);
`

// Store keeps the recent device id suggestions in SQLite so the CLI and the
// web dashboard share them.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file (and its directory) if needed and runs
// the schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Remember puts id at the front of owner's list. Ids already in the list
// keep their position.
func (s *Store) Remember(ctx context.Context, owner, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrBlankDeviceID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO recent_devices (owner, device_id, added_at) VALUES (?, ?, ?)`,
		owner, id, s.nextStamp(ctx, owner))
	return err
}

// nextStamp keeps insertion order strict even when two ids land within the
// same nanosecond tick.
func (s *Store) nextStamp(ctx context.Context, owner string) int64 {
	stamp := s.now().UnixNano()
	var last sql.NullInt64
	_ = s.db.QueryRowContext(ctx, `SELECT MAX(added_at) FROM recent_devices WHERE owner = ?`, owner).Scan(&last)
	if last.Valid && last.Int64 >= stamp {
		stamp = last.Int64 + 1
	}
	return stamp
}

// List returns up to limit ids, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, owner string, limit int) ([]string, error) {
	q := `SELECT device_id FROM recent_devices WHERE owner = ? ORDER BY added_at DESC`
	args := []interface{}{owner}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Suggest filters owner's list by prefix, the way the search box narrows
// suggestions while typing.
func (s *Store) Suggest(ctx context.Context, owner, prefix string, limit int) ([]string, error) {
	all, err := s.List(ctx, owner, 0)
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	out := []string{}
	for _, id := range all {
		if prefix == "" || strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Forget removes a single id. Removing an unknown id is not an error.
func (s *Store) Forget(ctx context.Context, owner, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recent_devices WHERE owner = ? AND device_id = ?`, owner, strings.TrimSpace(id))
	return err
}

// Clear drops every suggestion of owner.
func (s *Store) Clear(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recent_devices WHERE owner = ?`, owner)
	return err
}
