// Package storage provides the local persistence sinks behind the index:
// a sqlite key/value store for cached collection state and a file lock
// keeping concurrent processes out of the shard directory.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	key         TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	accessed_at TIMESTAMP NOT NULL
)`

// SQLiteStore implements domain.DataStore on a single sqlite database. It
// holds the cached playlist/channel video lists that change tokens persist
// and tracks per-key access times for retention.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema. The caller should Close the store when done.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Set upserts the value for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (key, value, updated_at, accessed_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3, accessed_at = $3`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set cache key %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or nil when the key was never stored.
// A hit refreshes the key's access time.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache key %s: %w", key, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache SET accessed_at = $1 WHERE key = $2`,
		time.Now().UTC(), key,
	); err != nil {
		return nil, fmt.Errorf("touch cache key %s: %w", key, err)
	}
	return value, nil
}

// Delete removes the key. Deleting an absent key is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache key %s: %w", key, err)
	}
	return nil
}

// DeleteNotAccessedFor removes entries whose last access is older than age
// and returns how many were deleted.
func (s *SQLiteStore) DeleteNotAccessedFor(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache WHERE accessed_at < $1`,
		time.Now().UTC().Add(-age),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
