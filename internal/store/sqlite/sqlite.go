// Package sqlite implements store.Store on a single SQLite table using the
// pure-Go modernc driver, so the binary stays cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"flyer/internal/store"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	bucket BLOB NOT NULL,
	key    BLOB NOT NULL,
	value  BLOB NOT NULL,
	PRIMARY KEY (bucket, key)
);`

// Store persists buckets as rows of the kv table.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, bucket, key []byte) ([]byte, error) {
	var val []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE bucket = ? AND key = ?`, bucket, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapClosed(fmt.Errorf("get: %w", err))
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, bucket, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(bucket, key) DO UPDATE SET value = excluded.value`,
		bucket, key, value)
	if err != nil {
		return wrapClosed(fmt.Errorf("set: %w", err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, bucket, key []byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE bucket = ? AND key = ?`, bucket, key)
	if err != nil {
		return wrapClosed(fmt.Errorf("delete: %w", err))
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, bucket []byte) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE bucket = ?`, bucket)
	if err != nil {
		return nil, wrapClosed(fmt.Errorf("snapshot: %w", err))
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string][]byte)
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		result[string(k)] = v
	}
	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func wrapClosed(err error) error {
	if err != nil && strings.Contains(err.Error(), "sql: database is closed") {
		return fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return err
}
