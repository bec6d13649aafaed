package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nexushub/nexus/internal/errs"
)

// SQLite is a durable Store over a single kv table.
// Use ":memory:" as the path for a throwaway database.
type SQLite struct {
	db    *sql.DB
	quota int
}

// NewSQLite opens (or creates) the database at path and prepares the schema.
func NewSQLite(path string, quota int) (*SQLite, error) {
	if quota <= 0 {
		quota = DefaultQuota
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// The store is written from a single facade at a time; one connection
	// keeps ":memory:" databases coherent as well.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, quota: quota}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// Set upserts value under key, enforcing the byte quota before writing so a
// rejected write leaves the prior value untouched.
func (s *SQLite) Set(ctx context.Context, key, value string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	var used int
	if err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(LENGTH(k)+LENGTH(v)), 0) FROM kv WHERE k <> ?", key,
	).Scan(&used); err != nil {
		return err
	}
	if used+len(key)+len(value) > s.quota {
		return fmt.Errorf("set %q: %w", key, errs.ErrStorageFull)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v=excluded.v",
		key, value,
	); err != nil {
		if isDiskFull(err) {
			err = fmt.Errorf("set %q: %w", key, errs.ErrStorageFull)
		}
		return err
	}
	return nil
}

// Get reads the value under key; absence is not an error.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM kv WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Delete removes key if present.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE k = ?", key)
	return err
}

// isDiskFull detects SQLITE_FULL from the driver so the medium running out of
// actual disk surfaces the same way as the logical quota.
func isDiskFull(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database or disk is full")
}
