// Package fingerprint persists the source -> (fingerprint, doc_id) map the
// Change Detector consults on every ingest to decide whether a source's
// content has actually changed.
package fingerprint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one fingerprint-store record.
type Entry struct {
	Source      string
	Fingerprint string
	DocID       string
	UpdatedAt   time.Time
}

// Store is a durable source -> Entry map backed by SQLite in WAL mode, so
// the CLI and any background worker process can read and write it
// concurrently without external locking.
type Store struct {
	db *sql.DB
}

// Open creates or opens the fingerprint store at path. An empty path opens
// an in-memory store, useful for tests.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS source_fingerprints (
		source_key  TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		doc_id      TEXT NOT NULL,
		updated_at  INTEGER NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Lookup returns the entry for source, if any.
func (s *Store) Lookup(ctx context.Context, source string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source_key, fingerprint, doc_id, updated_at FROM source_fingerprints WHERE source_key = ?`,
		source)

	var e Entry
	var updatedAtUnix int64
	if err := row.Scan(&e.Source, &e.Fingerprint, &e.DocID, &updatedAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup %s: %w", source, err)
	}
	e.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return e, true, nil
}

// Put durably records (or replaces) the entry for a source. The write is
// committed before this returns.
func (s *Store) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_fingerprints (source_key, fingerprint, doc_id, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(source_key) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   doc_id      = excluded.doc_id,
		   updated_at  = excluded.updated_at`,
		e.Source, e.Fingerprint, e.DocID, e.UpdatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Source, err)
	}
	return nil
}

// Delete removes the entry for source. Succeeds if no entry exists.
func (s *Store) Delete(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM source_fingerprints WHERE source_key = ?`, source); err != nil {
		return fmt.Errorf("delete %s: %w", source, err)
	}
	return nil
}

// Sweep removes entries not updated since olderThan, returning the number
// of rows removed. Used by the admin maintenance `cleanup` verb.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM source_fingerprints WHERE updated_at < ?`, olderThan.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
