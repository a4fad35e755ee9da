// Package cache implements the content-addressed artifact cache: extractor
// output (full text, extracted pairs, parse-method tag) keyed by content,
// prompt, and extractor-version hashes, so re-ingesting byte-identical
// content with the same processing options never re-runs extraction.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/kestrel-docs/docindex/internal/store"
)

// DefaultHotCapacity is the default number of artifacts kept in the LRU hot
// tier.
const DefaultHotCapacity = 500

// Key identifies a cached artifact. Two ingests with identical content,
// prompt, and extractor version always resolve to the same key.
type Key struct {
	ContentHash      string
	PromptHash       string
	ExtractorVersion string
}

// String renders the key as a single opaque cache key.
func (k Key) String() string {
	combined := k.ContentHash + "\x00" + k.PromptHash + "\x00" + k.ExtractorVersion
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// Artifact is the cached extractor output.
type Artifact struct {
	FullText         string
	Pairs            []store.Pair
	ParseMethod      string
	ExtractorVersion string
}

// Cache is a content-addressed artifact cache with an in-process LRU hot
// tier and a durable SQLite cold tier. Per invariant I4, entries are pure
// functions of their key, so eviction from either tier is always safe and
// never required for correctness.
type Cache struct {
	hot *lru.Cache[string, Artifact]

	mu   sync.Mutex
	db   *sql.DB
	lock *flock.Flock

	currentExtractorVersion string
}

// Config configures a Cache.
type Config struct {
	// HotCapacity is the number of artifacts kept in the LRU hot tier.
	HotCapacity int

	// ExtractorVersion is the current extractor version. A cold-tier hit
	// whose stored extractor_version doesn't match is treated as a miss,
	// per the consistency rule in the spec.
	ExtractorVersion string
}

// Open creates or opens the artifact cache at path. An empty path opens an
// in-memory cold tier, useful for tests.
func Open(path string, cfg Config) (*Cache, error) {
	if cfg.HotCapacity <= 0 {
		cfg.HotCapacity = DefaultHotCapacity
	}

	hot, err := lru.New[string, Artifact](cfg.HotCapacity)
	if err != nil {
		return nil, fmt.Errorf("create hot tier: %w", err)
	}

	dsn := ":memory:"
	var fileLock *flock.Flock
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = path
		fileLock = flock.New(filepath.Join(dir, ".cache.lock"))
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
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	c := &Cache{
		hot:                     hot,
		db:                      db,
		lock:                    fileLock,
		currentExtractorVersion: cfg.ExtractorVersion,
	}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		cache_key         TEXT PRIMARY KEY,
		extractor_version TEXT NOT NULL,
		payload           BLOB NOT NULL,
		created_at        INTEGER NOT NULL
	);`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached artifact for key, if present and produced by the
// current extractor version. A stale extractor_version is treated as a
// miss rather than surfaced as stale data.
func (c *Cache) Get(ctx context.Context, key Key) (Artifact, bool, error) {
	cacheKey := key.String()

	if a, ok := c.hot.Get(cacheKey); ok {
		if a.ExtractorVersion == c.currentExtractorVersion {
			return a, true, nil
		}
		c.hot.Remove(cacheKey)
		return Artifact{}, false, nil
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT extractor_version, payload FROM artifacts WHERE cache_key = ?`, cacheKey)

	var extractorVersion string
	var payload []byte
	if err := row.Scan(&extractorVersion, &payload); err != nil {
		if err == sql.ErrNoRows {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, fmt.Errorf("lookup %s: %w", cacheKey, err)
	}

	if extractorVersion != c.currentExtractorVersion {
		return Artifact{}, false, nil
	}

	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&a); err != nil {
		return Artifact{}, false, fmt.Errorf("decode artifact %s: %w", cacheKey, err)
	}

	c.hot.Add(cacheKey, a)
	return a, true, nil
}

// Put stores an artifact in both tiers, write-through. The file lock guards
// the cold tier against two processes racing to populate the same key
// (e.g. two workers re-extracting the same document concurrently).
func (c *Cache) Put(ctx context.Context, key Key, a Artifact) error {
	cacheKey := key.String()
	a.ExtractorVersion = c.currentExtractorVersion

	if c.lock != nil {
		if err := c.lock.Lock(); err != nil {
			return fmt.Errorf("acquire cache lock: %w", err)
		}
		defer c.lock.Unlock()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	c.mu.Lock()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO artifacts (cache_key, extractor_version, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   extractor_version = excluded.extractor_version,
		   payload           = excluded.payload,
		   created_at        = excluded.created_at`,
		cacheKey, a.ExtractorVersion, buf.Bytes(), time.Now().UTC().Unix())
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("put %s: %w", cacheKey, err)
	}

	c.hot.Add(cacheKey, a)
	return nil
}

// Sweep removes cold-tier entries older than olderThan, returning the
// number of rows removed. The hot tier is not touched. The admin
// `maintenance cleanup` verb calls this with its fixed retention horizon.
func (c *Cache) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM artifacts WHERE created_at < ?`, olderThan.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return res.RowsAffected()
}

// Clear purges both tiers unconditionally. Per invariant I4 it's always
// safe since cache entries are pure functions of their key.
func (c *Cache) Clear(ctx context.Context) error {
	c.hot.Purge()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
