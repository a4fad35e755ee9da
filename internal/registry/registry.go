// Package registry implements the Document Registry: the single source of
// truth for what is indexed, and the authority `verify_consistency` checks
// the two adapters against.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrel-docs/docindex/internal/store"
)

// State is a DocumentRecord's position in its lifecycle.
type State string

const (
	Pending  State = "pending"
	Parsing  State = "parsing"
	Indexing State = "indexing"
	Ready    State = "ready"
	Failed   State = "failed"
	Removing State = "removing"
)

// DocumentRecord is the registry's row for one document version.
type DocumentRecord struct {
	DocID          string
	Source         string
	Fingerprint    string
	OptionsFP      string
	// MetadataFP fingerprints declared-metadata (size, last-modified) that
	// doesn't participate in content identity but whose drift still needs
	// recording, so the Change Detector can tell MetadataOnly apart from
	// Unchanged without forcing a reindex.
	MetadataFP     string
	ChunkIDs       []store.ChunkId
	Pairs          []store.Pair
	VectorIndexed  bool
	KeywordIndexed bool
	State          State
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastError      string // empty means no error
}

// ConsistencyStatus categorizes one document id's standing between the
// registry and the two adapters.
type ConsistencyStatus string

const (
	Consistent        ConsistencyStatus = "consistent"
	MissingInVector    ConsistencyStatus = "missing_in_vector"
	MissingInKeyword   ConsistencyStatus = "missing_in_keyword"
	OrphanInVector     ConsistencyStatus = "orphan_in_vector"
	OrphanInKeyword    ConsistencyStatus = "orphan_in_keyword"
	StateInconsistent  ConsistencyStatus = "state_inconsistent"
)

// ListFilter restricts List to records matching a state and/or a source
// prefix. Zero values match everything.
type ListFilter struct {
	State        State
	SourcePrefix string
}

// Paging is a simple cursor-based page request: Cursor is the doc_id to
// resume after, empty meaning "start from the beginning".
type Paging struct {
	Cursor string
	Limit  int
}

// Registry persists DocumentRecords in SQLite.
type Registry struct {
	db *sql.DB
}

// Open creates or opens the registry at path. An empty path opens an
// in-memory registry, useful for tests.
func Open(path string) (*Registry, error) {
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

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	r := &Registry{db: db}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return r, nil
}

func (r *Registry) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id          TEXT PRIMARY KEY,
		source          TEXT NOT NULL,
		fingerprint     TEXT NOT NULL,
		options_fp      TEXT NOT NULL,
		metadata_fp     TEXT NOT NULL DEFAULT '',
		chunk_ids       TEXT NOT NULL,
		pairs           TEXT NOT NULL,
		vector_indexed  INTEGER NOT NULL,
		keyword_indexed INTEGER NOT NULL,
		state           TEXT NOT NULL,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL,
		last_error      TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_state ON documents(state);`
	_, err := r.db.Exec(schema)
	return err
}

// Get returns the record for doc_id, or nil if absent.
func (r *Registry) Get(ctx context.Context, docID string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM documents WHERE doc_id = ?`, docID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docID, err)
	}
	return rec, nil
}

// FindBySource returns the record currently occupying source, if any.
// Per invariant I3 at most one record per source is ever Ready; this
// returns whichever record (of any state) is most recently updated.
func (r *Registry) FindBySource(ctx context.Context, source string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM documents WHERE source = ? ORDER BY updated_at DESC, rowid DESC LIMIT 1`, source)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source %s: %w", source, err)
	}
	return rec, nil
}

// List returns records matching filter, ordered by doc_id, paginated via a
// cursor. The returned cursor is empty when there are no more pages.
func (r *Registry) List(ctx context.Context, filter ListFilter, paging Paging) ([]*DocumentRecord, string, error) {
	limit := paging.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + selectColumns + ` FROM documents WHERE doc_id > ?`
	args := []interface{}{paging.Cursor}

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.SourcePrefix != "" {
		query += ` AND source LIKE ?`
		args = append(args, filter.SourcePrefix+"%")
	}
	query += ` ORDER BY doc_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var records []*DocumentRecord
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan list row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list: %w", err)
	}

	nextCursor := ""
	if len(records) == limit {
		nextCursor = records[len(records)-1].DocID
	}
	return records, nextCursor, nil
}

// Upsert inserts or replaces rec in its entirety.
func (r *Registry) Upsert(ctx context.Context, rec *DocumentRecord) error {
	chunkIDsJSON, err := json.Marshal(rec.ChunkIDs)
	if err != nil {
		return fmt.Errorf("marshal chunk ids: %w", err)
	}
	pairsJSON, err := json.Marshal(rec.Pairs)
	if err != nil {
		return fmt.Errorf("marshal pairs: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents
		   (doc_id, source, fingerprint, options_fp, metadata_fp, chunk_ids, pairs,
		    vector_indexed, keyword_indexed, state, created_at, updated_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET
		   source          = excluded.source,
		   fingerprint     = excluded.fingerprint,
		   options_fp      = excluded.options_fp,
		   metadata_fp     = excluded.metadata_fp,
		   chunk_ids       = excluded.chunk_ids,
		   pairs           = excluded.pairs,
		   vector_indexed  = excluded.vector_indexed,
		   keyword_indexed = excluded.keyword_indexed,
		   state           = excluded.state,
		   updated_at      = excluded.updated_at,
		   last_error      = excluded.last_error`,
		rec.DocID, rec.Source, rec.Fingerprint, rec.OptionsFP, rec.MetadataFP, string(chunkIDsJSON), string(pairsJSON),
		boolToInt(rec.VectorIndexed), boolToInt(rec.KeywordIndexed), string(rec.State),
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(), rec.LastError)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.DocID, err)
	}
	return nil
}

// SetState transitions doc_id to state, optionally recording an error.
func (r *Registry) SetState(ctx context.Context, docID string, state State, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET state = ?, last_error = ?, updated_at = ? WHERE doc_id = ?`,
		string(state), errMsg, time.Now().UTC().Unix(), docID)
	if err != nil {
		return fmt.Errorf("set state %s: %w", docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set state %s: %w", docID, err)
	}
	if n == 0 {
		return fmt.Errorf("set state %s: no such record", docID)
	}
	return nil
}

// Delete removes the record for doc_id. Succeeds if none exists.
func (r *Registry) Delete(ctx context.Context, docID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	return nil
}

// VerifyConsistency compares registry flags against what the two adapters
// self-report, per doc-id.
func (r *Registry) VerifyConsistency(ctx context.Context, vector store.VectorAdapter, keyword store.KeywordAdapter) (map[string]ConsistencyStatus, error) {
	vectorIDs, err := vector.AllDocIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vector doc ids: %w", err)
	}
	keywordIDs, err := keyword.AllDocIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keyword doc ids: %w", err)
	}
	vectorSet := toSet(vectorIDs)
	keywordSet := toSet(keywordIDs)

	rows, err := r.db.QueryContext(ctx, `SELECT doc_id, vector_indexed, keyword_indexed, state FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("list registry doc ids: %w", err)
	}
	defer rows.Close()

	report := make(map[string]ConsistencyStatus)
	known := make(map[string]struct{})

	for rows.Next() {
		var docID, state string
		var vectorIndexedInt, keywordIndexedInt int
		if err := rows.Scan(&docID, &vectorIndexedInt, &keywordIndexedInt, &state); err != nil {
			return nil, fmt.Errorf("scan consistency row: %w", err)
		}
		known[docID] = struct{}{}

		vectorIndexed := vectorIndexedInt != 0
		keywordIndexed := keywordIndexedInt != 0
		_, inVector := vectorSet[docID]
		_, inKeyword := keywordSet[docID]

		switch {
		case vectorIndexed && !inVector:
			report[docID] = MissingInVector
		case keywordIndexed && !inKeyword:
			report[docID] = MissingInKeyword
		case vectorIndexed != inVector || keywordIndexed != inKeyword:
			report[docID] = StateInconsistent
		default:
			report[docID] = Consistent
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registry doc ids: %w", err)
	}

	for docID := range vectorSet {
		if _, ok := known[docID]; !ok {
			report[docID] = OrphanInVector
		}
	}
	for docID := range keywordSet {
		if _, ok := known[docID]; !ok {
			if existing, ok := report[docID]; !ok || existing == Consistent {
				report[docID] = OrphanInKeyword
			}
		}
	}

	return report, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const selectColumns = `doc_id, source, fingerprint, options_fp, metadata_fp, chunk_ids, pairs,
	    vector_indexed, keyword_indexed, state, created_at, updated_at, last_error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row *sql.Row) (*DocumentRecord, error) {
	return scanInto(row)
}

func scanRecordRows(rows *sql.Rows) (*DocumentRecord, error) {
	return scanInto(rows)
}

func scanInto(s rowScanner) (*DocumentRecord, error) {
	var rec DocumentRecord
	var chunkIDsJSON, pairsJSON, state string
	var vectorIndexedInt, keywordIndexedInt int
	var createdAtUnix, updatedAtUnix int64

	if err := s.Scan(&rec.DocID, &rec.Source, &rec.Fingerprint, &rec.OptionsFP, &rec.MetadataFP,
		&chunkIDsJSON, &pairsJSON, &vectorIndexedInt, &keywordIndexedInt, &state,
		&createdAtUnix, &updatedAtUnix, &rec.LastError); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(chunkIDsJSON), &rec.ChunkIDs); err != nil {
		return nil, fmt.Errorf("unmarshal chunk ids: %w", err)
	}
	if err := json.Unmarshal([]byte(pairsJSON), &rec.Pairs); err != nil {
		return nil, fmt.Errorf("unmarshal pairs: %w", err)
	}
	rec.VectorIndexed = vectorIndexedInt != 0
	rec.KeywordIndexed = keywordIndexedInt != 0
	rec.State = State(state)
	rec.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	return &rec, nil
}
