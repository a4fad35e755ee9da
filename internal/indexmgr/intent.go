package indexmgr

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// StepKind names one primitive step of an indexing operation.
type StepKind string

const (
	StepCachePut      StepKind = "cache_put"
	StepRegistryWrite StepKind = "registry_write"
	StepVectorAdd     StepKind = "vector_add"
	StepVectorDelete  StepKind = "vector_delete"
	StepKeywordAdd    StepKind = "keyword_add"
	StepKeywordDelete StepKind = "keyword_delete"
)

// IntentState is an IntentRecord's lifecycle position.
type IntentState string

const (
	InProgress IntentState = "in_progress"
	Committed  IntentState = "committed"
	Cancelled  IntentState = "cancelled"
)

// IntentRecord is a durable plan for one indexing operation: the ordered
// steps it intends to take, and whether it has finished. Source and
// Payload carry enough of the original request to replay the operation
// from scratch after a crash, without the Index Manager needing to know
// anything about what an adminapi ingest request looks like.
type IntentRecord struct {
	OpID      string
	DocID     string
	Source    string
	Payload   []byte
	Steps     []StepKind
	State     IntentState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntentLog is the append-only durable log backing the intent-log
// protocol: every operation is announced before execution, so a crash
// mid-operation leaves a replayable record rather than silent drift
// between the Registry and the adapters.
type IntentLog struct {
	db *sql.DB
}

// OpenIntentLog creates or opens the intent log at path. An empty path
// opens an in-memory log, useful for tests.
func OpenIntentLog(path string) (*IntentLog, error) {
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

	l := &IntentLog{db: db}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return l, nil
}

func (l *IntentLog) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS intents (
		op_id      TEXT PRIMARY KEY,
		doc_id     TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		payload    BLOB NOT NULL DEFAULT '',
		steps      TEXT NOT NULL,
		state      TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_intents_state ON intents(state);`
	_, err := l.db.Exec(schema)
	return err
}

// Announce persists a new intent in the InProgress state.
func (l *IntentLog) Announce(ctx context.Context, rec *IntentRecord) error {
	stepsJSON, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	now := time.Now().UTC()
	rec.State = InProgress
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO intents (op_id, doc_id, source, payload, steps, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OpID, rec.DocID, rec.Source, rec.Payload, string(stepsJSON), string(rec.State), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("announce %s: %w", rec.OpID, err)
	}
	return nil
}

// SetState transitions an intent's state.
func (l *IntentLog) SetState(ctx context.Context, opID string, state IntentState) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE intents SET state = ?, updated_at = ? WHERE op_id = ?`,
		string(state), time.Now().UTC().Unix(), opID)
	if err != nil {
		return fmt.Errorf("set state %s: %w", opID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set state %s: %w", opID, err)
	}
	if n == 0 {
		return fmt.Errorf("set state %s: no such intent", opID)
	}
	return nil
}

// ListInProgress returns every intent still awaiting completion, ordered
// by creation time. Called on startup to drive recovery.
func (l *IntentLog) ListInProgress(ctx context.Context) ([]*IntentRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT op_id, doc_id, source, payload, steps, state, created_at, updated_at FROM intents
		 WHERE state = ? ORDER BY created_at ASC`, string(InProgress))
	if err != nil {
		return nil, fmt.Errorf("list in-progress intents: %w", err)
	}
	defer rows.Close()

	var records []*IntentRecord
	for rows.Next() {
		rec, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Compact drops Committed and Cancelled records older than olderThan,
// returning the number removed. InProgress records are never compacted.
func (l *IntentLog) Compact(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM intents WHERE state IN (?, ?) AND updated_at < ?`,
		string(Committed), string(Cancelled), olderThan.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("compact: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (l *IntentLog) Close() error {
	return l.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(s rowScanner) (*IntentRecord, error) {
	var rec IntentRecord
	var stepsJSON, state string
	var createdAtUnix, updatedAtUnix int64

	if err := s.Scan(&rec.OpID, &rec.DocID, &rec.Source, &rec.Payload, &stepsJSON, &state, &createdAtUnix, &updatedAtUnix); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	rec.State = IntentState(state)
	rec.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return &rec, nil
}
