// Package queue implements the durable priority Job Queue: the single
// fan-out point for ingestion and maintenance work, backed by SQLite so
// queue state survives a process restart.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	docerrors "github.com/kestrel-docs/docindex/internal/errors"
)

// Kind is the category of work a Job performs.
type Kind string

const (
	KindAdd         Kind = "add"
	KindUpdate      Kind = "update"
	KindRemove      Kind = "remove"
	KindSearch      Kind = "search"
	KindMaintenance Kind = "maintenance"
)

// State is a Job's lifecycle position.
type State string

const (
	Pending   State = "pending"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
	Cancelled State = "cancelled"
)

// DefaultLease is how long a worker holds a job before it's considered
// abandoned and returned to Pending.
const DefaultLease = 2 * time.Minute

// Job is one unit of queued work.
type Job struct {
	JobID     string
	Kind      Kind
	Payload   json.RawMessage
	Priority  int // higher runs first
	Attempts  int
	State     State
	VisibleAt time.Time
	LeaseUntil time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	LastError string
}

// Queue is the SQLite-backed durable priority queue.
type Queue struct {
	db         *sql.DB
	retryCfg   docerrors.RetryConfig
	maxAttempts int
}

// Config configures a Queue.
type Config struct {
	// RetryConfig governs backoff between attempts. Defaults to
	// docerrors.DefaultRetryConfig with full jitter, per spec.md §4.7.
	RetryConfig docerrors.RetryConfig
	// MaxAttempts is the attempt ceiling before a job moves to Failed.
	MaxAttempts int
}

// DefaultConfig returns the queue's default retry and attempt-ceiling
// configuration.
func DefaultConfig() Config {
	cfg := docerrors.DefaultRetryConfig()
	cfg.Jitter = docerrors.JitterFull
	return Config{RetryConfig: cfg, MaxAttempts: 5}
}

// Open creates or opens the queue at path. An empty path opens an
// in-memory queue, useful for tests.
func Open(path string, cfg Config) (*Queue, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}

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

	q := &Queue{db: db, retryCfg: cfg.RetryConfig, maxAttempts: cfg.MaxAttempts}
	if err := q.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return q, nil
}

func (q *Queue) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id      TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		payload     TEXT NOT NULL,
		priority    INTEGER NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 0,
		state       TEXT NOT NULL,
		visible_at  INTEGER NOT NULL,
		lease_until INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL,
		last_error  TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_pull ON jobs(state, visible_at, priority);`
	_, err := q.db.Exec(schema)
	return err
}

// Enqueue inserts a new Pending job, immediately visible.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, payload interface{}, priority int) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	job := &Job{
		JobID:     uuid.NewString(),
		Kind:      kind,
		Payload:   raw,
		Priority:  priority,
		State:     Pending,
		VisibleAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, kind, payload, priority, attempts, state, visible_at, lease_until, created_at, updated_at, last_error)
		 VALUES (?, ?, ?, ?, 0, ?, ?, 0, ?, ?, '')`,
		job.JobID, string(job.Kind), string(job.Payload), job.Priority, string(job.State),
		job.VisibleAt.Unix(), job.CreatedAt.Unix(), job.UpdatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return job, nil
}

// Pull atomically claims the highest-priority Pending job whose
// visible_at has passed, transitioning it to Running under a lease. It
// returns nil, nil when no job is claimable.
func (q *Queue) Pull(ctx context.Context, lease time.Duration) (*Job, error) {
	if lease <= 0 {
		lease = DefaultLease
	}
	now := time.Now().UTC()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT job_id, kind, payload, priority, attempts, state, visible_at, lease_until, created_at, updated_at, last_error
		 FROM jobs
		 WHERE state = ? AND visible_at <= ?
		 ORDER BY priority DESC, visible_at ASC
		 LIMIT 1`, string(Pending), now.Unix())

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	leaseUntil := now.Add(lease)
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET state = ?, lease_until = ?, updated_at = ? WHERE job_id = ?`,
		string(Running), leaseUntil.Unix(), now.Unix(), job.JobID); err != nil {
		return nil, fmt.Errorf("pull: claim %s: %w", job.JobID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	job.State = Running
	job.LeaseUntil = leaseUntil
	return job, nil
}

// Complete marks a job Succeeded.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	return q.setState(ctx, jobID, Succeeded, "")
}

// Fail records a failed attempt. If attempts remain, the job is returned
// to Pending with an exponential-backoff-with-full-jitter visible_at; once
// attempts are exhausted it moves to Failed (dead-letter).
func (q *Queue) Fail(ctx context.Context, jobID string, cause error) error {
	row := q.db.QueryRowContext(ctx, `SELECT attempts FROM jobs WHERE job_id = ?`, jobID)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return fmt.Errorf("fail %s: %w", jobID, err)
	}

	attempts++
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	if attempts >= q.maxAttempts {
		_, err := q.db.ExecContext(ctx,
			`UPDATE jobs SET state = ?, attempts = ?, last_error = ?, updated_at = ? WHERE job_id = ?`,
			string(Failed), attempts, errMsg, time.Now().UTC().Unix(), jobID)
		if err != nil {
			return fmt.Errorf("fail %s: %w", jobID, err)
		}
		return nil
	}

	backoff := docerrors.NextBackoff(q.retryCfg, attempts-1)
	visibleAt := time.Now().UTC().Add(backoff)
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, attempts = ?, last_error = ?, visible_at = ?, updated_at = ? WHERE job_id = ?`,
		string(Pending), attempts, errMsg, visibleAt.Unix(), time.Now().UTC().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("fail %s: %w", jobID, err)
	}
	return nil
}

// Cancel transitions a job to Cancelled. Pending jobs cancel immediately;
// Running jobs are marked Cancelled here too. The running handler is not
// interrupted: the Pool checks IsCancelled once the handler returns and then
// leaves the job Cancelled instead of recording success or failure. No
// Intent is rolled back here.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	return q.setState(ctx, jobID, Cancelled, "")
}

// IsCancelled reports whether jobID has been marked Cancelled. The Pool
// checks it after each handler returns.
func (q *Queue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT state FROM jobs WHERE job_id = ?`, jobID)
	var state string
	if err := row.Scan(&state); err != nil {
		return false, fmt.Errorf("check cancelled %s: %w", jobID, err)
	}
	return State(state) == Cancelled, nil
}

func (q *Queue) setState(ctx context.Context, jobID string, state State, errMsg string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, last_error = ?, updated_at = ? WHERE job_id = ?`,
		string(state), errMsg, time.Now().UTC().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("set state %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set state %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("set state %s: no such job", jobID)
	}
	return nil
}

// ReconcileLeases returns any Running job whose lease has expired to
// Pending with attempts incremented, per the scheduling rule in §4.7. It
// reclaims only expired leases; the startup resume rule, which treats every
// Running job as abandoned after a restart, is ReclaimAllRunning.
func (q *Queue) ReconcileLeases(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, attempts = attempts + 1, visible_at = ?, updated_at = ?
		 WHERE state = ? AND lease_until <= ?`,
		string(Pending), now.Unix(), now.Unix(), string(Running), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("reconcile leases: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimAllRunning returns every Running job to Pending unconditionally.
// Called once at startup: per §4.7's resume rule, a Running job found at
// startup is always treated as interrupted, regardless of lease.
func (q *Queue) ReclaimAllRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, visible_at = ?, updated_at = ? WHERE state = ?`,
		string(Pending), now.Unix(), now.Unix(), string(Running))
	if err != nil {
		return 0, fmt.Errorf("reclaim running jobs: %w", err)
	}
	return res.RowsAffected()
}

// Get returns a job by id, or nil if absent.
func (q *Queue) Get(ctx context.Context, jobID string) (*Job, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT job_id, kind, payload, priority, attempts, state, visible_at, lease_until, created_at, updated_at, last_error
		 FROM jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", jobID, err)
	}
	return job, nil
}

// Stats is a point-in-time count of jobs by state, for the admin `queue
// status` verb.
type Stats struct {
	Pending   int64
	Running   int64
	Succeeded int64
	Failed    int64
	Cancelled int64
}

// Stats returns current job counts grouped by state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, fmt.Errorf("queue stats: %w", err)
		}
		switch State(state) {
		case Pending:
			s.Pending = count
		case Running:
			s.Running = count
		case Succeeded:
			s.Succeeded = count
		case Failed:
			s.Failed = count
		case Cancelled:
			s.Cancelled = count
		}
	}
	return s, rows.Err()
}

// Clear cancels every Pending job, for the admin `queue clear` verb.
// Running jobs are left alone — clearing doesn't interrupt in-flight work.
func (q *Queue) Clear(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, updated_at = ? WHERE state = ?`,
		string(Cancelled), time.Now().UTC().Unix(), string(Pending))
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s rowScanner) (*Job, error) {
	var job Job
	var kind, payload, state string
	var visibleAtUnix, leaseUntilUnix, createdAtUnix, updatedAtUnix int64

	if err := s.Scan(&job.JobID, &kind, &payload, &job.Priority, &job.Attempts, &state,
		&visibleAtUnix, &leaseUntilUnix, &createdAtUnix, &updatedAtUnix, &job.LastError); err != nil {
		return nil, err
	}

	job.Kind = Kind(kind)
	job.Payload = json.RawMessage(payload)
	job.State = State(state)
	job.VisibleAt = time.Unix(visibleAtUnix, 0).UTC()
	job.LeaseUntil = time.Unix(leaseUntilUnix, 0).UTC()
	job.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	job.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return &job, nil
}
