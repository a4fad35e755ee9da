package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DocIDPayload is implemented by job payloads that target a single
// document, enabling per-doc_id exclusion. Payloads for Kind Search don't
// need it since reads never need to serialize against a doc_id.
type DocIDPayload interface {
	TargetDocID() string
}

// Handler processes one job's payload. A Handler should check ctx for
// cancellation at step boundaries rather than only at entry.
type Handler func(ctx context.Context, job *Job) error

// docMutex is a lightweight in-process per-doc_id mutex: only one worker
// at a time may run a job whose payload targets a given doc_id, while
// jobs on different doc_ids proceed concurrently.
type docMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDocMutex() *docMutex {
	return &docMutex{locks: make(map[string]*sync.Mutex)}
}

func (d *docMutex) lock(docID string) func() {
	if docID == "" {
		return func() {}
	}
	d.mu.Lock()
	l, ok := d.locks[docID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[docID] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Pool is a bounded worker pool pulling jobs from a Queue. Workers run
// concurrently; per-doc_id exclusion keeps operations on the same
// document strictly serialized as required by the Manager's locking
// discipline, while jobs on different doc_ids run in parallel.
type Pool struct {
	queue    *Queue
	handlers map[Kind]Handler
	workers  int
	lease    time.Duration
	idle     time.Duration

	docLocks *docMutex
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers     int
	Lease       time.Duration
	IdleBackoff time.Duration // how long a worker sleeps after finding no job
}

// NewPool builds a worker pool over queue, dispatching jobs by Kind to the
// registered handlers.
func NewPool(q *Queue, handlers map[Kind]Handler, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = 250 * time.Millisecond
	}
	return &Pool{
		queue:    q,
		handlers: handlers,
		workers:  cfg.Workers,
		lease:    cfg.Lease,
		idle:     cfg.IdleBackoff,
		docLocks: newDocMutex(),
	}
}

// Run starts the configured number of workers and blocks until ctx is
// cancelled or a worker returns a non-context error. Cancelling ctx stops
// all workers cooperatively: a worker in the middle of a job lets the
// Handler observe ctx.Done() at its next step boundary.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i
		g.Go(func() error {
			return p.workerLoop(gctx, workerID)
		})
	}
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

func (p *Pool) workerLoop(ctx context.Context, workerID int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := p.queue.Pull(ctx, p.lease)
		if err != nil {
			return fmt.Errorf("worker %d: pull: %w", workerID, err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.idle):
			}
			continue
		}

		p.runJob(ctx, job)
	}
}

func (p *Pool) runJob(ctx context.Context, job *Job) {
	docID := docIDFromPayload(job.Payload)
	unlock := p.docLocks.lock(docID)
	defer unlock()

	handler, ok := p.handlers[job.Kind]
	if !ok {
		_ = p.queue.Fail(ctx, job.JobID, fmt.Errorf("no handler registered for kind %q", job.Kind))
		return
	}

	err := handler(ctx, job)
	if cancelled, cErr := p.queue.IsCancelled(ctx, job.JobID); cErr == nil && cancelled {
		slog.Info("job cancelled while running", slog.String("job_id", job.JobID))
		return
	}
	if err != nil {
		slog.Warn("job failed",
			slog.String("job_id", job.JobID),
			slog.String("kind", string(job.Kind)),
			slog.Int("attempts", job.Attempts),
			slog.String("error", err.Error()))
		if failErr := p.queue.Fail(ctx, job.JobID, err); failErr != nil {
			slog.Error("failed to record job failure",
				slog.String("job_id", job.JobID), slog.String("error", failErr.Error()))
		}
		return
	}

	if err := p.queue.Complete(ctx, job.JobID); err != nil {
		slog.Error("failed to mark job succeeded",
			slog.String("job_id", job.JobID), slog.String("error", err.Error()))
	}
}

// docIDFromPayload extracts a "doc_id" field from the job's JSON payload
// if present, for exclusion purposes. Search and maintenance jobs
// typically omit it and run without per-document serialization.
func docIDFromPayload(payload json.RawMessage) string {
	var probe struct {
		DocID string `json:"doc_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.DocID
}
