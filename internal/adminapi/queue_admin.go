package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrel-docs/docindex/internal/queue"
)

// workerHandle tracks a running worker pool's lifecycle so QueueStop can
// cancel it and wait for workers to drain cooperatively.
type workerHandle struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

// QueueStart recovers any in-progress intents left over from a prior
// crash and starts the worker pool pulling jobs. Starting an already-
// running pool is a no-op.
func (a *Admin) QueueStart(ctx context.Context) error {
	if a.pool != nil {
		return nil
	}

	if err := a.recoverInProgress(ctx); err != nil {
		return fmt.Errorf("recover in-progress intents: %w", err)
	}
	// Jobs left Running across a restart have no live worker behind them;
	// returning them to Pending lets a fresh worker pick them up.
	if _, err := a.q.ReclaimAllRunning(ctx); err != nil {
		return fmt.Errorf("reclaim running jobs: %w", err)
	}

	pool := queue.NewPool(a.q, a.handlers(), queue.PoolConfig{
		Workers:     a.cfg.Workers.Count,
		Lease:       time.Duration(a.cfg.Workers.LeaseSeconds) * time.Second,
		IdleBackoff: time.Duration(a.cfg.Workers.PollIntervalMS) * time.Millisecond,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &workerHandle{cancel: cancel, done: make(chan error, 1)}
	a.pool = handle

	go func() {
		handle.done <- pool.Run(runCtx)
	}()
	return nil
}

// recoverInProgress replays every intent still InProgress from a prior
// crash. The Index Manager only knows how to list them (Recover); actually
// driving one to a terminal state means re-running the full ingest
// pipeline that produced it, since chunks and embeddings aren't durable
// anywhere an intent alone can reconstruct them. Each intent's Payload —
// stamped on it at Begin, the same ingestPayload a queued job carries —
// is re-enqueued as a fresh KindUpdate job, then the stale intent is
// cancelled: a new Begin under the same (deterministic) doc_id replaces
// it once the requeued job runs. An intent whose payload can't be
// decoded is logged and left in place for a maintenance repair pass
// rather than silently dropped.
func (a *Admin) recoverInProgress(ctx context.Context) error {
	records, err := a.mgr.Recover(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		var p ingestPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			slog.Warn("cannot replay in-progress intent: payload undecodable",
				slog.String("op_id", rec.OpID),
				slog.String("doc_id", rec.DocID),
				slog.String("source", rec.Source),
				slog.String("error", err.Error()))
			continue
		}

		if _, err := a.q.Enqueue(ctx, queue.KindUpdate, p, 0); err != nil {
			return fmt.Errorf("re-enqueue recovery of %s: %w", rec.DocID, err)
		}
		if err := a.mgr.Cancel(ctx, rec.OpID); err != nil {
			return fmt.Errorf("cancel superseded intent %s: %w", rec.OpID, err)
		}
		slog.Info("requeued in-progress intent for replay",
			slog.String("op_id", rec.OpID), slog.String("source", rec.Source))
	}
	return nil
}

// QueueStop cancels the running worker pool and waits for it to drain.
// Stopping an already-stopped pool is a no-op.
func (a *Admin) QueueStop(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	handle := a.pool
	a.pool = nil

	handle.cancel()
	select {
	case err := <-handle.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueStatus reports whether the worker pool is running plus a snapshot
// of job counts by state.
type QueueStatusReport struct {
	Running bool
	Stats   queue.Stats
}

func (a *Admin) QueueStatus(ctx context.Context) (QueueStatusReport, error) {
	stats, err := a.q.Stats(ctx)
	if err != nil {
		return QueueStatusReport{}, fmt.Errorf("queue stats: %w", err)
	}
	return QueueStatusReport{Running: a.pool != nil, Stats: stats}, nil
}

// QueueClear cancels every still-Pending job, leaving in-flight work alone.
func (a *Admin) QueueClear(ctx context.Context) (int64, error) {
	return a.q.Clear(ctx)
}
