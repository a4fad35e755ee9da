package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	docerrors "github.com/kestrel-docs/docindex/internal/errors"
)

func testConfig() Config {
	cfg := docerrors.RetryConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		Jitter:       docerrors.JitterNone,
	}
	return Config{RetryConfig: cfg, MaxAttempts: 3}
}

func TestEnqueueThenPullClaimsJob(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, err := q.Enqueue(ctx, KindAdd, map[string]string{"doc_id": "doc-1"}, 5)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pulled, err := q.Pull(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if pulled == nil || pulled.JobID != job.JobID {
		t.Fatalf("expected to pull job %s, got %+v", job.JobID, pulled)
	}
	if pulled.State != Running {
		t.Errorf("expected Running, got %s", pulled.State)
	}
}

func TestPullReturnsNilWhenNothingVisible(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, err := q.Pull(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if job != nil {
		t.Errorf("expected no job, got %+v", job)
	}
}

func TestPullOrdersByPriorityThenVisibility(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	low, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 1)
	high, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 10)
	_ = low

	pulled, err := q.Pull(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if pulled.JobID != high.JobID {
		t.Errorf("expected higher-priority job pulled first, got %s", pulled.JobID)
	}
}

func TestCompleteMarksSucceeded(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	_, _ = q.Pull(ctx, time.Minute)

	if err := q.Complete(ctx, job.JobID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := q.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != Succeeded {
		t.Errorf("expected Succeeded, got %s", got.State)
	}
}

func TestFailRetriesThenMovesToFailedAfterCeiling(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)

	cause := errors.New("extractor timeout")
	for i := 0; i < 3; i++ {
		if err := q.Fail(ctx, job.JobID, cause); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	got, err := q.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != Failed {
		t.Errorf("expected Failed after exhausting attempts, got %s", got.State)
	}
	if got.LastError != cause.Error() {
		t.Errorf("expected last_error recorded, got %q", got.LastError)
	}
}

func TestFailBeforeCeilingReturnsToPending(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	if err := q.Fail(ctx, job.JobID, errors.New("transient")); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, err := q.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != Pending {
		t.Errorf("expected Pending for a retryable failure, got %s", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("expected attempts=1, got %d", got.Attempts)
	}
}

func TestCancelMarksCancelled(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	if err := q.Cancel(ctx, job.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	cancelled, err := q.IsCancelled(ctx, job.JobID)
	if err != nil {
		t.Fatalf("IsCancelled: %v", err)
	}
	if !cancelled {
		t.Error("expected job to report cancelled")
	}
}

func TestReclaimAllRunningReturnsJobsToPending(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	_, _ = q.Pull(ctx, time.Minute)

	n, err := q.ReclaimAllRunning(ctx)
	if err != nil {
		t.Fatalf("ReclaimAllRunning: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 job reclaimed, got %d", n)
	}

	got, err := q.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != Pending {
		t.Errorf("expected Pending after reclaim, got %s", got.State)
	}
}

func TestReconcileLeasesOnlyReclaimsExpiredLeases(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	job, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	_, _ = q.Pull(ctx, time.Hour) // long lease, shouldn't be reclaimed

	n, err := q.ReconcileLeases(ctx)
	if err != nil {
		t.Fatalf("ReconcileLeases: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 jobs reclaimed with an unexpired lease, got %d", n)
	}

	got, err := q.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != Running {
		t.Errorf("expected job to remain Running, got %s", got.State)
	}
}

func TestStatsCountsJobsByState(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	_, _ = q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	j2, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	_, _ = q.Pull(ctx, time.Hour)
	_ = j2

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending job, got %d", stats.Pending)
	}
	if stats.Running != 1 {
		t.Errorf("expected 1 running job, got %d", stats.Running)
	}
}

func TestClearCancelsOnlyPendingJobs(t *testing.T) {
	ctx := context.Background()
	q, err := Open("", testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	pending, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	running, _ := q.Enqueue(ctx, KindAdd, map[string]string{}, 0)
	_, _ = q.Pull(ctx, time.Hour) // claims highest priority; both priority 0, claims one

	n, err := q.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 job cleared, got %d", n)
	}

	p, _ := q.Get(ctx, pending.JobID)
	r, _ := q.Get(ctx, running.JobID)
	cancelledCount := 0
	for _, j := range []*Job{p, r} {
		if j.State == Cancelled {
			cancelledCount++
		}
	}
	if cancelledCount != 1 {
		t.Errorf("expected exactly 1 job cancelled (the still-pending one), got %d", cancelledCount)
	}
}
