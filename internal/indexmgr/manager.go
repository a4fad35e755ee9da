// Package indexmgr implements the Index Manager: the intent-log protocol
// that carries a Change Detector verdict through to a committed Registry
// state, surviving a crash anywhere in between.
package indexmgr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-docs/docindex/internal/detect"
	"github.com/kestrel-docs/docindex/internal/registry"
)

// PlanSteps derives the ordered primitive steps for a ChangeKind.
// Replacements always delete before add on both adapters, per the
// delete-before-add ordering required when a doc_id supersedes another.
func PlanSteps(kind detect.ChangeKind) []StepKind {
	switch kind {
	case detect.NewDocument:
		return []StepKind{StepCachePut, StepVectorAdd, StepKeywordAdd, StepRegistryWrite}
	case detect.ContentChanged, detect.OptionsChanged:
		return []StepKind{StepVectorDelete, StepKeywordDelete, StepCachePut, StepVectorAdd, StepKeywordAdd, StepRegistryWrite}
	case detect.MetadataOnly:
		return []StepKind{StepRegistryWrite}
	default:
		// Unchanged needs no steps at all. Corrupt is routed through Repair
		// instead of the ordinary plan/execute path.
		return nil
	}
}

// StepExecutors supplies the side-effecting function for each StepKind a
// plan might contain. The Index Manager doesn't know how to extract,
// embed, or tokenize a document — that's the caller's (the queue worker's)
// job; the manager only guarantees ordering, durability, and idempotent
// replay.
type StepExecutors struct {
	CachePut      func(ctx context.Context) error
	RegistryWrite func(ctx context.Context) error
	VectorAdd     func(ctx context.Context) error
	VectorDelete  func(ctx context.Context) error
	KeywordAdd    func(ctx context.Context) error
	KeywordDelete func(ctx context.Context) error
}

func (e StepExecutors) run(ctx context.Context, kind StepKind) error {
	var fn func(ctx context.Context) error
	switch kind {
	case StepCachePut:
		fn = e.CachePut
	case StepRegistryWrite:
		fn = e.RegistryWrite
	case StepVectorAdd:
		fn = e.VectorAdd
	case StepVectorDelete:
		fn = e.VectorDelete
	case StepKeywordAdd:
		fn = e.KeywordAdd
	case StepKeywordDelete:
		fn = e.KeywordDelete
	default:
		return fmt.Errorf("indexmgr: unknown step kind %q", kind)
	}
	if fn == nil {
		return fmt.Errorf("indexmgr: no executor registered for step %q", kind)
	}
	return fn(ctx)
}

// Manager drives the Plan/Announce/Execute/Commit/Recover protocol.
type Manager struct {
	log      *IntentLog
	registry *registry.Registry
}

// New builds a Manager over an already-open intent log and registry.
func New(log *IntentLog, reg *registry.Registry) *Manager {
	return &Manager{log: log, registry: reg}
}

// Begin plans and announces a new operation, persisting it to the intent
// log before any step executes. Returns nil, nil for Unchanged (nothing to
// do) so callers can treat a nil record as "no-op". payload is an opaque,
// caller-defined encoding of whatever the caller needs to replay this
// operation from scratch after a crash (e.g. the original ingest request);
// the Index Manager never looks inside it, only stores and returns it.
func (m *Manager) Begin(ctx context.Context, docID, source string, payload []byte, kind detect.ChangeKind) (*IntentRecord, error) {
	steps := PlanSteps(kind)
	if steps == nil {
		return nil, nil
	}

	rec := &IntentRecord{
		OpID:    uuid.NewString(),
		DocID:   docID,
		Source:  source,
		Payload: payload,
		Steps:   steps,
	}
	if err := m.log.Announce(ctx, rec); err != nil {
		return nil, fmt.Errorf("announce operation for %s: %w", docID, err)
	}
	return rec, nil
}

// Execute runs an intent's steps in order against the supplied executors.
// On the first failure the intent is left InProgress so a later retry (or
// crash recovery) replays it from the start; adapters' add/delete must be
// idempotent for this to be safe, which both adapter implementations are.
// On full success the intent is marked Committed and the Registry state is
// advanced to Ready.
func (m *Manager) Execute(ctx context.Context, rec *IntentRecord, execs StepExecutors) error {
	for _, step := range rec.Steps {
		if err := execs.run(ctx, step); err != nil {
			slog.Warn("indexing step failed, intent remains in progress for retry",
				slog.String("op_id", rec.OpID),
				slog.String("doc_id", rec.DocID),
				slog.String("step", string(step)),
				slog.String("error", err.Error()))
			return fmt.Errorf("step %s for %s: %w", step, rec.DocID, err)
		}
	}

	if err := m.log.SetState(ctx, rec.OpID, Committed); err != nil {
		return fmt.Errorf("commit intent %s: %w", rec.OpID, err)
	}
	if err := m.registry.SetState(ctx, rec.DocID, registry.Ready, ""); err != nil {
		return fmt.Errorf("advance %s to ready: %w", rec.DocID, err)
	}
	return nil
}

// Recover returns every intent still InProgress, oldest first, for the
// caller to re-plan executors and replay via Execute. Called once at
// startup before the worker pool accepts new jobs.
func (m *Manager) Recover(ctx context.Context) ([]*IntentRecord, error) {
	records, err := m.log.ListInProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover: %w", err)
	}
	if len(records) > 0 {
		slog.Info("recovering in-progress indexing intents", slog.Int("count", len(records)))
	}
	return records, nil
}

// Cancel marks an intent Cancelled without advancing the Registry. Used
// when a newer operation for the same doc_id supersedes an older,
// still-InProgress one (e.g. a second ContentChanged arrives before the
// first finishes).
func (m *Manager) Cancel(ctx context.Context, opID string) error {
	return m.log.SetState(ctx, opID, Cancelled)
}

// Compact drops stale Committed/Cancelled intents, keeping the log bounded.
func (m *Manager) Compact(ctx context.Context, horizon time.Duration) (int64, error) {
	return m.log.Compact(ctx, time.Now().Add(-horizon))
}
