package indexmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrel-docs/docindex/internal/detect"
	"github.com/kestrel-docs/docindex/internal/registry"
	"github.com/kestrel-docs/docindex/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *registry.Registry) {
	t.Helper()
	log, err := OpenIntentLog("")
	if err != nil {
		t.Fatalf("OpenIntentLog: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })

	reg, err := registry.Open("")
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	return New(log, reg), reg
}

func TestPlanStepsNewDocumentOrdersCachePutBeforeAdds(t *testing.T) {
	steps := PlanSteps(detect.NewDocument)
	want := []StepKind{StepCachePut, StepVectorAdd, StepKeywordAdd, StepRegistryWrite}
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(steps))
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], steps[i])
		}
	}
}

func TestPlanStepsContentChangedDeletesBeforeAdds(t *testing.T) {
	steps := PlanSteps(detect.ContentChanged)
	if steps[0] != StepVectorDelete || steps[1] != StepKeywordDelete {
		t.Errorf("expected deletes first, got %v", steps)
	}
	lastStep := steps[len(steps)-1]
	if lastStep != StepRegistryWrite {
		t.Errorf("expected RegistryWrite last, got %s", lastStep)
	}
}

func TestPlanStepsUnchangedHasNoSteps(t *testing.T) {
	if steps := PlanSteps(detect.Unchanged); steps != nil {
		t.Errorf("expected no steps for Unchanged, got %v", steps)
	}
}

func TestBeginReturnsNilForUnchanged(t *testing.T) {
	m, _ := newTestManager(t)
	rec, err := m.Begin(context.Background(), "doc-1", "file:///a.pdf", nil, detect.Unchanged)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil intent for Unchanged, got %+v", rec)
	}
}

func TestExecuteRunsStepsInOrderAndCommits(t *testing.T) {
	ctx := context.Background()
	m, reg := newTestManager(t)

	if err := reg.Upsert(ctx, &registry.DocumentRecord{
		DocID: "doc-1", Source: "file:///a.pdf", State: registry.Pending,
		ChunkIDs: []store.ChunkId{}, Pairs: []store.Pair{},
	}); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	rec, err := m.Begin(ctx, "doc-1", "file:///a.pdf", nil, detect.NewDocument)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var order []string
	track := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	err = m.Execute(ctx, rec, StepExecutors{
		CachePut:      track("cache_put"),
		VectorAdd:     track("vector_add"),
		KeywordAdd:    track("keyword_add"),
		RegistryWrite: track("registry_write"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{"cache_put", "vector_add", "keyword_add", "registry_write"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], order[i])
		}
	}

	got, err := reg.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != registry.Ready {
		t.Errorf("expected Ready after commit, got %s", got.State)
	}
}

func TestExecuteLeavesIntentInProgressOnFailure(t *testing.T) {
	ctx := context.Background()
	m, reg := newTestManager(t)

	if err := reg.Upsert(ctx, &registry.DocumentRecord{
		DocID: "doc-1", Source: "file:///a.pdf", State: registry.Pending,
		ChunkIDs: []store.ChunkId{}, Pairs: []store.Pair{},
	}); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	rec, err := m.Begin(ctx, "doc-1", "file:///a.pdf", nil, detect.NewDocument)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	failing := StepExecutors{
		CachePut: func(context.Context) error { return nil },
		VectorAdd: func(context.Context) error {
			return errors.New("vector adapter unavailable")
		},
	}

	if err := m.Execute(ctx, rec, failing); err == nil {
		t.Fatal("expected Execute to return an error")
	}

	inProgress, err := m.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(inProgress) != 1 || inProgress[0].OpID != rec.OpID {
		t.Errorf("expected the failed intent to still be recoverable, got %+v", inProgress)
	}

	got, err := reg.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State == registry.Ready {
		t.Error("expected state to remain unadvanced after a failed step")
	}
}

func TestRecoverIgnoresCommittedIntents(t *testing.T) {
	ctx := context.Background()
	m, reg := newTestManager(t)

	if err := reg.Upsert(ctx, &registry.DocumentRecord{
		DocID: "doc-1", Source: "file:///a.pdf", State: registry.Pending,
		ChunkIDs: []store.ChunkId{}, Pairs: []store.Pair{},
	}); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	rec, _ := m.Begin(ctx, "doc-1", "file:///a.pdf", nil, detect.MetadataOnly)
	noop := func(context.Context) error { return nil }
	if err := m.Execute(ctx, rec, StepExecutors{RegistryWrite: noop}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	inProgress, err := m.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(inProgress) != 0 {
		t.Errorf("expected no in-progress intents after commit, got %+v", inProgress)
	}
}
