package fingerprint

import (
	"context"
	"testing"
	"time"
)

func TestLookupMissingReturnsFalse(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Lookup(context.Background(), "file:///tmp/missing.pdf")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Error("expected no entry for unknown source")
	}
}

func TestPutThenLookupRoundTrips(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	entry := Entry{
		Source:      "file:///tmp/a.pdf",
		Fingerprint: "sha256:abc",
		DocID:       "doc-1",
		UpdatedAt:   time.Now().Truncate(time.Second),
	}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Lookup(ctx, entry.Source)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if got.Fingerprint != entry.Fingerprint || got.DocID != entry.DocID {
		t.Errorf("expected %+v, got %+v", entry, got)
	}
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	source := "file:///tmp/a.pdf"
	_ = s.Put(ctx, Entry{Source: source, Fingerprint: "old", DocID: "doc-1", UpdatedAt: time.Now()})
	_ = s.Put(ctx, Entry{Source: source, Fingerprint: "new", DocID: "doc-2", UpdatedAt: time.Now()})

	got, ok, err := s.Lookup(ctx, source)
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if got.Fingerprint != "new" || got.DocID != "doc-2" {
		t.Errorf("expected overwritten entry, got %+v", got)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	source := "file:///tmp/a.pdf"
	_ = s.Put(ctx, Entry{Source: source, Fingerprint: "x", DocID: "doc-1", UpdatedAt: time.Now()})
	if err := s.Delete(ctx, source); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, ok, err := s.Lookup(ctx, source)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Error("expected entry to be gone after delete")
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Delete(context.Background(), "file:///tmp/never-existed.pdf"); err != nil {
		t.Errorf("expected no error deleting missing entry, got %v", err)
	}
}

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	_ = s.Put(ctx, Entry{Source: "stale", Fingerprint: "x", DocID: "doc-1", UpdatedAt: old})
	_ = s.Put(ctx, Entry{Source: "fresh", Fingerprint: "y", DocID: "doc-2", UpdatedAt: fresh})

	n, err := s.Sweep(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row swept, got %d", n)
	}

	if _, ok, _ := s.Lookup(ctx, "stale"); ok {
		t.Error("expected stale entry to be swept")
	}
	if _, ok, _ := s.Lookup(ctx, "fresh"); !ok {
		t.Error("expected fresh entry to survive sweep")
	}
}
