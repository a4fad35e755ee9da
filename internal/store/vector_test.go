package store

import (
	"context"
	"path/filepath"
	"testing"
)

func testChunk(docID string, ordinal int) Chunk {
	return Chunk{
		ID:     ChunkId{DocID: docID, Ordinal: ordinal},
		Text:   "some chunk text",
		Source: "file:///tmp/" + docID,
	}
}

func TestHNSWVectorAdapterAddAndQuery(t *testing.T) {
	ctx := context.Background()
	a, err := NewHNSWVectorAdapter("", DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	defer a.Close()

	chunks := []Chunk{testChunk("doc-1", 0), testChunk("doc-1", 1)}
	vectors := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}

	if err := a.Add(ctx, "doc-1", chunks, vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := a.Query(ctx, []float32{1, 0, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].ChunkID.DocID != "doc-1" {
		t.Errorf("expected best match from doc-1, got %+v", hits[0].ChunkID)
	}
}

func TestHNSWVectorAdapterRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	a, err := NewHNSWVectorAdapter("", DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	defer a.Close()

	err = a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{1, 2, 3}})
	if _, ok := err.(ErrDimensionMismatch); !ok {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHNSWVectorAdapterDeleteRemovesDoc(t *testing.T) {
	ctx := context.Background()
	a, err := NewHNSWVectorAdapter("", DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	defer a.Close()

	_ = a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{1, 0, 0, 0}})

	if exists, _ := a.Exists(ctx, "doc-1"); !exists {
		t.Fatal("expected doc-1 to exist before delete")
	}

	if err := a.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if exists, _ := a.Exists(ctx, "doc-1"); exists {
		t.Error("expected doc-1 to be gone after delete")
	}
	count, _ := a.Count(ctx, "doc-1")
	if count != 0 {
		t.Errorf("expected count 0 after delete, got %d", count)
	}
}

func TestHNSWVectorAdapterReaddSameOrdinalOverwrites(t *testing.T) {
	ctx := context.Background()
	a, err := NewHNSWVectorAdapter("", DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	defer a.Close()

	_ = a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{1, 0, 0, 0}})
	_ = a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{0, 1, 0, 0}})

	count, _ := a.Count(ctx, "doc-1")
	if count != 1 {
		t.Errorf("expected idempotent overwrite to keep count at 1, got %d", count)
	}
}

func TestHNSWVectorAdapterQueryHonoursFilter(t *testing.T) {
	ctx := context.Background()
	a, err := NewHNSWVectorAdapter("", DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	defer a.Close()

	_ = a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{1, 0, 0, 0}})
	_ = a.Add(ctx, "doc-2", []Chunk{testChunk("doc-2", 0)}, [][]float32{{1, 0, 0, 0}})

	hits, err := a.Query(ctx, []float32{1, 0, 0, 0}, 5, NewFilter("doc-2"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, h := range hits {
		if h.ChunkID.DocID != "doc-2" {
			t.Errorf("expected only doc-2 hits, got %+v", h.ChunkID)
		}
	}
}

func TestHNSWVectorAdapterSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	a, err := NewHNSWVectorAdapter(path, DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	if err := a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := a.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reloaded, err := NewHNSWVectorAdapter(path, DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("reload NewHNSWVectorAdapter: %v", err)
	}
	defer reloaded.Close()

	exists, err := reloaded.Exists(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected doc-1 to survive a save/load round trip")
	}
}

func TestHNSWVectorAdapterRejectsOperationsAfterClose(t *testing.T) {
	ctx := context.Background()
	a, err := NewHNSWVectorAdapter("", DefaultVectorAdapterConfig(4))
	if err != nil {
		t.Fatalf("NewHNSWVectorAdapter: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := a.Add(ctx, "doc-1", []Chunk{testChunk("doc-1", 0)}, [][]float32{{1, 0, 0, 0}}); err == nil {
		t.Error("expected Add to fail after Close")
	}
}
