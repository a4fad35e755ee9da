package store

import (
	"context"
	"testing"
)

func TestBleveKeywordAdapterAddAndQuery(t *testing.T) {
	ctx := context.Background()
	a, err := NewBleveKeywordAdapter("", DefaultKeywordAdapterConfig())
	if err != nil {
		t.Fatalf("NewBleveKeywordAdapter: %v", err)
	}
	defer a.Close()

	chunks := []Chunk{
		{ID: ChunkId{DocID: "doc-1", Ordinal: 0}, Text: "the PM10K power regulator datasheet"},
		{ID: ChunkId{DocID: "doc-1", Ordinal: 1}, Text: "general information about cooling fans"},
	}
	if err := a.Add(ctx, "doc-1", chunks); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := a.Query(ctx, "PM10K", 10, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for PM10K, got %d", len(hits))
	}
	if hits[0].ChunkID.Ordinal != 0 {
		t.Errorf("expected ordinal 0, got %d", hits[0].ChunkID.Ordinal)
	}
}

func TestBleveKeywordAdapterEmptyQueryReturnsNoHits(t *testing.T) {
	ctx := context.Background()
	a, err := NewBleveKeywordAdapter("", DefaultKeywordAdapterConfig())
	if err != nil {
		t.Fatalf("NewBleveKeywordAdapter: %v", err)
	}
	defer a.Close()

	hits, err := a.Query(ctx, "   ", 10, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for blank query, got %d", len(hits))
	}
}

func TestBleveKeywordAdapterDeleteRemovesDoc(t *testing.T) {
	ctx := context.Background()
	a, err := NewBleveKeywordAdapter("", DefaultKeywordAdapterConfig())
	if err != nil {
		t.Fatalf("NewBleveKeywordAdapter: %v", err)
	}
	defer a.Close()

	chunks := []Chunk{{ID: ChunkId{DocID: "doc-1", Ordinal: 0}, Text: "regulator datasheet"}}
	if err := a.Add(ctx, "doc-1", chunks); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if exists, _ := a.Exists(ctx, "doc-1"); !exists {
		t.Fatal("expected doc-1 to exist")
	}

	if err := a.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if exists, _ := a.Exists(ctx, "doc-1"); exists {
		t.Error("expected doc-1 to be gone after delete")
	}

	hits, err := a.Query(ctx, "regulator", 10, nil)
	if err != nil {
		t.Fatalf("Query after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %d", len(hits))
	}
}

func TestBleveKeywordAdapterQueryHonoursFilter(t *testing.T) {
	ctx := context.Background()
	a, err := NewBleveKeywordAdapter("", DefaultKeywordAdapterConfig())
	if err != nil {
		t.Fatalf("NewBleveKeywordAdapter: %v", err)
	}
	defer a.Close()

	_ = a.Add(ctx, "doc-1", []Chunk{{ID: ChunkId{DocID: "doc-1", Ordinal: 0}, Text: "shared keyword phrase"}})
	_ = a.Add(ctx, "doc-2", []Chunk{{ID: ChunkId{DocID: "doc-2", Ordinal: 0}, Text: "shared keyword phrase"}})

	hits, err := a.Query(ctx, "shared keyword", 10, NewFilter("doc-2"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, h := range hits {
		if h.ChunkID.DocID != "doc-2" {
			t.Errorf("expected only doc-2 hits, got %+v", h.ChunkID)
		}
	}
}

func TestBleveKeywordAdapterAllDocIDs(t *testing.T) {
	ctx := context.Background()
	a, err := NewBleveKeywordAdapter("", DefaultKeywordAdapterConfig())
	if err != nil {
		t.Fatalf("NewBleveKeywordAdapter: %v", err)
	}
	defer a.Close()

	_ = a.Add(ctx, "doc-1", []Chunk{{ID: ChunkId{DocID: "doc-1", Ordinal: 0}, Text: "alpha"}})
	_ = a.Add(ctx, "doc-2", []Chunk{{ID: ChunkId{DocID: "doc-2", Ordinal: 0}, Text: "beta"}})

	ids, err := a.AllDocIDs(ctx)
	if err != nil {
		t.Fatalf("AllDocIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 doc ids, got %d: %v", len(ids), ids)
	}
}

func TestBleveKeywordAdapterRejectsOperationsAfterClose(t *testing.T) {
	ctx := context.Background()
	a, err := NewBleveKeywordAdapter("", DefaultKeywordAdapterConfig())
	if err != nil {
		t.Fatalf("NewBleveKeywordAdapter: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := a.Add(ctx, "doc-1", []Chunk{{ID: ChunkId{DocID: "doc-1", Ordinal: 0}, Text: "x"}}); err == nil {
		t.Error("expected Add to fail after Close")
	}
}
