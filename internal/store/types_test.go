package store

import "testing"

func TestChunkIdKeyRoundTrips(t *testing.T) {
	id := ChunkId{DocID: "doc-abc123", Ordinal: 7}
	key := id.Key()

	parsed, ok := ParseChunkKey(key)
	if !ok {
		t.Fatalf("ParseChunkKey(%q) failed", key)
	}
	if parsed != id {
		t.Errorf("expected %+v, got %+v", id, parsed)
	}
}

func TestParseChunkKeyRejectsMalformedInput(t *testing.T) {
	if _, ok := ParseChunkKey("no-hash-here"); ok {
		t.Error("expected ParseChunkKey to fail without a '#' separator")
	}
	if _, ok := ParseChunkKey("doc#notanumber"); ok {
		t.Error("expected ParseChunkKey to fail with a non-numeric ordinal")
	}
}

func TestFilterAllowsEverythingWhenNilOrEmpty(t *testing.T) {
	var nilFilter *Filter
	if !nilFilter.Allows("anything") {
		t.Error("nil filter should allow everything")
	}

	empty := &Filter{}
	if !empty.Allows("anything") {
		t.Error("empty filter should allow everything")
	}
}

func TestNewFilterRestrictsToGivenDocIDs(t *testing.T) {
	f := NewFilter("doc-1", "doc-2")
	if !f.Allows("doc-1") {
		t.Error("expected doc-1 to be allowed")
	}
	if f.Allows("doc-3") {
		t.Error("expected doc-3 to be rejected")
	}
}

func TestNewFilterWithNoIDsReturnsNil(t *testing.T) {
	if f := NewFilter(); f != nil {
		t.Errorf("expected nil filter for empty id list, got %+v", f)
	}
}
