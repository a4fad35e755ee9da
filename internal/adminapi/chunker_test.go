package adminapi

import (
	"context"
	"strings"
	"testing"

	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/store"
)

func TestChunkPageSplitsOnChunkSize(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := chunkPage("doc-1", "src", 0, text, 10, 2)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.ID.DocID != "doc-1" {
			t.Errorf("expected doc id doc-1, got %s", c.ID.DocID)
		}
		if c.Source != "src" {
			t.Errorf("expected source src, got %s", c.Source)
		}
	}
}

func TestChunkPageEmptyTextReturnsNil(t *testing.T) {
	if chunks := chunkPage("doc-1", "src", 0, "   ", 100, 10); chunks != nil {
		t.Errorf("expected nil for blank text, got %v", chunks)
	}
}

func TestChunkPageSingleShortTextReturnsOneChunk(t *testing.T) {
	chunks := chunkPage("doc-1", "src", 0, "a short chunk of text", 400, 40)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "a short chunk of text" {
		t.Errorf("unexpected chunk text: %q", chunks[0].Text)
	}
}

func TestChunkContentMarkdownSplitsOnHeaders(t *testing.T) {
	text := "# Title\n\nintro text\n\n## Section One\n\nfirst section body\n\n## Section Two\n\nsecond section body\n"

	chunks := chunkContent(context.Background(), extract.ModeMarkdown, "doc-1", "src.md", text, 400, 40)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 section chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Language != "markdown" {
			t.Errorf("expected markdown language tag, got %q", c.Language)
		}
		if !strings.HasPrefix(c.ParseMethod, "markdown-header:") {
			t.Errorf("expected markdown-header parse method, got %q", c.ParseMethod)
		}
	}
}

func TestChunkContentNonMarkdownFallsBackToWordWindow(t *testing.T) {
	chunks := chunkContent(context.Background(), extract.ModeDatasheet, "doc-1", "src", "a short chunk of text", 400, 40)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Language == "markdown" {
		t.Errorf("did not expect markdown chunker to run for datasheet mode")
	}
}

func TestAssignPairsAttachesOnlyToMatchingChunks(t *testing.T) {
	chunks := []store.Chunk{
		{ID: store.ChunkId{DocID: "d", Ordinal: 0}, Text: "the LM317 regulator handles 1.5A"},
		{ID: store.ChunkId{DocID: "d", Ordinal: 1}, Text: "unrelated text about packaging"},
	}
	pairs := []store.Pair{{ModelName: "LM317", PartNumber: "LM317T"}}

	assignPairs(chunks, pairs)

	if len(chunks[0].Pairs) != 1 {
		t.Errorf("expected pair attached to matching chunk, got %d", len(chunks[0].Pairs))
	}
	if len(chunks[1].Pairs) != 0 {
		t.Errorf("expected no pair on non-matching chunk, got %d", len(chunks[1].Pairs))
	}
}
