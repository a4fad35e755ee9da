package extract

import (
	"context"
	"testing"
)

func TestMarkdownExtractorSingleDocumentIsOnePage(t *testing.T) {
	e := NewMarkdownExtractor()
	pages, err := e.Extract(context.Background(), "# Title\n\nSome body text.", ModeMarkdown)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Text == "" {
		t.Error("expected non-empty page text")
	}
}

func TestMarkdownExtractorSplitsOnPageSeparator(t *testing.T) {
	e := NewMarkdownExtractor()
	source := "page one content\n\n---\n\npage two content"
	pages, err := e.Extract(context.Background(), source, ModeMarkdown)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Index != 0 || pages[1].Index != 1 {
		t.Errorf("unexpected page indices: %d, %d", pages[0].Index, pages[1].Index)
	}
}

func TestMarkdownExtractorRejectsUnsupportedMode(t *testing.T) {
	e := NewMarkdownExtractor()
	if _, err := e.Extract(context.Background(), "content", ModeDatasheet); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestMarkdownExtractorBlankSourceReturnsSinglePlaceholderPage(t *testing.T) {
	e := NewMarkdownExtractor()
	pages, err := e.Extract(context.Background(), "   \n\n  ", ModeMarkdown)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 placeholder page, got %d", len(pages))
	}
}
