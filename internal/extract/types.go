// Package extract defines the external-capability interfaces document
// ingestion depends on — content extraction, vectorization, and keyword
// generation — plus offline-capable concrete implementations that exercise
// those interfaces without requiring an external model or service.
package extract

import (
	"context"
	"time"

	"github.com/kestrel-docs/docindex/internal/store"
)

// SourceMode selects how a source's content is extracted.
type SourceMode string

const (
	ModeMarkdown   SourceMode = "markdown"
	ModeDatasheet  SourceMode = "datasheet"
	ModeGeneric    SourceMode = "generic"
	ModeAuto       SourceMode = "auto"
)

// ExtractedPage is one page (or page-equivalent unit) of extracted content.
type ExtractedPage struct {
	Index int
	Text  string
}

// ContentExtractor turns a raw source into extracted text pages. Concrete
// extractors for Datasheet/Generic/Auto modes (vision-LLM or PDF-to-text
// pipelines) are left to the caller to inject; only MarkdownExtractor ships
// here since Markdown sources require no external dependency.
type ContentExtractor interface {
	Extract(ctx context.Context, source string, mode SourceMode) ([]ExtractedPage, error)
}

// Vectorizer produces a dense embedding for a chunk of text.
type Vectorizer interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// KeywordGenerator augments a chunk's text with generated keywords before
// it reaches the keyword adapter. Failure here is non-fatal: the chunk is
// still indexed on its own text, just without the augmentation.
type KeywordGenerator interface {
	Generate(ctx context.Context, text string) ([]string, error)
}

// PairExtractor extracts (model_name, part_number) references from a
// chunk's text, per the delimited-block grammar in internal/pairs.
type PairExtractor interface {
	ExtractPairs(ctx context.Context, text string) ([]store.Pair, error)
}

// Timeouts computes a per-call deadline of base + per_page * page_count.
// No extractor, vectorizer or keyword-generator call in this repository
// takes its deadline from it.
type Timeouts struct {
	Base    time.Duration
	PerPage time.Duration
}

// For computes the deadline for a call covering pageCount pages.
func (t Timeouts) For(pageCount int) time.Duration {
	if pageCount < 0 {
		pageCount = 0
	}
	return t.Base + t.PerPage*time.Duration(pageCount)
}

// DefaultTimeouts returns sensible defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{Base: 10 * time.Second, PerPage: 2 * time.Second}
}
