package extract

import (
	"context"
	"fmt"
	"strings"
)

// pageBreak splits a Markdown source into page-equivalent units. Markdown
// has no native page concept, so a form-feed or a "---" on its own line
// (common in slide-style Markdown and mkdocs page separators) is treated
// as an explicit break; otherwise the whole document is one page.
const pageBreak = "\x0c"

// MarkdownExtractor extracts text from Markdown sources. It needs no
// external dependency: the source is already plain text, so extraction is
// a split-and-trim rather than a parse.
type MarkdownExtractor struct{}

// NewMarkdownExtractor creates a Markdown extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

// Extract splits source into pages. Only ModeMarkdown is supported here;
// Datasheet/Generic/Auto modes require an external extraction pipeline
// (vision-LLM or PDF-to-text) the caller must inject separately.
func (e *MarkdownExtractor) Extract(_ context.Context, source string, mode SourceMode) ([]ExtractedPage, error) {
	if mode != ModeMarkdown {
		return nil, fmt.Errorf("markdown extractor does not support mode %q", mode)
	}

	raw := strings.ReplaceAll(source, pageBreak, "\n---\n")
	segments := splitOnPageSeparator(raw)

	pages := make([]ExtractedPage, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg)
		if text == "" {
			continue
		}
		pages = append(pages, ExtractedPage{Index: i, Text: text})
	}
	if len(pages) == 0 {
		return []ExtractedPage{{Index: 0, Text: ""}}, nil
	}
	return pages, nil
}

func splitOnPageSeparator(text string) []string {
	lines := strings.Split(text, "\n")
	var segments []string
	var current strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			segments = append(segments, current.String())
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	segments = append(segments, current.String())
	return segments
}

var _ ContentExtractor = (*MarkdownExtractor)(nil)
