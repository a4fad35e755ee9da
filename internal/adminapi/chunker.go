package adminapi

import (
	"context"
	"strings"

	"github.com/kestrel-docs/docindex/internal/chunk"
	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/store"
)

// chunkContent splits one extracted page's text into store.Chunks,
// dispatching by source mode. Markdown sources get the header-aware
// chunker, which keeps sections and their titles intact instead of cutting
// wherever a fixed word count runs out; everything else falls back to the
// plain sliding window.
func chunkContent(ctx context.Context, mode extract.SourceMode, docID, source, text string, chunkSize, chunkOverlap int) []store.Chunk {
	if mode == extract.ModeMarkdown {
		if chunks := chunkMarkdown(ctx, docID, source, text, chunkSize); len(chunks) > 0 {
			return chunks
		}
	}
	return chunkPage(docID, source, 0, text, chunkSize, chunkOverlap)
}

// chunkMarkdown delegates to the header-based Markdown chunker, then maps
// its richer Chunk shape down to store.Chunk. The header path rides along
// as a ParseMethod tag rather than free-form metadata, since store.Chunk has
// no metadata bag of its own. Falls back to the word-window chunker (via
// chunkContent) on error or empty output, e.g. content with no headers at
// all that the Markdown chunker still has to emit paragraph chunks for.
func chunkMarkdown(ctx context.Context, docID, source, text string, chunkSize int) []store.Chunk {
	maxTokens := chunkSize * 3 / 2 // rough words-to-tokens conversion, same ballpark as TokensPerChar
	mc := chunk.NewMarkdownChunkerWithOptions(chunk.MarkdownChunkerOptions{MaxChunkTokens: maxTokens})
	raw, err := mc.Chunk(ctx, &chunk.FileInput{Path: source, Content: []byte(text)})
	if err != nil || len(raw) == 0 {
		return nil
	}
	chunks := make([]store.Chunk, 0, len(raw))
	for i, rc := range raw {
		chunks = append(chunks, store.Chunk{
			ID:          store.ChunkId{DocID: docID, Ordinal: i},
			Text:        rc.Content,
			Source:      source,
			Language:    "markdown",
			ParseMethod: "markdown-header:" + rc.Metadata["header_path"],
			CreatedAt:   rc.CreatedAt,
		})
	}
	return chunks
}

// chunkPage splits one extracted page's text into Chunks of roughly
// chunkSize words with chunkOverlap words repeated between consecutive
// chunks, the same sliding-window shape the teacher's token-based chunker
// uses, simplified to whitespace tokens since docindex chunks prose and
// datasheet text rather than source code that needs syntax-aware splitting.
func chunkPage(docID, source string, pageIndex int, text string, chunkSize, chunkOverlap int) []store.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 400
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}

	stride := chunkSize - chunkOverlap
	var chunks []store.Chunk
	ordinal := pageIndex * 1000 // keep pages from colliding on ordinal ranges
	for start := 0; start < len(words); start += stride {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunkText := strings.Join(words[start:end], " ")
		chunks = append(chunks, store.Chunk{
			ID:     store.ChunkId{DocID: docID, Ordinal: ordinal},
			Text:   chunkText,
			Source: source,
		})
		ordinal++
		if end == len(words) {
			break
		}
	}
	return chunks
}

// assignPairs attaches pair references to whichever chunks' text actually
// contains the pair's model name, so Pairs travels with the chunk that
// demonstrably produced it rather than being duplicated onto every chunk.
func assignPairs(chunks []store.Chunk, pairs []store.Pair) {
	for _, p := range pairs {
		for i := range chunks {
			if strings.Contains(chunks[i].Text, p.ModelName) {
				chunks[i].Pairs = append(chunks[i].Pairs, p)
			}
		}
	}
}
