// Package store provides the Vector and Keyword index adapters: the two
// parallel search backends that sit underneath the hybrid query layer.
package store

import (
	"context"
	"fmt"
	"time"
)

// ChunkId identifies a chunk within a document: a document id plus a
// zero-based dense ordinal. Ordering is meaningful for reconstruction only,
// never for ranking.
type ChunkId struct {
	DocID   string
	Ordinal int
}

// Key renders the ChunkId as the string both adapters use as their internal
// document key.
func (c ChunkId) Key() string {
	return fmt.Sprintf("%s#%d", c.DocID, c.Ordinal)
}

func (c ChunkId) String() string {
	return c.Key()
}

// ParseChunkKey reverses Key. Returns false if key isn't well-formed.
func ParseChunkKey(key string) (ChunkId, bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '#' {
			var ordinal int
			if _, err := fmt.Sscanf(key[i+1:], "%d", &ordinal); err != nil {
				return ChunkId{}, false
			}
			return ChunkId{DocID: key[:i], Ordinal: ordinal}, true
		}
	}
	return ChunkId{}, false
}

// Pair is a (model_name, part_number) reference extracted from a datasheet.
type Pair struct {
	ModelName  string `json:"model_name"`
	PartNumber string `json:"part_number"`
}

// Chunk is the minimal unit of indexing: a contiguous slice of document text
// plus metadata. Chunks are immutable once written.
type Chunk struct {
	ID          ChunkId
	Text        string
	Source      string // canonical source handle this chunk was derived from
	Language    string // content-language tag, if known
	ParseMethod string // extractor/parse-method tag
	Pairs       []Pair // pair references, when this chunk demonstrably originates from a pair-bearing region
	CreatedAt   time.Time
}

// Hit is a single adapter query result.
type Hit struct {
	ChunkID ChunkId
	Score   float32
	Payload Chunk
}

// Filter restricts adapter queries to a set of document ids. A nil or empty
// Filter matches everything.
type Filter struct {
	DocIDs map[string]struct{}
}

// NewFilter builds a Filter from a list of document ids.
func NewFilter(docIDs ...string) *Filter {
	if len(docIDs) == 0 {
		return nil
	}
	f := &Filter{DocIDs: make(map[string]struct{}, len(docIDs))}
	for _, id := range docIDs {
		f.DocIDs[id] = struct{}{}
	}
	return f
}

// Allows reports whether docID passes the filter.
func (f *Filter) Allows(docID string) bool {
	if f == nil || len(f.DocIDs) == 0 {
		return true
	}
	_, ok := f.DocIDs[docID]
	return ok
}

// VectorAdapter is the capability surface for the dense-vector semantic
// index. Both adapters share the same shape by design so the hybrid query
// layer can treat them uniformly; the vector adapter additionally pins a
// fixed embedding dimensionality at construction time.
type VectorAdapter interface {
	// Add indexes chunks for docID with their corresponding embeddings.
	// Idempotent w.r.t. (docID, ordinal): repeats overwrite.
	Add(ctx context.Context, docID string, chunks []Chunk, vectors [][]float32) error

	// Delete removes all chunks for docID. Succeeds if none exist.
	Delete(ctx context.Context, docID string) error

	// Query finds the topK nearest neighbours to the query embedding,
	// optionally restricted to a document-id filter.
	Query(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]Hit, error)

	// Count returns the number of chunks indexed for docID.
	Count(ctx context.Context, docID string) (int, error)

	// Exists reports whether any chunks are indexed for docID.
	Exists(ctx context.Context, docID string) (bool, error)

	// AllDocIDs returns the set of document ids this adapter has chunks
	// for, used by the Registry's consistency check.
	AllDocIDs(ctx context.Context) ([]string, error)

	// Dimensions is the fixed embedding width this adapter was created with.
	Dimensions() int

	Save() error
	Close() error
}

// KeywordAdapter is the capability surface for the sparse BM25 keyword
// index. It tokenizes and indexes content on write, and returns raw
// (unnormalized) BM25-style scores.
type KeywordAdapter interface {
	// Add indexes chunks for docID. Idempotent w.r.t. (docID, ordinal).
	Add(ctx context.Context, docID string, chunks []Chunk) error

	// Delete removes all chunks for docID. Succeeds if none exist.
	Delete(ctx context.Context, docID string) error

	// Query returns the topK chunks matching q, optionally restricted to a
	// document-id filter.
	Query(ctx context.Context, q string, topK int, filter *Filter) ([]Hit, error)

	// Count returns the number of chunks indexed for docID.
	Count(ctx context.Context, docID string) (int, error)

	// Exists reports whether any chunks are indexed for docID.
	Exists(ctx context.Context, docID string) (bool, error)

	// AllDocIDs returns the set of document ids this adapter has chunks
	// for, used by the Registry's consistency check.
	AllDocIDs(ctx context.Context) ([]string, error)

	Save() error
	Close() error
}

// VectorAdapterConfig configures a VectorAdapter at construction time.
type VectorAdapterConfig struct {
	// Dimensions is the fixed vector width. Writes with mismatched vectors
	// are refused.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is the HNSW max connections per layer.
	M int

	// EfSearch is the HNSW query-time search width.
	EfSearch int
}

// DefaultVectorAdapterConfig returns sensible defaults for a given dimension.
func DefaultVectorAdapterConfig(dimensions int) VectorAdapterConfig {
	return VectorAdapterConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// KeywordAdapterConfig holds keyword-index settings. BleveKeywordAdapter
// stores it but does not read it: scoring uses Bleve's own default model
// (K1 and B have no effect), the stop list is always DefaultStopWords and
// the minimum token length is always 2 (see Tokenize).
type KeywordAdapterConfig struct {
	// K1 is the term frequency saturation parameter.
	K1 float64

	// B is the length normalization parameter.
	B float64

	// StopWords are filtered out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index.
	MinTokenLength int
}

// DefaultKeywordAdapterConfig returns default keyword-index configuration.
func DefaultKeywordAdapterConfig() KeywordAdapterConfig {
	return KeywordAdapterConfig{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// ErrDimensionMismatch indicates a write whose embedding vectors don't match
// the adapter's fixed dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (vector adapter dimensions are fixed at creation)", e.Expected, e.Got)
}
