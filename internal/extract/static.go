package extract

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticDimensions is the embedding width StaticVectorizer produces.
const StaticDimensions = 256

// Weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// tokenRegex matches alphanumeric sequences.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// domainStopWords filters common filler words out of token hashing —
// narrower than source code's keyword set since chunk text here is prose
// and datasheet boilerplate, not identifiers.
var domainStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "are": true, "was": true, "were": true,
}

// StaticVectorizer generates embeddings by hashing tokens and character
// n-grams into fixed-width buckets. It needs no network access or model
// download, at the cost of semantic quality relative to a real embedding
// model — used as the offline fallback and in tests.
type StaticVectorizer struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticVectorizer creates a new static vectorizer.
func NewStaticVectorizer() *StaticVectorizer {
	return &StaticVectorizer{}
}

// Embed generates an embedding for a single text.
func (v *StaticVectorizer) Embed(_ context.Context, text string) ([]float32, error) {
	v.mu.RLock()
	if v.closed {
		v.mu.RUnlock()
		return nil, fmt.Errorf("vectorizer is closed")
	}
	v.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	return normalizeVector(v.generateVector(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (v *StaticVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := v.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

func (v *StaticVectorizer) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	tokens := filterStopWords(tokenize(text))
	for _, token := range tokens {
		vector[hashToIndex(token, StaticDimensions)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += ngramWeight
	}

	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if lower != "" {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !domainStopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeVector(vec []float32) []float32 {
	var sumSquares float64
	for _, val := range vec {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return vec
	}
	normalized := make([]float32, len(vec))
	for i, val := range vec {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// Dimensions returns the embedding dimension.
func (v *StaticVectorizer) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (v *StaticVectorizer) ModelName() string {
	return "static"
}

// Close releases resources.
func (v *StaticVectorizer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

var _ Vectorizer = (*StaticVectorizer)(nil)
