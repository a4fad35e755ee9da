package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// DocTokenizerName is the name of the custom prose tokenizer.
	DocTokenizerName = "doc_tokenizer"

	// DocStopFilterName is the name of the custom stop word filter.
	DocStopFilterName = "doc_stop"

	// DocAnalyzerName is the name of the custom prose analyzer.
	DocAnalyzerName = "doc_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(DocTokenizerName, docTokenizerConstructor)
	_ = registry.RegisterTokenFilter(DocStopFilterName, docStopFilterConstructor)
}

// BleveKeywordAdapter implements KeywordAdapter using Bleve v2.
type BleveKeywordAdapter struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config KeywordAdapterConfig
	closed bool

	docKeys map[string]map[string]struct{} // docID -> set of chunk keys
}

// bleveChunkDoc is what gets indexed and stored per chunk; Bleve returns the
// stored fields on every hit so the adapter can reconstruct the Hit payload
// without a secondary lookup.
type bleveChunkDoc struct {
	Content     string `json:"content"`
	DocID       string `json:"doc_id"`
	Ordinal     int    `json:"ordinal"`
	Source      string `json:"source"`
	Language    string `json:"language"`
	ParseMethod string `json:"parse_method"`
	PairsJSON   string `json:"pairs_json"`
}

var _ KeywordAdapter = (*BleveKeywordAdapter)(nil)

// validateIndexIntegrity checks a Bleve index's on-disk metadata before
// opening it, so corruption is detected and repaired rather than surfaced
// as an opaque open error.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError reports whether err looks like Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveKeywordAdapter creates a keyword adapter over a Bleve index. If
// path is empty, an in-memory index is created. An index found corrupted on
// disk is cleared and rebuilt from scratch — the caller is expected to
// re-add documents afterward, mirroring the Change Detector's Corrupt path.
func NewBleveKeywordAdapter(path string, config KeywordAdapterConfig) (*BleveKeywordAdapter, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("keyword_index_cleared", slog.String("path", path), slog.String("reason", "corruption detected, reindex required"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword_index_open_failed", slog.String("path", path), slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("keyword_index_cleared", slog.String("path", path), slog.String("reason", "open failed with corruption, reindex required"))
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create/open index: %w", err)
	}

	a := &BleveKeywordAdapter{
		index:   idx,
		path:    path,
		config:  config,
		docKeys: make(map[string]map[string]struct{}),
	}

	if err := a.rebuildDocKeys(); err != nil {
		return nil, fmt.Errorf("rebuild doc key index: %w", err)
	}

	return a, nil
}

// rebuildDocKeys reconstructs the in-memory docID->chunk-key index from a
// freshly opened (possibly pre-populated) Bleve index.
func (a *BleveKeywordAdapter) rebuildDocKeys() error {
	docCount, err := a.index.DocCount()
	if err != nil {
		return err
	}
	if docCount == 0 {
		return nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{"doc_id"}

	result, err := a.index.Search(req)
	if err != nil {
		return err
	}
	for _, hit := range result.Hits {
		docID, _ := hit.Fields["doc_id"].(string)
		if docID == "" {
			continue
		}
		if a.docKeys[docID] == nil {
			a.docKeys[docID] = make(map[string]struct{})
		}
		a.docKeys[docID][hit.ID] = struct{}{}
	}
	return nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(DocAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": DocTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			DocStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = DocAnalyzerName
	return indexMapping, nil
}

// Add indexes chunks for docID.
func (a *BleveKeywordAdapter) Add(ctx context.Context, docID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("keyword adapter is closed")
	}

	batch := a.index.NewBatch()
	for _, chunk := range chunks {
		key := chunk.ID.Key()
		pairsJSON, err := json.Marshal(chunk.Pairs)
		if err != nil {
			return fmt.Errorf("marshal pairs for %s: %w", key, err)
		}

		doc := bleveChunkDoc{
			Content:     chunk.Text,
			DocID:       chunk.ID.DocID,
			Ordinal:     chunk.ID.Ordinal,
			Source:      chunk.Source,
			Language:    chunk.Language,
			ParseMethod: chunk.ParseMethod,
			PairsJSON:   string(pairsJSON),
		}
		if err := batch.Index(key, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", key, err)
		}

		if a.docKeys[docID] == nil {
			a.docKeys[docID] = make(map[string]struct{})
		}
		a.docKeys[docID][key] = struct{}{}
	}

	if err := a.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// Delete removes all chunks for docID.
func (a *BleveKeywordAdapter) Delete(ctx context.Context, docID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("keyword adapter is closed")
	}

	keys := a.docKeys[docID]
	if len(keys) == 0 {
		return nil
	}

	batch := a.index.NewBatch()
	for key := range keys {
		batch.Delete(key)
	}
	if err := a.index.Batch(batch); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	delete(a.docKeys, docID)
	return nil
}

// Query runs a BM25-scored match query against chunk content.
func (a *BleveKeywordAdapter) Query(ctx context.Context, q string, topK int, filter *Filter) ([]Hit, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, fmt.Errorf("keyword adapter is closed")
	}
	if strings.TrimSpace(q) == "" {
		return []Hit{}, nil
	}

	matchQuery := bleve.NewMatchQuery(q)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = topK
	if filter != nil && len(filter.DocIDs) > 0 {
		req.Size = topK * 4
	}
	if req.Size < topK {
		req.Size = topK
	}
	req.Fields = []string{"doc_id", "ordinal", "source", "language", "parse_method", "pairs_json"}

	result, err := a.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		chunkID, ok := ParseChunkKey(hit.ID)
		if !ok {
			continue
		}
		if !filter.Allows(chunkID.DocID) {
			continue
		}

		payload := Chunk{
			ID:          chunkID,
			Source:      stringField(hit.Fields, "source"),
			Language:    stringField(hit.Fields, "language"),
			ParseMethod: stringField(hit.Fields, "parse_method"),
			Pairs:       decodePairs(stringField(hit.Fields, "pairs_json")),
		}

		hits = append(hits, Hit{
			ChunkID: chunkID,
			Score:   float32(hit.Score),
			Payload: payload,
		})
		if len(hits) >= topK {
			break
		}
	}

	return hits, nil
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func decodePairs(raw string) []Pair {
	if raw == "" {
		return nil
	}
	var pairs []Pair
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil
	}
	return pairs
}

func (a *BleveKeywordAdapter) Count(ctx context.Context, docID string) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0, fmt.Errorf("keyword adapter is closed")
	}
	return len(a.docKeys[docID]), nil
}

func (a *BleveKeywordAdapter) Exists(ctx context.Context, docID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false, fmt.Errorf("keyword adapter is closed")
	}
	return len(a.docKeys[docID]) > 0, nil
}

func (a *BleveKeywordAdapter) AllDocIDs(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, fmt.Errorf("keyword adapter is closed")
	}
	ids := make([]string, 0, len(a.docKeys))
	for id := range a.docKeys {
		ids = append(ids, id)
	}
	return ids, nil
}

// Save is a no-op: Bleve's disk-based index persists as it's written to.
func (a *BleveKeywordAdapter) Save() error {
	return nil
}

func (a *BleveKeywordAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.index != nil {
		return a.index.Close()
	}
	return nil
}

// docTokenizerConstructor builds the custom Bleve tokenizer for prose
// content.
func docTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveDocTokenizer{}, nil
}

type bleveDocTokenizer struct{}

func (t *bleveDocTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := Tokenize(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

func docStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveDocStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

type bleveDocStopFilter struct {
	stopWords map[string]struct{}
}

func (f *bleveDocStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
