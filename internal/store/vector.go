package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWVectorAdapter implements VectorAdapter using coder/hnsw, a pure-Go
// HNSW implementation (no CGO).
type HNSWVectorAdapter struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorAdapterConfig
	path   string // empty means in-memory, never persisted

	idMap   map[string]uint64 // chunk key -> internal graph key
	keyMap  map[uint64]string // internal graph key -> chunk key
	chunks  map[string]Chunk  // chunk key -> payload
	docKeys map[string]map[string]struct{}
	nextKey uint64

	closed bool
}

// vectorMetadata is the gob-persisted sidecar for a saved graph.
type vectorMetadata struct {
	IDMap   map[string]uint64
	Chunks  map[string]Chunk
	DocKeys map[string]map[string]struct{}
	NextKey uint64
	Config  VectorAdapterConfig
}

var _ VectorAdapter = (*HNSWVectorAdapter)(nil)

// NewHNSWVectorAdapter creates a vector adapter backed by an HNSW graph.
// If path is non-empty and an index already exists there, it is loaded.
func NewHNSWVectorAdapter(path string, cfg VectorAdapterConfig) (*HNSWVectorAdapter, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	a := &HNSWVectorAdapter{
		graph:   graph,
		config:  cfg,
		path:    path,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		chunks:  make(map[string]Chunk),
		docKeys: make(map[string]map[string]struct{}),
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := a.load(); err != nil {
				return nil, fmt.Errorf("loading existing vector index: %w", err)
			}
		}
	}

	return a, nil
}

func (a *HNSWVectorAdapter) Dimensions() int { return a.config.Dimensions }

// Add indexes chunks for docID, replacing any existing chunks at the same
// ordinals via lazy deletion: orphaned graph nodes are never removed, only
// unmapped, because coder/hnsw corrupts its graph when the last node is
// deleted.
func (a *HNSWVectorAdapter) Add(ctx context.Context, docID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("vector adapter is closed")
	}

	for _, v := range vectors {
		if len(v) != a.config.Dimensions {
			return ErrDimensionMismatch{Expected: a.config.Dimensions, Got: len(v)}
		}
	}

	for i, chunk := range chunks {
		key := chunk.ID.Key()

		if existingKey, exists := a.idMap[key]; exists {
			delete(a.keyMap, existingKey)
			delete(a.idMap, key)
		}

		graphKey := a.nextKey
		a.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if a.config.Metric != "l2" {
			normalizeVectorInPlace(vec)
		}

		a.graph.Add(hnsw.MakeNode(graphKey, vec))

		a.idMap[key] = graphKey
		a.keyMap[graphKey] = key
		a.chunks[key] = chunk

		if a.docKeys[docID] == nil {
			a.docKeys[docID] = make(map[string]struct{})
		}
		a.docKeys[docID][key] = struct{}{}
	}

	return nil
}

// Delete removes all chunks for docID via lazy deletion.
func (a *HNSWVectorAdapter) Delete(ctx context.Context, docID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("vector adapter is closed")
	}

	for key := range a.docKeys[docID] {
		if graphKey, exists := a.idMap[key]; exists {
			delete(a.keyMap, graphKey)
			delete(a.idMap, key)
		}
		delete(a.chunks, key)
	}
	delete(a.docKeys, docID)

	return nil
}

// Query finds the topK nearest neighbours to embedding.
func (a *HNSWVectorAdapter) Query(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]Hit, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, fmt.Errorf("vector adapter is closed")
	}
	if len(embedding) != a.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: a.config.Dimensions, Got: len(embedding)}
	}
	if a.graph.Len() == 0 {
		return []Hit{}, nil
	}

	query := make([]float32, len(embedding))
	copy(query, embedding)
	if a.config.Metric != "l2" {
		normalizeVectorInPlace(query)
	}

	// Oversample since filtered-out or orphaned hits are dropped below.
	searchK := topK
	if filter != nil && len(filter.DocIDs) > 0 {
		searchK = topK * 4
	}
	if searchK < topK {
		searchK = topK
	}

	nodes := a.graph.Search(query, searchK)

	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		key, exists := a.keyMap[node.Key]
		if !exists {
			continue // orphaned node from a lazy delete
		}
		chunk, ok := a.chunks[key]
		if !ok {
			continue
		}
		if !filter.Allows(chunk.ID.DocID) {
			continue
		}

		distance := a.graph.Distance(query, node.Value)
		hits = append(hits, Hit{
			ChunkID: chunk.ID,
			Score:   distanceToScore(distance, a.config.Metric),
			Payload: chunk,
		})
		if len(hits) >= topK {
			break
		}
	}

	return hits, nil
}

func (a *HNSWVectorAdapter) Count(ctx context.Context, docID string) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0, fmt.Errorf("vector adapter is closed")
	}
	return len(a.docKeys[docID]), nil
}

func (a *HNSWVectorAdapter) Exists(ctx context.Context, docID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false, fmt.Errorf("vector adapter is closed")
	}
	return len(a.docKeys[docID]) > 0, nil
}

func (a *HNSWVectorAdapter) AllDocIDs(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, fmt.Errorf("vector adapter is closed")
	}
	ids := make([]string, 0, len(a.docKeys))
	for id := range a.docKeys {
		ids = append(ids, id)
	}
	return ids, nil
}

// Save persists the index to disk via an atomic temp-file-plus-rename, the
// same pattern the teacher uses for its HNSW graph export.
func (a *HNSWVectorAdapter) Save() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.path == "" {
		return nil // in-memory adapter, nothing to persist
	}
	if a.closed {
		return fmt.Errorf("vector adapter is closed")
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := a.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := a.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return a.saveMetadata(a.path + ".meta")
}

func (a *HNSWVectorAdapter) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := vectorMetadata{
		IDMap:   a.idMap,
		Chunks:  a.chunks,
		DocKeys: a.docKeys,
		NextKey: a.nextKey,
		Config:  a.config,
	}

	enc := gob.NewEncoder(file)
	if err := enc.Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp metadata file", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// load reads a previously saved graph and its metadata sidecar.
func (a *HNSWVectorAdapter) load() error {
	if err := a.loadMetadata(a.path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := a.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	return nil
}

func (a *HNSWVectorAdapter) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta vectorMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	a.idMap = meta.IDMap
	a.chunks = meta.Chunks
	a.docKeys = meta.DocKeys
	a.nextKey = meta.NextKey
	a.config = meta.Config
	a.keyMap = make(map[uint64]string, len(a.idMap))
	for key, graphKey := range a.idMap {
		a.keyMap[graphKey] = key
	}

	return nil
}

func (a *HNSWVectorAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.graph = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance value to a similarity score in [0,1]
// (approximately, for cosine; l2 asymptotically approaches it).
func distanceToScore(distance float32, metric string) float32 {
	if metric == "l2" {
		return 1.0 / (1.0 + distance)
	}
	return 1.0 - distance/2.0
}
