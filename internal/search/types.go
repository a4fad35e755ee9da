// Package search implements the Hybrid Search engine: concurrent fan-out
// over the Vector and Keyword adapters, three fusion methods (RRF,
// Weighted, Adaptive), and the query classifier Adaptive uses to pick its
// weights.
package search

import (
	"context"
	"time"

	"github.com/kestrel-docs/docindex/internal/store"
)

// Method selects the fusion algorithm.
type Method string

const (
	MethodRRF      Method = "rrf"
	MethodWeighted Method = "weighted"
	MethodAdaptive Method = "adaptive"
)

// DefaultOversampleFactor and DefaultOversampleConstant set how far each
// adapter is queried beyond top_k before fusion narrows back down: k_v =
// k_k = max(top_k * M, top_k + C).
const (
	DefaultOversampleFactor   = 4
	DefaultOversampleConstant = 20
)

// Query describes one hybrid search request.
type Query struct {
	Text   string
	TopK   int
	Method Method
	Filter *store.Filter
}

// Hit is one fused search result.
type Hit struct {
	ChunkID store.ChunkId
	Payload store.Chunk

	// Score is the final fused score used for ranking.
	Score float64

	KeywordScore float64
	KeywordRank  int // 1-indexed, 0 if absent from the keyword result set
	VectorScore  float64
	VectorRank   int // 1-indexed, 0 if absent from the vector result set
	InBothLists  bool
}

// QueryType classifies a query for the Adaptive fusion method.
type QueryType string

const (
	// QueryTypeModelNumber is a query that looks like a part/model number
	// or an exact quoted phrase — keyword matching dominates.
	QueryTypeModelNumber QueryType = "model_number"
	// QueryTypeDictionary is a natural-language, dictionary-word query —
	// semantic similarity dominates.
	QueryTypeDictionary QueryType = "dictionary"
	// QueryTypeMixed is anything that isn't clearly one or the other.
	QueryTypeMixed QueryType = "mixed"
)

// Weights are the fusion weights assigned to the vector and keyword result
// sets respectively; they sum to 1.0.
type Weights struct {
	Vector  float64
	Keyword float64
}

// WeightsForQueryType maps a classified query type to the fusion weights
// the Adaptive method feeds into WeightedFusion.
func WeightsForQueryType(qt QueryType) Weights {
	switch qt {
	case QueryTypeModelNumber:
		return Weights{Vector: 0.3, Keyword: 0.7}
	case QueryTypeDictionary:
		return Weights{Vector: 0.8, Keyword: 0.2}
	default:
		return Weights{Vector: 0.5, Keyword: 0.5}
	}
}

// Classifier classifies a query, returning its type and the fusion weights
// to use for it.
type Classifier interface {
	Classify(ctx context.Context, query string) (QueryType, Weights, error)
}

// QueryEmbedder produces an embedding for query text. Satisfied
// structurally by internal/extract's Vectorizer — search doesn't import
// extract, since the search engine only needs the one method and
// shouldn't be coupled to extraction concerns.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	DefaultTopK      int
	OversampleFactor int
	OversampleConst  int
	RRFConstant      int
	ConsensusBoost   float64

	// Alpha is the fixed vector/keyword split MethodWeighted uses when
	// invoked directly (hybrid.alpha). MethodAdaptive ignores this and
	// derives its own weights from the classifier instead.
	Alpha Weights

	SearchTimeout time.Duration
	DefaultMethod Method
}

// DefaultEngineConfig returns the engine's default tuning parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK:      10,
		OversampleFactor: DefaultOversampleFactor,
		OversampleConst:  DefaultOversampleConstant,
		RRFConstant:      DefaultRRFConstant,
		ConsensusBoost:   0.1,
		Alpha:            Weights{Vector: 0.5, Keyword: 0.5},
		SearchTimeout:    5 * time.Second,
		DefaultMethod:    MethodRRF,
	}
}
