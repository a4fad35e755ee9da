package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-docs/docindex/internal/store"
)

// ErrNilDependency is returned when a required Engine dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine is the query-time hybrid search orchestrator: it fans a query out
// to both adapters concurrently, fuses the two result sets with the
// requested Method, and returns a single ranked list. It owns no write
// path — indexmgr and queue own ingestion, Engine only reads.
type Engine struct {
	vector   store.VectorAdapter
	keyword  store.KeywordAdapter
	embedder QueryEmbedder

	classifier Classifier
	rrf        *RRFFusion
	weighted   *WeightedFusion
	config     EngineConfig
}

// NewEngine builds an Engine. classifier may be nil, in which case
// MethodAdaptive uses the balanced QueryTypeMixed weights with Weighted
// fusion.
func NewEngine(vector store.VectorAdapter, keyword store.KeywordAdapter, embedder QueryEmbedder, classifier Classifier, config EngineConfig) (*Engine, error) {
	if vector == nil {
		return nil, fmt.Errorf("%w: vector adapter is required", ErrNilDependency)
	}
	if keyword == nil {
		return nil, fmt.Errorf("%w: keyword adapter is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: query embedder is required", ErrNilDependency)
	}
	if config.DefaultTopK <= 0 {
		config = DefaultEngineConfig()
	}
	return &Engine{
		vector:     vector,
		keyword:    keyword,
		embedder:   embedder,
		classifier: classifier,
		rrf:        NewRRFFusionWithK(config.RRFConstant),
		weighted:   &WeightedFusion{ConsensusBoost: config.ConsensusBoost},
		config:     config,
	}, nil
}

// Search executes a hybrid search: it oversamples both adapters, fuses with
// the requested Method, and returns the top q.TopK Hits.
func (e *Engine) Search(ctx context.Context, q Query) ([]Hit, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = e.config.DefaultTopK
	}

	method := q.Method
	if method == "" {
		method = e.config.DefaultMethod
	}

	weights := e.config.Alpha
	if method == MethodAdaptive {
		if e.classifier != nil {
			_, w, err := e.classifier.Classify(ctx, text)
			if err != nil {
				slog.Warn("query classification failed, falling back to balanced weights", slog.String("error", err.Error()))
				w = WeightsForQueryType(QueryTypeMixed)
			}
			weights = w
		} else {
			weights = WeightsForQueryType(QueryTypeMixed)
		}
	}

	oversample := maxInt(topK*e.config.OversampleFactor, topK+e.config.OversampleConst)

	keywordHits, vectorHits, err := e.parallelQuery(ctx, text, oversample, q.Filter)
	if err != nil {
		return nil, err
	}

	var fused []Hit
	switch method {
	case MethodWeighted, MethodAdaptive:
		fused = e.weighted.Fuse(keywordHits, vectorHits, weights)
	default:
		fused = e.rrf.Fuse(keywordHits, vectorHits)
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

// parallelQuery fans the keyword and vector queries out concurrently. Each
// goroutine swallows its own error into a closure variable rather than
// returning it, so the other query can still complete — a failure in one
// adapter degrades to partial results rather than failing the whole search.
// Only when both adapters fail does Search return an error.
func (e *Engine) parallelQuery(ctx context.Context, text string, topK int, filter *store.Filter) ([]store.Hit, []store.Hit, error) {
	g, gctx := errgroup.WithContext(ctx)

	var keywordHits, vectorHits []store.Hit
	var keywordErr, vectorErr error

	g.Go(func() error {
		hits, err := e.keyword.Query(gctx, text, topK, filter)
		if err != nil {
			keywordErr = err
			return nil // don't fail the group — let vector search continue
		}
		keywordHits = hits
		return nil
	})

	g.Go(func() error {
		embedding, err := e.embedder.Embed(gctx, text)
		if err != nil {
			vectorErr = err
			return nil
		}
		hits, err := e.vector.Query(gctx, embedding, topK, filter)
		if err != nil {
			vectorErr = err
			return nil
		}
		vectorHits = hits
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, waitErr
	}

	if keywordErr != nil && vectorErr != nil {
		return nil, nil, errors.Join(keywordErr, vectorErr)
	}
	if keywordErr != nil {
		slog.Warn("keyword query failed, continuing with vector-only results", slog.String("error", keywordErr.Error()))
	}
	if vectorErr != nil {
		slog.Warn("vector query failed, continuing with keyword-only results", slog.String("error", vectorErr.Error()))
	}

	return keywordHits, vectorHits, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Close releases both adapters.
func (e *Engine) Close() error {
	var errs []error
	if err := e.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.keyword.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
