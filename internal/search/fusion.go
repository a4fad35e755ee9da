package search

import (
	"sort"

	"github.com/kestrel-docs/docindex/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search, OpenSearch,
// etc.) and travels well without per-corpus retuning.
const DefaultRRFConstant = 60

// DefaultConsensusBoost is the fixed multiplicative bonus Weighted fusion
// applies to a chunk both adapters returned.
const DefaultConsensusBoost = 0.1

// fuseCandidate tracks one chunk's contribution from both result lists
// while fusion is in progress.
type fuseCandidate struct {
	chunkID     store.ChunkId
	payload     store.Chunk
	keywordRank int // 1-indexed, 0 if absent
	keywordHit  float32
	vectorRank  int // 1-indexed, 0 if absent
	vectorHit   float32
}

// indexHits merges two Hit lists into a candidate map, preserving the order
// candidates were first seen in (keyword list first, then vector-only
// additions) so fusion output is deterministic before sorting.
func indexHits(keyword, vector []store.Hit) (map[store.ChunkId]*fuseCandidate, []store.ChunkId) {
	candidates := make(map[store.ChunkId]*fuseCandidate)
	var order []store.ChunkId

	get := func(id store.ChunkId, payload store.Chunk) *fuseCandidate {
		c, ok := candidates[id]
		if !ok {
			c = &fuseCandidate{chunkID: id, payload: payload}
			candidates[id] = c
			order = append(order, id)
		}
		return c
	}

	for i, h := range keyword {
		c := get(h.ChunkID, h.Payload)
		c.keywordRank = i + 1
		c.keywordHit = h.Score
	}
	for i, h := range vector {
		c := get(h.ChunkID, h.Payload)
		c.vectorRank = i + 1
		c.vectorHit = h.Score
	}
	return candidates, order
}

// RRFFusion combines keyword and vector search results using Reciprocal
// Rank Fusion: RRF_score(d) = Σ 1/(k+rank_i), with a chunk absent from a
// list contributing at missing_rank = max(len(keyword), len(vector)) + 1.
type RRFFusion struct {
	K int // RRF smoothing constant (default: 60)
}

// NewRRFFusion creates a new RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a new RRF fusion with custom k value.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines keyword and vector hits using Reciprocal Rank Fusion.
//
// Results are sorted by: Score (desc) → InBothLists (true first) →
// KeywordScore (desc) → vector rank (asc, absent last) → ChunkID (asc).
func (f *RRFFusion) Fuse(keyword, vector []store.Hit) []Hit {
	if len(keyword) == 0 && len(vector) == 0 {
		return []Hit{}
	}

	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	missingRank := calculateMissingRank(len(keyword), len(vector))
	candidates, order := indexHits(keyword, vector)

	results := make([]Hit, 0, len(order))
	for _, id := range order {
		c := candidates[id]

		kRank := c.keywordRank
		if kRank == 0 {
			kRank = missingRank
		}
		vRank := c.vectorRank
		if vRank == 0 {
			vRank = missingRank
		}

		score := 1.0/float64(k+kRank) + 1.0/float64(k+vRank)

		results = append(results, Hit{
			ChunkID:      c.chunkID,
			Payload:      c.payload,
			Score:        score,
			KeywordScore: float64(c.keywordHit),
			KeywordRank:  c.keywordRank,
			VectorScore:  float64(c.vectorHit),
			VectorRank:   c.vectorRank,
			InBothLists:  c.keywordRank > 0 && c.vectorRank > 0,
		})
	}

	sortHits(results)
	normalizeHits(results)
	return results
}

// calculateMissingRank returns the rank assigned to a chunk absent from one
// of the two lists: one past the longer list's length.
func calculateMissingRank(keywordLen, vectorLen int) int {
	if keywordLen > vectorLen {
		return keywordLen + 1
	}
	return vectorLen + 1
}

// WeightedFusion combines keyword and vector hits by min-max normalizing
// each list to [0,1] and blending with a weighted sum, then applying a
// fixed consensus bonus to chunks both adapters agreed on. This is the
// Adaptive method's fusion step once a query has been classified and
// assigned weights.
type WeightedFusion struct {
	ConsensusBoost float64
}

// NewWeightedFusion returns a WeightedFusion using DefaultConsensusBoost.
func NewWeightedFusion() *WeightedFusion {
	return &WeightedFusion{ConsensusBoost: DefaultConsensusBoost}
}

// Fuse merges keyword and vector hits using weights (Vector, Keyword sum to
// 1.0 — see WeightsForQueryType).
func (f *WeightedFusion) Fuse(keyword, vector []store.Hit, weights Weights) []Hit {
	if len(keyword) == 0 && len(vector) == 0 {
		return []Hit{}
	}

	boost := f.ConsensusBoost
	if boost <= 0 {
		boost = DefaultConsensusBoost
	}

	kNorm := minMaxNormalize(keyword)
	vNorm := minMaxNormalize(vector)

	candidates, order := indexHits(keyword, vector)

	results := make([]Hit, 0, len(order))
	for _, id := range order {
		c := candidates[id]

		var kScore, vScore float64
		if c.keywordRank > 0 {
			kScore = kNorm[id]
		}
		if c.vectorRank > 0 {
			vScore = vNorm[id]
		}

		score := weights.Vector*vScore + weights.Keyword*kScore
		inBoth := c.keywordRank > 0 && c.vectorRank > 0
		if inBoth {
			score *= 1 + boost
		}

		results = append(results, Hit{
			ChunkID:      c.chunkID,
			Payload:      c.payload,
			Score:        score,
			KeywordScore: float64(c.keywordHit),
			KeywordRank:  c.keywordRank,
			VectorScore:  float64(c.vectorHit),
			VectorRank:   c.vectorRank,
			InBothLists:  inBoth,
		})
	}

	sortHits(results)
	normalizeHits(results)
	return results
}

// minMaxNormalize scales each hit's score into [0,1] within its own list. A
// single-element or zero-spread list normalizes every member to 1.0.
func minMaxNormalize(hits []store.Hit) map[store.ChunkId]float64 {
	out := make(map[store.ChunkId]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	spread := float64(max - min)
	for _, h := range hits {
		if spread == 0 {
			out[h.ChunkID] = 1.0
			continue
		}
		out[h.ChunkID] = float64(h.Score-min) / spread
	}
	return out
}

// sortHits implements deterministic ordering: Score (desc) → InBothLists
// (true first) → KeywordScore (desc) → vector rank (lower/closer-to-top
// first, absent ranks last) → ChunkID (lexically, ascending).
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.KeywordScore != b.KeywordScore {
			return a.KeywordScore > b.KeywordScore
		}
		ar, br := effectiveVectorRank(a), effectiveVectorRank(b)
		if ar != br {
			return ar < br
		}
		return a.ChunkID.Key() < b.ChunkID.Key()
	})
}

func effectiveVectorRank(h Hit) int {
	if h.VectorRank == 0 {
		return int(^uint(0) >> 1) // absent ranks sort last
	}
	return h.VectorRank
}

// normalizeHits scales all scores to the 0-1 range, using the maximum score
// as the reference (becomes 1.0). No-op on an empty slice or all-zero scores.
func normalizeHits(hits []Hit) {
	if len(hits) == 0 {
		return
	}
	max := hits[0].Score
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range hits {
		hits[i].Score /= max
	}
}
