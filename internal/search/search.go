// Package search implements the hybrid lexical + semantic + recency
// ranking shared by the indexing service's /search endpoint and the
// composer's capsule selection query.
package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/merr"
	"github.com/ashvinar/memory-layer/internal/store"
)

// Weights are the hybrid scoring coefficients named in the specification.
const (
	weightLexical  = 0.5
	weightSemantic = 0.3
	weightRecency  = 0.2
	recencyHalfLife = 30.0 // days
)

// Filter narrows the candidate set before scoring.
type Filter struct {
	Topic      string
	Kind       store.MemoryKind
	SourceApp  store.SourceApp
}

// Result is one ranked hit.
type Result struct {
	Memory store.Memory
	Score  float64
}

// Hybrid runs the three-component scoring described in the specification
// over the top 4*limit lexical candidates.
func Hybrid(ctx context.Context, st *store.Store, emb embedding.Embedder, query string, limit int, filter Filter) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}

	hits, err := st.LexicalSearch(ctx, query, 4*limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	vecs, err := emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "embed search query")
	}
	queryVec := vecs[0]

	minBM25, maxBM25 := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < minBM25 {
			minBM25 = h.Score
		}
		if h.Score > maxBM25 {
			maxBM25 = h.Score
		}
	}

	now := time.Now().UTC()
	var results []Result
	for _, h := range hits {
		mem, err := st.GetMemory(ctx, h.MemoryID)
		if err != nil {
			continue
		}
		if mem.Expired(now) {
			continue
		}
		if !matchesFilter(mem, filter) {
			continue
		}

		bm25Norm := normalize(h.Score, minBM25, maxBM25)

		var semantic float64
		if memVec, err := st.LoadEmbedding(ctx, mem.ID); err == nil && memVec != nil {
			semantic = embedding.CosineSimilarity(queryVec, memVec)
		}

		deltaDays := now.Sub(mem.CreatedAt).Hours() / 24
		recency := math.Exp(-math.Ln2 * deltaDays / recencyHalfLife)

		score := weightLexical*bm25Norm + weightSemantic*semantic + weightRecency*recency
		results = append(results, Result{Memory: mem, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Memory.CreatedAt.Equal(results[j].Memory.CreatedAt) {
			return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// normalize min-max scales score into [0,1], inverting it since sqlite's
// bm25() reports lower-is-better.
func normalize(score, min, max float64) float64 {
	if max == min {
		return 1
	}
	return (max - score) / (max - min)
}

func matchesFilter(m store.Memory, f Filter) bool {
	if f.Topic != "" && m.Topic != f.Topic {
		return false
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.SourceApp != "" && m.SourceApp != f.SourceApp {
		return false
	}
	return true
}
