package agentic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/store"
)

// Default thresholds from the specification's evolution algorithm; kept as
// package-level constants since the spec calls them "compile-time
// configurable constants per deployment."
const (
	topK             = 8
	evolutionThresh  = 0.75
	linkThresh       = 0.65
	keywordTagCap    = 32
)

// Evolve runs the per-ingestion evolution pass for a freshly persisted
// memory: it seeds the memory's own agentic record, then finds similar
// existing memories and either merges into them or links to them.
func Evolve(ctx context.Context, st *store.Store, emb embedding.Embedder, mem store.Memory, vec []float32, log *logrus.Entry) error {
	now := time.Now().UTC()

	seed := store.AgenticRecord{
		MemoryID:     mem.ID,
		Keywords:     DeriveKeywords(mem.Text),
		Tags:         DeriveTags(mem.Kind, mem.Entities),
		Category:     CategoryFor(mem.Kind),
		CreatedAt:    now,
		LastAccessed: now,
		Evolution: []store.EvolutionEntry{
			{Timestamp: now, Event: "ingested", Detail: string(mem.SourceApp)},
		},
	}
	if err := st.UpsertAgentic(ctx, seed); err != nil {
		return fmt.Errorf("agentic: seed record: %w", err)
	}

	if vec == nil {
		return nil
	}

	candidates, err := st.VectorSearch(ctx, vec, topK+1)
	if err != nil {
		return fmt.Errorf("agentic: candidate search: %w", err)
	}

	for _, c := range candidates {
		if c.MemoryID == mem.ID {
			continue
		}
		similarity := 1 - c.Distance
		if similarity < linkThresh {
			continue
		}

		candMem, err := st.GetMemory(ctx, c.MemoryID)
		if err != nil {
			log.WithError(err).WithField("candidate", c.MemoryID).Warn("agentic: skip missing candidate")
			continue
		}
		if candMem.Topic != mem.Topic {
			similarity *= 0.9
		}

		if similarity >= evolutionThresh {
			if err := mergeInto(ctx, st, c.MemoryID, seed, mem.Entities, candMem.Entities, now); err != nil {
				log.WithError(err).Warn("agentic: merge failed")
			}
			continue
		}

		rationale := sharedKeywordSummary(seed.Keywords, DeriveKeywords(candMem.Text))
		if err := st.UpsertLink(ctx, store.Link{Source: mem.ID, Target: c.MemoryID, Strength: similarity, Rationale: rationale}); err != nil {
			log.WithError(err).Warn("agentic: link upsert failed")
		}
		if err := st.UpsertLink(ctx, store.Link{Source: c.MemoryID, Target: mem.ID, Strength: similarity, Rationale: rationale}); err != nil {
			log.WithError(err).Warn("agentic: reverse link upsert failed")
		}
	}

	return nil
}

func mergeInto(ctx context.Context, st *store.Store, targetID string, newRec store.AgenticRecord, newEntities, targetEntities []string, now time.Time) error {
	target, err := st.GetAgentic(ctx, targetID)
	if err != nil {
		return err
	}

	target.Keywords = mergeCapped(target.Keywords, newRec.Keywords, keywordTagCap)
	target.Tags = mergeCapped(target.Tags, newRec.Tags, keywordTagCap)

	if target.Category == store.CategoryFact && newRec.Category == store.CategoryDecision && entitiesOverlap(newEntities, targetEntities) {
		target.Category = store.CategoryDecision
	}

	target.Evolution = append(target.Evolution, store.EvolutionEntry{
		Timestamp: now,
		Event:     "evolved",
		Detail:    "merged_with:" + newRec.MemoryID,
	})

	return st.UpsertAgentic(ctx, target)
}

// entitiesOverlap reports whether a and b share at least one entity,
// case-insensitively.
func entitiesOverlap(a, b []string) bool {
	inB := map[string]bool{}
	for _, e := range b {
		inB[strings.ToLower(e)] = true
	}
	for _, e := range a {
		if inB[strings.ToLower(e)] {
			return true
		}
	}
	return false
}

func sharedKeywordSummary(a, b []string) string {
	inB := map[string]bool{}
	for _, k := range b {
		inB[k] = true
	}
	var shared []string
	for _, k := range a {
		if inB[k] {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	if len(shared) == 0 {
		return "related by semantic similarity"
	}
	if len(shared) > 5 {
		shared = shared[:5]
	}
	return "shared keywords: " + joinComma(shared)
}

func joinComma(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += ", "
		}
		out += w
	}
	return out
}
