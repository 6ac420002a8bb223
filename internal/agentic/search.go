package agentic

import (
	"context"
	"strings"

	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/search"
	"github.com/ashvinar/memory-layer/internal/store"
)

// Search implements the /agentic/search endpoint: hybrid content search
// unioned with a keyword/tag/context substring match, since the FTS index
// covers only memory and snippet text, not agentic keywords, tags or context.
func Search(ctx context.Context, st *store.Store, emb embedding.Embedder, query string, limit int) ([]store.AgenticRecord, error) {
	seen := map[string]bool{}
	var out []store.AgenticRecord

	hits, err := search.Hybrid(ctx, st, emb, query, limit, search.Filter{})
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		rec, err := st.GetAgentic(ctx, h.Memory.ID)
		if err != nil {
			continue
		}
		seen[rec.MemoryID] = true
		out = append(out, rec)
	}

	all, err := st.AllAgentic(ctx)
	if err != nil {
		return out, nil
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	for _, rec := range all {
		if len(out) >= limit {
			break
		}
		if seen[rec.MemoryID] || needle == "" {
			continue
		}
		if matchesAny(rec, needle) {
			seen[rec.MemoryID] = true
			out = append(out, rec)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesAny(rec store.AgenticRecord, needle string) bool {
	for _, k := range rec.Keywords {
		if strings.Contains(k, needle) {
			return true
		}
	}
	for _, t := range rec.Tags {
		if strings.Contains(t, needle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(rec.Context), needle)
}
