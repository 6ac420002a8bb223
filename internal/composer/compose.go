package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/search"
	"github.com/ashvinar/memory-layer/internal/store"
)

const overRetrieveFactor = 3

// Composer builds context capsules against the shared store and maintains
// the per-thread capsule history used for delta responses and undo.
type Composer struct {
	Store    *store.Store
	Embedder embedding.Embedder
	Cache    *ThreadCache
	Log      *logrus.Entry
}

// New builds a Composer with a fresh thread cache.
func New(st *store.Store, emb embedding.Embedder, log *logrus.Entry) *Composer {
	return &Composer{Store: st, Embedder: emb, Cache: NewThreadCache(capsuleHistoryPerThread), Log: log}
}

// Compose implements POST /v1/context: build a query from the request,
// hybrid-search and scope-filter candidates, greedily select within the
// token budget, and render the chosen style — or, when the client names a
// still-cached prior capsule, render only the delta against it.
func (cp *Composer) Compose(ctx context.Context, req Request) (Capsule, error) {
	req.Normalize()
	if req.Style == "" {
		req.Style = StyleForBudget(req.BudgetTokens)
	}

	unlock := cp.Cache.Lock(req.ThreadKey)
	defer unlock()

	query := cp.buildQuery(ctx, req)
	candidates, provenance, err := cp.retrieveCandidates(ctx, query, req)
	if err != nil {
		return Capsule{}, err
	}

	selected := selectGreedy(candidates, req.Style, req.BudgetTokens)
	now := time.Now().UTC()

	capsule := Capsule{
		CapsuleID:  ids.New(ids.Capsule, now.UnixMilli()),
		TTLSeconds: int64(defaultTTL.Seconds()),
		Style:      req.Style,
	}

	if req.LastCapsuleID != "" {
		if prior, ok := cp.Cache.Get(req.ThreadKey, req.LastCapsuleID, now); ok {
			capsule.DeltaOf = req.LastCapsuleID
			return cp.renderDelta(capsule, selected, prior, provenance, req, now), nil
		}
	}

	capsule.PreambleText = renderCapsule(selected, req.Style, req.TopicHint, req.Intent)
	capsule.Messages = []Message{{Role: "system", Content: capsule.PreambleText}}
	capsule.Provenance = provenanceFor(selected, provenance)
	capsule.TokenCount = EstimateTokens(capsule.PreambleText)

	cp.Cache.Put(req.ThreadKey, capsule, memoryIDs(selected), now)
	return capsule, nil
}

func (cp *Composer) renderDelta(capsule Capsule, selected []store.Memory, prior cachedCapsule, provenance map[string]ProvenanceRef, req Request, now time.Time) Capsule {
	newIDs := memoryIDs(selected)
	sameSet := len(newIDs) == len(prior.memoryIDs)
	if sameSet {
		for _, id := range newIDs {
			if !prior.memoryIDs[id] {
				sameSet = false
				break
			}
		}
	}

	if sameSet {
		capsule.PreambleText = "Up to date: no new memories since the last capsule."
		capsule.Messages = []Message{}
		capsule.Provenance = []ProvenanceRef{}
		capsule.TokenCount = EstimateTokens(capsule.PreambleText)
		cp.Cache.Put(req.ThreadKey, capsule, newIDs, now)
		return capsule
	}

	var delta []store.Memory
	for _, m := range selected {
		if !prior.memoryIDs[m.ID] {
			delta = append(delta, m)
		}
	}

	body := renderBody(delta, req.Style)
	capsule.PreambleText = fmt.Sprintf("Delta since capsule %s:%s", req.LastCapsuleID, body)
	capsule.Messages = []Message{{Role: "system", Content: capsule.PreambleText}}
	capsule.Provenance = provenanceFor(delta, provenance)
	capsule.TokenCount = EstimateTokens(capsule.PreambleText)

	cp.Cache.Put(req.ThreadKey, capsule, newIDs, now)
	return capsule
}

// framingHeader returns the leading framing line for the given style;
// renderCapsule opens every full capsule with it. renderDelta does not use
// it: a delta opens with its own "Delta since capsule" line.
func framingHeader(style, topicHint, intent string) string {
	switch style {
	case "short":
		return shortFraming(topicHint, intent)
	case "detailed":
		return detailedFraming(topicHint, intent)
	default:
		return standardFraming(topicHint, intent)
	}
}

func (cp *Composer) buildQuery(ctx context.Context, req Request) string {
	parts := []string{}
	if req.TopicHint != "" {
		parts = append(parts, req.TopicHint)
	}
	if req.Intent != "" {
		parts = append(parts, req.Intent)
	}
	if req.ThreadKey != "" {
		if turns, err := cp.Store.ListTurnsByThread(ctx, req.ThreadKey); err == nil && len(turns) > 0 {
			last := turns[len(turns)-1]
			text := last.UserText
			if last.AIText != "" {
				text = text + " " + last.AIText
			}
			parts = append(parts, tail(text, 200))
		}
	}
	return strings.Join(parts, " ")
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func (cp *Composer) retrieveCandidates(ctx context.Context, query string, req Request) ([]store.Memory, map[string]ProvenanceRef, error) {
	expected := capacityFor(req.Style)
	hits, err := search.Hybrid(ctx, cp.Store, cp.Embedder, query, expected*overRetrieveFactor, search.Filter{})
	if err != nil {
		return nil, nil, err
	}

	provenance := map[string]ProvenanceRef{}
	out := make([]store.Memory, 0, len(hits))
	for _, h := range hits {
		if !inScopes(h.Memory.SourceApp, req.Scopes) {
			continue
		}
		out = append(out, h.Memory)
		provenance[h.Memory.ID] = ProvenanceRef{
			Type: scopeFor(h.Memory.SourceApp),
			Ref:  h.Memory.ID,
			When: h.Memory.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return out, provenance, nil
}

func provenanceFor(memories []store.Memory, byID map[string]ProvenanceRef) []ProvenanceRef {
	out := make([]ProvenanceRef, 0, len(memories))
	for _, m := range memories {
		if p, ok := byID[m.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

func memoryIDs(memories []store.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}

// Undo removes a capsule from the thread cache and reports whether it was
// there; undoing an unknown, expired or already removed capsule returns
// false. The composer API passes the result on as the response's success
// field and never turns it into an HTTP error.
func (cp *Composer) Undo(threadKey, capsuleID string) bool {
	return cp.Cache.Remove(threadKey, capsuleID, time.Now().UTC())
}
