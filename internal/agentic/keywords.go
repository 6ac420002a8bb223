// Package agentic maintains the evolving memory graph: keyword/tag
// derivation at ingestion time, and the similarity-driven evolution pass
// that merges related memories and links them together.
package agentic

import (
	"regexp"
	"sort"
	"strings"

	"github.com/orsinium-labs/stopwords"

	"github.com/ashvinar/memory-layer/internal/store"
)

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_-]*`)

const maxKeywords = 12

// DeriveKeywords extracts a frequency-ranked, stopword-filtered keyword
// list from memory text, used to seed a new agentic record and as the
// basis for the evolution pass's keyword merging.
func DeriveKeywords(text string) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 3 || stopwords.English.Has(w) {
			continue
		}
		if _, seen := counts[w]; !seen {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// DeriveTags builds the synthetic tag set for a freshly ingested memory
// from its kind and any entities the heuristic/LLM pass detected.
func DeriveTags(kind store.MemoryKind, entities []string) []string {
	tags := []string{string(kind)}
	for _, e := range entities {
		tags = append(tags, strings.ToLower(e))
	}
	return dedupe(tags)
}

// CategoryFor maps a memory kind onto the coarser agentic category used
// by graph nodes.
func CategoryFor(kind store.MemoryKind) store.AgenticCategory {
	switch kind {
	case store.KindDecision:
		return store.CategoryDecision
	case store.KindTask:
		return store.CategoryTask
	case store.KindSnippet:
		return store.CategoryCode
	default:
		return store.CategoryFact
	}
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// mergeCapped union-merges b into a, preserving a's order, appending new
// elements from b in their own order, and capping the result length.
func mergeCapped(a, b []string, cap int) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}
