package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashvinar/memory-layer/internal/store"
)

// Candidate is an un-persisted memory produced by one extraction stage,
// still carrying its confidence score for the filter/dedup passes.
type Candidate struct {
	Kind       store.MemoryKind
	Text       string
	Confidence float64
	Snippet    *store.Snippet
	Entities   []string
	TTLSeconds *int64
}

const confidenceFloor = 0.7

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+|\n`)

// windowAroundSentence expands [start,end) to the enclosing sentence
// boundaries within a ±radius character budget, per the specification's
// "snapped to sentence boundaries" rule.
func windowAroundSentence(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]
	relStart := start - lo
	relEnd := end - lo

	left := 0
	if loc := lastBoundaryBefore(window, relStart); loc >= 0 {
		left = loc
	}
	right := len(window)
	if loc := firstBoundaryAfter(window, relEnd); loc >= 0 {
		right = loc
	}
	if left > right {
		left = 0
	}
	return strings.TrimSpace(window[left:right])
}

func lastBoundaryBefore(s string, pos int) int {
	if pos > len(s) {
		pos = len(s)
	}
	best := -1
	for _, loc := range sentenceBoundary.FindAllStringIndex(s[:pos], -1) {
		best = loc[1]
	}
	return best
}

func firstBoundaryAfter(s string, pos int) int {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s) {
		return -1
	}
	loc := sentenceBoundary.FindStringIndex(s[pos:])
	if loc == nil {
		return -1
	}
	return pos + loc[0]
}

// scanDecisions implements the decision heuristic from the specification:
// trigger phrases, ±200-char sentence-snapped windows, and the three
// confidence boosts.
func scanDecisions(text string, triggers []trigMatch) []Candidate {
	var out []Candidate
	for _, m := range triggers {
		if m.Family != familyDecision {
			continue
		}
		window := windowAroundSentence(text, m.Start, m.End, 200)
		if window == "" {
			continue
		}
		confidence := 0.55
		if hasCausalWord(window) {
			confidence += 0.15
		}
		if containsTechnicalTerm(window) {
			confidence += 0.05
		}
		if hasCapitalizedEntity(window) {
			confidence += 0.10
		}
		out = append(out, Candidate{Kind: store.KindDecision, Text: window, Confidence: confidence})
	}
	return out
}

func hasCausalWord(window string) bool {
	for _, m := range scanFamily(automata.causal, canonicalize(window), familyCausal) {
		_ = m
		return true
	}
	return false
}

// scanTasks implements the task heuristic: triggers plus urgency
// detection, which also decides the memory's TTL.
func scanTasks(text string, triggers []trigMatch) []Candidate {
	var out []Candidate
	for _, m := range triggers {
		if m.Family != familyTask {
			continue
		}
		window := windowAroundSentence(text, m.Start, m.End, 200)
		if window == "" {
			continue
		}
		confidence := 0.75
		urgent := len(scanFamily(automata.urgency, canonicalize(window), familyUrgency)) > 0
		ttl := int64(7 * 24 * 3600)
		if urgent {
			confidence += 0.20
			ttl = 2 * 24 * 3600
		}
		out = append(out, Candidate{Kind: store.KindTask, Text: window, Confidence: confidence, TTLSeconds: &ttl})
	}
	return out
}

var (
	keyValuePattern  = regexp.MustCompile(`(?m)^\s*([A-Za-z][\w -]{0,40}):\s+(.+)$`)
	definitionIsYPat = regexp.MustCompile(`(?i)\b([A-Z][\w]{1,40})\s+is\s+([^.?!\n]{3,200})`)
	definitionMeans  = regexp.MustCompile(`(?i)\b([A-Z][\w]{1,40})\s+means\s+([^.?!\n]{3,200})`)
)

// scanFacts implements the fact heuristic: key/value lines and
// definitional sentences, rejecting bare questions or exclamations.
func scanFacts(text string) []Candidate {
	var out []Candidate

	for _, m := range keyValuePattern.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(m[2])
		if isQuestionOrExclamation(value) {
			continue
		}
		out = append(out, Candidate{
			Kind:       store.KindFact,
			Text:       fmt.Sprintf("%s: %s", strings.TrimSpace(m[1]), value),
			Confidence: 0.72,
		})
	}

	for _, pat := range []*regexp.Regexp{definitionIsYPat, definitionMeans} {
		for _, loc := range pat.FindAllStringSubmatchIndex(text, -1) {
			// The match stops before '?' or '!', so the byte right after it
			// tells whether the sentence is a question or exclamation.
			if loc[1] < len(text) && (text[loc[1]] == '?' || text[loc[1]] == '!') {
				continue
			}
			sentence := strings.TrimSpace(text[loc[0]:loc[1]])
			if isQuestionOrExclamation(sentence) {
				continue
			}
			out = append(out, Candidate{Kind: store.KindFact, Text: sentence, Confidence: 0.75, Entities: []string{text[loc[2]:loc[3]]}})
		}
	}

	return out
}

func isQuestionOrExclamation(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!")
}

// filterByConfidence drops every candidate below confidenceFloor.
func filterByConfidence(cands []Candidate) []Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.Confidence >= confidenceFloor {
			out = append(out, c)
		}
	}
	return out
}

// dedupeCandidates collapses candidates whose normalized text is equal,
// keeping the highest-confidence survivor.
func dedupeCandidates(cands []Candidate) []Candidate {
	best := map[string]Candidate{}
	order := []string{}
	for _, c := range cands {
		key := normalizeText(c.Text)
		if existing, ok := best[key]; !ok || c.Confidence > existing.Confidence {
			if !ok {
				order = append(order, key)
			}
			best[key] = c
		}
	}
	out := make([]Candidate, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeText(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
