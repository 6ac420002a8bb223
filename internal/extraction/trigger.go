// Package extraction distills durable memories out of raw turn text: a
// deterministic fast path for code/file references, a heuristic
// pattern-and-confidence scanner, and an optional LLM augmentation pass.
package extraction

import (
	"strings"

	"github.com/coregx/ahocorasick"

	"github.com/ashvinar/memory-layer/internal/store"
)

// triggerFamily names the family a matched phrase belongs to, used by the
// hybrid strategy's "multiple distinct trigger families" complexity check.
type triggerFamily string

const (
	familyDecision triggerFamily = "decision"
	familyTask     triggerFamily = "task"
	familyUrgency  triggerFamily = "urgency"
	familyCausal   triggerFamily = "causal"
)

var decisionPhrases = []string{"decided", "will", "going to", "plan to"}
var taskPhrases = []string{"todo", "need to", "should", "have to", "must"}
var urgencyPhrases = []string{"urgent", "critical", "blocking", "asap"}
var causalPhrases = []string{"because", "since", "due to"}

// technicalTerms is the curated technical-term list used to boost decision
// confidence per the specification's heuristic scoring.
var technicalTerms = map[string]bool{
	"api": true, "database": true, "schema": true, "index": true, "cache": true,
	"queue": true, "server": true, "client": true, "endpoint": true, "token": true,
	"embedding": true, "vector": true, "thread": true, "worker": true, "config": true,
	"deploy": true, "migration": true, "latency": true, "async": true, "sqlite": true,
}

// trigMatch is one located occurrence of a trigger phrase in canonicalized
// (lowercased, length-preserving) text.
type trigMatch struct {
	Family triggerFamily
	Start  int
	End    int
	Phrase string
}

// automatonSet bundles the four Aho-Corasick automata used by the
// extraction pipeline, built once at package init since the trigger
// vocabularies are fixed.
type automatonSet struct {
	decision *ahocorasick.Automaton
	task     *ahocorasick.Automaton
	urgency  *ahocorasick.Automaton
	causal   *ahocorasick.Automaton
}

var automata = buildAutomatonSet()

func buildAutomatonSet() automatonSet {
	build := func(patterns []string) *ahocorasick.Automaton {
		a, err := ahocorasick.NewBuilder().
			AddStrings(patterns).
			SetMatchKind(ahocorasick.LeftmostLongest).
			SetPrefilter(true).
			Build()
		if err != nil {
			panic("extraction: failed to build trigger automaton: " + err.Error())
		}
		return a
	}
	return automatonSet{
		decision: build(decisionPhrases),
		task:     build(taskPhrases),
		urgency:  build(urgencyPhrases),
		causal:   build(causalPhrases),
	}
}

// canonicalize lowercases the ASCII letters of text and keeps every other
// byte as it is, so its byte length never changes and match offsets found
// on the canonicalized form still index directly into the original string.
func canonicalize(text string) string {
	b := []byte(text)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// isWordBoundary reports whether the byte at position i in s is absent or
// not a letter/digit, used to reject mid-word matches like "will" inside
// "willing".
func isWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	return !isAlnum
}

func scanFamily(a *ahocorasick.Automaton, canon string, family triggerFamily) []trigMatch {
	var out []trigMatch
	for _, m := range a.FindAllOverlapping([]byte(canon)) {
		if !isWordBoundary(canon, m.Start-1) || !isWordBoundary(canon, m.End) {
			continue
		}
		out = append(out, trigMatch{Family: family, Start: m.Start, End: m.End, Phrase: canon[m.Start:m.End]})
	}
	return out
}

// scanTriggers returns every trigger-phrase occurrence in text, across all
// families.
func scanTriggers(text string) []trigMatch {
	canon := canonicalize(text)
	var out []trigMatch
	out = append(out, scanFamily(automata.decision, canon, familyDecision)...)
	out = append(out, scanFamily(automata.task, canon, familyTask)...)
	out = append(out, scanFamily(automata.urgency, canon, familyUrgency)...)
	out = append(out, scanFamily(automata.causal, canon, familyCausal)...)
	return out
}

// distinctFamilies counts how many of the trigger families above are
// present at least once, used by the hybrid strategy's complexity check.
func distinctFamilies(matches []trigMatch) int {
	seen := map[triggerFamily]bool{}
	for _, m := range matches {
		seen[m.Family] = true
	}
	return len(seen)
}

// hasCapitalizedEntity reports whether text contains at least one word of
// two or more bytes that starts with an ASCII capital letter, a cheap
// stand-in for named-entity detection. Sentence-initial words count too.
func hasCapitalizedEntity(text string) bool {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if len(word) < 2 {
			continue
		}
		if word[0] >= 'A' && word[0] <= 'Z' && strings.ToLower(word) != word {
			return true
		}
	}
	return false
}

func containsTechnicalTerm(text string) bool {
	for _, tok := range strings.Fields(canonicalize(text)) {
		tok = strings.Trim(tok, ".,;:!?()\"'")
		if technicalTerms[tok] {
			return true
		}
	}
	return false
}

// sourceAppFor resolves the Memory.SourceApp scope tag from a turn's
// source: the turn's source app, unchanged.
func sourceAppFor(t store.Turn) store.SourceApp {
	return t.Source.App
}
