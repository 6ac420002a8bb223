package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashvinar/memory-layer/internal/store"
)

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")
	fileLineRangePat   = regexp.MustCompile(`\b([\w./-]+\.\w+):L(\d+)-L?(\d+)\b`)
	fileLinePat        = regexp.MustCompile(`\b([\w./-]+\.\w+):L(\d+)\b`)
	identifierNearRef  = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// scanFastPath deterministically produces snippet candidates from fenced
// code blocks and file:line references, per the specification's fast
// path that runs before the confidence-scored heuristics.
func scanFastPath(text string) []Candidate {
	var out []Candidate

	for _, m := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		lang := m[1]
		body := strings.TrimRight(m[2], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		out = append(out, Candidate{
			Kind:       store.KindSnippet,
			Text:       firstLine(body),
			Confidence: 1.0,
			Snippet: &store.Snippet{
				Title:    firstLine(body),
				Text:     body,
				Language: lang,
			},
		})
	}

	for _, m := range fileLineRangePat.FindAllStringSubmatch(text, -1) {
		out = append(out, fileRefCandidate(text, m[1], fmt.Sprintf("L%s-L%s", m[2], m[3])))
	}
	seen := map[string]bool{}
	for _, c := range out {
		if c.Snippet != nil && c.Snippet.Location != "" {
			seen[c.Snippet.Location] = true
		}
	}
	for _, m := range fileLinePat.FindAllStringSubmatch(text, -1) {
		loc := fmt.Sprintf("%s:L%s", m[1], m[2])
		if seen[loc] {
			continue
		}
		out = append(out, fileRefCandidate(text, m[1], "L"+m[2]))
	}

	return out
}

func fileRefCandidate(text, path, lines string) Candidate {
	loc := fmt.Sprintf("%s:%s", path, lines)
	title := loc
	if ident := identifierNear(text, path); ident != "" {
		title = fmt.Sprintf("%s (%s)", loc, ident)
	}
	return Candidate{
		Kind:       store.KindSnippet,
		Text:       title,
		Confidence: 1.0,
		Snippet:    &store.Snippet{Title: title, Location: loc},
		Entities:   identifiersNear(text, path),
	}
}

func identifierNear(text, path string) string {
	idents := identifiersNear(text, path)
	if len(idents) == 0 {
		return ""
	}
	return idents[0]
}

// identifiersNear finds function/class-like identifiers adjacent to a file
// reference, per the specification's "Code: ... plus mentions of
// function/class identifiers adjacent to a file reference" rule.
func identifiersNear(text, path string) []string {
	idx := strings.Index(text, path)
	if idx < 0 {
		return nil
	}
	lo := idx - 80
	if lo < 0 {
		lo = 0
	}
	hi := idx + len(path) + 80
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]

	var out []string
	for _, m := range identifierNearRef.FindAllStringSubmatch(window, -1) {
		out = append(out, m[1])
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "snippet"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
