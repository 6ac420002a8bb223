package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashvinar/memory-layer/internal/store"
)

// capacityFor is the per-style maximum memory count named in the
// specification.
func capacityFor(style string) int {
	switch style {
	case "short":
		return 3
	case "detailed":
		return 12
	default:
		return 7
	}
}

// snippetLineLimit caps how many lines of an inlined snippet survive
// rendering, per style.
func snippetLineLimit(style string) int {
	if style == "detailed" {
		return 8
	}
	return 3
}

// selectGreedy walks candidates in their existing (score-descending) order,
// admitting each until the style's capacity or the token budget (minus the
// framing reserve) would be exceeded.
func selectGreedy(candidates []store.Memory, style string, budgetTokens int) []store.Memory {
	framingReserve := (budgetTokens*15 + 99) / 100
	available := budgetTokens - framingReserve
	if available < 0 {
		available = 0
	}
	capacity := capacityFor(style)

	var selected []store.Memory
	used := 0
	for _, m := range candidates {
		if len(selected) >= capacity {
			break
		}
		cost := EstimateTokens(renderItem(m, style))
		if used+cost > available {
			continue
		}
		selected = append(selected, m)
		used += cost
	}
	return selected
}

// renderCapsule produces the preamble text for a freshly selected memory
// set: the style's framing line followed by its body.
func renderCapsule(memories []store.Memory, style, topicHint, intent string) string {
	return framingHeader(style, topicHint, intent) + renderBody(memories, style)
}

// renderBody renders the grouped memory listing alone, without a framing
// header, so delta responses can splice their own framing in front of it.
func renderBody(memories []store.Memory, style string) string {
	var b strings.Builder
	switch style {
	case "short":
		for _, m := range memories {
			b.WriteString("\n- ")
			b.WriteString(oneLine(m.Text))
		}
	default: // standard, detailed
		for _, g := range groupedByKind(memories) {
			b.WriteString(fmt.Sprintf("\n\n%s:\n", kindLabel(g.kind)))
			for _, m := range g.group {
				b.WriteString(renderItem(m, style))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func renderItem(m store.Memory, style string) string {
	switch style {
	case "short":
		return "- " + oneLine(m.Text)
	case "detailed":
		s := fmt.Sprintf("- %s", m.Text)
		if m.Snippet != nil {
			s += "\n" + renderSnippet(*m.Snippet, snippetLineLimit(style))
		}
		if len(m.Entities) > 0 {
			s += "\n  entities: " + strings.Join(m.Entities, ", ")
		}
		return s
	default:
		s := fmt.Sprintf("- %s", m.Text)
		if m.Snippet != nil {
			s += "\n" + renderSnippet(*m.Snippet, snippetLineLimit(style))
		}
		return s
	}
}

func renderSnippet(s store.Snippet, lineLimit int) string {
	lines := strings.Split(strings.TrimRight(s.Text, "\n"), "\n")
	if len(lines) > lineLimit {
		lines = lines[:lineLimit]
	}
	header := s.Title
	if s.Location != "" {
		header = fmt.Sprintf("%s (%s)", header, s.Location)
	}
	return fmt.Sprintf("  %s\n  ```\n  %s\n  ```", header, strings.Join(lines, "\n  "))
}

func oneLine(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > 140 {
		return text[:140] + "…"
	}
	return text
}

func shortFraming(topicHint, intent string) string {
	if topicHint != "" {
		return fmt.Sprintf("Context for %s:", topicHint)
	}
	if intent != "" {
		return fmt.Sprintf("Context for: %s", intent)
	}
	return "Relevant context:"
}

func standardFraming(topicHint, intent string) string {
	var b strings.Builder
	b.WriteString("Here is relevant memory context")
	if topicHint != "" {
		b.WriteString(fmt.Sprintf(" for %s", topicHint))
	}
	b.WriteString(", grouped by kind.")
	if intent != "" {
		b.WriteString(fmt.Sprintf("\nIntent: %s", intent))
	}
	return b.String()
}

func detailedFraming(topicHint, intent string) string {
	var b strings.Builder
	b.WriteString("Full relevant memory context")
	if topicHint != "" {
		b.WriteString(fmt.Sprintf(" for %s", topicHint))
	}
	b.WriteString(":")
	if intent != "" {
		b.WriteString(fmt.Sprintf("\nIntent: %s", intent))
	}
	return b.String()
}

func kindLabel(k store.MemoryKind) string {
	switch k {
	case store.KindDecision:
		return "Decisions"
	case store.KindTask:
		return "Tasks"
	case store.KindSnippet:
		return "Snippets"
	default:
		return "Facts"
	}
}

// groupedByKind buckets memories by kind and orders the buckets by kindRank
// (decisions, tasks, facts, then the rest), keeping input order within a
// bucket. Each kindGroupTriple pairs a kind with its memories.
func groupedByKind(memories []store.Memory) []kindGroupTriple {
	order := []store.MemoryKind{}
	buckets := map[store.MemoryKind][]store.Memory{}
	for _, m := range memories {
		if _, ok := buckets[m.Kind]; !ok {
			order = append(order, m.Kind)
		}
		buckets[m.Kind] = append(buckets[m.Kind], m)
	}
	sort.SliceStable(order, func(i, j int) bool { return kindRank(order[i]) < kindRank(order[j]) })
	out := make([]kindGroupTriple, 0, len(order))
	for _, k := range order {
		out = append(out, kindGroupTriple{k, buckets[k]})
	}
	return out
}

type kindGroupTriple struct {
	kind  store.MemoryKind
	group []store.Memory
}

func kindRank(k store.MemoryKind) int {
	switch k {
	case store.KindDecision:
		return 0
	case store.KindTask:
		return 1
	case store.KindFact:
		return 2
	default:
		return 3
	}
}
