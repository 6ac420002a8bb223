package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanDecisionsBoostsConfidenceForCausalAndEntity(t *testing.T) {
	text := "After the outage we decided to use SQLite because it simplifies Deployment for Users."
	triggers := scanTriggers(text)
	cands := scanDecisions(text, triggers)
	require.NotEmpty(t, cands)
	require.GreaterOrEqual(t, cands[0].Confidence, 0.55+0.15+0.10)
}

func TestScanTasksUrgentGetsShortTTL(t *testing.T) {
	text := "TODO: this is urgent, need to rotate the credentials asap."
	triggers := scanTriggers(text)
	cands := scanTasks(text, triggers)
	require.NotEmpty(t, cands)
	found := false
	for _, c := range cands {
		if c.TTLSeconds != nil && *c.TTLSeconds == 2*24*3600 {
			found = true
		}
	}
	require.True(t, found)
}

func TestScanTasksOrdinaryClearsConfidenceFloor(t *testing.T) {
	text := "TODO: write tests for the new parser."
	triggers := scanTriggers(text)
	cands := scanTasks(text, triggers)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		require.GreaterOrEqual(t, c.Confidence, confidenceFloor)
	}
	require.NotEmpty(t, filterByConfidence(cands))
}

func TestScanFactsRejectsQuestions(t *testing.T) {
	cands := scanFacts("Database is the store?\nRegion: us-east-1")
	for _, c := range cands {
		require.NotContains(t, c.Text, "Database is the store?")
	}
	require.NotEmpty(t, cands)
}

func TestFilterByConfidenceDropsLowScores(t *testing.T) {
	in := []Candidate{{Confidence: 0.5}, {Confidence: 0.9}}
	out := filterByConfidence(in)
	require.Len(t, out, 1)
	require.Equal(t, 0.9, out[0].Confidence)
}

func TestDedupeCandidatesKeepsHighestConfidence(t *testing.T) {
	in := []Candidate{
		{Text: "Decided to use SQLite", Confidence: 0.7},
		{Text: "decided to use sqlite", Confidence: 0.9},
	}
	out := dedupeCandidates(in)
	require.Len(t, out, 1)
	require.Equal(t, 0.9, out[0].Confidence)
}

func TestWordBoundaryRejectsMidWordMatch(t *testing.T) {
	triggers := scanTriggers("We are willing to help, but nothing is decided yet.")
	for _, m := range triggers {
		require.NotEqual(t, "will", m.Phrase)
	}
}
