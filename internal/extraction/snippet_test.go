package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/store"
)

func TestScanFastPathFencedCodeBlock(t *testing.T) {
	text := "here's the fix:\n```go\nfunc add(a, b int) int { return a + b }\n```\nshould work now"
	cands := scanFastPath(text)
	require.NotEmpty(t, cands)
	require.Equal(t, store.KindSnippet, cands[0].Kind)
	require.Equal(t, "go", cands[0].Snippet.Language)
}

func TestScanFastPathFileLineRange(t *testing.T) {
	text := "see internal/store/store.go:L12-L20 for the pool setup"
	cands := scanFastPath(text)
	require.NotEmpty(t, cands)
	require.Equal(t, "internal/store/store.go:L12-L20", cands[0].Snippet.Location)
}

func TestScanFastPathFileLineSingle(t *testing.T) {
	text := "bug is at handlers.go:L42"
	cands := scanFastPath(text)
	require.NotEmpty(t, cands)
	require.Equal(t, "handlers.go:L42", cands[0].Snippet.Location)
}
