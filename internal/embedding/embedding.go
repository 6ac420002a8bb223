// Package embedding provides the vector-representation layer used by the
// indexing service's hybrid search and agentic-memory linking. Callers
// depend on the Embedder interface; HashEmbedder is the zero-configuration
// default, and the remote embedders in remote.go defer to a locally or
// remotely hosted model when one is configured.
package embedding

import (
	"context"
	"math"

	"github.com/ashvinar/memory-layer/internal/store"
)

// Embedder turns text into a fixed-width vector of store.EmbeddingDim
// floats.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CosineSimilarity returns the cosine similarity of two equal-length
// vectors, or 0 if either is the zero vector.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Dim is the vector width every Embedder in this package must produce.
const Dim = store.EmbeddingDim
