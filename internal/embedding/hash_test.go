package embedding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/embedding"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := embedding.NewHashEmbedder()
	ctx := context.Background()

	v1, err := e.Embed(ctx, []string{"renew the domain in october"})
	require.NoError(t, err)
	v2, err := e.Embed(ctx, []string{"renew the domain in october"})
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Len(t, v1[0], embedding.Dim)
}

func TestHashEmbedderSimilarTextScoresHigher(t *testing.T) {
	e := embedding.NewHashEmbedder()
	ctx := context.Background()

	base, _ := e.Embed(ctx, []string{"the domain renewal is due in october"})
	similar, _ := e.Embed(ctx, []string{"domain renewal due october"})
	unrelated, _ := e.Embed(ctx, []string{"bake bread with sourdough starter"})

	simScore := embedding.CosineSimilarity(base[0], similar[0])
	unrelatedScore := embedding.CosineSimilarity(base[0], unrelated[0])

	require.Greater(t, simScore, unrelatedScore)
}
