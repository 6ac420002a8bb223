package search_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/search"
	"github.com/ashvinar/memory-layer/internal/store"
)

func TestHybridRanksRecentAndLexicallyCloserHigher(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb := embedding.NewHashEmbedder()
	ctx := context.Background()
	now := time.Now().UTC()

	old := store.Memory{ID: ids.New(ids.Memory, now.UnixMilli()), Kind: store.KindFact, Topic: "infra", Text: "domain renewal reminder for october is due soon", CreatedAt: now.Add(-60 * 24 * time.Hour)}
	oldVec, _ := emb.Embed(ctx, []string{old.Text})
	require.NoError(t, st.InsertMemory(ctx, old, oldVec[0]))

	recent := store.Memory{ID: ids.New(ids.Memory, now.UnixMilli()+1), Kind: store.KindFact, Topic: "infra", Text: "domain renewal reminder for october", CreatedAt: now}
	recentVec, _ := emb.Embed(ctx, []string{recent.Text})
	require.NoError(t, st.InsertMemory(ctx, recent, recentVec[0]))

	results, err := search.Hybrid(ctx, st, emb, "domain renewal october", 10, search.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, recent.ID, results[0].Memory.ID)
}

func TestHybridRespectsTopicFilter(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb := embedding.NewHashEmbedder()
	ctx := context.Background()
	now := time.Now().UTC()

	mem := store.Memory{ID: ids.New(ids.Memory, now.UnixMilli()), Kind: store.KindFact, Topic: "other", Text: "domain renewal reminder", CreatedAt: now}
	vec, _ := emb.Embed(ctx, []string{mem.Text})
	require.NoError(t, st.InsertMemory(ctx, mem, vec[0]))

	results, err := search.Hybrid(ctx, st, emb, "domain renewal", 10, search.Filter{Topic: "infra"})
	require.NoError(t, err)
	require.Empty(t, results)
}
