package agentic_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/agentic"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEvolveSeedsAgenticRecord(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	mem := store.Memory{
		ID:        ids.New(ids.Memory, now.UnixMilli()),
		Kind:      store.KindFact,
		Topic:     "infra",
		Text:      "the staging database runs on sqlite",
		CreatedAt: now,
	}
	require.NoError(t, st.InsertMemory(ctx, mem, nil))

	vecs, err := emb.Embed(ctx, []string{mem.Text})
	require.NoError(t, err)
	require.NoError(t, agentic.Evolve(ctx, st, emb, mem, vecs[0], log))

	rec, err := st.GetAgentic(ctx, mem.ID)
	require.NoError(t, err)
	require.Contains(t, rec.Keywords, "sqlite")
	require.Equal(t, store.CategoryFact, rec.Category)
}

func TestEvolveLinksSimilarMemories(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	first := store.Memory{ID: ids.New(ids.Memory, now.UnixMilli()), Kind: store.KindFact, Topic: "infra", Text: "the staging database runs on sqlite with wal mode", CreatedAt: now}
	firstVecs, _ := emb.Embed(ctx, []string{first.Text})
	require.NoError(t, st.InsertMemory(ctx, first, firstVecs[0]))
	require.NoError(t, agentic.Evolve(ctx, st, emb, first, firstVecs[0], log))

	second := store.Memory{ID: ids.New(ids.Memory, now.Add(time.Second).UnixMilli()), Kind: store.KindFact, Topic: "infra", Text: "the staging database runs sqlite in wal mode too", CreatedAt: now.Add(time.Second)}
	secondVecs, _ := emb.Embed(ctx, []string{second.Text})
	require.NoError(t, st.InsertMemory(ctx, second, secondVecs[0]))
	require.NoError(t, agentic.Evolve(ctx, st, emb, second, secondVecs[0], log))

	links, err := st.LinksFrom(ctx, second.ID)
	require.NoError(t, err)
	// Near-duplicate text may merge rather than link; either is a valid
	// evolution outcome, but one of the two must happen.
	firstRec, err := st.GetAgentic(ctx, first.ID)
	require.NoError(t, err)
	merged := false
	for _, ev := range firstRec.Evolution {
		if ev.Detail == "merged_with:"+second.ID {
			merged = true
		}
	}
	require.True(t, len(links) > 0 || merged, "second memory was neither linked nor merged")
}

func TestEvolveOnlyPromotesCategoryWhenEntitiesOverlap(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	text := "the staging database runs on sqlite in wal mode"

	first := store.Memory{ID: ids.New(ids.Memory, now.UnixMilli()), Kind: store.KindFact, Topic: "infra", Text: text, Entities: []string{"staging"}, CreatedAt: now}
	firstVecs, _ := emb.Embed(ctx, []string{first.Text})
	require.NoError(t, st.InsertMemory(ctx, first, firstVecs[0]))
	require.NoError(t, agentic.Evolve(ctx, st, emb, first, firstVecs[0], log))

	second := store.Memory{ID: ids.New(ids.Memory, now.Add(time.Second).UnixMilli()), Kind: store.KindDecision, Topic: "infra", Text: text, Entities: []string{"unrelated-entity"}, CreatedAt: now.Add(time.Second)}
	secondVecs, _ := emb.Embed(ctx, []string{second.Text})
	require.NoError(t, st.InsertMemory(ctx, second, secondVecs[0]))
	require.NoError(t, agentic.Evolve(ctx, st, emb, second, secondVecs[0], log))

	rec, err := st.GetAgentic(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, store.CategoryFact, rec.Category, "identical text merges, but disjoint entities must not promote the category")
}

func TestEvolvePromotesCategoryWhenEntitiesOverlap(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	text := "the staging database runs on sqlite in wal mode"

	first := store.Memory{ID: ids.New(ids.Memory, now.UnixMilli()), Kind: store.KindFact, Topic: "infra", Text: text, Entities: []string{"staging"}, CreatedAt: now}
	firstVecs, _ := emb.Embed(ctx, []string{first.Text})
	require.NoError(t, st.InsertMemory(ctx, first, firstVecs[0]))
	require.NoError(t, agentic.Evolve(ctx, st, emb, first, firstVecs[0], log))

	second := store.Memory{ID: ids.New(ids.Memory, now.Add(time.Second).UnixMilli()), Kind: store.KindDecision, Topic: "infra", Text: text, Entities: []string{"staging"}, CreatedAt: now.Add(time.Second)}
	secondVecs, _ := emb.Embed(ctx, []string{second.Text})
	require.NoError(t, st.InsertMemory(ctx, second, secondVecs[0]))
	require.NoError(t, agentic.Evolve(ctx, st, emb, second, secondVecs[0], log))

	rec, err := st.GetAgentic(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, store.CategoryDecision, rec.Category, "shared entities between a fact and a merging decision must promote the category")
}
