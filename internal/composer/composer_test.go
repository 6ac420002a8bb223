package composer_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/composer"
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

func seedMemory(t *testing.T, st *store.Store, emb embedding.Embedder, text string, app store.SourceApp, when time.Time) store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.Memory{
		ID:        ids.New(ids.Memory, when.UnixMilli()),
		Kind:      store.KindFact,
		Topic:     "infra",
		Text:      text,
		CreatedAt: when,
		SourceApp: app,
	}
	vecs, err := emb.Embed(ctx, []string{text})
	require.NoError(t, err)
	require.NoError(t, st.InsertMemory(ctx, m, vecs[0]))
	return m
}

func TestComposeRespectsBudgetAndProducesSystemMessage(t *testing.T) {
	st := openTestStore(t)
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	seedMemory(t, st, emb, "decided to use sqlite for the embedded store", store.SourceClaude, now)
	seedMemory(t, st, emb, "the staging environment runs on a single node", store.SourceClaude, now.Add(-time.Minute))

	cp := composer.New(st, emb, log)
	capsule, err := cp.Compose(context.Background(), composer.Request{
		TopicHint:    "infra",
		BudgetTokens: 220,
	})
	require.NoError(t, err)
	require.Equal(t, "standard", capsule.Style)
	require.Len(t, capsule.Messages, 1)
	require.Equal(t, "system", capsule.Messages[0].Role)
	require.LessOrEqual(t, capsule.TokenCount, 220)
}

func TestComposeDeltaReturnsUpToDateWhenSelectionUnchanged(t *testing.T) {
	st := openTestStore(t)
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	seedMemory(t, st, emb, "decided to use sqlite for the embedded store", store.SourceClaude, now)

	cp := composer.New(st, emb, log)
	req := composer.Request{TopicHint: "infra", BudgetTokens: 220, ThreadKey: "thread-1"}

	first, err := cp.Compose(context.Background(), req)
	require.NoError(t, err)

	req.LastCapsuleID = first.CapsuleID
	second, err := cp.Compose(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first.CapsuleID, second.DeltaOf)
	require.Empty(t, second.Messages)
}

func TestComposeNeverExceedsBudgetEvenForOversizedTopCandidate(t *testing.T) {
	st := openTestStore(t)
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())
	now := time.Now().UTC()

	oversized := strings.Repeat("the decision and its rationale spans a very long window of text ", 20)
	seedMemory(t, st, emb, oversized, store.SourceClaude, now)

	cp := composer.New(st, emb, log)
	capsule, err := cp.Compose(context.Background(), composer.Request{
		TopicHint:    "infra",
		BudgetTokens: 50,
	})
	require.NoError(t, err)
	require.LessOrEqual(t, capsule.TokenCount, 50)
}

func TestUndoIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	emb := embedding.NewHashEmbedder()
	log := logrus.NewEntry(logrus.New())

	cp := composer.New(st, emb, log)
	require.False(t, cp.Undo("missing-thread", "cap_doesnotexist00000000000"))

	capsule, err := cp.Compose(context.Background(), composer.Request{TopicHint: "infra", BudgetTokens: 220, ThreadKey: "thread-1"})
	require.NoError(t, err)
	require.True(t, cp.Undo("thread-1", capsule.CapsuleID))
	require.False(t, cp.Undo("thread-1", capsule.CapsuleID))
}

func TestEstimateTokensIsMonotone(t *testing.T) {
	short := composer.EstimateTokens("abcd")
	long := composer.EstimateTokens("abcdefgh")
	require.Greater(t, long, short)
}
