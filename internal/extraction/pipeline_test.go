package extraction_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/config"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/extraction"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/store"
)

func newTestService(t *testing.T) (*extraction.Service, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())
	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Config{ExtractionStrategy: config.StrategyHeuristicOnly, ExtractionWorkers: 2, ExtractionQueueCap: 8}
	svc := extraction.NewService(cfg, st, embedding.NewHashEmbedder(), log)
	t.Cleanup(svc.Close)
	return svc, st
}

func TestSubmitExtractsDecisionMemory(t *testing.T) {
	svc, st := newTestService(t)
	now := time.Now().UTC()

	turn := store.Turn{
		ID:        ids.New(ids.Turn, now.UnixMilli()),
		ThreadID:  ids.New(ids.Thread, now.UnixMilli()),
		TSUser:    now,
		UserText:  "We decided to use SQLite because it simplifies the deployment story for Users.",
		Source:    store.Source{App: store.SourceNotes},
		CreatedAt: now,
	}
	require.NoError(t, st.InsertTurn(context.Background(), turn))
	require.NoError(t, svc.Submit(turn))

	require.Eventually(t, func() bool {
		mems, err := st.RecentMemories(context.Background(), "", 10)
		return err == nil && len(mems) > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestQueueOverflowReturnsUnavailable(t *testing.T) {
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())
	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Config{ExtractionStrategy: config.StrategyHeuristicOnly, ExtractionWorkers: 0, ExtractionQueueCap: 1}
	svc := extraction.NewService(cfg, st, embedding.NewHashEmbedder(), log)
	t.Cleanup(svc.Close)

	mkTurn := func() store.Turn {
		now := time.Now().UTC()
		return store.Turn{ID: ids.New(ids.Turn, now.UnixMilli()), ThreadID: "thr_x", TSUser: now, UserText: "hello", CreatedAt: now}
	}

	require.NoError(t, svc.Submit(mkTurn()))
	err = svc.Submit(mkTurn())
	require.Error(t, err)
}
