package indexapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/httpx"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/indexapi"
	"github.com/ashvinar/memory-layer/internal/store"
)

func newTestService(t *testing.T) (*echo.Echo, *store.Store, embedding.Embedder) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())

	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb := embedding.NewHashEmbedder()
	e := httpx.NewEcho(log)
	indexapi.RegisterRoutes(e, &indexapi.Service{Store: st, Embedder: emb, Log: log})
	return e, st, emb
}

func seedMemory(t *testing.T, st *store.Store, emb embedding.Embedder, text string) store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.Memory{
		ID:        ids.New(ids.Memory, time.Now().UnixMilli()),
		Kind:      store.KindFact,
		Topic:     "infra",
		Text:      text,
		CreatedAt: time.Now().UTC(),
		SourceApp: store.SourceClaude,
	}
	vecs, err := emb.Embed(ctx, []string{text})
	require.NoError(t, err)
	require.NoError(t, st.InsertMemory(ctx, m, vecs[0]))
	return m
}

func TestSearchReturnsEmptyArrayNotNull(t *testing.T) {
	e, _, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/search?q=nothing+matches+this", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearchFindsSeededMemory(t *testing.T) {
	e, st, emb := newTestService(t)
	seedMemory(t, st, emb, "the deploy pipeline now runs on self-hosted runners")

	req := httptest.NewRequest(http.MethodGet, "/search?q=deploy+pipeline+runners&limit=10", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "deploy pipeline")
}

func TestAgenticGetUnknownIDIsNotFound(t *testing.T) {
	e, _, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/agentic/mem_doesnotexist0000000000", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgenticGraphReturnsNodesAndEdgesKeys(t *testing.T) {
	e, _, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/agentic/graph", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"nodes":[],"edges":[]}`, rec.Body.String())
}
