package ingestapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/config"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/extraction"
	"github.com/ashvinar/memory-layer/internal/httpx"
	"github.com/ashvinar/memory-layer/internal/ingestapi"
	"github.com/ashvinar/memory-layer/internal/store"
)

func newTestService(t *testing.T) (*echo.Echo, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())

	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Config{ExtractionWorkers: 1, ExtractionQueueCap: 8}
	extSvc := extraction.NewService(cfg, st, embedding.NewHashEmbedder(), log)
	t.Cleanup(extSvc.Close)

	e := httpx.NewEcho(log)
	ingestapi.RegisterRoutes(e, &ingestapi.Service{Store: st, Extraction: extSvc, Log: log})
	return e, st
}

func TestIngestTurnAssignsIDAndPersists(t *testing.T) {
	e, st := newTestService(t)

	payload := map[string]any{
		"thread_id": "thread-1",
		"ts_user":   time.Now().UTC().Format(time.RFC3339Nano),
		"user_text": "remind me to renew the domain next week",
		"source":    map[string]string{"app": "Claude"},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ingest/turn", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])

	turn, err := st.GetTurn(context.Background(), resp["id"])
	require.NoError(t, err)
	require.Equal(t, "remind me to renew the domain next week", turn.UserText)
}

func TestIngestTurnRejectsEmptyUserText(t *testing.T) {
	e, _ := newTestService(t)

	payload := map[string]any{
		"ts_user":   time.Now().UTC().Format(time.RFC3339Nano),
		"user_text": "   ",
		"source":    map[string]string{"app": "Claude"},
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/ingest/turn", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestIngestTurnRejectsUnknownSourceApp(t *testing.T) {
	e, _ := newTestService(t)

	payload := map[string]any{
		"ts_user":   time.Now().UTC().Format(time.RFC3339Nano),
		"user_text": "hello",
		"source":    map[string]string{"app": "not-a-real-app"},
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/ingest/turn", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecentMemoriesReturnsEmptyArrayNotNull(t *testing.T) {
	e, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/memories/recent", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"memories":[]}`, rec.Body.String())
}

func TestHierarchyWorkspacesRendersAsTuples(t *testing.T) {
	e, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/hierarchy/workspaces", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"workspaces":[]}`, rec.Body.String())
}
