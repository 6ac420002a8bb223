package composerapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/composer"
	"github.com/ashvinar/memory-layer/internal/composerapi"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/store"
)

func newTestService(t *testing.T) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())

	st, err := store.Open(context.Background(), filepath.Join(dir, "memory.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb := embedding.NewHashEmbedder()
	cp := composer.New(st, emb, log)

	e := echo.New()
	composerapi.RegisterRoutes(e, &composerapi.Service{Composer: cp, Store: st, Log: log})
	return e
}

func TestContextEndpointReturnsCapsule(t *testing.T) {
	e := newTestService(t)

	body, err := json.Marshal(map[string]any{"topic_hint": "infra", "budget_tokens": 220})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/context", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var capsule composer.Capsule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &capsule))
	require.NotEmpty(t, capsule.CapsuleID)
	require.Equal(t, "standard", capsule.Style)
}

func TestUndoIsAlways200EvenForUnknownCapsule(t *testing.T) {
	e := newTestService(t)

	body, _ := json.Marshal(map[string]any{"capsule_id": "cap_doesnotexist00000000000", "thread_key": "missing"})

	req := httptest.NewRequest(http.MethodPost, "/v1/undo", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"unknown or expired"}`, rec.Body.String())
}

func TestHealthReportsOKAgainstOpenStore(t *testing.T) {
	e := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}
