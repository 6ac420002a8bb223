// Package composerapi implements the composer service's HTTP surface:
// context composition, capsule undo, and a liveness check.
package composerapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/composer"
	"github.com/ashvinar/memory-layer/internal/merr"
	"github.com/ashvinar/memory-layer/internal/store"
)

// Service bundles the dependencies the composer handlers need.
type Service struct {
	Composer *composer.Composer
	Store    *store.Store
	Log      *logrus.Entry
}

// RegisterRoutes wires every composer endpoint named in the specification
// onto e.
func RegisterRoutes(e *echo.Echo, svc *Service) {
	e.POST("/v1/context", svc.context)
	e.POST("/v1/undo", svc.undo)
	e.GET("/health", svc.health)
}

type contextRequest struct {
	TopicHint     string   `json:"topic_hint,omitempty"`
	Intent        string   `json:"intent,omitempty"`
	BudgetTokens  int      `json:"budget_tokens,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	ThreadKey     string   `json:"thread_key,omitempty"`
	LastCapsuleID string   `json:"last_capsule_id,omitempty"`
	Style         string   `json:"style,omitempty"`
}

func (s *Service) context(c echo.Context) error {
	var req contextRequest
	if err := c.Bind(&req); err != nil {
		return merr.Wrap(merr.Invalid, err, "malformed context request")
	}

	capsule, err := s.Composer.Compose(c.Request().Context(), composer.Request{
		TopicHint:     req.TopicHint,
		Intent:        req.Intent,
		BudgetTokens:  req.BudgetTokens,
		Scopes:        req.Scopes,
		ThreadKey:     req.ThreadKey,
		LastCapsuleID: req.LastCapsuleID,
		Style:         req.Style,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, capsule)
}

type undoRequest struct {
	CapsuleID string `json:"capsule_id"`
	ThreadKey string `json:"thread_key"`
}

// undo is always a 200: it is idempotent from the client's viewpoint
// whether or not the named capsule was still cached.
func (s *Service) undo(c echo.Context) error {
	var req undoRequest
	if err := c.Bind(&req); err != nil {
		return merr.Wrap(merr.Invalid, err, "malformed undo request")
	}

	if s.Composer.Undo(req.ThreadKey, req.CapsuleID) {
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": false, "message": "unknown or expired"})
}

func (s *Service) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if _, err := s.Store.ListTopics(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"ok": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}
