// Package ingestapi implements the ingestion service's HTTP surface: turn
// acceptance, recent-memory reads, and the workspace/project/area/topic
// hierarchy browse endpoints. Handlers follow the one-function-per-route
// idiom used throughout the upstream platform's own HTTP layer.
package ingestapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/extraction"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/merr"
	"github.com/ashvinar/memory-layer/internal/store"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Service bundles the dependencies the ingestion handlers need.
type Service struct {
	Store      *store.Store
	Extraction *extraction.Service
	Log        *logrus.Entry
}

// RegisterRoutes wires every ingestion endpoint named in the specification
// onto e.
func RegisterRoutes(e *echo.Echo, svc *Service) {
	e.POST("/ingest/turn", svc.ingestTurn)
	e.GET("/memories/recent", svc.recentMemories)
	e.GET("/memories/topics", svc.topics)
	e.GET("/hierarchy/workspaces", svc.workspaces)
	e.GET("/hierarchy/projects", svc.projects)
	e.GET("/hierarchy/areas", svc.areas)
	e.GET("/hierarchy/topics", svc.topicsHierarchy)
}

type sourceWire struct {
	App  string `json:"app"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

type turnRequest struct {
	ID       string     `json:"id"`
	ThreadID string     `json:"thread_id"`
	TSUser   string     `json:"ts_user"`
	UserText string     `json:"user_text"`
	TSAI     string     `json:"ts_ai,omitempty"`
	AIText   string     `json:"ai_text,omitempty"`
	Source   sourceWire `json:"source"`
}

var knownSourceApps = map[string]store.SourceApp{
	string(store.SourceClaude):   store.SourceClaude,
	string(store.SourceChatGPT):  store.SourceChatGPT,
	string(store.SourceVSCode):   store.SourceVSCode,
	string(store.SourceMail):     store.SourceMail,
	string(store.SourceNotes):    store.SourceNotes,
	string(store.SourceTerminal): store.SourceTerminal,
	string(store.SourceOther):    store.SourceOther,
}

// ingestTurn implements POST /ingest/turn: validate, persist synchronously,
// hand off extraction asynchronously, and return the assigned id as soon as
// the turn is durable.
func (s *Service) ingestTurn(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return merr.Wrap(merr.Invalid, err, "malformed turn payload")
	}

	if strings.TrimSpace(req.UserText) == "" {
		return merr.New(merr.Invalid, "user_text must be non-empty")
	}

	tsUser, err := time.Parse(time.RFC3339Nano, req.TSUser)
	if err != nil {
		return merr.Wrap(merr.Invalid, err, "ts_user must be RFC3339 with fractional seconds")
	}

	appName := req.Source.App
	if appName == "" {
		appName = string(store.SourceOther)
	}
	app, ok := knownSourceApps[appName]
	if !ok {
		return merr.New(merr.Invalid, "unknown source app %q", req.Source.App)
	}

	now := time.Now().UTC()
	id := req.ID
	if id == "" {
		id = ids.New(ids.Turn, now.UnixMilli())
	} else if !ids.Valid(id) || !ids.HasPrefix(id, ids.Turn) {
		return merr.New(merr.Invalid, "malformed turn id %q", id)
	}

	turn := store.Turn{
		ID:        id,
		ThreadID:  req.ThreadID,
		TSUser:    tsUser,
		UserText:  req.UserText,
		AIText:    req.AIText,
		Source:    store.Source{App: app, URL: req.Source.URL, Path: req.Source.Path},
		CreatedAt: now,
	}
	if req.TSAI != "" {
		tsAI, err := time.Parse(time.RFC3339Nano, req.TSAI)
		if err != nil {
			return merr.Wrap(merr.Invalid, err, "ts_ai must be RFC3339 with fractional seconds")
		}
		turn.TSAI = &tsAI
	}

	if err := s.Store.InsertTurn(c.Request().Context(), turn); err != nil {
		return err
	}

	// The turn is durable at this point. A full extraction queue is reported
	// to the client as Unavailable so it can back off; the turn stays
	// unqueued until the startup recovery sweep picks it up.
	if err := s.Extraction.Submit(turn); err != nil {
		s.Log.WithField("turn_id", turn.ID).Warn("extraction queue full, turn persisted but unqueued")
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"id": turn.ID})
}

func (s *Service) recentMemories(c echo.Context) error {
	limit := clampLimit(c.QueryParam("limit"), defaultRecentLimit, maxRecentLimit)
	topic := c.QueryParam("topic")

	memories, err := s.Store.RecentMemories(c.Request().Context(), topic, limit)
	if err != nil {
		return err
	}
	if memories == nil {
		memories = []store.Memory{}
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": memories})
}

func (s *Service) topics(c echo.Context) error {
	topics, err := s.Store.ListTopics(c.Request().Context())
	if err != nil {
		return err
	}
	limit := clampLimit(c.QueryParam("limit"), defaultRecentLimit, maxRecentLimit)
	if len(topics) > limit {
		topics = topics[:limit]
	}
	if topics == nil {
		topics = []store.TopicSummary{}
	}
	return c.JSON(http.StatusOK, map[string]any{"topics": topics})
}

func (s *Service) workspaces(c echo.Context) error {
	rows, err := s.Store.ListWorkspaces(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"workspaces": tuples(rows)})
}

func (s *Service) projects(c echo.Context) error {
	rows, err := s.Store.ListProjects(c.Request().Context(), c.QueryParam("workspace_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"projects": tuples(rows)})
}

func (s *Service) areas(c echo.Context) error {
	rows, err := s.Store.ListAreas(c.Request().Context(), c.QueryParam("project_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"areas": tuples(rows)})
}

func (s *Service) topicsHierarchy(c echo.Context) error {
	rows, err := s.Store.ListTopicsByArea(c.Request().Context(), c.QueryParam("area_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"topics": tuples(rows)})
}

// tuples renders hierarchy rows as the wire's [id, name, parent_name?]
// tuples rather than objects, per the specification.
func tuples(rows []store.HierarchyTuple) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.ID, r.Name, r.ParentName}
	}
	return out
}

func clampLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
