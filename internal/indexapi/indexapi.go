// Package indexapi implements the indexing service's HTTP surface: hybrid
// search and the agentic memory base's read endpoints.
package indexapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/agentic"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/search"
	"github.com/ashvinar/memory-layer/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Service bundles the dependencies the indexing handlers need.
type Service struct {
	Store    *store.Store
	Embedder embedding.Embedder
	Log      *logrus.Entry
}

// RegisterRoutes wires every indexing endpoint named in the specification
// onto e.
func RegisterRoutes(e *echo.Echo, svc *Service) {
	e.GET("/search", svc.search)
	e.GET("/agentic/recent", svc.agenticRecent)
	e.GET("/agentic/search", svc.agenticSearch)
	e.GET("/agentic/graph", svc.agenticGraph)
	e.GET("/agentic/:id", svc.agenticGet)
}

func (s *Service) search(c echo.Context) error {
	q := c.QueryParam("q")
	limit := clampLimit(c.QueryParam("limit"))

	filter := search.Filter{
		Topic:     c.QueryParam("topic"),
		Kind:      store.MemoryKind(c.QueryParam("kind")),
		SourceApp: store.SourceApp(c.QueryParam("source_app")),
	}

	results, err := search.Hybrid(c.Request().Context(), s.Store, s.Embedder, q, limit, filter)
	if err != nil {
		return err
	}
	if results == nil {
		results = []search.Result{}
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Service) agenticRecent(c echo.Context) error {
	limit := clampLimit(c.QueryParam("limit"))
	all, err := s.Store.AllAgentic(c.Request().Context())
	if err != nil {
		return err
	}
	recs := sortAgenticByCreatedDesc(all)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return c.JSON(http.StatusOK, map[string]any{"records": recs})
}

func (s *Service) agenticSearch(c echo.Context) error {
	q := c.QueryParam("q")
	limit := clampLimit(c.QueryParam("limit"))

	recs, err := agentic.Search(c.Request().Context(), s.Store, s.Embedder, q, limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []store.AgenticRecord{}
	}
	return c.JSON(http.StatusOK, map[string]any{"records": recs})
}

func (s *Service) agenticGet(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	rec, err := s.Store.GetAgentic(ctx, id)
	if err != nil {
		return err
	}
	_ = s.Store.TouchAgentic(ctx, id, time.Now().UTC())

	outLinks, err := s.Store.LinksFrom(ctx, id)
	if err != nil {
		return err
	}
	inLinks, err := s.Store.LinksTo(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"record":    rec,
		"links_out": outLinks,
		"links_in":  inLinks,
	})
}

type graphNode struct {
	ID             string                `json:"id"`
	Content        string                `json:"content"`
	Context        string                `json:"context"`
	Keywords       []string              `json:"keywords"`
	Tags           []string              `json:"tags"`
	Category       store.AgenticCategory `json:"category"`
	RetrievalCount int                   `json:"retrieval_count"`
	CreatedAt      time.Time             `json:"created_at"`
	LastAccessed   time.Time             `json:"last_accessed"`
}

type graphEdge struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Strength  float64 `json:"strength"`
	Rationale string  `json:"rationale,omitempty"`
}

func (s *Service) agenticGraph(c echo.Context) error {
	ctx := c.Request().Context()
	limit := clampLimit(c.QueryParam("limit"))

	recs, err := s.Store.AllAgentic(ctx)
	if err != nil {
		return err
	}
	recs = sortAgenticByCreatedDesc(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}

	nodes := make([]graphNode, 0, len(recs))
	edges := []graphEdge{}
	seenEdge := map[string]bool{}

	for _, rec := range recs {
		mem, err := s.Store.GetMemory(ctx, rec.MemoryID)
		content := ""
		if err == nil {
			content = mem.Text
		}
		nodes = append(nodes, graphNode{
			ID:             rec.MemoryID,
			Content:        content,
			Context:        rec.Context,
			Keywords:       rec.Keywords,
			Tags:           rec.Tags,
			Category:       rec.Category,
			RetrievalCount: rec.RetrievalCount,
			CreatedAt:      rec.CreatedAt,
			LastAccessed:   rec.LastAccessed,
		})

		links, err := s.Store.LinksFrom(ctx, rec.MemoryID)
		if err != nil {
			continue
		}
		for _, l := range links {
			key := l.Source + ">" + l.Target
			if seenEdge[key] {
				continue
			}
			seenEdge[key] = true
			edges = append(edges, graphEdge{Source: l.Source, Target: l.Target, Strength: l.Strength, Rationale: l.Rationale})
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"nodes": nodes, "edges": edges})
}

func sortAgenticByCreatedDesc(recs []store.AgenticRecord) []store.AgenticRecord {
	out := make([]store.AgenticRecord, len(recs))
	copy(out, recs)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func clampLimit(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
