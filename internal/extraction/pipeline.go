package extraction

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ashvinar/memory-layer/internal/agentic"
	"github.com/ashvinar/memory-layer/internal/config"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/ids"
	"github.com/ashvinar/memory-layer/internal/store"
)

// recoveryGrace is the "grace window" named in the specification: a turn
// older than this with no terminal extraction state is re-enqueued at
// startup.
const recoveryGrace = 24 * time.Hour

// Service owns the extraction queue and the full per-turn pipeline: fast
// path, heuristic scan, confidence filter, dedup, optional LLM
// augmentation, persistence, and the hand-off to agentic evolution.
type Service struct {
	store    *store.Store
	embedder embedding.Embedder
	aug      *augmenter
	pool     *Pool
	log      *logrus.Entry
}

// NewService wires the extraction pipeline's dependencies and starts its
// worker pool. Callers must call Close on shutdown.
func NewService(cfg config.Config, st *store.Store, emb embedding.Embedder, log *logrus.Entry) *Service {
	s := &Service{
		store:    st,
		embedder: emb,
		aug:      newAugmenter(cfg, log),
		log:      log,
	}
	s.pool = NewPool(cfg.ExtractionWorkers, cfg.ExtractionQueueCap, log, s.processTurn)
	return s
}

// Submit enqueues a durably persisted turn for background extraction.
func (s *Service) Submit(t store.Turn) error {
	return s.pool.Enqueue(t)
}

// Utilization reports the extraction queue's fill ratio. The ingestion
// handler does not read it; it reacts only to Submit failing on a full
// queue.
func (s *Service) Utilization() float64 {
	return s.pool.Utilization()
}

// Close drains the worker pool.
func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) processTurn(ctx context.Context, t store.Turn) {
	log := s.log.WithField("turn_id", t.ID)
	_ = s.store.MarkExtractionState(ctx, t.ID, store.StateExtracting, "", time.Now())

	text := t.UserText
	if t.AIText != "" {
		text = text + "\n" + t.AIText
	}
	if len(strings.TrimSpace(text)) == 0 {
		_ = s.store.MarkExtractionState(ctx, t.ID, store.StateSkipped, "empty text after normalization", time.Now())
		return
	}

	candidates := scanFastPath(text)
	triggers := scanTriggers(text)
	candidates = append(candidates, scanDecisions(text, triggers)...)
	candidates = append(candidates, scanTasks(text, triggers)...)
	candidates = append(candidates, scanFacts(text)...)

	candidates = filterByConfidence(candidates)
	candidates = dedupeCandidates(candidates)
	candidates = s.aug.augment(ctx, text, candidates, triggers)

	if len(candidates) == 0 {
		_ = s.store.MarkExtractionState(ctx, t.ID, store.StateExtracted, "", time.Now())
		return
	}

	topic := deriveTopic(t)
	now := time.Now().UTC()

	// Each candidate's embed/persist/evolve chain is independent of the
	// others; the store's single writer connection still serializes the
	// actual commits, so fanning out here only overlaps the embedding
	// calls rather than racing on storage.
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			mem := store.Memory{
				ID:         ids.New(ids.Memory, now.UnixMilli()),
				Kind:       c.Kind,
				Topic:      topic,
				Text:       c.Text,
				Snippet:    c.Snippet,
				Entities:   c.Entities,
				Provenance: []string{t.ID},
				CreatedAt:  now,
				TTLSeconds: c.TTLSeconds,
				SourceApp:  t.Source.App,
			}

			vecs, err := s.embedder.Embed(gctx, []string{mem.Text})
			var vec []float32
			if err == nil && len(vecs) == 1 {
				vec = vecs[0]
			} else if err != nil {
				log.WithError(err).Warn("embedding failed, storing memory without a vector")
			}

			if err := s.store.InsertMemory(gctx, mem, vec); err != nil {
				log.WithError(err).Error("failed to persist extracted memory")
				return nil
			}

			if err := agentic.Evolve(gctx, s.store, s.embedder, mem, vec, log); err != nil {
				log.WithError(err).Warn("agentic evolution failed for memory")
			}
			return nil
		})
	}
	_ = g.Wait()

	_ = s.store.MarkExtractionState(ctx, t.ID, store.StateEvolved, "", time.Now())
}

// RecoverStale re-enqueues every turn whose extraction never reached a
// terminal state, per the specification's startup recovery sweep.
func (s *Service) RecoverStale(ctx context.Context) (int, error) {
	stale, err := s.store.StaleExtractingTurns(ctx, time.Now().Add(-recoveryGrace))
	if err != nil {
		return 0, err
	}
	for _, t := range stale {
		if err := s.Submit(t); err != nil {
			s.log.WithError(err).WithField("turn_id", t.ID).Warn("recovery sweep: queue full, will retry next sweep")
		}
	}
	return len(stale), nil
}

func deriveTopic(t store.Turn) string {
	if t.Source.Path != "" {
		return filepath.Base(t.Source.Path)
	}
	if t.Source.App != "" {
		return string(t.Source.App)
	}
	return "general"
}
