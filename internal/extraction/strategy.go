package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/config"
	"github.com/ashvinar/memory-layer/internal/llm"
	"github.com/ashvinar/memory-layer/internal/store"
)

const complexityLengthThreshold = 512

// llmDeadline bounds every outbound LLM call, per the specification's
// "30s hard deadline" rule.
const llmDeadline = 30 * time.Second

var extractionSystemPrompt = strings.TrimSpace(`
You extract durable memories from a conversation turn. Respond with a JSON
array of objects, each {"kind": "decision"|"fact"|"task", "text": "...",
"confidence": 0.0-1.0}. Only include items you are confident are durable
facts, decisions, or action items. Respond with [] if none.
`)

// augmenter dispatches the configured LLM strategy over a turn's
// heuristic candidates.
type augmenter struct {
	cfg      config.Config
	provider llm.Provider
	log      *logrus.Entry
}

func newAugmenter(cfg config.Config, log *logrus.Entry) *augmenter {
	a := &augmenter{cfg: cfg, log: log}
	if cfg.UseLLMExtraction && cfg.ExtractionStrategy != config.StrategyHeuristicOnly {
		a.provider = llm.Build(string(cfg.LLMProvider), endpointFor(cfg), modelFor(cfg), cfg.OpenAIAPIKey)
	}
	return a
}

func endpointFor(cfg config.Config) string {
	if cfg.LLMProvider == config.ProviderOpenAI {
		return cfg.OpenAIBaseURL
	}
	return cfg.OllamaURL
}

func modelFor(cfg config.Config) string {
	if cfg.LLMProvider == config.ProviderOpenAI {
		return cfg.OpenAIModel
	}
	return cfg.OllamaModel
}

// augment applies the configured strategy, returning the final candidate
// set to persist.
func (a *augmenter) augment(ctx context.Context, turnText string, heuristic []Candidate, triggers []trigMatch) []Candidate {
	switch a.cfg.ExtractionStrategy {
	case config.StrategyHeuristicOnly:
		return heuristic
	case config.StrategyLLMWithFallback:
		llmCands, err := a.call(ctx, turnText)
		if err != nil {
			a.log.WithError(err).Warn("llm extraction failed, falling back to heuristics")
			return heuristic
		}
		return dedupeCandidates(append(append([]Candidate{}, heuristic...), llmCands...))
	case config.StrategyHybrid:
		if len(turnText) < complexityLengthThreshold && distinctFamilies(triggers) < 2 {
			return heuristic
		}
		llmCands, err := a.call(ctx, turnText)
		if err != nil {
			a.log.WithError(err).Warn("llm augmentation failed in hybrid mode, keeping heuristics only")
			return heuristic
		}
		return dedupeCandidates(append(append([]Candidate{}, heuristic...), llmCands...))
	default:
		return heuristic
	}
}

func (a *augmenter) call(ctx context.Context, turnText string) ([]Candidate, error) {
	if a.provider == nil {
		return nil, fmt.Errorf("no llm provider configured")
	}
	cctx, cancel := context.WithTimeout(ctx, llmDeadline)
	defer cancel()

	reply, err := withRetry(cctx, a.log, func() (string, error) {
		return a.provider.Complete(cctx, extractionSystemPrompt, turnText)
	})
	if err != nil {
		return nil, err
	}
	return parseLLMCandidates(reply)
}

type llmCandidateJSON struct {
	Kind       string  `json:"kind"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func parseLLMCandidates(reply string) ([]Candidate, error) {
	reply = strings.TrimSpace(reply)
	if i := strings.Index(reply, "["); i > 0 {
		reply = reply[i:]
	}
	var raw []llmCandidateJSON
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return nil, fmt.Errorf("extraction: parse llm response: %w", err)
	}
	out := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		kind := store.MemoryKind(r.Kind)
		switch kind {
		case store.KindDecision, store.KindFact, store.KindTask, store.KindSnippet:
		default:
			continue
		}
		if strings.TrimSpace(r.Text) == "" || r.Confidence < confidenceFloor {
			continue
		}
		out = append(out, Candidate{Kind: kind, Text: r.Text, Confidence: r.Confidence})
	}
	return out, nil
}

// retryDelays implements the specification's "3 attempts, 1s/4s/16s"
// exponential backoff schedule.
var retryDelays = []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}

func withRetry(ctx context.Context, log *logrus.Entry, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == len(retryDelays) {
			break
		}
		log.WithError(err).WithField("attempt", attempt+1).Debug("retrying llm call")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryDelays[attempt]):
		}
	}
	return "", lastErr
}
