package store

import (
	"context"
	"time"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// ExtractionState is one stage of the per-turn extraction state machine
// named in the specification: received -> persisted -> extracting ->
// extracted -> evolved.
type ExtractionState string

const (
	StateExtracting ExtractionState = "extracting"
	StateExtracted  ExtractionState = "extracted"
	StateEvolved    ExtractionState = "evolved"
	StateSkipped    ExtractionState = "skipped"
)

// MarkExtractionState upserts a turn's extraction progress row.
func (s *Store) MarkExtractionState(ctx context.Context, turnID string, state ExtractionState, skipReason string, at time.Time) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO extraction_progress (turn_id, state, skip_reason, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(turn_id) DO UPDATE SET state = excluded.state, skip_reason = excluded.skip_reason, updated_at = excluded.updated_at`,
		turnID, string(state), nullIfEmpty(skipReason), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return merr.Wrap(merr.Internal, err, "mark extraction state")
	}
	return nil
}

// StaleExtractingTurns finds every turn whose extraction never reached
// "extracted", "evolved" or "skipped" and whose turn was created before the
// cutoff, the startup recovery sweep's input per the specification's grace
// window rule.
func (s *Store) StaleExtractingTurns(ctx context.Context, cutoff time.Time) ([]Turn, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT t.id, t.thread_id, t.ts_user, t.user_text, t.ts_ai, t.ai_text, t.source_app, t.source_url, t.source_path, t.created_at
		FROM turns t
		LEFT JOIN extraction_progress p ON p.turn_id = t.id
		WHERE t.created_at < ?
		  AND (p.turn_id IS NULL OR p.state NOT IN (?, ?, ?))`,
		cutoff.UTC().Format(time.RFC3339Nano), string(StateExtracted), string(StateEvolved), string(StateSkipped))
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "query stale turns")
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan stale turn")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
