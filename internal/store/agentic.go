package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// UpsertAgentic writes or overwrites the agentic record for a memory.
func (s *Store) UpsertAgentic(ctx context.Context, rec AgenticRecord) error {
	keywordsJSON, err := json.Marshal(rec.Keywords)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "marshal keywords")
	}
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "marshal tags")
	}
	evolutionJSON, err := json.Marshal(rec.Evolution)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "marshal evolution")
	}

	_, err = s.writeDB.ExecContext(ctx, `
		INSERT INTO agentic (memory_id, keywords_json, tags_json, context, category, retrieval_count, last_accessed, created_at, evolution_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			keywords_json = excluded.keywords_json,
			tags_json = excluded.tags_json,
			context = excluded.context,
			category = excluded.category,
			retrieval_count = excluded.retrieval_count,
			last_accessed = excluded.last_accessed,
			evolution_json = excluded.evolution_json`,
		rec.MemoryID, string(keywordsJSON), string(tagsJSON), rec.Context, string(rec.Category),
		rec.RetrievalCount, rec.LastAccessed.UTC().Format(time.RFC3339Nano),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), string(evolutionJSON))
	if err != nil {
		return merr.Wrap(merr.Internal, err, "upsert agentic record")
	}
	return nil
}

// GetAgentic loads the agentic record for a memory.
func (s *Store) GetAgentic(ctx context.Context, memoryID string) (AgenticRecord, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT memory_id, keywords_json, tags_json, context, category, retrieval_count, last_accessed, created_at, evolution_json
		FROM agentic WHERE memory_id = ?`, memoryID)
	rec, err := scanAgentic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AgenticRecord{}, merr.New(merr.NotFound, "agentic record for %s not found", memoryID)
	}
	if err != nil {
		return AgenticRecord{}, merr.Wrap(merr.Internal, err, "get agentic record")
	}
	return rec, nil
}

// TouchAgentic increments the retrieval count and bumps last_accessed. The
// index API calls it when a single agentic record is fetched by id; search
// results and composed capsules do not touch records.
func (s *Store) TouchAgentic(ctx context.Context, memoryID string, at time.Time) error {
	_, err := s.writeDB.ExecContext(ctx, `
		UPDATE agentic SET retrieval_count = retrieval_count + 1, last_accessed = ?
		WHERE memory_id = ?`, at.UTC().Format(time.RFC3339Nano), memoryID)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "touch agentic record")
	}
	return nil
}

// AllAgentic returns every agentic record, used by agentic.Search and the
// index API's listing views. The evolution pass finds its candidates with
// VectorSearch instead.
func (s *Store) AllAgentic(ctx context.Context) ([]AgenticRecord, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT memory_id, keywords_json, tags_json, context, category, retrieval_count, last_accessed, created_at, evolution_json
		FROM agentic`)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "list agentic records")
	}
	defer rows.Close()

	var out []AgenticRecord
	for rows.Next() {
		rec, err := scanAgentic(rows)
		if err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan agentic record")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanAgentic(r rowScanner) (AgenticRecord, error) {
	var (
		rec                                          AgenticRecord
		keywordsJSON, tagsJSON, evolutionJSON        string
		category, lastAccessed, createdAt            string
	)
	if err := r.Scan(&rec.MemoryID, &keywordsJSON, &tagsJSON, &rec.Context, &category,
		&rec.RetrievalCount, &lastAccessed, &createdAt, &evolutionJSON); err != nil {
		return AgenticRecord{}, err
	}
	rec.Category = AgenticCategory(category)
	rec.LastAccessed, _ = time.Parse(time.RFC3339Nano, lastAccessed)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	_ = json.Unmarshal([]byte(keywordsJSON), &rec.Keywords)
	_ = json.Unmarshal([]byte(tagsJSON), &rec.Tags)
	_ = json.Unmarshal([]byte(evolutionJSON), &rec.Evolution)
	return rec, nil
}
