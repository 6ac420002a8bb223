package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// EncodeEmbedding serializes a float32 vector into the little-endian byte
// layout sqlite-vec's vec0 tables and the memories.embedding column expect.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// InsertMemory writes a memory, its entity tags, its provenance rows, its
// FTS mirror row, and (if embedding is non-nil) its ANN vector row, all in
// one transaction.
func (s *Store) InsertMemory(ctx context.Context, m Memory, embedding []float32) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "begin insert memory")
	}
	defer tx.Rollback()

	var title, text, loc, lang sql.NullString
	if m.Snippet != nil {
		title = sql.NullString{String: m.Snippet.Title, Valid: true}
		text = sql.NullString{String: m.Snippet.Text, Valid: true}
		loc = sql.NullString{String: m.Snippet.Location, Valid: m.Snippet.Location != ""}
		lang = sql.NullString{String: m.Snippet.Language, Valid: m.Snippet.Language != ""}
	}
	var ttl sql.NullInt64
	if m.TTLSeconds != nil {
		ttl = sql.NullInt64{Int64: *m.TTLSeconds, Valid: true}
	}

	var embBytes any
	if embedding != nil {
		embBytes = EncodeEmbedding(embedding)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, kind, topic, text, snippet_title, snippet_text, snippet_loc, snippet_lang, created_at, ttl_seconds, source_app, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Kind), m.Topic, m.Text, title, text, loc, lang,
		m.CreatedAt.UTC().Format(time.RFC3339Nano), ttl, string(m.SourceApp), embBytes)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "insert memory row")
	}

	for _, e := range m.Entities {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_entities (memory_id, entity) VALUES (?, ?)`, m.ID, e); err != nil {
			return merr.Wrap(merr.Internal, err, "insert memory entity")
		}
	}
	for i, turnID := range m.Provenance {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_provenance (memory_id, turn_id, ord) VALUES (?, ?, ?)`, m.ID, turnID, i); err != nil {
			return merr.Wrap(merr.Internal, err, "insert memory provenance")
		}
	}

	ftsSnippet := ""
	if m.Snippet != nil {
		ftsSnippet = m.Snippet.Text
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memories_fts (memory_id, text, snippet_text) VALUES (?, ?, ?)`, m.ID, m.Text, ftsSnippet); err != nil {
		return merr.Wrap(merr.Internal, err, "insert memory fts row")
	}

	if embedding != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO memory_vectors (memory_id, embedding) VALUES (?, ?)`, m.ID, EncodeEmbedding(embedding)); err != nil {
			return merr.Wrap(merr.Internal, err, "insert memory vector")
		}
	}

	if err := tx.Commit(); err != nil {
		return merr.Wrap(merr.Internal, err, "commit insert memory")
	}
	return nil
}

// GetMemory loads a memory with its entities and provenance populated.
func (s *Store) GetMemory(ctx context.Context, id string) (Memory, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, kind, topic, text, snippet_title, snippet_text, snippet_loc, snippet_lang, created_at, ttl_seconds, source_app
		FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Memory{}, merr.New(merr.NotFound, "memory %s not found", id)
	}
	if err != nil {
		return Memory{}, merr.Wrap(merr.Internal, err, "get memory")
	}
	if err := s.fillMemoryExtras(ctx, &m); err != nil {
		return Memory{}, err
	}
	return m, nil
}

// RecentMemories returns up to limit memories newest-first, optionally
// filtered to a single topic.
func (s *Store) RecentMemories(ctx context.Context, topic string, limit int) ([]Memory, error) {
	query := `SELECT id, kind, topic, text, snippet_title, snippet_text, snippet_loc, snippet_lang, created_at, ttl_seconds, source_app FROM memories`
	args := []any{}
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "recent memories")
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan memory")
		}
		if err := s.fillMemoryExtras(ctx, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTopics returns every distinct topic with its memory count and most
// recent memory timestamp, ordered by recency.
func (s *Store) ListTopics(ctx context.Context) ([]TopicSummary, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT topic, COUNT(*), MAX(created_at)
		FROM memories GROUP BY topic ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "list topics")
	}
	defer rows.Close()

	var out []TopicSummary
	for rows.Next() {
		var ts TopicSummary
		var last string
		if err := rows.Scan(&ts.Topic, &ts.MemoryCount, &last); err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan topic")
		}
		ts.LastMemoryAt, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, ts)
	}
	return out, rows.Err()
}

// LexicalSearch runs a BM25-ranked FTS5 query and returns memory ids in
// rank order together with their raw bm25 score (lower is better).
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	ftsQuery := strings.Join(terms, " OR ")

	rows, err := s.readDB.QueryContext(ctx, `
		SELECT memory_id, bm25(memories_fts) AS rank
		FROM memories_fts WHERE memories_fts MATCH ?
		ORDER BY rank LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "lexical search")
	}
	defer rows.Close()

	var out []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.MemoryID, &h.Score); err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan lexical hit")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// VectorSearch runs an ANN query against the memory_vectors table.
func (s *Store) VectorSearch(ctx context.Context, query []float32, limit int) ([]VectorHit, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT memory_id, distance FROM memory_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, EncodeEmbedding(query), limit)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "vector search")
	}
	defer rows.Close()

	var out []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.MemoryID, &h.Distance); err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan vector hit")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LoadEmbedding fetches the stored embedding for a memory, if any.
func (s *Store) LoadEmbedding(ctx context.Context, memoryID string) ([]float32, error) {
	var buf []byte
	err := s.readDB.QueryRowContext(ctx, `SELECT embedding FROM memories WHERE id = ?`, memoryID).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) || buf == nil {
		return nil, nil
	}
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "load embedding")
	}
	return DecodeEmbedding(buf), nil
}

// LexicalHit is one ranked result from LexicalSearch.
type LexicalHit struct {
	MemoryID string
	Score    float64
}

// VectorHit is one ranked result from VectorSearch.
type VectorHit struct {
	MemoryID string
	Distance float64
}

func (s *Store) fillMemoryExtras(ctx context.Context, m *Memory) error {
	rows, err := s.readDB.QueryContext(ctx, `SELECT entity FROM memory_entities WHERE memory_id = ?`, m.ID)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "load memory entities")
	}
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			rows.Close()
			return merr.Wrap(merr.Internal, err, "scan memory entity")
		}
		m.Entities = append(m.Entities, e)
	}
	rows.Close()

	rows, err = s.readDB.QueryContext(ctx, `SELECT turn_id FROM memory_provenance WHERE memory_id = ? ORDER BY ord ASC`, m.ID)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "load memory provenance")
	}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return merr.Wrap(merr.Internal, err, "scan memory provenance")
		}
		m.Provenance = append(m.Provenance, t)
	}
	rows.Close()
	return rows.Err()
}

func scanMemory(r rowScanner) (Memory, error) {
	var (
		m                                        Memory
		kind, createdAt, sourceApp               string
		title, text, loc, lang                   sql.NullString
		ttl                                       sql.NullInt64
	)
	if err := r.Scan(&m.ID, &kind, &m.Topic, &m.Text, &title, &text, &loc, &lang, &createdAt, &ttl, &sourceApp); err != nil {
		return Memory{}, err
	}
	m.Kind = MemoryKind(kind)
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.SourceApp = SourceApp(sourceApp)
	if ttl.Valid {
		m.TTLSeconds = &ttl.Int64
	}
	if title.Valid || text.Valid {
		m.Snippet = &Snippet{Title: title.String, Text: text.String, Location: loc.String, Language: lang.String}
	}
	return m, nil
}
