package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// InsertTurn persists a new turn. Callers are expected to have already
// minted t.ID.
func (s *Store) InsertTurn(ctx context.Context, t Turn) error {
	var tsAI sql.NullTime
	if t.TSAI != nil {
		tsAI = sql.NullTime{Time: *t.TSAI, Valid: true}
	}
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO turns (id, thread_id, ts_user, user_text, ts_ai, ai_text, source_app, source_url, source_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ThreadID, t.TSUser.UTC().Format(time.RFC3339Nano), t.UserText,
		tsAI, t.AIText, string(t.Source.App), nullIfEmpty(t.Source.URL), nullIfEmpty(t.Source.Path),
		t.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return merr.Wrap(merr.Internal, err, "insert turn")
	}
	return nil
}

// GetTurn loads a single turn by id.
func (s *Store) GetTurn(ctx context.Context, id string) (Turn, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, thread_id, ts_user, user_text, ts_ai, ai_text, source_app, source_url, source_path, created_at
		FROM turns WHERE id = ?`, id)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Turn{}, merr.New(merr.NotFound, "turn %s not found", id)
	}
	if err != nil {
		return Turn{}, merr.Wrap(merr.Internal, err, "get turn")
	}
	return t, nil
}

// ListTurnsByThread returns every turn in a thread, oldest first.
func (s *Store) ListTurnsByThread(ctx context.Context, threadID string) ([]Turn, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, thread_id, ts_user, user_text, ts_ai, ai_text, source_app, source_url, source_path, created_at
		FROM turns WHERE thread_id = ? ORDER BY id ASC`, threadID)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "list turns")
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan turn")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(r rowScanner) (Turn, error) {
	var (
		t          Turn
		tsUser     string
		tsAI       sql.NullTime
		aiText     sql.NullString
		sourceURL  sql.NullString
		sourcePath sql.NullString
		createdAt  string
		sourceApp  string
	)
	if err := r.Scan(&t.ID, &t.ThreadID, &tsUser, &t.UserText, &tsAI, &aiText, &sourceApp, &sourceURL, &sourcePath, &createdAt); err != nil {
		return Turn{}, err
	}
	t.TSUser, _ = time.Parse(time.RFC3339Nano, tsUser)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if tsAI.Valid {
		t.TSAI = &tsAI.Time
	}
	t.AIText = aiText.String
	t.Source = Source{App: SourceApp(sourceApp), URL: sourceURL.String, Path: sourcePath.String}
	return t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
