package store

import (
	"context"
	"database/sql"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// UpsertLink inserts a directed link, or strengthens an existing one by
// keeping whichever strength/rationale is larger/non-empty.
func (s *Store) UpsertLink(ctx context.Context, l Link) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO links (source, target, strength, rationale)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source, target) DO UPDATE SET
			strength = MAX(links.strength, excluded.strength),
			rationale = CASE WHEN excluded.rationale != '' THEN excluded.rationale ELSE links.rationale END`,
		l.Source, l.Target, l.Strength, l.Rationale)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "upsert link")
	}
	return nil
}

// LinksFrom returns every outbound link from a memory, strongest first.
func (s *Store) LinksFrom(ctx context.Context, memoryID string) ([]Link, error) {
	return s.queryLinks(ctx, `SELECT source, target, strength, rationale FROM links WHERE source = ? ORDER BY strength DESC`, memoryID)
}

// LinksTo returns every inbound link to a memory, strongest first.
func (s *Store) LinksTo(ctx context.Context, memoryID string) ([]Link, error) {
	return s.queryLinks(ctx, `SELECT source, target, strength, rationale FROM links WHERE target = ? ORDER BY strength DESC`, memoryID)
}

func (s *Store) queryLinks(ctx context.Context, query string, args ...any) ([]Link, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "query links")
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var rationale sql.NullString
		if err := rows.Scan(&l.Source, &l.Target, &l.Strength, &rationale); err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan link")
		}
		l.Rationale = rationale.String
		out = append(out, l)
	}
	return out, rows.Err()
}
