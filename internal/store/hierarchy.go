package store

import (
	"context"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// UpsertWorkspace inserts or renames a workspace.
func (s *Store) UpsertWorkspace(ctx context.Context, id, name string) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO workspaces (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, id, name)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "upsert workspace")
	}
	return nil
}

// UpsertProject inserts or renames a project under a workspace.
func (s *Store) UpsertProject(ctx context.Context, id, name, workspaceID string) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO projects (id, name, workspace_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, workspace_id = excluded.workspace_id`,
		id, name, workspaceID)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "upsert project")
	}
	return nil
}

// UpsertArea inserts or renames an area under a project.
func (s *Store) UpsertArea(ctx context.Context, id, name, projectID string) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO areas (id, name, project_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, project_id = excluded.project_id`,
		id, name, projectID)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "upsert area")
	}
	return nil
}

// UpsertTopic inserts or renames a topic under an area.
func (s *Store) UpsertTopic(ctx context.Context, id, name, areaID string) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO topics (id, name, area_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, area_id = excluded.area_id`,
		id, name, areaID)
	if err != nil {
		return merr.Wrap(merr.Internal, err, "upsert topic")
	}
	return nil
}

// ListWorkspaces returns every workspace.
func (s *Store) ListWorkspaces(ctx context.Context) ([]HierarchyTuple, error) {
	return s.queryHierarchy(ctx, `SELECT id, name, '' FROM workspaces ORDER BY name`)
}

// ListProjects returns every project, optionally filtered to one workspace.
func (s *Store) ListProjects(ctx context.Context, workspaceID string) ([]HierarchyTuple, error) {
	if workspaceID == "" {
		return s.queryHierarchy(ctx, `
			SELECT p.id, p.name, w.name FROM projects p JOIN workspaces w ON w.id = p.workspace_id ORDER BY p.name`)
	}
	return s.queryHierarchy(ctx, `
		SELECT p.id, p.name, w.name FROM projects p JOIN workspaces w ON w.id = p.workspace_id
		WHERE p.workspace_id = ? ORDER BY p.name`, workspaceID)
}

// ListAreas returns every area, optionally filtered to one project.
func (s *Store) ListAreas(ctx context.Context, projectID string) ([]HierarchyTuple, error) {
	if projectID == "" {
		return s.queryHierarchy(ctx, `
			SELECT a.id, a.name, p.name FROM areas a JOIN projects p ON p.id = a.project_id ORDER BY a.name`)
	}
	return s.queryHierarchy(ctx, `
		SELECT a.id, a.name, p.name FROM areas a JOIN projects p ON p.id = a.project_id
		WHERE a.project_id = ? ORDER BY a.name`, projectID)
}

// ListTopicsByArea returns every topic under an area.
func (s *Store) ListTopicsByArea(ctx context.Context, areaID string) ([]HierarchyTuple, error) {
	if areaID == "" {
		return s.queryHierarchy(ctx, `
			SELECT t.id, t.name, a.name FROM topics t JOIN areas a ON a.id = t.area_id ORDER BY t.name`)
	}
	return s.queryHierarchy(ctx, `
		SELECT t.id, t.name, a.name FROM topics t JOIN areas a ON a.id = t.area_id
		WHERE t.area_id = ? ORDER BY t.name`, areaID)
}

func (s *Store) queryHierarchy(ctx context.Context, query string, args ...any) ([]HierarchyTuple, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, merr.Wrap(merr.Internal, err, "query hierarchy")
	}
	defer rows.Close()

	var out []HierarchyTuple
	for rows.Next() {
		var h HierarchyTuple
		if err := rows.Scan(&h.ID, &h.Name, &h.ParentName); err != nil {
			return nil, merr.Wrap(merr.Internal, err, "scan hierarchy row")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
