// Package db provides SurrealDB query functions for project storage.
package db

import (
	"context"
	"fmt"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CreateProject creates a project row and returns it.
func (c *Client) CreateProject(
	ctx context.Context,
	userID string,
	title string,
	flavor models.SchemaFlavor,
	description string,
	metadata map[string]any,
) (*models.Project, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	sql := `
		CREATE project SET
			user_id = $user_id,
			title = $title,
			flavor = $flavor,
			description = $description,
			metadata = $metadata
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]models.Project](ctx, c.db, sql, map[string]any{
		"user_id":     userID,
		"title":       title,
		"flavor":      string(flavor),
		"description": description,
		"metadata":    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create project: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// CreateSavedSession creates a persisted session under a project.
func (c *Client) CreateSavedSession(
	ctx context.Context,
	projectID string,
	name string,
	description string,
) (*models.SavedSession, error) {
	sql := `
		CREATE db_session SET
			project = type::record("project", $project_id),
			name = $name,
			description = $description
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]models.SavedSession](ctx, c.db, sql, map[string]any{
		"project_id":  projectID,
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, fmt.Errorf("create saved session: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create saved session: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// CreateQuery creates a persisted query (one generation phase) under a session.
func (c *Client) CreateQuery(
	ctx context.Context,
	sessionID string,
	projectID string,
	text string,
	kind string,
	result models.QueryResult,
	resultFormat string,
	success bool,
) (*models.Query, error) {
	sql := `
		CREATE query SET
			session = type::record("db_session", $session_id),
			project = type::record("project", $project_id),
			text = $text,
			kind = $kind,
			result = $result,
			result_format = $result_format,
			success = $success
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]models.Query](ctx, c.db, sql, map[string]any{
		"session_id":    sessionID,
		"project_id":    projectID,
		"text":          text,
		"kind":          kind,
		"result":        result,
		"result_format": resultFormat,
		"success":       success,
	})
	if err != nil {
		return nil, fmt.Errorf("create query: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create query: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetProject retrieves a project by id. Returns nil if not found.
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	results, err := surrealdb.Query[[]models.Project](ctx, c.db, `
		SELECT * FROM type::record("project", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get project: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListProjects returns a user's projects, newest first.
func (c *Client) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	results, err := surrealdb.Query[[]models.Project](ctx, c.db, `
		SELECT * FROM project
		WHERE user_id = $user_id
		ORDER BY created_at DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Project{}, nil
	}
	return (*results)[0].Result, nil
}

// GetProjectQueries returns all persisted queries for a project in creation order.
func (c *Client) GetProjectQueries(ctx context.Context, projectID string) ([]models.Query, error) {
	results, err := surrealdb.Query[[]models.Query](ctx, c.db, `
		SELECT * FROM query
		WHERE project = type::record("project", $project_id)
		ORDER BY created_at ASC
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("get project queries: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Query{}, nil
	}
	return (*results)[0].Result, nil
}

// DeleteProject removes a project and its dependent sessions and queries.
// Idempotent: deleting an unknown id is not an error.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	sql := `
		DELETE query WHERE project = type::record("project", $id);
		DELETE db_session WHERE project = type::record("project", $id);
		DELETE type::record("project", $id);
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete project: %w", wrapQueryError(err))
	}
	return nil
}
