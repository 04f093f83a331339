// Package db provides SurrealDB query functions for the streaming capture log.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// sessionRow mirrors the stream_session table.
type sessionRow struct {
	ID        surrealmodels.RecordID  `json:"id"`
	UserID    string                  `json:"user_id"`
	Prompt    string                  `json:"prompt"`
	Flavor    string                  `json:"flavor"`
	Status    string                  `json:"status"`
	ProjectID *string                 `json:"project_id,omitempty"`
	Tasks     []models.GenerationTask `json:"tasks,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (r sessionRow) toModel() models.StreamingSession {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		id = fmt.Sprintf("%v", r.ID.ID)
	}
	tasks := make([]*models.GenerationTask, len(r.Tasks))
	for i := range r.Tasks {
		t := r.Tasks[i]
		tasks[i] = &t
	}
	return models.StreamingSession{
		ID:        id,
		UserID:    r.UserID,
		Prompt:    r.Prompt,
		Flavor:    models.SchemaFlavor(r.Flavor),
		Status:    models.SessionStatus(r.Status),
		Tasks:     tasks,
		ProjectID: r.ProjectID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// chunkRow mirrors the stream_chunk table.
type chunkRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	SessionID string                 `json:"session_id"`
	TaskID    string                 `json:"task_id"`
	TaskTitle string                 `json:"task_title"`
	Agent     string                 `json:"agent"`
	Seq       int                    `json:"seq"`
	Content   string                 `json:"content"`
	Kind      string                 `json:"kind"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func (r chunkRow) toModel() models.StreamChunk {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		id = fmt.Sprintf("%v", r.ID.ID)
	}
	return models.StreamChunk{
		ID:        id,
		SessionID: r.SessionID,
		TaskID:    r.TaskID,
		TaskTitle: r.TaskTitle,
		Agent:     r.Agent,
		Seq:       r.Seq,
		Content:   r.Content,
		Kind:      models.ContentKind(r.Kind),
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
}

// insightRow mirrors the stream_insight table.
type insightRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	SessionID string                 `json:"session_id"`
	Agent     string                 `json:"agent"`
	Message   string                 `json:"message"`
	Kind      string                 `json:"kind"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func (r insightRow) toModel() models.StreamingInsight {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		id = fmt.Sprintf("%v", r.ID.ID)
	}
	return models.StreamingInsight{
		ID:        id,
		SessionID: r.SessionID,
		Agent:     r.Agent,
		Message:   r.Message,
		Kind:      models.InsightKind(r.Kind),
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
}

// CreateStreamSession persists a new streaming session row.
// Uses UPSERT so a retried start is not an error.
func (c *Client) CreateStreamSession(ctx context.Context, s *models.StreamingSession) error {
	sql := `
		UPSERT type::record("stream_session", $id) SET
			user_id = $user_id,
			prompt = $prompt,
			flavor = $flavor,
			status = $status,
			created_at = $created_at,
			updated_at = $updated_at
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         s.ID,
		"user_id":    s.UserID,
		"prompt":     s.Prompt,
		"flavor":     string(s.Flavor),
		"status":     string(s.Status),
		"created_at": s.CreatedAt,
		"updated_at": s.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("create stream session: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateSessionStatus sets the session status and refreshes updated_at.
func (c *Client) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("stream_session", $id) SET
			status = $status,
			updated_at = time::now()
	`, map[string]any{"id": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("update session status: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateSessionTasks snapshots the session's task list.
// Called on task transitions, not per chunk.
func (c *Client) UpdateSessionTasks(ctx context.Context, id string, tasks []models.GenerationTask) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("stream_session", $id) SET
			tasks = $tasks,
			updated_at = time::now()
	`, map[string]any{"id": id, "tasks": tasks})
	if err != nil {
		return fmt.Errorf("update session tasks: %w", wrapQueryError(err))
	}
	return nil
}

// SetSessionProject records the materialized project id on the session.
func (c *Client) SetSessionProject(ctx context.Context, id string, projectID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("stream_session", $id) SET
			project_id = $project_id,
			updated_at = time::now()
	`, map[string]any{"id": id, "project_id": projectID})
	if err != nil {
		return fmt.Errorf("set session project: %w", wrapQueryError(err))
	}
	return nil
}

// InsertChunk appends one chunk to the durable log.
func (c *Client) InsertChunk(ctx context.Context, chunk models.StreamChunk) error {
	sql := `
		CREATE type::record("stream_chunk", $id) SET
			session_id = $session_id,
			task_id = $task_id,
			task_title = $task_title,
			agent = $agent,
			seq = $seq,
			content = $content,
			kind = $kind,
			metadata = $metadata,
			created_at = $created_at
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         chunk.ID,
		"session_id": chunk.SessionID,
		"task_id":    chunk.TaskID,
		"task_title": chunk.TaskTitle,
		"agent":      chunk.Agent,
		"seq":        chunk.Seq,
		"content":    chunk.Content,
		"kind":       string(chunk.Kind),
		"metadata":   chunk.Metadata,
		"created_at": chunk.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert chunk: %w", wrapQueryError(err))
	}
	return nil
}

// InsertInsight appends one insight to the durable log.
func (c *Client) InsertInsight(ctx context.Context, in models.StreamingInsight) error {
	sql := `
		CREATE type::record("stream_insight", $id) SET
			session_id = $session_id,
			agent = $agent,
			message = $message,
			kind = $kind,
			metadata = $metadata,
			created_at = $created_at
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         in.ID,
		"session_id": in.SessionID,
		"agent":      in.Agent,
		"message":    in.Message,
		"kind":       string(in.Kind),
		"metadata":   in.Metadata,
		"created_at": in.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert insight: %w", wrapQueryError(err))
	}
	return nil
}

// GetStreamSession retrieves a session row by id. Returns nil if not found.
func (c *Client) GetStreamSession(ctx context.Context, id string) (*models.StreamingSession, error) {
	results, err := surrealdb.Query[[]sessionRow](ctx, c.db, `
		SELECT * FROM type::record("stream_session", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get stream session: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	s := (*results)[0].Result[0].toModel()
	return &s, nil
}

// GetSessionChunks returns all chunks for a session in append order.
func (c *Client) GetSessionChunks(ctx context.Context, sessionID string) ([]models.StreamChunk, error) {
	results, err := surrealdb.Query[[]chunkRow](ctx, c.db, `
		SELECT * FROM stream_chunk
		WHERE session_id = $session_id
		ORDER BY created_at ASC, seq ASC
	`, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("get session chunks: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.StreamChunk{}, nil
	}
	rows := (*results)[0].Result
	chunks := make([]models.StreamChunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, r.toModel())
	}
	return chunks, nil
}

// GetSessionInsights returns all insights for a session in append order.
func (c *Client) GetSessionInsights(ctx context.Context, sessionID string) ([]models.StreamingInsight, error) {
	results, err := surrealdb.Query[[]insightRow](ctx, c.db, `
		SELECT * FROM stream_insight
		WHERE session_id = $session_id
		ORDER BY created_at ASC
	`, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("get session insights: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.StreamingInsight{}, nil
	}
	rows := (*results)[0].Result
	insights := make([]models.StreamingInsight, 0, len(rows))
	for _, r := range rows {
		insights = append(insights, r.toModel())
	}
	return insights, nil
}

// ListSessionsByUser returns a user's sessions, most recently updated first.
func (c *Client) ListSessionsByUser(ctx context.Context, userID string) ([]models.StreamingSession, error) {
	results, err := surrealdb.Query[[]sessionRow](ctx, c.db, `
		SELECT * FROM stream_session
		WHERE user_id = $user_id
		ORDER BY updated_at DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.StreamingSession{}, nil
	}
	rows := (*results)[0].Result
	sessions := make([]models.StreamingSession, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toModel())
	}
	return sessions, nil
}
