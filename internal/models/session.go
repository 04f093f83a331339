// Package models defines data structures for the DB.Coach streaming core.
package models

import (
	"time"
)

// SessionStatus tracks the lifecycle of a streaming session.
type SessionStatus string

const (
	SessionInitializing SessionStatus = "initializing"
	SessionStreaming    SessionStatus = "streaming"
	SessionCompleted    SessionStatus = "completed"
	SessionError        SessionStatus = "error"
)

// TaskStatus tracks the lifecycle of a single generation task.
// Completed and failed are terminal for the task; the pipeline continues
// to the next task after either outcome.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// SchemaFlavor is the target database paradigm for a generation run.
type SchemaFlavor string

const (
	FlavorSQL      SchemaFlavor = "sql"
	FlavorNoSQL    SchemaFlavor = "nosql"
	FlavorVectorDB SchemaFlavor = "vectordb"
)

// ParseSchemaFlavor normalizes a user-provided flavor string.
// Unknown values default to SQL.
func ParseSchemaFlavor(s string) SchemaFlavor {
	switch SchemaFlavor(s) {
	case FlavorNoSQL, FlavorVectorDB:
		return SchemaFlavor(s)
	default:
		return FlavorSQL
	}
}

// GenerationTask is one phase of the generation pipeline.
type GenerationTask struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Agent       string     `json:"agent"`
	Position    int        `json:"position"`
	Status      TaskStatus `json:"status"`
	Content     string     `json:"content"`
	Fallback    bool       `json:"fallback,omitempty"` // content substituted after timeout/error
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StreamingSession is one end-to-end pipeline run for one user prompt.
// Tasks are ordered by Position.
type StreamingSession struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Prompt    string            `json:"prompt"`
	Flavor    SchemaFlavor      `json:"flavor"`
	Status    SessionStatus     `json:"status"`
	Tasks     []*GenerationTask `json:"tasks"`
	ProjectID *string           `json:"project_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Task returns the task with the given id, or nil.
func (s *StreamingSession) Task(id string) *GenerationTask {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Touch advances UpdatedAt. The timestamp never moves backwards even if the
// wall clock does.
func (s *StreamingSession) Touch(now time.Time) {
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}
