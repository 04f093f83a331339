// Package pipeline drives the ordered generation phases for a session and
// surfaces progress as events.
package pipeline

import "github.com/dbcoach/dbcoach-go/internal/models"

// TaskStartEvent announces that a phase has begun executing.
type TaskStartEvent struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Agent     string `json:"agent"`
	Position  int    `json:"position"`
	Total     int    `json:"total"`
}

// ChunkEvent carries one incremental content fragment, never a cumulative total.
type ChunkEvent struct {
	SessionID string             `json:"session_id"`
	TaskID    string             `json:"task_id"`
	TaskTitle string             `json:"task_title"`
	Agent     string             `json:"agent"`
	Seq       int                `json:"seq"`
	Content   string             `json:"content"`
	Kind      models.ContentKind `json:"kind"`
}

// TaskCompleteEvent announces that a phase finished, successfully or not.
type TaskCompleteEvent struct {
	SessionID string            `json:"session_id"`
	TaskID    string            `json:"task_id"`
	Title     string            `json:"title"`
	Agent     string            `json:"agent"`
	Status    models.TaskStatus `json:"status"`
	Fallback  bool              `json:"fallback"`
}

// InsightEvent carries agent reasoning telemetry.
type InsightEvent struct {
	SessionID string             `json:"session_id"`
	Agent     string             `json:"agent"`
	Message   string             `json:"message"`
	Kind      models.InsightKind `json:"kind"`
}

// SessionCompleteEvent is emitted exactly once, after the last phase.
type SessionCompleteEvent struct {
	SessionID string  `json:"session_id"`
	ProjectID *string `json:"project_id,omitempty"`
	Tasks     int     `json:"tasks"`
}

// ErrorEvent reports a non-fatal failure during a run.
type ErrorEvent struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id,omitempty"`
	Message   string `json:"message"`
}

// Listener receives pipeline events in emission order. Implementations must
// not assume events arrive on any particular goroutine; within one session
// they arrive strictly sequentially.
type Listener interface {
	OnTaskStart(TaskStartEvent)
	OnChunk(ChunkEvent)
	OnTaskComplete(TaskCompleteEvent)
	OnInsight(InsightEvent)
	OnSessionComplete(SessionCompleteEvent)
	OnError(ErrorEvent)
}

// NopListener discards all events. Useful as an embedding base.
type NopListener struct{}

func (NopListener) OnTaskStart(TaskStartEvent)             {}
func (NopListener) OnChunk(ChunkEvent)                     {}
func (NopListener) OnTaskComplete(TaskCompleteEvent)       {}
func (NopListener) OnInsight(InsightEvent)                 {}
func (NopListener) OnSessionComplete(SessionCompleteEvent) {}
func (NopListener) OnError(ErrorEvent)                     {}
