package models

import "time"

// ContentKind classifies a streamed content fragment.
type ContentKind string

const (
	ContentText   ContentKind = "text"
	ContentCode   ContentKind = "code"
	ContentSchema ContentKind = "schema"
	ContentQuery  ContentKind = "query"
)

// StreamChunk is one atomic unit of streamed text. Seq is monotonically
// increasing per task; concatenating a task's chunks in Seq order reproduces
// the task's full content exactly.
type StreamChunk struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	TaskID    string         `json:"task_id"`
	TaskTitle string         `json:"task_title"`
	Agent     string         `json:"agent"`
	Seq       int            `json:"seq"`
	Content   string         `json:"content"`
	Kind      ContentKind    `json:"kind"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// InsightKind classifies a side-channel narrative event.
type InsightKind string

const (
	InsightReasoning  InsightKind = "reasoning"
	InsightDecision   InsightKind = "decision"
	InsightProgress   InsightKind = "progress"
	InsightCompletion InsightKind = "completion"
)

// StreamingInsight is an append-only agent narration event. Insights are
// telemetry; they never affect the generated artifact.
type StreamingInsight struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent"`
	Message   string         `json:"message"`
	Kind      InsightKind    `json:"kind"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
