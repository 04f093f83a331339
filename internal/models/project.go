package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Project is the persisted container a completed streaming session
// materializes into.
type Project struct {
	ID          surrealmodels.RecordID `json:"id"`
	UserID      string                 `json:"user_id"`
	Title       string                 `json:"title"`
	Flavor      SchemaFlavor           `json:"flavor"`
	Description string                 `json:"description"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// SavedSession is the persisted unit of work under a project.
type SavedSession struct {
	ID          surrealmodels.RecordID `json:"id"`
	Project     surrealmodels.RecordID `json:"project"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"created_at"`
}

// QueryResultKind discriminates query result payloads. Consumers switch on
// the kind instead of probing for optional fields.
type QueryResultKind string

const (
	// ResultStreamingChunk marks a payload carrying streaming-originated
	// generation content.
	ResultStreamingChunk QueryResultKind = "streaming_chunk"
)

// QueryResult is the structured payload stored with a persisted query.
type QueryResult struct {
	Kind        QueryResultKind `json:"kind"`
	TaskID      string          `json:"task_id"`
	Agent       string          `json:"agent"`
	ContentKind ContentKind     `json:"content_kind"`
	Text        string          `json:"text"`
}

// Query is one persisted generation phase under a saved session.
type Query struct {
	ID           surrealmodels.RecordID `json:"id"`
	Session      surrealmodels.RecordID `json:"session"`
	Project      surrealmodels.RecordID `json:"project"`
	Text         string                 `json:"text"`
	Kind         string                 `json:"kind"`
	Result       QueryResult            `json:"result"`
	ResultFormat string                 `json:"result_format"`
	Success      bool                   `json:"success"`
	CreatedAt    time.Time              `json:"created_at"`
}
