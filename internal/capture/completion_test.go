package capture_test

import (
	"context"
	"testing"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFinishedSession(t *testing.T, store *capture.Store, prompt string) string {
	t.Helper()
	ctx := context.Background()

	sessionID, err := store.StartCapture(ctx, "user-1", prompt, models.FlavorSQL)
	require.NoError(t, err)

	tasks := []struct{ id, title, agent string }{
		{"t-1", "Requirements Analysis", "Requirements Analyst"},
		{"t-2", "Schema Design", "Schema Architect"},
	}
	for _, task := range tasks {
		require.NoError(t, store.BeginTask(ctx, sessionID, &models.GenerationTask{
			ID: task.id, Title: task.title, Agent: task.agent,
		}))
		_, err := store.CaptureChunk(ctx, sessionID, task.id, task.title, task.agent,
			"content for "+task.title, models.ContentText, nil)
		require.NoError(t, err)
		require.NoError(t, store.FinishTask(ctx, sessionID, task.id, models.TaskCompleted, false))
	}
	return sessionID
}

func TestCompleteCaptureMaterializes(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	store := capture.NewStore(durable, nil, nil)

	sessionID := startFinishedSession(t, store, "track patients and doctors in a hospital")

	projectID, err := store.CompleteCapture(ctx, sessionID, map[string]any{"source": "test"})
	require.NoError(t, err)
	assert.Equal(t, "p1", projectID)
	assert.Equal(t, 1, durable.projects)
	assert.Equal(t, 2, durable.queries, "one query per task")

	// Durably stored, so the session is no longer resident but still readable.
	data := store.GetSessionData(ctx, sessionID)
	require.NotNil(t, data)
	assert.Equal(t, models.SessionCompleted, data.Session.Status)
}

func TestProjectTitleDerivation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"healthcare keywords", "track patients and doctors", "Healthcare Database (SQL)"},
		{"ecommerce keywords", "online store with orders and carts", "E-Commerce Database (SQL)"},
		{"generic fallback", "something entirely unrecognizable here today", "something entirely unrecognizable here today (SQL)"},
		{"fallback truncates long prompts", "one two three four five six seven eight", "one two three four five six (SQL)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			durable := newFakeDurable()
			store := capture.NewStore(durable, nil, nil)
			sessionID := startFinishedSession(t, store, tt.prompt)

			_, err := store.CompleteCapture(ctx, sessionID, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, durable.lastTitle)
		})
	}
}

func TestCompleteCaptureIdempotent(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	store := capture.NewStore(durable, nil, nil)

	sessionID := startFinishedSession(t, store, "a blog with posts")
	durable.fail = true // materialization keeps failing across both calls

	first, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err)

	second, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated completion must return the same placeholder")
	assert.Equal(t, 0, durable.projects, "no project rows while the store is down")
}

func TestCompleteCaptureRetriesAfterPlaceholder(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	store := capture.NewStore(durable, nil, nil)

	sessionID := startFinishedSession(t, store, "a blog with posts")
	durable.fail = true

	placeholder, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Contains(t, placeholder, "local-")
	assert.Equal(t, 0, durable.projects)

	// Store recovered: the next completion must materialize for real.
	durable.fail = false
	projectID, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, "p1", projectID)
	assert.Equal(t, 1, durable.projects)
	assert.Equal(t, 2, durable.queries)

	// And once a real project exists, further calls return it unchanged.
	again, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, projectID, again)
	assert.Equal(t, 1, durable.projects, "no duplicate project creation")
}

func TestCompleteCaptureKeepsDirtySessionResident(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	store := capture.NewStore(durable, nil, nil)

	sessionID, err := store.StartCapture(ctx, "user-1", "warehouse shipment tracking", models.FlavorSQL)
	require.NoError(t, err)
	require.NoError(t, store.BeginTask(ctx, sessionID, &models.GenerationTask{
		ID: "t-1", Title: "Schema Design", Agent: "Schema Architect",
	}))

	// Chunk writes fail mid-run, then the store recovers before completion.
	durable.failChunks = true
	_, err = store.CaptureChunk(ctx, sessionID, "t-1", "Schema Design", "Schema Architect",
		"CREATE TABLE shipments (", models.ContentSchema, nil)
	require.NoError(t, err)
	_, err = store.CaptureChunk(ctx, sessionID, "t-1", "Schema Design", "Schema Architect",
		"id SERIAL);", models.ContentSchema, nil)
	require.NoError(t, err)
	durable.failChunks = false
	require.NoError(t, store.FinishTask(ctx, sessionID, "t-1", models.TaskCompleted, false))

	projectID, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, "p1", projectID)

	// The durable chunk log is incomplete, so the resident copy must survive
	// eviction or the captured chunks would be lost.
	data := store.GetSessionData(ctx, sessionID)
	require.NotNil(t, data)
	require.Len(t, data.Chunks, 2)
	assert.Equal(t, "CREATE TABLE shipments (id SERIAL);",
		data.Chunks[0].Content+data.Chunks[1].Content)
	assert.Empty(t, durable.chunks, "nothing reached the durable log")
}

func TestCompleteCapturePlaceholderOnFailure(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	store := capture.NewStore(durable, nil, nil)

	sessionID := startFinishedSession(t, store, "warehouse shipment tracking")
	durable.fail = true

	projectID, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err, "persistence failure must not propagate")
	assert.NotEmpty(t, projectID)
	assert.Contains(t, projectID, "local-")

	// The session stays resident so the saved list still exposes the work.
	sessions := store.SavedSessions(ctx, "user-1")
	found := false
	for _, s := range sessions {
		if s.ID == sessionID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompleteCaptureUnknownSession(t *testing.T) {
	store := capture.NewStore(nil, nil, nil)
	_, err := store.CompleteCapture(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrSessionNotFound)
}
