package capture_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// fakeDurable records writes and can be switched to fail every call, or only
// chunk inserts via failChunks.
type fakeDurable struct {
	fail       bool
	failChunks bool

	sessions  map[string]*models.StreamingSession
	chunks    []models.StreamChunk
	insights  []models.StreamingInsight
	projects  int
	queries   int
	lastTitle string
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{sessions: make(map[string]*models.StreamingSession)}
}

var errDown = errors.New("durable store unavailable")

func (f *fakeDurable) CreateStreamSession(_ context.Context, s *models.StreamingSession) error {
	if f.fail {
		return errDown
	}
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeDurable) UpdateSessionStatus(_ context.Context, id string, status models.SessionStatus) error {
	if f.fail {
		return errDown
	}
	if s, ok := f.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeDurable) UpdateSessionTasks(_ context.Context, id string, tasks []models.GenerationTask) error {
	if f.fail {
		return errDown
	}
	return nil
}

func (f *fakeDurable) SetSessionProject(_ context.Context, id string, projectID string) error {
	if f.fail {
		return errDown
	}
	if s, ok := f.sessions[id]; ok {
		s.ProjectID = &projectID
	}
	return nil
}

func (f *fakeDurable) InsertChunk(_ context.Context, chunk models.StreamChunk) error {
	if f.fail || f.failChunks {
		return errDown
	}
	f.chunks = append(f.chunks, chunk)
	return nil
}

func (f *fakeDurable) InsertInsight(_ context.Context, in models.StreamingInsight) error {
	if f.fail {
		return errDown
	}
	f.insights = append(f.insights, in)
	return nil
}

func (f *fakeDurable) GetStreamSession(_ context.Context, id string) (*models.StreamingSession, error) {
	if f.fail {
		return nil, errDown
	}
	return f.sessions[id], nil
}

func (f *fakeDurable) GetSessionChunks(_ context.Context, sessionID string) ([]models.StreamChunk, error) {
	if f.fail {
		return nil, errDown
	}
	var out []models.StreamChunk
	for _, c := range f.chunks {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDurable) GetSessionInsights(_ context.Context, sessionID string) ([]models.StreamingInsight, error) {
	if f.fail {
		return nil, errDown
	}
	var out []models.StreamingInsight
	for _, in := range f.insights {
		if in.SessionID == sessionID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeDurable) ListSessionsByUser(_ context.Context, userID string) ([]models.StreamingSession, error) {
	if f.fail {
		return nil, errDown
	}
	var out []models.StreamingSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeDurable) CreateProject(_ context.Context, userID, title string, flavor models.SchemaFlavor, description string, metadata map[string]any) (*models.Project, error) {
	if f.fail {
		return nil, errDown
	}
	f.projects++
	f.lastTitle = title
	return &models.Project{
		ID:     surrealmodels.NewRecordID("project", "p1"),
		UserID: userID,
		Title:  title,
		Flavor: flavor,
	}, nil
}

func (f *fakeDurable) CreateSavedSession(_ context.Context, projectID, name, description string) (*models.SavedSession, error) {
	if f.fail {
		return nil, errDown
	}
	return &models.SavedSession{
		ID:   surrealmodels.NewRecordID("db_session", "s1"),
		Name: name,
	}, nil
}

func (f *fakeDurable) CreateQuery(_ context.Context, sessionID, projectID, text, kind string, result models.QueryResult, resultFormat string, success bool) (*models.Query, error) {
	if f.fail {
		return nil, errDown
	}
	f.queries++
	return &models.Query{ID: surrealmodels.NewRecordID("query", "q1")}, nil
}

func TestCaptureChunkOrdering(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)

	sessionID, err := store.StartCapture(ctx, "user-1", "blog with posts and comments", models.FlavorSQL)
	require.NoError(t, err)

	task := &models.GenerationTask{ID: "task-1", Title: "Schema Design", Agent: "Schema Architect"}
	require.NoError(t, store.BeginTask(ctx, sessionID, task))
	assert.Equal(t, models.TaskActive, task.Status)
	require.NotNil(t, task.StartedAt, "beginning a task stamps its start time")

	fragments := []string{"CREATE ", "TABLE ", "posts (", "id SERIAL", ");"}
	for i, fragment := range fragments {
		chunk, err := store.CaptureChunk(ctx, sessionID, "task-1", "Schema Design", "Schema Architect",
			fragment, models.ContentSchema, nil)
		require.NoError(t, err)
		assert.Equal(t, i, chunk.Seq)
	}

	data := store.GetSessionData(ctx, sessionID)
	require.NotNil(t, data)
	assert.Equal(t, models.SessionStreaming, data.Session.Status)

	var concatenated string
	lastSeq := -1
	for _, chunk := range data.Chunks {
		require.Greater(t, chunk.Seq, lastSeq, "sequence indices must strictly increase")
		lastSeq = chunk.Seq
		concatenated += chunk.Content
	}
	assert.Equal(t, "CREATE TABLE posts (id SERIAL);", concatenated)
	assert.Equal(t, concatenated, data.Session.Task("task-1").Content)
}

func TestCaptureChunkUnknownSession(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)

	_, err := store.CaptureChunk(ctx, "missing", "t", "T", "A", "x", models.ContentText, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrSessionNotFound)
}

func TestCaptureInsightNeverFails(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)

	// Unknown session is absorbed, not propagated.
	insight := store.CaptureInsight(ctx, "missing", "Agent", "message", models.InsightProgress, nil)
	assert.Nil(t, insight)

	sessionID, err := store.StartCapture(ctx, "user-1", "some prompt", models.FlavorSQL)
	require.NoError(t, err)

	insight = store.CaptureInsight(ctx, sessionID, "Agent", "message", models.InsightProgress, nil)
	require.NotNil(t, insight)
	assert.Equal(t, sessionID, insight.SessionID)
}

func TestDurableOutageTolerance(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	durable.fail = true
	store := capture.NewStore(durable, nil, nil)

	sessionID, err := store.StartCapture(ctx, "user-1", "hospital patient records", models.FlavorSQL)
	require.NoError(t, err, "startCapture must succeed with the durable store down")

	task := &models.GenerationTask{ID: "task-1", Title: "Requirements Analysis", Agent: "Requirements Analyst"}
	require.NoError(t, store.BeginTask(ctx, sessionID, task))

	_, err = store.CaptureChunk(ctx, sessionID, "task-1", "Requirements Analysis", "Requirements Analyst",
		"patients and doctors", models.ContentText, nil)
	require.NoError(t, err, "captureChunk must succeed with the durable store down")

	store.CaptureInsight(ctx, sessionID, "Requirements Analyst", "working", models.InsightProgress, nil)

	require.NoError(t, store.FinishTask(ctx, sessionID, "task-1", models.TaskCompleted, false))

	projectID, err := store.CompleteCapture(ctx, sessionID, nil)
	require.NoError(t, err, "completeCapture must succeed with the durable store down")
	assert.NotEmpty(t, projectID)

	sessions := store.SavedSessions(ctx, "user-1")
	require.Len(t, sessions, 1, "memory-only session must still appear in the saved list")
	assert.Equal(t, sessionID, sessions[0].ID)
	assert.Equal(t, models.SessionCompleted, sessions[0].Status)
}

func TestSavedSessionsUnion(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	store := capture.NewStore(durable, nil, nil)

	// One session persisted and completed.
	first, err := store.StartCapture(ctx, "user-1", "first prompt", models.FlavorSQL)
	require.NoError(t, err)
	_, err = store.CompleteCapture(ctx, first, nil)
	require.NoError(t, err)

	// One session resident only (durable down from now on).
	durable.fail = true
	second, err := store.StartCapture(ctx, "user-1", "second prompt", models.FlavorNoSQL)
	require.NoError(t, err)

	// A different user's session is excluded.
	_, err = store.StartCapture(ctx, "user-2", "other prompt", models.FlavorSQL)
	require.NoError(t, err)

	durable.fail = false
	sessions := store.SavedSessions(ctx, "user-1")
	require.Len(t, sessions, 2)

	ids := []string{sessions[0].ID, sessions[1].ID}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
	assert.True(t, !sessions[0].UpdatedAt.Before(sessions[1].UpdatedAt), "newest first")
}

func TestGetSessionDataUnknown(t *testing.T) {
	store := capture.NewStore(nil, nil, nil)
	assert.Nil(t, store.GetSessionData(context.Background(), "missing"))
}
