package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStreamer yields a fixed fragment sequence per call, in call order.
type scriptedStreamer struct {
	mu      sync.Mutex
	scripts [][]string
	errs    []error
	hang    map[int]bool // calls that block until the context dies
	calls   int
}

func (f *scriptedStreamer) StreamText(ctx context.Context, _, _ string, fn func(chunk string) error) (string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.hang[call] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return "", f.errs[call]
	}

	var script []string
	if call < len(f.scripts) {
		script = f.scripts[call]
	}
	for _, fragment := range script {
		if err := fn(fragment); err != nil {
			return "", err
		}
	}
	return strings.Join(script, ""), nil
}

// recordingListener collects events in emission order.
type recordingListener struct {
	mu        sync.Mutex
	starts    []pipeline.TaskStartEvent
	chunks    []pipeline.ChunkEvent
	completes []pipeline.TaskCompleteEvent
	insights  []pipeline.InsightEvent
	sessions  []pipeline.SessionCompleteEvent
	errors    []pipeline.ErrorEvent
}

func (l *recordingListener) OnTaskStart(e pipeline.TaskStartEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, e)
}

func (l *recordingListener) OnChunk(e pipeline.ChunkEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks = append(l.chunks, e)
}

func (l *recordingListener) OnTaskComplete(e pipeline.TaskCompleteEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completes = append(l.completes, e)
}

func (l *recordingListener) OnInsight(e pipeline.InsightEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insights = append(l.insights, e)
}

func (l *recordingListener) OnSessionComplete(e pipeline.SessionCompleteEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append(l.sessions, e)
}

func (l *recordingListener) OnError(e pipeline.ErrorEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, e)
}

func TestRunFourPhaseScenario(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)
	streamer := &scriptedStreamer{scripts: [][]string{
		{"entities: ", "posts, comments"},
		{"CREATE TABLE posts (", "id SERIAL PRIMARY KEY", ");"},
		{"INSERT INTO posts ", "VALUES (1);"},
		{"looks ", "good"},
	}}
	listener := &recordingListener{}
	runner := pipeline.NewRunner(streamer, store, nil, time.Second, nil)

	sessionID, err := runner.Run(ctx, "user-1",
		"Create a SQL database: blog with posts and comments", models.FlavorSQL, listener)
	require.NoError(t, err)

	require.Len(t, listener.starts, 4)
	require.Len(t, listener.completes, 4)
	require.Len(t, listener.sessions, 1)
	assert.Empty(t, listener.errors)

	wantTitles := []string{"Requirements Analysis", "Schema Design", "Implementation Package", "Quality Validation"}
	for i, start := range listener.starts {
		assert.Equal(t, wantTitles[i], start.Title)
		assert.Equal(t, i, start.Position)
		assert.Equal(t, 4, start.Total)
		assert.Equal(t, start.TaskID, listener.completes[i].TaskID, "start/complete pairs stay in order")
		assert.Equal(t, models.TaskCompleted, listener.completes[i].Status)
	}

	// At least one chunk per phase, and chunk content concatenated per task
	// matches the stored full text exactly.
	data := store.GetSessionData(ctx, sessionID)
	require.NotNil(t, data)
	require.Len(t, data.Session.Tasks, 4)

	perTask := make(map[string]string)
	for _, chunk := range data.Chunks {
		perTask[chunk.TaskID] += chunk.Content
	}
	for _, task := range data.Session.Tasks {
		assert.NotEmpty(t, perTask[task.ID], "every phase emits at least one chunk")
		assert.Equal(t, task.Content, perTask[task.ID])
	}
}

func TestRunChunkEventsMatchCapture(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)
	streamer := &scriptedStreamer{scripts: [][]string{
		{"a", "b"}, {"c"}, {"d"}, {"e"},
	}}
	listener := &recordingListener{}
	runner := pipeline.NewRunner(streamer, store, nil, time.Second, nil)

	sessionID, err := runner.Run(ctx, "user-1", "blog", models.FlavorSQL, listener)
	require.NoError(t, err)

	data := store.GetSessionData(ctx, sessionID)
	require.NotNil(t, data)
	require.Len(t, listener.chunks, len(data.Chunks), "every delivered chunk is captured")

	for i, event := range listener.chunks {
		assert.Equal(t, data.Chunks[i].Seq, event.Seq)
		assert.Equal(t, data.Chunks[i].Content, event.Content)
		assert.Equal(t, data.Chunks[i].TaskID, event.TaskID)
	}
}

func TestRunFallbackOnTimeout(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)
	streamer := &scriptedStreamer{
		scripts: [][]string{{"analysis"}, nil, {"impl"}, {"valid"}},
		hang:    map[int]bool{1: true},
	}
	listener := &recordingListener{}
	runner := pipeline.NewRunner(streamer, store, nil, 50*time.Millisecond, nil)

	sessionID, err := runner.Run(ctx, "user-1", "blog", models.FlavorSQL, listener)
	require.NoError(t, err)

	require.Len(t, listener.completes, 4)
	timedOut := listener.completes[1]
	assert.Equal(t, models.TaskCompleted, timedOut.Status, "timeout still ends the task completed")
	assert.True(t, timedOut.Fallback)

	data := store.GetSessionData(ctx, sessionID)
	require.NotNil(t, data)
	task := data.Session.Tasks[1]
	assert.Equal(t, models.TaskCompleted, task.Status)
	assert.True(t, task.Fallback)
	assert.NotEmpty(t, task.Content, "fallback content is non-empty")

	require.Len(t, listener.sessions, 1, "session complete still emitted after the last phase")
}

func TestRunPhaseFailureContinues(t *testing.T) {
	ctx := context.Background()
	store := capture.NewStore(nil, nil, nil)
	streamer := &scriptedStreamer{
		scripts: [][]string{{"analysis"}, nil, {"impl"}, {"valid"}},
		errs:    []error{nil, errors.New("backend unreachable"), nil, nil},
	}
	listener := &recordingListener{}
	runner := pipeline.NewRunner(streamer, store, nil, time.Second, nil)

	_, err := runner.Run(ctx, "user-1", "blog", models.FlavorSQL, listener)
	require.NoError(t, err)

	require.Len(t, listener.completes, 4, "one phase's failure must not prevent later phases")
	assert.Equal(t, models.TaskFailed, listener.completes[1].Status)
	assert.True(t, listener.completes[1].Fallback)
	assert.Equal(t, models.TaskCompleted, listener.completes[2].Status)
	require.Len(t, listener.errors, 1)
	require.Len(t, listener.sessions, 1)
}

func TestRunEmptyPromptRejected(t *testing.T) {
	store := capture.NewStore(nil, nil, nil)
	runner := pipeline.NewRunner(&scriptedStreamer{}, store, nil, time.Second, nil)

	_, err := runner.Run(context.Background(), "user-1", "", models.FlavorSQL, nil)
	require.Error(t, err)
}
