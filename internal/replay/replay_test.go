package replay_test

import (
	"sync"
	"testing"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
	"github.com/dbcoach/dbcoach-go/internal/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturedChunks() []*models.StreamChunk {
	return []*models.StreamChunk{
		{SessionID: "s1", TaskID: "t1", TaskTitle: "Requirements Analysis", Agent: "Requirements Analyst", Seq: 0, Content: "entities: ", Kind: models.ContentText},
		{SessionID: "s1", TaskID: "t1", TaskTitle: "Requirements Analysis", Agent: "Requirements Analyst", Seq: 1, Content: "posts, comments", Kind: models.ContentText},
		{SessionID: "s1", TaskID: "t2", TaskTitle: "Schema Design", Agent: "Schema Architect", Seq: 2, Content: "CREATE TABLE posts ", Kind: models.ContentSchema},
		{SessionID: "s1", TaskID: "t2", TaskTitle: "Schema Design", Agent: "Schema Architect", Seq: 3, Content: "(id SERIAL);", Kind: models.ContentSchema},
	}
}

func waitDone(t *testing.T, e *replay.Engine) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish in time")
	}
}

func TestReplayDeterminismAcrossSpeeds(t *testing.T) {
	chunks := capturedChunks()

	var finals []map[string]string
	for _, speed := range []int{1, 2, 10} {
		engine := replay.NewEngine("s1", chunks, replay.Options{
			Tick:  time.Millisecond,
			Speed: speed,
		}, nil, nil)
		engine.Start()
		waitDone(t, engine)
		finals = append(finals, engine.Displayed())
	}

	want := map[string]string{
		"t1": "entities: posts, comments",
		"t2": "CREATE TABLE posts (id SERIAL);",
	}
	for i, final := range finals {
		assert.Equal(t, want, final, "speed variant %d must produce identical final state", i)
	}
}

func TestReplayCharacterModeDeterminism(t *testing.T) {
	chunks := capturedChunks()

	for _, rate := range []int{1, 7, 1000} {
		engine := replay.NewEngine("s1", chunks, replay.Options{
			Mode:     replay.ModeCharacter,
			Tick:     time.Millisecond,
			CharRate: rate,
		}, nil, nil)
		engine.Start()
		waitDone(t, engine)

		assert.Equal(t, engine.FullContent(), engine.Displayed(),
			"char rate %d must reproduce the full content exactly", rate)
	}
}

func TestReplayEmitsChunkEventsInOrder(t *testing.T) {
	chunks := capturedChunks()

	var mu sync.Mutex
	var events []pipeline.ChunkEvent
	engine := replay.NewEngine("s1", chunks, replay.Options{Tick: time.Millisecond}, func(e pipeline.ChunkEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}, nil)

	engine.Start()
	waitDone(t, engine)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, len(chunks))
	for i, event := range events {
		assert.Equal(t, chunks[i].Seq, event.Seq)
		assert.Equal(t, chunks[i].Content, event.Content)
		assert.Equal(t, chunks[i].TaskID, event.TaskID)
		assert.Equal(t, "s1", event.SessionID)
	}
}

func TestReplayStopResolvesFully(t *testing.T) {
	chunks := capturedChunks()
	engine := replay.NewEngine("s1", chunks, replay.Options{
		Tick: time.Hour, // effectively never ticks on its own
	}, nil, nil)

	engine.Start()
	engine.Stop()

	assert.False(t, engine.Running())
	assert.Equal(t, engine.FullContent(), engine.Displayed(),
		"stop must leave no partial state visible")
}

func TestReplayRestartable(t *testing.T) {
	chunks := capturedChunks()
	engine := replay.NewEngine("s1", chunks, replay.Options{Tick: time.Millisecond}, nil, nil)

	engine.Start()
	waitDone(t, engine)
	first := engine.Displayed()

	engine.Start()
	waitDone(t, engine)
	second := engine.Displayed()

	assert.Equal(t, first, second)
}

func TestReplayDoesNotMutateChunks(t *testing.T) {
	chunks := capturedChunks()
	originals := make([]models.StreamChunk, len(chunks))
	for i, chunk := range chunks {
		originals[i] = *chunk
	}

	engine := replay.NewEngine("s1", chunks, replay.Options{Tick: time.Millisecond}, nil, nil)
	engine.Start()
	waitDone(t, engine)

	for i, chunk := range chunks {
		assert.Equal(t, originals[i], *chunk)
	}
}
