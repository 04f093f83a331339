// Package replay reproduces the appearance of live streaming from a captured
// session, decoupled from real generation timing.
package replay

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
)

// Mode selects the replay granularity.
type Mode string

const (
	// ModeChunk replays the stored chunks one step per chunk.
	ModeChunk Mode = "chunk"
	// ModeCharacter replays each task's full text at a fixed
	// characters-per-step rate.
	ModeCharacter Mode = "character"
)

// Options tunes a replay run.
type Options struct {
	Mode     Mode
	Tick     time.Duration // interval between steps
	Speed    int           // steps advanced per tick, minimum 1
	CharRate int           // characters per step in ModeCharacter
}

func (o *Options) normalize() {
	if o.Mode == "" {
		o.Mode = ModeChunk
	}
	if o.Tick <= 0 {
		o.Tick = 50 * time.Millisecond
	}
	if o.Speed < 1 {
		o.Speed = 1
	}
	if o.CharRate < 1 {
		o.CharRate = 24
	}
}

// step is one precomputed display increment.
type step struct {
	event pipeline.ChunkEvent
}

// Engine replays one captured session. It never mutates the chunk data it
// was built from. Safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	sessionID string
	steps     []step
	full      map[string]string // task id -> complete stored content
	taskOrder []string

	displayed map[string]string
	position  int
	running   bool
	cancel    chan struct{}
	done      chan struct{}

	opts   Options
	emit   func(pipeline.ChunkEvent)
	logger *slog.Logger
}

// NewEngine builds a replay engine from a captured chunk log. The chunks are
// copied and sorted by sequence index; the caller's slice is left untouched.
// emit receives one event per step, in order; it may be nil.
func NewEngine(sessionID string, chunks []*models.StreamChunk, opts Options, emit func(pipeline.ChunkEvent), logger *slog.Logger) *Engine {
	opts.normalize()
	if emit == nil {
		emit = func(pipeline.ChunkEvent) {}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ordered := slices.Clone(chunks)
	slices.SortFunc(ordered, func(a, b *models.StreamChunk) int { return a.Seq - b.Seq })

	e := &Engine{
		sessionID: sessionID,
		full:      make(map[string]string),
		displayed: make(map[string]string),
		opts:      opts,
		emit:      emit,
		logger:    logger,
	}

	for _, chunk := range ordered {
		if _, ok := e.full[chunk.TaskID]; !ok {
			e.taskOrder = append(e.taskOrder, chunk.TaskID)
		}
		e.full[chunk.TaskID] += chunk.Content
	}

	switch opts.Mode {
	case ModeCharacter:
		e.steps = characterSteps(sessionID, ordered, e.taskOrder, e.full, opts.CharRate)
	default:
		e.steps = chunkSteps(sessionID, ordered)
	}

	return e
}

func chunkSteps(sessionID string, ordered []*models.StreamChunk) []step {
	steps := make([]step, 0, len(ordered))
	for _, chunk := range ordered {
		steps = append(steps, step{event: pipeline.ChunkEvent{
			SessionID: sessionID,
			TaskID:    chunk.TaskID,
			TaskTitle: chunk.TaskTitle,
			Agent:     chunk.Agent,
			Seq:       chunk.Seq,
			Content:   chunk.Content,
			Kind:      chunk.Kind,
		}})
	}
	return steps
}

func characterSteps(sessionID string, ordered []*models.StreamChunk, taskOrder []string, full map[string]string, charRate int) []step {
	// Denormalized fields come from each task's first chunk.
	first := make(map[string]*models.StreamChunk)
	for _, chunk := range ordered {
		if _, ok := first[chunk.TaskID]; !ok {
			first[chunk.TaskID] = chunk
		}
	}

	var steps []step
	seq := 0
	for _, taskID := range taskOrder {
		text := []rune(full[taskID])
		src := first[taskID]
		for start := 0; start < len(text); start += charRate {
			end := min(start+charRate, len(text))
			steps = append(steps, step{event: pipeline.ChunkEvent{
				SessionID: sessionID,
				TaskID:    taskID,
				TaskTitle: src.TaskTitle,
				Agent:     src.Agent,
				Seq:       seq,
				Content:   string(text[start:end]),
				Kind:      src.Kind,
			}})
			seq++
		}
	}
	return steps
}

// Start resets displayed content and begins advancing on the tick interval.
// Starting an already running replay restarts it from the beginning.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.stopLocked(false)
	}
	e.displayed = make(map[string]string)
	e.position = 0
	e.running = true
	e.cancel = make(chan struct{})
	e.done = make(chan struct{})
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	e.logger.Debug("replay started", "session_id", e.sessionID, "steps", len(e.steps), "mode", e.opts.Mode)

	go e.loop(cancel, done)
}

func (e *Engine) loop(cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if finished := e.advance(e.opts.Speed); finished {
				e.mu.Lock()
				e.running = false
				e.mu.Unlock()
				e.logger.Debug("replay finished", "session_id", e.sessionID)
				return
			}
		}
	}
}

// advance emits up to n steps and reports whether the replay is exhausted.
func (e *Engine) advance(n int) bool {
	var events []pipeline.ChunkEvent

	e.mu.Lock()
	for i := 0; i < n && e.position < len(e.steps); i++ {
		s := e.steps[e.position]
		e.displayed[s.event.TaskID] += s.event.Content
		events = append(events, s.event)
		e.position++
	}
	finished := e.position >= len(e.steps)
	e.mu.Unlock()

	for _, event := range events {
		e.emit(event)
	}
	return finished
}

// Stop cancels the replay and resolves every task's displayed content to its
// full stored text. Synchronous: when it returns, no further events are
// emitted and the display holds no partial state.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopLocked(true)
	e.mu.Unlock()
}

// stopLocked halts the tick loop. resolve fills displayed content to full.
// Caller holds e.mu.
func (e *Engine) stopLocked(resolve bool) {
	if e.cancel != nil {
		select {
		case <-e.cancel:
		default:
			close(e.cancel)
		}
		done := e.done
		e.mu.Unlock()
		<-done
		e.mu.Lock()
	}
	e.running = false
	if resolve {
		for taskID, text := range e.full {
			e.displayed[taskID] = text
		}
		e.position = len(e.steps)
	}
}

// Progress reports how many steps have been displayed out of the total.
func (e *Engine) Progress() (done, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position, len(e.steps)
}

// Running reports whether the replay is still advancing.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Done returns a channel closed when the current run's tick loop exits.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Displayed returns a copy of the per-task displayed content.
func (e *Engine) Displayed() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.displayed))
	for k, v := range e.displayed {
		out[k] = v
	}
	return out
}

// FullContent returns a copy of the per-task complete stored content.
func (e *Engine) FullContent() map[string]string {
	out := make(map[string]string, len(e.full))
	for k, v := range e.full {
		out[k] = v
	}
	return out
}
