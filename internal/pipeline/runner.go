package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/google/uuid"
)

// TextStreamer is the generation backend. *llm.Model satisfies it.
type TextStreamer interface {
	StreamText(ctx context.Context, systemPrompt, userPrompt string, fn func(chunk string) error) (string, error)
}

// Runner executes the phase catalog for one session at a time per call.
// Concurrent Run calls for independent sessions are safe; all shared state
// lives in the capture store.
type Runner struct {
	backend TextStreamer
	store   *capture.Store
	phases  []Phase
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner. timeout bounds each phase's backend call.
func NewRunner(backend TextStreamer, store *capture.Store, phases []Phase, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if len(phases) == 0 {
		phases = DefaultPhases()
	}
	return &Runner{
		backend: backend,
		store:   store,
		phases:  phases,
		timeout: timeout,
		logger:  logger,
	}
}

// Run drives every phase in order for a new session and returns its id.
// Individual phase failures never abort the run; the session always reaches
// a complete, displayable state and a single session-complete event.
func (r *Runner) Run(ctx context.Context, userID, prompt string, flavor models.SchemaFlavor, listener Listener) (string, error) {
	if listener == nil {
		listener = NopListener{}
	}

	sessionID, err := r.store.StartCapture(ctx, userID, prompt, flavor)
	if err != nil {
		return "", fmt.Errorf("start capture: %w", err)
	}

	r.logger.Info("generation run started",
		"session_id", sessionID, "flavor", flavor, "phases", len(r.phases))

	previous := ""
	for i, phase := range r.phases {
		previous = r.runPhase(ctx, sessionID, phase, i, prompt, flavor, previous, listener)
	}

	projectID, err := r.store.CompleteCapture(ctx, sessionID, map[string]any{
		"phase_count": len(r.phases),
	})
	if err != nil {
		// Unknown session here is a programmer error; surface it.
		r.store.MarkError(ctx, sessionID)
		listener.OnError(ErrorEvent{SessionID: sessionID, Message: err.Error()})
		return sessionID, fmt.Errorf("complete capture: %w", err)
	}

	listener.OnSessionComplete(SessionCompleteEvent{
		SessionID: sessionID,
		ProjectID: &projectID,
		Tasks:     len(r.phases),
	})
	r.logger.Info("generation run finished", "session_id", sessionID, "project_id", projectID)
	return sessionID, nil
}

// runPhase executes one phase and returns the text the next phase should
// build on. Fallback content is returned on timeout so later phases still
// have something to chain from; other failures return empty text.
func (r *Runner) runPhase(ctx context.Context, sessionID string, phase Phase, position int, prompt string, flavor models.SchemaFlavor, previous string, listener Listener) string {
	task := &models.GenerationTask{
		ID:       uuid.New().String()[:8],
		Title:    phase.Title,
		Agent:    phase.Agent,
		Position: position,
	}

	if err := r.store.BeginTask(ctx, sessionID, task); err != nil {
		r.logger.Error("begin task failed", "session_id", sessionID, "task", phase.Title, "error", err)
		listener.OnError(ErrorEvent{SessionID: sessionID, TaskID: task.ID, Message: err.Error()})
		return previous
	}

	listener.OnTaskStart(TaskStartEvent{
		SessionID: sessionID,
		TaskID:    task.ID,
		Title:     phase.Title,
		Agent:     phase.Agent,
		Position:  position,
		Total:     len(r.phases),
	})

	r.captureInsight(ctx, sessionID, phase.Agent,
		fmt.Sprintf("Starting %s", phase.Title), models.InsightProgress, listener)

	phaseCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	request := phase.BuildRequest(prompt, flavor, previous)
	text, streamErr := r.backend.StreamText(phaseCtx, phase.SystemPrompt, request, func(fragment string) error {
		chunk, err := r.store.CaptureChunk(phaseCtx, sessionID, task.ID, phase.Title, phase.Agent,
			fragment, phase.ContentKind, nil)
		if err != nil {
			return err
		}
		listener.OnChunk(ChunkEvent{
			SessionID: sessionID,
			TaskID:    task.ID,
			TaskTitle: phase.Title,
			Agent:     phase.Agent,
			Seq:       chunk.Seq,
			Content:   fragment,
			Kind:      phase.ContentKind,
		})
		return nil
	})

	switch {
	case streamErr == nil && text != "":
		if err := r.store.FinishTask(ctx, sessionID, task.ID, models.TaskCompleted, false); err != nil {
			r.logger.Warn("finish task failed", "session_id", sessionID, "task_id", task.ID, "error", err)
		}
		r.captureInsight(ctx, sessionID, phase.Agent,
			fmt.Sprintf("Completed %s", phase.Title), models.InsightCompletion, listener)
		listener.OnTaskComplete(TaskCompleteEvent{
			SessionID: sessionID, TaskID: task.ID, Title: phase.Title,
			Agent: phase.Agent, Status: models.TaskCompleted,
		})
		return text

	case errors.Is(phaseCtx.Err(), context.DeadlineExceeded):
		// Partial output is discarded for chaining purposes. The task still
		// ends completed, carrying deterministic fallback content.
		fallback := phase.Fallback(prompt, flavor)
		r.logger.Warn("phase timed out, substituting fallback",
			"session_id", sessionID, "task", phase.Title, "timeout", r.timeout)
		r.deliverFallback(ctx, sessionID, task, phase, fallback, listener)
		if err := r.store.FinishTask(ctx, sessionID, task.ID, models.TaskCompleted, true); err != nil {
			r.logger.Warn("finish task failed", "session_id", sessionID, "task_id", task.ID, "error", err)
		}
		listener.OnTaskComplete(TaskCompleteEvent{
			SessionID: sessionID, TaskID: task.ID, Title: phase.Title,
			Agent: phase.Agent, Status: models.TaskCompleted, Fallback: true,
		})
		return fallback

	default:
		if streamErr == nil {
			streamErr = fmt.Errorf("backend returned empty response")
		}
		fallback := phase.Fallback(prompt, flavor)
		r.logger.Error("phase failed, substituting fallback and continuing",
			"session_id", sessionID, "task", phase.Title, "error", streamErr)
		listener.OnError(ErrorEvent{SessionID: sessionID, TaskID: task.ID, Message: streamErr.Error()})
		r.deliverFallback(ctx, sessionID, task, phase, fallback, listener)
		if err := r.store.FinishTask(ctx, sessionID, task.ID, models.TaskFailed, true); err != nil {
			r.logger.Warn("finish task failed", "session_id", sessionID, "task_id", task.ID, "error", err)
		}
		listener.OnTaskComplete(TaskCompleteEvent{
			SessionID: sessionID, TaskID: task.ID, Title: phase.Title,
			Agent: phase.Agent, Status: models.TaskFailed, Fallback: true,
		})
		return ""
	}
}

// deliverFallback captures and emits fallback text as a single chunk so the
// UI and the stored log stay in agreement.
func (r *Runner) deliverFallback(ctx context.Context, sessionID string, task *models.GenerationTask, phase Phase, fallback string, listener Listener) {
	chunk, err := r.store.CaptureChunk(ctx, sessionID, task.ID, phase.Title, phase.Agent,
		fallback, phase.ContentKind, map[string]any{"fallback": true})
	if err != nil {
		r.logger.Warn("fallback chunk not captured", "session_id", sessionID, "task_id", task.ID, "error", err)
		return
	}
	listener.OnChunk(ChunkEvent{
		SessionID: sessionID,
		TaskID:    task.ID,
		TaskTitle: phase.Title,
		Agent:     phase.Agent,
		Seq:       chunk.Seq,
		Content:   fallback,
		Kind:      phase.ContentKind,
	})
}

func (r *Runner) captureInsight(ctx context.Context, sessionID, agent, message string, kind models.InsightKind, listener Listener) {
	if insight := r.store.CaptureInsight(ctx, sessionID, agent, message, kind, nil); insight != nil {
		listener.OnInsight(InsightEvent{
			SessionID: sessionID,
			Agent:     agent,
			Message:   message,
			Kind:      kind,
		})
	}
}
