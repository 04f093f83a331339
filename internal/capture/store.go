// Package capture records the complete ordered chunk and insight history of
// streaming sessions, durably when the database is reachable and in memory
// always.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/metrics"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/google/uuid"
)

// SessionData is the fully reconstructed state of one session.
type SessionData struct {
	Session  *models.StreamingSession  `json:"session"`
	Chunks   []*models.StreamChunk     `json:"chunks"`
	Insights []*models.StreamingInsight `json:"insights"`
}

type residentSession struct {
	session  *models.StreamingSession
	chunks   []*models.StreamChunk
	insights []*models.StreamingInsight
	nextSeq  int

	// dirty is set when any durable write for this session failed, meaning
	// the database copy of the log is incomplete. A dirty session is never
	// evicted; the resident copy stays the source of truth.
	dirty bool
}

// Durable is the persistence surface the store writes through. *db.Client
// satisfies it.
type Durable interface {
	CreateStreamSession(ctx context.Context, s *models.StreamingSession) error
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateSessionTasks(ctx context.Context, id string, tasks []models.GenerationTask) error
	SetSessionProject(ctx context.Context, id string, projectID string) error
	InsertChunk(ctx context.Context, chunk models.StreamChunk) error
	InsertInsight(ctx context.Context, in models.StreamingInsight) error
	GetStreamSession(ctx context.Context, id string) (*models.StreamingSession, error)
	GetSessionChunks(ctx context.Context, sessionID string) ([]models.StreamChunk, error)
	GetSessionInsights(ctx context.Context, sessionID string) ([]models.StreamingInsight, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]models.StreamingSession, error)
	CreateProject(ctx context.Context, userID, title string, flavor models.SchemaFlavor, description string, metadata map[string]any) (*models.Project, error)
	CreateSavedSession(ctx context.Context, projectID, name, description string) (*models.SavedSession, error)
	CreateQuery(ctx context.Context, sessionID, projectID, text, kind string, result models.QueryResult, resultFormat string, success bool) (*models.Query, error)
}

// Store captures session history. The in-memory mirror is authoritative for
// the life of the process; the database is best-effort durability. A nil
// database puts the store in memory-only mode.
type Store struct {
	mu       sync.RWMutex
	resident map[string]*residentSession

	db      Durable
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewStore creates a capture store. durable and collector may be nil.
func NewStore(durable Durable, collector *metrics.Collector, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		resident: make(map[string]*residentSession),
		db:       durable,
		metrics:  collector,
		logger:   logger,
	}
}

// StartCapture creates a new session and returns its id. Always succeeds;
// durable-store failure degrades to a memory-only session.
func (s *Store) StartCapture(ctx context.Context, userID, prompt string, flavor models.SchemaFlavor) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	now := time.Now()
	session := &models.StreamingSession{
		ID:        uuid.New().String()[:8],
		UserID:    userID,
		Prompt:    prompt,
		Flavor:    flavor,
		Status:    models.SessionInitializing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.resident[session.ID] = &residentSession{session: session}
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.CreateStreamSession(ctx, session); err != nil {
			s.markDirty(session.ID)
			s.logger.Warn("session create not persisted, continuing in memory",
				"session_id", session.ID, "error", err)
		}
	}

	s.logger.Info("capture started", "session_id", session.ID, "user_id", userID, "flavor", flavor)
	return session.ID, nil
}

// BeginTask registers a task on the session and marks it active.
func (s *Store) BeginTask(ctx context.Context, sessionID string, task *models.GenerationTask) error {
	now := time.Now()

	s.mu.Lock()
	resident, ok := s.resident[sessionID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("begin task %s: %w", sessionID, db.ErrSessionNotFound)
	}
	task.Status = models.TaskActive
	task.StartedAt = &now
	resident.session.Tasks = append(resident.session.Tasks, task)
	resident.session.Touch(now)
	tasks := snapshotTasks(resident.session.Tasks)
	s.mu.Unlock()

	s.persistTasks(ctx, sessionID, tasks)
	return nil
}

// CaptureChunk appends one chunk with the session's next sequence index and
// moves the session to streaming. The only hard error is an unknown session;
// durable-store failure is logged and absorbed.
func (s *Store) CaptureChunk(ctx context.Context, sessionID, taskID, taskTitle, agent, content string, kind models.ContentKind, metadata map[string]any) (*models.StreamChunk, error) {
	start := time.Now()

	s.mu.Lock()
	resident, ok := s.resident[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("capture chunk %s: %w", sessionID, db.ErrSessionNotFound)
	}

	chunk := &models.StreamChunk{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		TaskID:    taskID,
		TaskTitle: taskTitle,
		Agent:     agent,
		Seq:       resident.nextSeq,
		Content:   content,
		Kind:      kind,
		Metadata:  metadata,
		CreatedAt: start,
	}
	resident.nextSeq++
	resident.chunks = append(resident.chunks, chunk)
	if task := resident.session.Task(taskID); task != nil {
		task.Content += content
	}
	statusChanged := resident.session.Status == models.SessionInitializing
	if statusChanged {
		resident.session.Status = models.SessionStreaming
	}
	resident.session.Touch(start)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.InsertChunk(ctx, *chunk); err != nil {
			s.markDirty(sessionID)
			s.logger.Warn("chunk not persisted, continuing in memory",
				"session_id", sessionID, "task_id", taskID, "seq", chunk.Seq, "error", err)
		}
		if statusChanged {
			if err := s.db.UpdateSessionStatus(ctx, sessionID, models.SessionStreaming); err != nil {
				s.logger.Warn("session status not persisted",
					"session_id", sessionID, "status", models.SessionStreaming, "error", err)
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpCaptureChunk, time.Since(start))
	}
	return chunk, nil
}

// CaptureInsight appends one insight. Insights are best-effort telemetry;
// every failure, including an unknown session, is absorbed.
func (s *Store) CaptureInsight(ctx context.Context, sessionID, agent, message string, kind models.InsightKind, metadata map[string]any) *models.StreamingInsight {
	now := time.Now()

	s.mu.Lock()
	resident, ok := s.resident[sessionID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("insight for unknown session dropped", "session_id", sessionID)
		return nil
	}

	insight := &models.StreamingInsight{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Agent:     agent,
		Message:   message,
		Kind:      kind,
		Metadata:  metadata,
		CreatedAt: now,
	}
	resident.insights = append(resident.insights, insight)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.InsertInsight(ctx, *insight); err != nil {
			s.markDirty(sessionID)
			s.logger.Warn("insight not persisted, continuing in memory",
				"session_id", sessionID, "error", err)
		}
	}
	return insight
}

// FinishTask records a task's terminal state. The task's content is whatever
// its captured chunks accumulated; finishing never rewrites it, so the chunk
// log and the task content always agree.
func (s *Store) FinishTask(ctx context.Context, sessionID, taskID string, status models.TaskStatus, fallback bool) error {
	now := time.Now()

	s.mu.Lock()
	resident, ok := s.resident[sessionID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("finish task %s: %w", sessionID, db.ErrSessionNotFound)
	}
	task := resident.session.Task(taskID)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("finish task: task %s not found on session %s", taskID, sessionID)
	}
	task.Status = status
	task.Fallback = fallback
	task.CompletedAt = &now
	resident.session.Touch(now)
	tasks := snapshotTasks(resident.session.Tasks)
	s.mu.Unlock()

	s.persistTasks(ctx, sessionID, tasks)
	return nil
}

// MarkError moves the session to the error state.
func (s *Store) MarkError(ctx context.Context, sessionID string) {
	s.mu.Lock()
	resident, ok := s.resident[sessionID]
	if ok {
		resident.session.Status = models.SessionError
		resident.session.Touch(time.Now())
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if s.db != nil {
		if err := s.db.UpdateSessionStatus(ctx, sessionID, models.SessionError); err != nil {
			s.logger.Warn("session error status not persisted", "session_id", sessionID, "error", err)
		}
	}
}

// GetSessionData returns the full reconstructed session state, or nil if the
// session is unknown. Resident sessions win over the durable store.
func (s *Store) GetSessionData(ctx context.Context, sessionID string) *SessionData {
	s.mu.RLock()
	resident, ok := s.resident[sessionID]
	if ok {
		data := &SessionData{
			Session:  snapshotSession(resident.session),
			Chunks:   slices.Clone(resident.chunks),
			Insights: slices.Clone(resident.insights),
		}
		s.mu.RUnlock()
		return data
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil
	}

	session, err := s.db.GetStreamSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session read failed", "session_id", sessionID, "error", err)
		return nil
	}
	if session == nil {
		return nil
	}

	chunks, err := s.db.GetSessionChunks(ctx, sessionID)
	if err != nil {
		s.logger.Warn("chunk read failed", "session_id", sessionID, "error", err)
	}
	insights, err := s.db.GetSessionInsights(ctx, sessionID)
	if err != nil {
		s.logger.Warn("insight read failed", "session_id", sessionID, "error", err)
	}

	data := &SessionData{Session: session}
	for i := range chunks {
		data.Chunks = append(data.Chunks, &chunks[i])
	}
	for i := range insights {
		data.Insights = append(data.Insights, &insights[i])
	}
	return data
}

// SavedSessions returns the union of durably stored and still-resident
// sessions for a user, de-duplicated, newest first.
func (s *Store) SavedSessions(ctx context.Context, userID string) []*models.StreamingSession {
	seen := make(map[string]bool)
	var sessions []*models.StreamingSession

	if s.db != nil {
		stored, err := s.db.ListSessionsByUser(ctx, userID)
		if err != nil {
			s.logger.Warn("session list read failed", "user_id", userID, "error", err)
		}
		for i := range stored {
			seen[stored[i].ID] = true
			sessions = append(sessions, &stored[i])
		}
	}

	s.mu.RLock()
	for _, resident := range s.resident {
		if resident.session.UserID != userID || seen[resident.session.ID] {
			continue
		}
		sessions = append(sessions, snapshotSession(resident.session))
	}
	s.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b *models.StreamingSession) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return sessions
}

// setProjectID records the materialized project on the resident session.
func (s *Store) setProjectID(sessionID, projectID string) {
	s.mu.Lock()
	if resident, ok := s.resident[sessionID]; ok {
		resident.session.ProjectID = &projectID
		resident.session.Touch(time.Now())
	}
	s.mu.Unlock()
}

// evict removes a session from the resident map. Only called once its state
// is durably stored.
func (s *Store) evict(sessionID string) {
	s.mu.Lock()
	delete(s.resident, sessionID)
	s.mu.Unlock()
}

func (s *Store) persistTasks(ctx context.Context, sessionID string, tasks []*models.GenerationTask) {
	if s.db == nil {
		return
	}
	values := make([]models.GenerationTask, len(tasks))
	for i, task := range tasks {
		values[i] = *task
	}
	if err := s.db.UpdateSessionTasks(ctx, sessionID, values); err != nil {
		s.markDirty(sessionID)
		s.logger.Warn("task snapshot not persisted", "session_id", sessionID, "error", err)
	}
}

// markDirty flags the session's durable copy as incomplete.
func (s *Store) markDirty(sessionID string) {
	s.mu.Lock()
	if resident, ok := s.resident[sessionID]; ok {
		resident.dirty = true
	}
	s.mu.Unlock()
}

// isDirty reports whether any durable write for the session failed.
func (s *Store) isDirty(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resident, ok := s.resident[sessionID]
	return ok && resident.dirty
}

func snapshotSession(session *models.StreamingSession) *models.StreamingSession {
	copied := *session
	copied.Tasks = snapshotTasks(session.Tasks)
	return &copied
}

func snapshotTasks(tasks []*models.GenerationTask) []*models.GenerationTask {
	out := make([]*models.GenerationTask, len(tasks))
	for i, task := range tasks {
		copied := *task
		out[i] = &copied
	}
	return out
}
