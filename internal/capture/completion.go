package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/google/uuid"
)

// titleDomains maps prompt keywords to a human-readable project theme.
// First match wins, in listed order.
var titleDomains = []struct {
	theme    string
	keywords []string
}{
	{"Healthcare", []string{"patient", "doctor", "hospital", "clinic", "medical", "appointment"}},
	{"E-Commerce", []string{"shop", "store", "product", "order", "cart", "inventory", "ecommerce", "e-commerce"}},
	{"Blog Platform", []string{"blog", "post", "comment", "article"}},
	{"Education", []string{"student", "course", "teacher", "school", "university", "enrollment"}},
	{"Finance", []string{"bank", "payment", "invoice", "transaction", "account", "ledger"}},
	{"Social Network", []string{"follower", "friend", "feed", "social", "like", "profile"}},
	{"Logistics", []string{"shipment", "warehouse", "delivery", "fleet", "tracking"}},
}

// deriveProjectTitle builds a readable title from the prompt using domain
// keyword matching, falling back to the first words of the prompt.
func deriveProjectTitle(prompt string, flavor models.SchemaFlavor) string {
	lower := strings.ToLower(prompt)
	for _, domain := range titleDomains {
		for _, keyword := range domain.keywords {
			if strings.Contains(lower, keyword) {
				return fmt.Sprintf("%s Database (%s)", domain.theme, strings.ToUpper(string(flavor)))
			}
		}
	}

	words := strings.Fields(prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	return fmt.Sprintf("%s (%s)", strings.Join(words, " "), strings.ToUpper(string(flavor)))
}

// localProjectPrefix marks a placeholder project id handed out when
// materialization failed. A placeholder session is retried on the next
// CompleteCapture call.
const localProjectPrefix = "local-"

// CompleteCapture finalizes a session: marks it completed and materializes
// one project, one saved session, and one query per task. Persistence failure
// is absorbed; the caller always receives a usable project id, a placeholder
// when the durable path failed, and the session stays resident in that case.
// Calling it again re-attempts materialization for a placeholder session and
// returns the recorded project id once a real one exists.
func (s *Store) CompleteCapture(ctx context.Context, sessionID string, completionMetadata map[string]any) (string, error) {
	now := time.Now()

	s.mu.Lock()
	resident, ok := s.resident[sessionID]
	if !ok {
		s.mu.Unlock()
		// An evicted session was already fully materialized; its project
		// link lives on the durable row.
		if s.db != nil {
			if stored, err := s.db.GetStreamSession(ctx, sessionID); err == nil && stored != nil && stored.ProjectID != nil {
				return *stored.ProjectID, nil
			}
		}
		return "", fmt.Errorf("complete capture %s: %w", sessionID, db.ErrSessionNotFound)
	}
	placeholder := ""
	if resident.session.ProjectID != nil {
		id := *resident.session.ProjectID
		if !strings.HasPrefix(id, localProjectPrefix) {
			s.mu.Unlock()
			return id, nil
		}
		placeholder = id
	}
	resident.session.Status = models.SessionCompleted
	resident.session.Touch(now)
	session := snapshotSession(resident.session)
	chunkCount := len(resident.chunks)
	insightCount := len(resident.insights)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.UpdateSessionStatus(ctx, sessionID, models.SessionCompleted); err != nil {
			s.logger.Warn("completed status not persisted", "session_id", sessionID, "error", err)
		}
	}

	title := deriveProjectTitle(session.Prompt, session.Flavor)
	metadata := map[string]any{
		"session_id":    sessionID,
		"chunk_count":   chunkCount,
		"insight_count": insightCount,
		"duration_ms":   now.Sub(session.CreatedAt).Milliseconds(),
	}
	for k, v := range completionMetadata {
		metadata[k] = v
	}

	projectID, err := s.materialize(ctx, session, title, metadata)
	if err != nil {
		if placeholder == "" {
			placeholder = localProjectPrefix + uuid.New().String()[:8]
		}
		s.logger.Warn("project materialization failed, keeping session resident",
			"session_id", sessionID, "placeholder_id", placeholder, "error", err)
		s.setProjectID(sessionID, placeholder)
		return placeholder, nil
	}

	s.setProjectID(sessionID, projectID)
	if s.db != nil {
		if err := s.db.SetSessionProject(ctx, sessionID, projectID); err != nil {
			s.markDirty(sessionID)
			s.logger.Warn("session project link not persisted", "session_id", sessionID, "error", err)
		}
	}

	// Evicting a session whose chunk or insight writes ever failed would
	// discard the only complete copy of the log and make replay impossible.
	if s.isDirty(sessionID) {
		s.logger.Warn("durable log incomplete, keeping session resident",
			"session_id", sessionID, "project_id", projectID)
	} else {
		s.evict(sessionID)
	}

	s.logger.Info("capture completed", "session_id", sessionID, "project_id", projectID, "title", title)
	return projectID, nil
}

// materialize performs the durable project/session/query writes.
func (s *Store) materialize(ctx context.Context, session *models.StreamingSession, title string, metadata map[string]any) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("no durable store configured")
	}

	project, err := s.db.CreateProject(ctx, session.UserID, title, session.Flavor,
		fmt.Sprintf("Generated from prompt: %s", session.Prompt), metadata)
	if err != nil {
		return "", err
	}
	projectID, err := models.RecordIDString(project.ID)
	if err != nil {
		return "", fmt.Errorf("project id: %w", err)
	}

	saved, err := s.db.CreateSavedSession(ctx, projectID, title,
		fmt.Sprintf("Streaming generation session %s", session.ID))
	if err != nil {
		return "", err
	}
	savedID, err := models.RecordIDString(saved.ID)
	if err != nil {
		return "", fmt.Errorf("saved session id: %w", err)
	}

	for _, task := range session.Tasks {
		kind := taskContentKind(task)
		result := models.QueryResult{
			Kind:        models.ResultStreamingChunk,
			TaskID:      task.ID,
			Agent:       task.Agent,
			ContentKind: kind,
			Text:        task.Content,
		}
		_, err := s.db.CreateQuery(ctx, savedID, projectID, task.Title, string(kind),
			result, "markdown", task.Status == models.TaskCompleted)
		if err != nil {
			return "", fmt.Errorf("query for task %s: %w", task.ID, err)
		}
	}

	return projectID, nil
}

// taskContentKind derives the dominant content kind of a task from its title.
func taskContentKind(task *models.GenerationTask) models.ContentKind {
	lower := strings.ToLower(task.Title)
	switch {
	case strings.Contains(lower, "schema") || strings.Contains(lower, "design"):
		return models.ContentSchema
	case strings.Contains(lower, "implementation") || strings.Contains(lower, "migration"):
		return models.ContentCode
	default:
		return models.ContentText
	}
}
