package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The UI is served from a different origin during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// generateRequest is the first message a client sends on /ws/generate.
type generateRequest struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
	Flavor string `json:"flavor"`
}

// wsEnvelope wraps every outgoing event with a type tag.
type wsEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsListener forwards pipeline events to a websocket connection. Gorilla
// connections allow one concurrent writer, so writes are serialized.
type wsListener struct {
	mu   sync.Mutex
	conn *websocket.Conn
	srv  *Server
}

func (l *wsListener) send(eventType string, payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.WriteJSON(wsEnvelope{Type: eventType, Payload: payload}); err != nil {
		l.srv.logger.Debug("websocket write failed", "type", eventType, "error", err)
	}
}

func (l *wsListener) OnTaskStart(e pipeline.TaskStartEvent)       { l.send("task_start", e) }
func (l *wsListener) OnChunk(e pipeline.ChunkEvent)               { l.send("chunk", e) }
func (l *wsListener) OnTaskComplete(e pipeline.TaskCompleteEvent) { l.send("task_complete", e) }
func (l *wsListener) OnInsight(e pipeline.InsightEvent)           { l.send("insight", e) }
func (l *wsListener) OnSessionComplete(e pipeline.SessionCompleteEvent) {
	l.send("session_complete", e)
}
func (l *wsListener) OnError(e pipeline.ErrorEvent) { l.send("error", e) }

// handleGenerateWS upgrades the connection, reads one generation request,
// and streams the whole pipeline run back as JSON events.
func (s *Server) handleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req generateRequest
	if _, message, err := conn.ReadMessage(); err != nil {
		s.logger.Debug("websocket read failed", "error", err)
		return
	} else if err := json.Unmarshal(message, &req); err != nil {
		_ = conn.WriteJSON(wsEnvelope{Type: "error", Payload: map[string]string{"message": "invalid request"}})
		return
	}

	if req.Prompt == "" || req.UserID == "" {
		_ = conn.WriteJSON(wsEnvelope{Type: "error", Payload: map[string]string{"message": "user_id and prompt are required"}})
		return
	}

	listener := &wsListener{conn: conn, srv: s}
	flavor := models.ParseSchemaFlavor(req.Flavor)

	sessionID, err := s.runner.Run(r.Context(), req.UserID, req.Prompt, flavor, listener)
	if err != nil {
		s.logger.Error("generation run failed", "session_id", sessionID, "error", err)
		listener.send("error", map[string]string{"message": "generation failed", "session_id": sessionID})
		return
	}
}
