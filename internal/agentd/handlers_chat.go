package agentd

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"evidentia/internal/agent"
	"evidentia/internal/llmprovider"
)

// Upgrader is the slice of gorilla/websocket.Upgrader the server needs,
// broken out as an interface so tests can swap in a no-op.
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, error)
}

// NewUpgrader returns the production gorilla/websocket upgrader. Origin
// checking is left permissive here - this module has no browser-facing
// deployment target, and CORS/origin policy is the named out-of-scope
// "auth/session management" surface.
func NewUpgrader() Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.Store.CreateThread(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": thread.ID, "created_at": thread.CreatedAt})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	events, err := s.Store.ListEvents(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	msgs, err := s.Store.ListMessages(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// chatSendRequest is the POST /api/chat/send body.
type chatSendRequest struct {
	ThreadID string           `json:"thread_id"`
	Text     string           `json:"text"`
	Provider llmprovider.Name `json:"provider"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ThreadID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "thread_id and text are required")
		return
	}
	eng, ok := s.engineFor(req.Provider)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	final, err := eng.Run(r.Context(), req.ThreadID, req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": final})
}

func (s *Server) engineFor(name llmprovider.Name) (*agent.Engine, bool) {
	if name == "" {
		name = llmprovider.NameAnthropic
	}
	eng, ok := s.Engines[name]
	return eng, ok
}

// handleWSChat drives one turn over WS /ws/chat?thread_id=&provider=,
// streaming every agent.EmittedEvent to the client as it's produced
// instead of waiting for the final text.
func (s *Server) handleWSChat(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	provider := llmprovider.Name(r.URL.Query().Get("provider"))
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	eng, ok := s.engineFor(provider)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	// One engine instance per server is shared across connections; swap
	// its Emit for the lifetime of this connection's turns only.
	connEngine := *eng
	connEngine.Emit = func(ev agent.EmittedEvent) {
		if err := conn.WriteJSON(ev); err != nil {
			log.Warn().Err(err).Msg("ws write failed")
		}
	}

	for {
		var incoming wsIncomingMessage
		if err := conn.ReadJSON(&incoming); err != nil {
			return
		}
		switch incoming.Type {
		case "ping":
			_ = conn.WriteJSON(map[string]any{"type": "pong"})
		case "user_message", "main_agent_chat":
			if incoming.Content == "" {
				continue
			}
			if _, err := connEngine.Run(context.Background(), threadID, incoming.Content); err != nil {
				_ = conn.WriteJSON(agent.EmittedEvent{Type: "main_agent_error", ThreadID: threadID, Data: map[string]any{"message": err.Error()}})
			}
		default:
			_ = conn.WriteJSON(agent.EmittedEvent{
				Type: "main_agent_error", ThreadID: threadID,
				Data: map[string]any{"message": "unknown message type: " + incoming.Type},
			})
		}
	}
}

// wsIncomingMessage is the client->server frame shape:
// {type:"user_message"|"main_agent_chat", content:"..."} or {type:"ping"}.
type wsIncomingMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
