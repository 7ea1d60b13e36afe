// Package agentd implements the minimal HTTP/WS front door: five routes
// wired to the event store, tool registry, and agent engine, served on
// a plain http.ServeMux (see DESIGN.md for why this surface stays on
// the standard library rather than a third-party router).
package agentd

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"evidentia/internal/agent"
	"evidentia/internal/eventstore"
	"evidentia/internal/llmprovider"
)

// Server bundles the collaborators the HTTP/WS surface dispatches
// against: the event log, the per-provider engines, and a health
// check. One Server serves one agentd process.
type Server struct {
	Store    *eventstore.Store
	Engines  map[llmprovider.Name]*agent.Engine
	Upgrader Upgrader
}

// NewServer builds a Server. engines maps provider name to the Engine
// configured with that provider; handlers_chat.go falls back to
// NameAnthropic when a request doesn't specify ?provider=.
func NewServer(store *eventstore.Store, engines map[llmprovider.Name]*agent.Engine) *Server {
	return &Server{Store: store, Engines: engines, Upgrader: NewUpgrader()}
}

// Routes builds the http.Handler serving the service's external
// interface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/threads", s.handleCreateThread)
	mux.HandleFunc("GET /api/threads/{id}/events", s.handleListEvents)
	mux.HandleFunc("GET /api/threads/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/chat/send", s.handleChatSend)
	mux.HandleFunc("GET /ws/chat", s.handleWSChat)
	return loggingMiddleware(mux)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("agentd request")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
