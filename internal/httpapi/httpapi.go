// Package httpapi exposes the engine over HTTP: POST /v0/decide, GET
// /v0/decisions/{id}, POST /v0/decisions/{id}/events, GET /healthz.
// Routing uses gorilla/mux with per-route Methods().
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lumyn-labs/lumyn/internal/engine"
	"github.com/lumyn-labs/lumyn/internal/errkit"
	"github.com/lumyn-labs/lumyn/internal/ids"
	"github.com/lumyn-labs/lumyn/internal/log"
	"github.com/lumyn-labs/lumyn/internal/model"
)

// Server wires the engine onto an HTTP router.
type Server struct {
	Engine *engine.Engine
	Logger *log.Logger
	IDs    ids.Generator
}

// NewRouter builds the mux.Router for the Lumyn HTTP surface.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/v0/decide", s.handleDecide).Methods(http.MethodPost)
	r.HandleFunc("/v0/decisions/{id}", s.handleGetDecision).Methods(http.MethodGet)
	r.HandleFunc("/v0/decisions/{id}/events", s.handleAppendEvent).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "malformed JSON body"})
		return
	}

	rec, err := s.Engine.Decide(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, found, err := s.Engine.Store.GetDecisionRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown decision id"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type appendEventRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body appendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "malformed JSON body"})
		return
	}
	if strings.TrimSpace(body.Type) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "type must be non-blank"})
		return
	}
	if body.Data == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "data must be an object"})
		return
	}

	eventID := s.IDs.NewDecisionID()
	createdAt := s.Engine.Builder.Clock.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	if err := s.Engine.Store.AppendDecisionEvent(r.Context(), id, eventID, body.Type, body.Data, createdAt); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID})
}

func writeError(w http.ResponseWriter, err error) {
	status := errkit.HTTPStatus(err)
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
