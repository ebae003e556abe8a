// Package server exposes the orchestration loop over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/tripflow/orchestrator"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

// Request/response models.
type (
	// ChatRequest is one inbound user turn.
	ChatRequest struct {
		SessionID string `json:"session_id,omitempty"`
		Message   string `json:"message"`
	}

	// ChatResponse carries the turn's reply and status tag.
	ChatResponse struct {
		SessionID string `json:"session_id"`
		Response  string `json:"response_text"`
		Status    string `json:"status"`
	}

	// ClearRequest asks for a session's history to be dropped.
	ClearRequest struct {
		SessionID string `json:"session_id"`
	}

	// ClearResponse reports the clear outcome.
	ClearResponse struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
	}

	// SessionIDResponse carries a freshly generated session ID.
	SessionIDResponse struct {
		SessionID string `json:"session_id"`
	}

	// HealthResponse is the health check payload.
	HealthResponse struct {
		Status         string `json:"status"`
		Timestamp      string `json:"timestamp"`
		ActiveSessions int    `json:"active_sessions"`
	}

	// MetricsResponse exposes basic request counters.
	MetricsResponse struct {
		ChatRequests  int64 `json:"chat_requests"`
		ClearRequests int64 `json:"clear_requests"`
		TurnErrors    int64 `json:"turn_errors"`
	}

	// ErrorResponse is the JSON error envelope.
	ErrorResponse struct {
		Error      string `json:"error"`
		StatusCode int    `json:"status_code"`
	}
)

// Server wraps an http.Server around the orchestrator.
type Server struct {
	orch   *orchestrator.Orchestrator
	server *http.Server
	logger *slog.Logger

	chatRequests  atomic.Int64
	clearRequests atomic.Int64
	turnErrors    atomic.Int64
}

// New creates a server listening on addr.
func New(addr string, orch *orchestrator.Orchestrator) *Server {
	s := &Server{
		orch:   orch,
		logger: logging.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/clear", s.handleClear)
	mux.HandleFunc("/session_id", s.handleSessionID)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.chatRequests.Add(1)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.orch.ProcessTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		s.turnErrors.Add(1)
		s.logger.Error("turn processing failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "an internal server error occurred")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Response:  result.Response,
		Status:    string(result.Status),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.clearRequests.Add(1)

	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	existed, err := s.orch.Clear(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "an internal server error occurred")
		return
	}

	status := "cleared"
	if !existed {
		status = "not_found"
	}
	writeJSON(w, http.StatusOK, ClearResponse{SessionID: req.SessionID, Status: status})
}

func (s *Server) handleSessionID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, SessionIDResponse{SessionID: uuid.NewString()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.orch.SessionCount(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: count,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetricsResponse{
		ChatRequests:  s.chatRequests.Load(),
		ClearRequests: s.clearRequests.Load(),
		TurnErrors:    s.turnErrors.Load(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, StatusCode: status})
}
