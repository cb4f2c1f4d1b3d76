// Package server exposes the negotiation coordinator over JSON-over-HTTP.
// It is a thin adapter: all protocol semantics live in the negotiation and
// guard packages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/quailyquaily/accord/guard"
	"github.com/quailyquaily/accord/negotiation"
)

const maxBodyBytes = 64 * 1024

type Server struct {
	coord  *negotiation.Coordinator
	gate   *guard.Gate
	addr   string
	router *httprouter.Router
	server *http.Server
	log    *slog.Logger
}

func New(coord *negotiation.Coordinator, gate *guard.Gate, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		coord:  coord,
		gate:   gate,
		addr:   addr,
		router: httprouter.New(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/api/propose", s.handlePropose)
	s.router.POST("/api/respond", s.handleRespond)
	s.router.POST("/api/execute", s.handleExecute)
	s.router.GET("/api/sessions/:id/status", s.handleStatus)
	s.router.GET("/api/history", s.handleHistory)

	// Administrative; no authentication is performed here. Deployments are
	// expected to fence /api/admin/ at the proxy.
	s.router.POST("/api/admin/approvals", s.handleGrantApproval)
	s.router.GET("/api/admin/approvals", s.handleListApprovals)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server_listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type proposeRequest struct {
	SessionID   string         `json:"session_id"`
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req proposeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Kind) == "" || strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "kind and description are required")
		return
	}
	res := s.coord.Propose(req.SessionID, guard.ActionKind(req.Kind), req.Description, req.Details)
	writeJSON(w, http.StatusOK, res)
}

type respondRequest struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req respondRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.coord.Respond(req.SessionID, req.Response)
	if err != nil {
		s.writeNegotiationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type executeRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req executeRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.coord.ExecuteAgreed(r.Context(), req.SessionID)
	if err != nil {
		s.writeNegotiationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	status, err := s.coord.Status(ps.ByName("id"))
	if err != nil {
		s.writeNegotiationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"session":      status.Summary,
		"conversation": status.Conversation,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": s.coord.History(),
	})
}

type grantRequest struct {
	Kind     string `json:"kind"`
	Approved bool   `json:"approved"`
	Actor    string `json:"actor"`
}

func (s *Server) handleGrantApproval(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req grantRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}
	s.gate.GrantApproval(r.Context(), guard.ActionKind(req.Kind), req.Approved, req.Actor)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"kind":     req.Kind,
		"approved": req.Approved,
	})
}

func (s *Server) handleListApprovals(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"permissions": s.gate.Approved(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeNegotiationError(w http.ResponseWriter, err error) {
	var ne *negotiation.Error
	if !errors.As(err, &ne) {
		s.log.Error("internal_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	code := http.StatusInternalServerError
	switch ne.Kind {
	case negotiation.ErrSessionNotFound:
		code = http.StatusNotFound
	case negotiation.ErrActionNotAgreed:
		code = http.StatusConflict
	case negotiation.ErrPermissionDenied, negotiation.ErrUnsafeContent:
		code = http.StatusForbidden
	case negotiation.ErrExecutorFailure:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]any{
		"status":  "error",
		"error":   string(ne.Kind),
		"message": ne.Message,
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"status": "error", "message": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
