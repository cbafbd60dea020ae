package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"unlockd/internal/app"
	"unlockd/internal/ratelimit"
	"unlockd/internal/util"
)

// Identity resolves the authenticated user id for a request. Token issuing
// and verification live in the external auth service; the default resolver
// trusts the header that service's proxy injects.
type Identity interface {
	UserIDFromRequest(r *http.Request) (string, bool)
}

// HeaderIdentity reads the user id from a trusted header.
type HeaderIdentity struct {
	Header string
}

func (h HeaderIdentity) UserIDFromRequest(r *http.Request) (string, bool) {
	header := h.Header
	if header == "" {
		header = "X-User-Id"
	}
	id := strings.TrimSpace(r.Header.Get(header))
	return id, id != ""
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Identity       Identity
	RevealLimiter  *ratelimit.FixedWindowLimiter
	PairingLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	identity       Identity
	revealLimiter  *ratelimit.FixedWindowLimiter
	pairingLimiter *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	identity := cfg.Identity
	if identity == nil {
		identity = HeaderIdentity{}
	}
	s := &Server{
		app:            cfg.App,
		identity:       identity,
		revealLimiter:  cfg.RevealLimiter,
		pairingLimiter: cfg.PairingLimiter,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with request middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// users (provisioning hook for the auth service)
	s.mux.HandleFunc("/users", s.handleCreateUser)

	// daily question
	s.mux.Handle("/questions/today", s.authenticated(s.handleTodayQuestion))

	// answers and disclosure
	s.mux.Handle("/answers", s.authenticated(s.handleSubmitAnswer))
	s.mux.Handle("/answers/today", s.authenticated(s.handleTodayAnswers))
	s.mux.Handle("/answers/", s.authenticated(s.handleAnswerByID))

	// archive
	s.mux.Handle("/archive", s.authenticated(s.handleArchive))
	s.mux.Handle("/archive/", s.authenticated(s.handleArchiveDetail))

	// pairing
	s.mux.Handle("/couples/me", s.authenticated(s.handleCoupleMe))
	s.mux.Handle("/couples/request", s.authenticated(s.handleCoupleRequest))
	s.mux.Handle("/couples/accept", s.authenticated(s.handleCoupleAccept))
	s.mux.Handle("/couples/reject", s.authenticated(s.handleCoupleReject))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) authenticated(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.identity.UserIDFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "C001", "unauthorized")
			return
		}
		next(w, r, userID)
	})
}

// users
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "C002", "invalid JSON body")
		return
	}
	user, err := s.app.CreateUser(req.Nickname)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// daily question
func (s *Server) handleTodayQuestion(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	today, err := s.app.GetTodayQuestion(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, today)
}

// answers
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req submitAnswerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "C002", "invalid JSON body")
		return
	}
	answer, err := s.app.SubmitAnswer(userID, req.Content)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, answer)
}

func (s *Server) handleTodayAnswers(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	answers, err := s.app.GetTodayAnswers(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

// POST /answers/{id}/reveal
func (s *Server) handleAnswerByID(w http.ResponseWriter, r *http.Request, userID string) {
	rest := strings.TrimPrefix(r.URL.Path, "/answers/")
	answerID, action, ok := strings.Cut(rest, "/")
	if !ok || action != "reveal" || answerID == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.revealLimiter != nil && !s.revealLimiter.Allow(userID) {
		writeError(w, http.StatusTooManyRequests, "C003", "too many requests")
		return
	}
	view, err := s.app.RevealPartnerAnswer(userID, answerID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// archive
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entries, err := s.app.ListArchive(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"count": len(entries),
	})
}

func (s *Server) handleArchiveDetail(w http.ResponseWriter, r *http.Request, userID string) {
	questionID := strings.TrimPrefix(r.URL.Path, "/archive/")
	if questionID == "" || strings.Contains(questionID, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	detail, err := s.app.GetArchiveDetail(userID, questionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// pairing
func (s *Server) handleCoupleMe(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.app.GetCoupleInfo(userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodPatch:
		var req updateCoupleRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "C002", "invalid JSON body")
			return
		}
		if err := s.app.UpdateNotificationTime(userID, req.NotificationTime); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.app.Breakup(userID); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCoupleRequest(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		if s.pairingLimiter != nil && !s.pairingLimiter.Allow(userID) {
			writeError(w, http.StatusTooManyRequests, "C003", "too many requests")
			return
		}
		var req pairingRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "C002", "invalid JSON body")
			return
		}
		if err := s.app.RequestConnection(r.Context(), userID, req.InviteCode); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	case http.MethodGet:
		request, err := s.app.GetReceivedRequest(r.Context(), userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if request == nil {
			writeJSON(w, http.StatusOK, map[string]any{"pending": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pending": true, "request": request})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCoupleAccept(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.AcceptConnection(r.Context(), userID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCoupleReject(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.RejectConnection(r.Context(), userID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "C001", "method not allowed")
}

type createUserRequest struct {
	Nickname string `json:"nickname"`
}

type submitAnswerRequest struct {
	Content string `json:"content"`
}

type updateCoupleRequest struct {
	NotificationTime string `json:"notificationTime"`
}

type pairingRequest struct {
	InviteCode string `json:"inviteCode"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}

// writeAppError maps a business error onto its stable code and status;
// anything else is an internal failure the client gets no detail about.
func writeAppError(w http.ResponseWriter, err error) {
	var bizErr *app.BusinessError
	if errors.As(err, &bizErr) {
		writeError(w, bizErr.Status, bizErr.Code, bizErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "C001", "internal error")
}
