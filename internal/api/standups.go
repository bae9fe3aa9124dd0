package api

import (
	"encoding/json"
	"net/http"

	"github.com/Gurkunwar/dailybot-engine/internal/api/dtos"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/go-chi/chi/v5"
)

// HandleSaveConfig creates or replaces a project's standup config.
// PUT /api/projects/{projectID}/config
func (s *Server) HandleSaveConfig(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uintParam(r, "projectID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req dtos.ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cfg := models.StandupConfig{
		ProjectID:           projectID,
		Time:                req.Time,
		Timezone:            req.Timezone,
		WorkingDays:         req.WorkingDays,
		ResponseWindowHours: req.ResponseWindowHours,
		IsActive:            true,
		Questions:           req.Questions,
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}

	saved, err := s.Standups.SaveConfig(r.Context(), cfg)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GET /api/projects/{projectID}/config
func (s *Server) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uintParam(r, "projectID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	cfg, err := s.Standups.GetConfig(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PUT /api/projects/{projectID}/config/active
func (s *Server) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uintParam(r, "projectID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req dtos.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.Standups.SetActive(r.Context(), projectID, req.Active); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/projects/{projectID}/sessions/active
func (s *Server) HandleActiveSessionForProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uintParam(r, "projectID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	session, err := s.Manager.ActiveSessionForProject(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GET /api/sessions
func (s *Server) HandleListActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.Manager.ListActiveSessions(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.StandupSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GET /api/sessions/{sessionID}
func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uintParam(r, "sessionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := s.Manager.Get(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleCloseSession closes a session ahead of its expiry. Closing an
// already closed session returns it unchanged.
// POST /api/sessions/{sessionID}/close
func (s *Server) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uintParam(r, "sessionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := s.Manager.CloseSession(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleSubmitResponse records the caller's answers. The participant is
// always the authenticated user.
// POST /api/sessions/{sessionID}/responses
func (s *Server) HandleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uintParam(r, "sessionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req dtos.ResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := s.Collector.Submit(r.Context(), sessionID, userID, services.Answers{
		Yesterday: req.Yesterday,
		Today:     req.Today,
		Blockers:  req.Blockers,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/sessions/{sessionID}/responses
func (s *Server) HandleListResponses(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uintParam(r, "sessionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	responses, err := s.Collector.ListResponses(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

// GET /api/sessions/{sessionID}/summary
func (s *Server) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uintParam(r, "sessionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	summary, err := s.Summaries.Get(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleRunPass runs the open or close pass immediately.
// POST /api/passes/{pass}
func (s *Server) HandleRunPass(w http.ResponseWriter, r *http.Request) {
	if s.Passes == nil {
		writeError(w, http.StatusServiceUnavailable, "pass runner not configured")
		return
	}

	pass := chi.URLParam(r, "pass")
	var (
		result services.PassResult
		err    error
	)
	switch pass {
	case "open":
		result, err = s.Passes.RunOpenPass(r.Context())
	case "close":
		result, err = s.Passes.RunClosePass(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown pass")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dtos.PassDTO{
		Pass:      pass,
		Processed: result.Processed,
		Opened:    result.Opened,
		Closed:    result.Closed,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	})
}
