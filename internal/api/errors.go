package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Gurkunwar/dailybot-engine/internal/api/dtos"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dtos.ErrorDTO{Error: message})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrConfigNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrSummaryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal server error")
		return
	}

	body := dtos.ErrorDTO{Error: err.Error()}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body.Fields = make(map[string]string, len(verr.FieldErrors))
		for field, ferr := range verr.FieldErrors {
			body.Fields[field] = ferr.Error()
		}
	}
	writeJSON(w, status, body)
}

func uintParam(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
