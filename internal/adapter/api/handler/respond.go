package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/feedback-pipeline/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses. Anything unmapped is an
// internal error and its detail stays out of the response body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		vErr *domain.ValidationError
		tErr *domain.TransitionError
		aErr *domain.AuthzError
	)

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error()})
	case errors.Is(err, domain.ErrBackpressure):
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "queue at capacity, retry later"})
	case errors.Is(err, domain.ErrTenantDisabled):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "feedback pipeline is disabled for this tenant"})
	case errors.As(err, &aErr):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.As(err, &tErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: tErr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
