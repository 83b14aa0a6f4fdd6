package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/feedback-pipeline/internal/adapter/api/middleware"
	"github.com/user/feedback-pipeline/internal/domain"
	"github.com/user/feedback-pipeline/internal/usecase"
)

// submitRequest is the wire shape of a feedback submission. The tenant is
// taken from the verified token, never from the body.
type submitRequest struct {
	EventID       string              `json:"event_id"`
	SubmittedAt   time.Time           `json:"submitted_at"`
	Module        string              `json:"module"`
	Severity      string              `json:"severity"`
	SubmitterRole string              `json:"submitter_role"`
	Text          string              `json:"text"`
	Attachments   []string            `json:"attachments"`
	Consents      domain.ConsentFlags `json:"consents"`
}

// SubmitHandler handles HTTP requests for feedback submission.
type SubmitHandler struct {
	useCase     *usecase.SubmitFeedbackUseCase
	gate        *usecase.RBACGate
	logger      *slog.Logger
	maxBodySize int64
}

// NewSubmitHandler creates a new SubmitHandler.
func NewSubmitHandler(uc *usecase.SubmitFeedbackUseCase, gate *usecase.RBACGate, logger *slog.Logger, maxBodySize int64) *SubmitHandler {
	return &SubmitHandler{
		useCase:     uc,
		gate:        gate,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// ServeHTTP processes incoming feedback submissions.
func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.gate.Authorize(r.Context(), actor, usecase.CapabilitySubmit, actor.TenantID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req submitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	event := &domain.FeedbackEvent{
		ID:            req.EventID,
		TenantID:      actor.TenantID,
		SubmittedAt:   req.SubmittedAt,
		Module:        req.Module,
		Severity:      domain.Severity(req.Severity),
		SubmitterRole: domain.SubmitterRole(req.SubmitterRole),
		Text:          req.Text,
		Attachments:   req.Attachments,
		Consents:      req.Consents,
	}

	err := h.useCase.Submit(r.Context(), event)
	var rErr *domain.RedactionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_id": event.ID})
	case errors.As(err, &rErr):
		// The event was received and held back, not lost; tell the client so.
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "quarantined", "event_id": event.ID})
	default:
		writeError(w, h.logger, err)
	}
}
