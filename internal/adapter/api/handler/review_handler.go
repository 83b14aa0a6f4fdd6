package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/feedback-pipeline/internal/adapter/api/middleware"
	"github.com/user/feedback-pipeline/internal/domain"
	"github.com/user/feedback-pipeline/internal/usecase"
)

// ReviewHandler serves the Review Console: status, outputs, the approval
// workflow and audit reads.
type ReviewHandler struct {
	review   *usecase.ReviewUseCase
	approval *usecase.ApprovalUseCase
	replay   *usecase.ReplayUseCase
	logger   *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(review *usecase.ReviewUseCase, approval *usecase.ApprovalUseCase, replay *usecase.ReplayUseCase, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		review:   review,
		approval: approval,
		replay:   replay,
		logger:   logger,
	}
}

func (h *ReviewHandler) Status(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	status, err := h.review.Status(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *ReviewHandler) PendingRecommendations(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	recs, err := h.review.PendingRecommendations(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.approval.Approve)
}

func (h *ReviewHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.approval.Dismiss)
}

func (h *ReviewHandler) decide(w http.ResponseWriter, r *http.Request, decision func(ctx context.Context, actor usecase.Actor, id, notes string) (*domain.Recommendation, error)) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "recommendation id required"})
		return
	}

	var req decisionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
			return
		}
	}

	rec, err := decision(r.Context(), actor, id, req.Notes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ReviewHandler) Outputs(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	from, err := parseTimeParam(r, "from", time.Now().UTC().Add(-7*24*time.Hour))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid from parameter, want RFC 3339"})
		return
	}
	to, err := parseTimeParam(r, "to", time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid to parameter, want RFC 3339"})
		return
	}

	outputs, err := h.review.Outputs(r.Context(), actor, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outputs)
}

func (h *ReviewHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	trail, err := h.review.AuditTrail(r.Context(), actor, r.PathValue("correlationID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": trail})
}

func (h *ReviewHandler) Replay(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	rec, err := h.replay.Reconstruct(r.Context(), actor, r.PathValue("correlationID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ReviewHandler) Quarantined(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	events, err := h.review.Quarantined(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.FeedbackEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func parseTimeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
