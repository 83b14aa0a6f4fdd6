package api

import (
	"log/slog"
	"net/http"

	"github.com/user/feedback-pipeline/internal/adapter/api/handler"
	"github.com/user/feedback-pipeline/internal/adapter/api/middleware"
	"github.com/user/feedback-pipeline/internal/pkg/config"
	"github.com/user/feedback-pipeline/internal/usecase"
)

const maxSubmitBodySize = 64 * 1024

// NewRouter creates and configures the main HTTP router for the feedback API.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	submitUC *usecase.SubmitFeedbackUseCase,
	reviewUC *usecase.ReviewUseCase,
	approvalUC *usecase.ApprovalUseCase,
	replayUC *usecase.ReplayUseCase,
	gate *usecase.RBACGate,
) http.Handler {
	mux := http.NewServeMux()

	submitHandler := handler.NewSubmitHandler(submitUC, gate, logger, maxSubmitBodySize)
	reviewHandler := handler.NewReviewHandler(reviewUC, approvalUC, replayUC, logger)

	auth := middleware.Auth([]byte(cfg.JWTSecret), logger)

	mux.Handle("POST /v1/feedback", auth(submitHandler))
	mux.Handle("GET /v1/status", auth(http.HandlerFunc(reviewHandler.Status)))
	mux.Handle("GET /v1/recommendations/pending", auth(http.HandlerFunc(reviewHandler.PendingRecommendations)))
	mux.Handle("POST /v1/recommendations/{id}/approve", auth(http.HandlerFunc(reviewHandler.Approve)))
	mux.Handle("POST /v1/recommendations/{id}/dismiss", auth(http.HandlerFunc(reviewHandler.Dismiss)))
	mux.Handle("GET /v1/outputs", auth(http.HandlerFunc(reviewHandler.Outputs)))
	mux.Handle("GET /v1/audit/{correlationID}", auth(http.HandlerFunc(reviewHandler.AuditTrail)))
	mux.Handle("GET /v1/audit/{correlationID}/replay", auth(http.HandlerFunc(reviewHandler.Replay)))
	mux.Handle("GET /v1/quarantine", auth(http.HandlerFunc(reviewHandler.Quarantined)))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
