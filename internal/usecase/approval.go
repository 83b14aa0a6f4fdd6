package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/feedback-pipeline/internal/adapter/metrics"
	"github.com/user/feedback-pipeline/internal/domain"
)

// ApprovalUseCase is the human side of the workflow: recommendations stay
// pending until a person approves or dismisses them, and stale pending ones
// are expired by the sweep. Every decision lands in the audit trail with a
// human actor recorded.
type ApprovalUseCase struct {
	artifacts domain.ArtifactRepository
	audit     domain.AuditRepository
	gate      *RBACGate
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewApprovalUseCase creates a new ApprovalUseCase.
func NewApprovalUseCase(
	artifacts domain.ArtifactRepository,
	audit domain.AuditRepository,
	gate *RBACGate,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *ApprovalUseCase {
	return &ApprovalUseCase{
		artifacts: artifacts,
		audit:     audit,
		gate:      gate,
		metrics:   m,
		logger:    logger.With("component", "approval"),
	}
}

// Approve transitions a pending recommendation to approved on behalf of
// actor.
func (uc *ApprovalUseCase) Approve(ctx context.Context, actor Actor, recommendationID, notes string) (*domain.Recommendation, error) {
	return uc.decide(ctx, actor, recommendationID, notes, domain.StatusApproved, domain.ActionRecApproved)
}

// Dismiss transitions a pending recommendation to dismissed on behalf of
// actor.
func (uc *ApprovalUseCase) Dismiss(ctx context.Context, actor Actor, recommendationID, notes string) (*domain.Recommendation, error) {
	return uc.decide(ctx, actor, recommendationID, notes, domain.StatusDismissed, domain.ActionRecDismissed)
}

func (uc *ApprovalUseCase) decide(ctx context.Context, actor Actor, recommendationID, notes string, to domain.RecommendationStatus, action string) (*domain.Recommendation, error) {
	if err := uc.gate.Authorize(ctx, actor, CapabilityApprove, actor.TenantID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec, err := uc.artifacts.UpdateRecommendationStatus(ctx, actor.TenantID, recommendationID, domain.StatusPending, to, actor.ID, notes, now)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RecommendationsTotal.WithLabelValues(string(to)).Inc()
	}
	uc.auditDecision(ctx, rec, domain.ActorHuman, actor.ID, action, notes)
	uc.logger.Info("recommendation decided",
		"recommendation_id", rec.ID, "status", to, "actor", actor.ID, "tenant_id", actor.TenantID)

	return rec, nil
}

// ExpireSweep expires pending recommendations whose TTL has elapsed. It is
// run on a timer by the worker; expiry is the one transition made without a
// human actor and the audit trail records it as the system.
func (uc *ApprovalUseCase) ExpireSweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl)
	expired, err := uc.artifacts.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending recommendations: %w", err)
	}

	for _, rec := range expired {
		if uc.metrics != nil {
			uc.metrics.RecommendationsTotal.WithLabelValues(string(domain.StatusExpired)).Inc()
		}
		uc.auditDecision(ctx, &rec, domain.ActorSystem, "expiry_sweep", domain.ActionRecExpired,
			fmt.Sprintf("pending since %s", rec.CreatedAt.UTC().Format(time.RFC3339)))
	}
	if len(expired) > 0 {
		uc.logger.Info("expired stale recommendations", "count", len(expired))
	}
	return len(expired), nil
}

func (uc *ApprovalUseCase) auditDecision(ctx context.Context, rec *domain.Recommendation, actorType domain.ActorType, actorID, action, detail string) {
	entry := domain.AuditEntry{
		ID:            uuid.NewString(),
		CorrelationID: rec.CorrelationID,
		TenantID:      rec.TenantID,
		ActorType:     actorType,
		Actor:         actorID,
		Action:        action,
		EntityType:    "recommendation",
		EntityID:      rec.ID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := uc.audit.Append(ctx, entry); err != nil {
		uc.logger.Error("failed to write audit entry", "action", action, "recommendation_id", rec.ID, "error", err)
	}
}
