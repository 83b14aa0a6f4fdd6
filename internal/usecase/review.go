package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/feedback-pipeline/internal/domain"
)

// AutonomyLevel is reported by getStatus. Every artifact the pipeline
// produces is a recommendation requiring human sign-off; there is no mode
// in which it acts on its own output.
const AutonomyLevel = "recommend-only"

// PipelineStatus is the operational snapshot returned to the Review Console.
type PipelineStatus struct {
	TenantID   string    `json:"tenant_id"`
	Enabled    bool      `json:"enabled"`
	Autonomy   string    `json:"autonomy"`
	QueueDepth int64     `json:"queue_depth"`
	LastRun    time.Time `json:"last_run"`
	ErrorCount int64     `json:"error_count"`
}

// ReviewUseCase serves the Review Console's reads: status, pending
// recommendations, windowed outputs, audit trails and the quarantine list.
// Every read passes the RBAC gate.
type ReviewUseCase struct {
	tenants   domain.TenantRepository
	queue     domain.QueueRepository
	artifacts domain.ArtifactRepository
	audit     domain.AuditRepository
	feedback  domain.FeedbackRepository
	gate      *RBACGate
	logger    *slog.Logger
}

// NewReviewUseCase creates a new ReviewUseCase.
func NewReviewUseCase(
	tenants domain.TenantRepository,
	queue domain.QueueRepository,
	artifacts domain.ArtifactRepository,
	audit domain.AuditRepository,
	feedback domain.FeedbackRepository,
	gate *RBACGate,
	logger *slog.Logger,
) *ReviewUseCase {
	return &ReviewUseCase{
		tenants:   tenants,
		queue:     queue,
		artifacts: artifacts,
		audit:     audit,
		feedback:  feedback,
		gate:      gate,
		logger:    logger.With("component", "review"),
	}
}

// Status reports the tenant's operational state.
func (uc *ReviewUseCase) Status(ctx context.Context, actor Actor) (*PipelineStatus, error) {
	if err := uc.gate.Authorize(ctx, actor, CapabilityReadStatus, actor.TenantID); err != nil {
		return nil, err
	}

	ts, err := uc.tenants.Status(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("read tenant status: %w", err)
	}
	depth, err := uc.queue.Depth(ctx, actor.TenantID)
	if err != nil {
		uc.logger.Warn("failed to read queue depth", "tenant_id", actor.TenantID, "error", err)
		depth = -1
	}

	return &PipelineStatus{
		TenantID:   actor.TenantID,
		Enabled:    ts.Enabled,
		Autonomy:   AutonomyLevel,
		QueueDepth: depth,
		LastRun:    ts.LastRun,
		ErrorCount: ts.ErrorCount,
	}, nil
}

// PendingRecommendations lists the tenant's recommendations awaiting a
// decision.
func (uc *ReviewUseCase) PendingRecommendations(ctx context.Context, actor Actor) ([]domain.Recommendation, error) {
	if err := uc.gate.Authorize(ctx, actor, CapabilityReadOutputs, actor.TenantID); err != nil {
		return nil, err
	}
	return uc.artifacts.ListPendingRecommendations(ctx, actor.TenantID)
}

// Outputs returns the tenant's summaries, clusters and recommendations for
// a time window. Shadow-run artifacts are excluded by the repository.
func (uc *ReviewUseCase) Outputs(ctx context.Context, actor Actor, from, to time.Time) (*domain.Outputs, error) {
	if err := uc.gate.Authorize(ctx, actor, CapabilityReadOutputs, actor.TenantID); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, &domain.ValidationError{Field: "to", Reason: "must be after from"}
	}
	return uc.artifacts.ListOutputs(ctx, actor.TenantID, from, to)
}

// AuditTrail returns the ordered audit entries for one correlation ID.
func (uc *ReviewUseCase) AuditTrail(ctx context.Context, actor Actor, correlationID string) ([]domain.AuditEntry, error) {
	if err := uc.gate.Authorize(ctx, actor, CapabilityReadAudit, actor.TenantID); err != nil {
		return nil, err
	}
	trail, err := uc.audit.Trail(ctx, correlationID)
	if err != nil {
		return nil, err
	}

	// Tenant scoping applies to the trail too: a correlation belonging to
	// another tenant reads as not found, not as forbidden.
	for _, entry := range trail {
		if entry.TenantID != "" && entry.TenantID != actor.TenantID {
			return nil, domain.ErrNotFound
		}
	}
	if len(trail) == 0 {
		return nil, domain.ErrNotFound
	}
	return trail, nil
}

// Quarantined lists the tenant's fail-closed events for operator review.
func (uc *ReviewUseCase) Quarantined(ctx context.Context, actor Actor) ([]domain.FeedbackEvent, error) {
	if err := uc.gate.Authorize(ctx, actor, CapabilityReadQuarantine, actor.TenantID); err != nil {
		return nil, err
	}
	return uc.feedback.ListQuarantined(ctx, actor.TenantID)
}
