package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/user/feedback-pipeline/internal/domain"
)

// FeedbackRepository implements domain.FeedbackRepository on PostgreSQL.
// Raw events live in the access-restricted feedback_events table; redacted
// derivatives in redacted_feedback. Both are tenant-partitioned.
type FeedbackRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFeedbackRepository creates a PostgreSQL feedback repository.
func NewFeedbackRepository(db *sql.DB, logger *slog.Logger) *FeedbackRepository {
	return &FeedbackRepository{db: db, logger: logger.With("component", "feedback_repository")}
}

// StoreEvent inserts the immutable raw event. ON CONFLICT DO NOTHING keeps
// transport retries idempotent on (tenant_id, event_id).
func (r *FeedbackRepository) StoreEvent(ctx context.Context, event domain.FeedbackEvent) error {
	query := `
		INSERT INTO feedback_events
			(event_id, tenant_id, submitted_at, module, severity, submitter_role, body, attachments, consent_improvement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, event_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.TenantID, event.SubmittedAt, event.Module, event.Severity,
		event.SubmitterRole, event.Text, pq.Array(event.Attachments), event.Consents.ImprovementProcessing,
	)
	if err != nil {
		return fmt.Errorf("store feedback event: %w", err)
	}
	return nil
}

// StoreRedacted inserts the redacted derivative, created exactly once per
// event.
func (r *FeedbackRepository) StoreRedacted(ctx context.Context, rf domain.RedactedFeedback) error {
	spans, err := json.Marshal(rf.Spans)
	if err != nil {
		return fmt.Errorf("marshal redaction spans: %w", err)
	}

	query := `
		INSERT INTO redacted_feedback
			(event_id, tenant_id, module, severity, body, spans, rule_set_version, redacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, event_id) DO NOTHING`
	_, err = r.db.ExecContext(ctx, query,
		rf.EventID, rf.TenantID, rf.Module, rf.Severity, rf.Text, spans, rf.RuleSetVersion, rf.RedactedAt,
	)
	if err != nil {
		return fmt.Errorf("store redacted feedback: %w", err)
	}
	return nil
}

// Quarantine marks an event whose redaction failed closed.
func (r *FeedbackRepository) Quarantine(ctx context.Context, tenantID, eventID string) error {
	query := `UPDATE feedback_events SET quarantined = true WHERE tenant_id = $1 AND event_id = $2`
	_, err := r.db.ExecContext(ctx, query, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("quarantine event: %w", err)
	}
	return nil
}

// ListQuarantined returns quarantined events for operator review, newest
// first.
func (r *FeedbackRepository) ListQuarantined(ctx context.Context, tenantID string) ([]domain.FeedbackEvent, error) {
	query := `
		SELECT event_id, tenant_id, submitted_at, module, severity, submitter_role, body, consent_improvement
		FROM feedback_events
		WHERE tenant_id = $1 AND quarantined = true
		ORDER BY submitted_at DESC`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list quarantined: %w", err)
	}
	defer rows.Close()

	var events []domain.FeedbackEvent
	for rows.Next() {
		var e domain.FeedbackEvent
		if err := rows.Scan(&e.ID, &e.TenantID, &e.SubmittedAt, &e.Module, &e.Severity,
			&e.SubmitterRole, &e.Text, &e.Consents.ImprovementProcessing); err != nil {
			return nil, fmt.Errorf("scan quarantined event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
