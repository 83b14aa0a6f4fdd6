package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/user/feedback-pipeline/internal/adapter/metrics"
	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/domain"
)

const (
	minTextLength = 10
	maxTextLength = 2000
)

// SubmitFeedbackUseCase is the pipeline's front gate: it validates and
// checks consent, redacts, and enqueues. The raw event text never travels
// past this use case; everything downstream sees RedactedFeedback only.
type SubmitFeedbackUseCase struct {
	tenants  domain.TenantRepository
	feedback domain.FeedbackRepository
	queue    domain.QueueRepository
	audit    domain.AuditRepository
	redactor *redact.Redactor
	metrics  *metrics.PipelineMetrics
	logger   *slog.Logger
}

// NewSubmitFeedbackUseCase creates a new SubmitFeedbackUseCase.
func NewSubmitFeedbackUseCase(
	tenants domain.TenantRepository,
	feedback domain.FeedbackRepository,
	queue domain.QueueRepository,
	audit domain.AuditRepository,
	redactor *redact.Redactor,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *SubmitFeedbackUseCase {
	return &SubmitFeedbackUseCase{
		tenants:  tenants,
		feedback: feedback,
		queue:    queue,
		audit:    audit,
		redactor: redactor,
		metrics:  m,
		logger:   logger.With("component", "submit_feedback"),
	}
}

// Submit runs one event through the gate, redaction and queue admission.
// The event's own ID doubles as the correlation ID for its submission-stage
// audit entries.
func (uc *SubmitFeedbackUseCase) Submit(ctx context.Context, event *domain.FeedbackEvent) error {
	if event.SubmittedAt.IsZero() {
		event.SubmittedAt = time.Now().UTC()
	}

	if err := validate(event); err != nil {
		uc.countEvent("rejected")
		uc.auditEvent(ctx, event, domain.ActionEventRejected, err.Error())
		return err
	}

	flags, err := uc.tenants.Flags(ctx, event.TenantID)
	if err != nil {
		return fmt.Errorf("read tenant flags: %w", err)
	}
	if !flags.Enabled {
		uc.countEvent("disabled")
		uc.auditEvent(ctx, event, domain.ActionEventRejected, "tenant disabled")
		return domain.ErrTenantDisabled
	}

	if err := uc.feedback.StoreEvent(ctx, *event); err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	uc.auditEvent(ctx, event, domain.ActionEventAccepted, "")

	rf, err := uc.redactor.Redact(event)
	if err != nil {
		// Fail closed: quarantine, never pass the event through unredacted.
		uc.countEvent("quarantined")
		if uc.metrics != nil {
			uc.metrics.RedactionFailures.Inc()
			uc.metrics.ErrorsTotal.WithLabelValues("redaction").Inc()
		}
		if qErr := uc.feedback.Quarantine(ctx, event.TenantID, event.ID); qErr != nil {
			uc.logger.Error("failed to quarantine event", "event_id", event.ID, "error", qErr)
		}
		uc.auditEvent(ctx, event, domain.ActionEventQuarantined, err.Error())
		return err
	}

	if err := uc.feedback.StoreRedacted(ctx, rf); err != nil {
		return fmt.Errorf("store redacted feedback: %w", err)
	}
	uc.auditEvent(ctx, event, domain.ActionEventRedacted,
		fmt.Sprintf("spans=%d rule_set=%s", len(rf.Spans), rf.RuleSetVersion))

	if err := uc.queue.Enqueue(ctx, rf); err != nil {
		if err == domain.ErrBackpressure {
			uc.countEvent("backpressure")
			uc.auditEvent(ctx, event, domain.ActionEventRejected, "backpressure")
		}
		return err
	}
	uc.auditEvent(ctx, event, domain.ActionEventEnqueued, "")
	uc.countEvent("accepted")

	return nil
}

// Quarantined lists fail-closed events for operator review.
func (uc *SubmitFeedbackUseCase) Quarantined(ctx context.Context, tenantID string) ([]domain.FeedbackEvent, error) {
	return uc.feedback.ListQuarantined(ctx, tenantID)
}

func validate(event *domain.FeedbackEvent) error {
	if event.ID == "" {
		return &domain.ValidationError{Field: "event_id", Reason: "required"}
	}
	if event.TenantID == "" {
		return &domain.ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if event.Module == "" {
		return &domain.ValidationError{Field: "module", Reason: "required"}
	}
	if !event.Severity.Valid() {
		return &domain.ValidationError{Field: "severity", Reason: "must be one of low, medium, high, critical"}
	}
	if n := utf8.RuneCountInString(event.Text); n < minTextLength || n > maxTextLength {
		return &domain.ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("length must be between %d and %d characters", minTextLength, maxTextLength),
		}
	}
	if !event.Consents.ImprovementProcessing {
		return &domain.ValidationError{Field: "consents.improvement_processing", Reason: "consent required"}
	}
	return nil
}

func (uc *SubmitFeedbackUseCase) countEvent(status string) {
	if uc.metrics != nil {
		uc.metrics.EventsTotal.WithLabelValues(status).Inc()
	}
}

func (uc *SubmitFeedbackUseCase) auditEvent(ctx context.Context, event *domain.FeedbackEvent, action, detail string) {
	entry := domain.AuditEntry{
		ID:            uuid.NewString(),
		CorrelationID: event.ID,
		TenantID:      event.TenantID,
		ActorType:     domain.ActorSystem,
		Actor:         "pipeline",
		Action:        action,
		EntityType:    "feedback_event",
		EntityID:      event.ID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := uc.audit.Append(ctx, entry); err != nil {
		uc.logger.Error("failed to write audit entry", "action", action, "event_id", event.ID, "error", err)
	}
}
