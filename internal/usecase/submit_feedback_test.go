package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/domain"
	"github.com/user/feedback-pipeline/internal/domain/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validEvent(id, tenantID string) *domain.FeedbackEvent {
	return &domain.FeedbackEvent{
		ID:            id,
		TenantID:      tenantID,
		SubmittedAt:   time.Now().UTC(),
		Module:        "medication",
		Severity:      domain.SeverityHigh,
		SubmitterRole: domain.SubmitterClinician,
		Text:          "The medication save button does not respond on the ward round screen.",
		Consents:      domain.ConsentFlags{ImprovementProcessing: true},
	}
}

func newSubmitFixture(flags map[string]domain.TenantFlags, capacity int) (*SubmitFeedbackUseCase, *mocks.MockFeedbackRepository, *mocks.MockQueueRepository, *mocks.MockAuditRepository) {
	logger := testLogger()
	feedback := &mocks.MockFeedbackRepository{}
	queue := &mocks.MockQueueRepository{Capacity: capacity}
	audit := &mocks.MockAuditRepository{}
	tenants := &mocks.MockTenantRepository{FlagsByID: flags}
	redactor := redact.NewRedactor(redact.DefaultRuleSet(), logger)
	uc := NewSubmitFeedbackUseCase(tenants, feedback, queue, audit, redactor, nil, logger)
	return uc, feedback, queue, audit
}

func enabledTenant(id string) map[string]domain.TenantFlags {
	return map[string]domain.TenantFlags{id: {Enabled: true}}
}

func TestSubmitFeedbackUseCase_Submit(t *testing.T) {
	t.Run("Successful Submission", func(t *testing.T) {
		uc, feedback, queue, audit := newSubmitFixture(enabledTenant("trust-a"), 10)

		event := validEvent("evt-1", "trust-a")
		if err := uc.Submit(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(feedback.StoredEvents) != 1 {
			t.Fatalf("expected 1 stored event, got %d", len(feedback.StoredEvents))
		}
		if len(feedback.StoredRedacted) != 1 {
			t.Fatalf("expected 1 redacted record, got %d", len(feedback.StoredRedacted))
		}
		if len(queue.Queues["trust-a"]) != 1 {
			t.Fatalf("expected 1 queued item, got %d", len(queue.Queues["trust-a"]))
		}

		want := []string{
			domain.ActionEventAccepted,
			domain.ActionEventRedacted,
			domain.ActionEventEnqueued,
		}
		got := audit.Actions("evt-1")
		if len(got) != len(want) {
			t.Fatalf("expected audit actions %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("audit action %d: got %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("Redacted Text Reaches Queue", func(t *testing.T) {
		uc, _, queue, _ := newSubmitFixture(enabledTenant("trust-a"), 10)

		event := validEvent("evt-2", "trust-a")
		event.Text = "Nurse Kelly said the medication save button isn't working, call her on 07912345678"
		if err := uc.Submit(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		queued := queue.Queues["trust-a"][0]
		if strings.Contains(queued.Text, "Kelly") || strings.Contains(queued.Text, "07912345678") {
			t.Errorf("identifiers leaked into queued text: %q", queued.Text)
		}
		if !strings.Contains(queued.Text, "[NAME]") || !strings.Contains(queued.Text, "[PHONE]") {
			t.Errorf("expected redaction tokens in queued text: %q", queued.Text)
		}
	})

	t.Run("Validation Failures", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*domain.FeedbackEvent)
			field  string
		}{
			{"missing event ID", func(e *domain.FeedbackEvent) { e.ID = "" }, "event_id"},
			{"missing tenant", func(e *domain.FeedbackEvent) { e.TenantID = "" }, "tenant_id"},
			{"missing module", func(e *domain.FeedbackEvent) { e.Module = "" }, "module"},
			{"bad severity", func(e *domain.FeedbackEvent) { e.Severity = "urgent" }, "severity"},
			{"text too short", func(e *domain.FeedbackEvent) { e.Text = "broken" }, "text"},
			{"text too long", func(e *domain.FeedbackEvent) { e.Text = strings.Repeat("a", 2001) }, "text"},
			{"missing consent", func(e *domain.FeedbackEvent) { e.Consents.ImprovementProcessing = false }, "consents.improvement_processing"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				uc, feedback, _, _ := newSubmitFixture(enabledTenant("trust-a"), 10)

				event := validEvent("evt-3", "trust-a")
				tc.mutate(event)
				err := uc.Submit(context.Background(), event)

				var vErr *domain.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if vErr.Field != tc.field {
					t.Errorf("expected field %s, got %s", tc.field, vErr.Field)
				}
				if len(feedback.StoredEvents) != 0 {
					t.Error("rejected event must not be stored")
				}
			})
		}
	})

	t.Run("Disabled Tenant", func(t *testing.T) {
		uc, feedback, _, _ := newSubmitFixture(map[string]domain.TenantFlags{"trust-a": {Enabled: false}}, 10)

		err := uc.Submit(context.Background(), validEvent("evt-4", "trust-a"))
		if !errors.Is(err, domain.ErrTenantDisabled) {
			t.Fatalf("expected ErrTenantDisabled, got %v", err)
		}
		if len(feedback.StoredEvents) != 0 {
			t.Error("event for disabled tenant must not be stored")
		}
	})

	t.Run("Unknown Tenant Fails Closed", func(t *testing.T) {
		uc, _, _, _ := newSubmitFixture(enabledTenant("trust-a"), 10)

		err := uc.Submit(context.Background(), validEvent("evt-5", "trust-unknown"))
		if !errors.Is(err, domain.ErrTenantDisabled) {
			t.Fatalf("expected ErrTenantDisabled, got %v", err)
		}
	})

	t.Run("Backpressure Does Not Cross Tenants", func(t *testing.T) {
		flags := map[string]domain.TenantFlags{
			"trust-a": {Enabled: true},
			"trust-b": {Enabled: true},
		}
		uc, _, queue, audit := newSubmitFixture(flags, 2)

		for i := 0; i < 2; i++ {
			event := validEvent("evt-a-"+string(rune('1'+i)), "trust-a")
			if err := uc.Submit(context.Background(), event); err != nil {
				t.Fatalf("expected no error filling queue, got %v", err)
			}
		}

		err := uc.Submit(context.Background(), validEvent("evt-a-3", "trust-a"))
		if !errors.Is(err, domain.ErrBackpressure) {
			t.Fatalf("expected ErrBackpressure, got %v", err)
		}
		got := audit.Actions("evt-a-3")
		if got[len(got)-1] != domain.ActionEventRejected {
			t.Errorf("expected backpressure to be audited as rejection, got %v", got)
		}

		if err := uc.Submit(context.Background(), validEvent("evt-b-1", "trust-b")); err != nil {
			t.Fatalf("other tenant must not feel backpressure, got %v", err)
		}
		if len(queue.Queues["trust-b"]) != 1 {
			t.Errorf("expected 1 item on trust-b queue, got %d", len(queue.Queues["trust-b"]))
		}
	})

	t.Run("Redaction Failure Quarantines", func(t *testing.T) {
		uc, feedback, queue, audit := newSubmitFixture(enabledTenant("trust-a"), 10)

		event := validEvent("evt-6", "trust-a")
		event.Text = "the save button fails \xff\xfe on this screen every time"
		err := uc.Submit(context.Background(), event)

		var rErr *domain.RedactionError
		if !errors.As(err, &rErr) {
			t.Fatalf("expected RedactionError, got %v", err)
		}
		if len(feedback.QuarantinedIDs) != 1 || feedback.QuarantinedIDs[0] != "evt-6" {
			t.Errorf("expected event to be quarantined, got %v", feedback.QuarantinedIDs)
		}
		if len(feedback.StoredRedacted) != 0 {
			t.Error("failed redaction must not produce a redacted record")
		}
		if len(queue.Queues["trust-a"]) != 0 {
			t.Error("quarantined event must not be enqueued")
		}
		got := audit.Actions("evt-6")
		if got[len(got)-1] != domain.ActionEventQuarantined {
			t.Errorf("expected quarantine audit entry, got %v", got)
		}
	})

	t.Run("Store Error Propagates", func(t *testing.T) {
		uc, feedback, _, _ := newSubmitFixture(enabledTenant("trust-a"), 10)
		feedback.StoreEventErr = errors.New("connection refused")

		err := uc.Submit(context.Background(), validEvent("evt-7", "trust-a"))
		if err == nil || !strings.Contains(err.Error(), "connection refused") {
			t.Fatalf("expected store error, got %v", err)
		}
	})
}
