package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/feedback-pipeline/internal/adapter/cluster"
	"github.com/user/feedback-pipeline/internal/adapter/generation"
	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/adapter/safety"
	"github.com/user/feedback-pipeline/internal/domain"
	"github.com/user/feedback-pipeline/internal/domain/mocks"
)

const (
	clusterMarker   = "summarizing"
	aggregateMarker = "drafting improvement"
)

func queueItems(tenantID string) []domain.RedactedFeedback {
	now := time.Now().UTC()
	return []domain.RedactedFeedback{
		{EventID: "evt-1", TenantID: tenantID, Module: "medication", Severity: domain.SeverityHigh,
			Text: "the save button on the medication screen does nothing when pressed", RedactedAt: now.Add(-3 * time.Minute)},
		{EventID: "evt-2", TenantID: tenantID, Module: "medication", Severity: domain.SeverityHigh,
			Text: "save button does nothing on medication screen", RedactedAt: now.Add(-2 * time.Minute)},
		{EventID: "evt-3", TenantID: tenantID, Module: "medication", Severity: domain.SeverityMedium,
			Text: "pressing save on the medication screen fails", RedactedAt: now.Add(-time.Minute)},
		{EventID: "evt-4", TenantID: tenantID, Module: "discharge", Severity: domain.SeverityLow,
			Text: "discharge letter printing is misaligned", RedactedAt: now},
	}
}

type windowFixture struct {
	uc        *ProcessWindowUseCase
	tenants   *mocks.MockTenantRepository
	queue     *mocks.MockQueueRepository
	artifacts *mocks.MockArtifactRepository
	audit     *mocks.MockAuditRepository
	generator *generation.StubGenerator
}

func newWindowFixture(flags domain.TenantFlags, gen *generation.StubGenerator) *windowFixture {
	logger := testLogger()
	tenants := &mocks.MockTenantRepository{FlagsByID: map[string]domain.TenantFlags{"trust-a": flags}}
	queue := &mocks.MockQueueRepository{Queues: map[string][]domain.RedactedFeedback{"trust-a": queueItems("trust-a")}}
	artifacts := &mocks.MockArtifactRepository{}
	audit := &mocks.MockAuditRepository{}
	rules := redact.DefaultRuleSet()
	guard := safety.NewGuard(rules, safety.DefaultBlocklist, 4000, logger)
	policy := generation.RetryPolicy{MaxAttempts: 2, Timeout: time.Second, BaseBackoff: time.Millisecond}

	uc := NewProcessWindowUseCase(
		tenants, queue, artifacts, audit,
		cluster.NewClusterer(0.3), gen, policy, guard,
		nil, logger, 100, 4, 720*time.Hour,
	)
	return &windowFixture{uc: uc, tenants: tenants, queue: queue, artifacts: artifacts, audit: audit, generator: gen}
}

func cleanGenerator() *generation.StubGenerator {
	return &generation.StubGenerator{
		Responses: map[string]string{
			clusterMarker:   `{"label": "Save button failure", "summary": "Users report the medication save button not responding.", "risk_notes": ""}`,
			aggregateMarker: `{"risk_notes": "Delayed medication records are a clinical risk.", "recommendations": [{"cluster": 1, "theme": "save reliability", "actions": ["Fix the save handler", "Add a retry indicator"], "priority": "high", "privacy_note": "Derived from redacted text only."}]}`,
		},
	}
}

func TestProcessWindowUseCase_ProcessTenant(t *testing.T) {
	t.Run("Successful Window", func(t *testing.T) {
		f := newWindowFixture(domain.TenantFlags{Enabled: true}, cleanGenerator())

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(f.artifacts.Clusters) != 2 {
			t.Fatalf("expected 2 clusters (group plus singleton), got %d", len(f.artifacts.Clusters))
		}
		for _, c := range f.artifacts.Clusters {
			if c.Status != domain.ClusterStatusOK {
				t.Errorf("cluster %s: expected status ok, got %s", c.ID, c.Status)
			}
			if c.Label == "" || c.Summary == "" {
				t.Errorf("cluster %s: expected generated label and summary", c.ID)
			}
			if c.Version != 1 {
				t.Errorf("cluster %s: expected version 1, got %d", c.ID, c.Version)
			}
		}

		if len(f.artifacts.Summaries) != 1 {
			t.Fatalf("expected 1 summary, got %d", len(f.artifacts.Summaries))
		}
		summary := f.artifacts.Summaries[0]
		if summary.TotalEvents != 4 {
			t.Errorf("expected 4 total events, got %d", summary.TotalEvents)
		}
		if len(summary.TopThemes) != 2 {
			t.Errorf("expected 2 theme counts, got %d", len(summary.TopThemes))
		}
		if summary.RiskNotes == "" {
			t.Error("expected risk notes from the aggregate pass")
		}
		if !summary.WindowEnd.After(summary.WindowStart) {
			t.Error("expected window bounds from item timestamps")
		}

		if len(f.artifacts.Recommendations) != 1 {
			t.Fatalf("expected 1 recommendation, got %d", len(f.artifacts.Recommendations))
		}
		for _, rec := range f.artifacts.Recommendations {
			if rec.Status != domain.StatusPending {
				t.Errorf("expected pending status, got %s", rec.Status)
			}
			if rec.Priority != domain.PriorityHigh {
				t.Errorf("expected high priority, got %s", rec.Priority)
			}
			if len(rec.FeedbackIDs) != 3 {
				t.Errorf("expected 3 linked feedback IDs, got %v", rec.FeedbackIDs)
			}
			if rec.ExpiresAt.Before(rec.CreatedAt.Add(719 * time.Hour)) {
				t.Error("expected expiry set from TTL")
			}
			if rec.CorrelationID != summary.CorrelationID {
				t.Error("expected recommendation to share the run's correlation ID")
			}
		}

		if len(f.queue.Queues["trust-a"]) != 0 {
			t.Errorf("expected queue to be drained, got %d items", len(f.queue.Queues["trust-a"]))
		}
		if len(f.tenants.RecordedRuns) != 1 || f.tenants.ErrDeltas[0] != 0 {
			t.Errorf("expected one clean run recorded, got runs=%v deltas=%v", f.tenants.RecordedRuns, f.tenants.ErrDeltas)
		}

		actions := f.audit.Actions(summary.CorrelationID)
		counts := map[string]int{}
		for _, a := range actions {
			counts[a]++
		}
		if counts[domain.ActionClusterCreated] != 2 {
			t.Errorf("expected 2 cluster.created entries, got %d", counts[domain.ActionClusterCreated])
		}
		if counts[domain.ActionSummaryCreated] != 1 {
			t.Errorf("expected 1 summary.created entry, got %d", counts[domain.ActionSummaryCreated])
		}
		if counts[domain.ActionRecCreated] != 1 {
			t.Errorf("expected 1 recommendation.created entry, got %d", counts[domain.ActionRecCreated])
		}
	})

	t.Run("Generation Failure Marks Clusters", func(t *testing.T) {
		gen := &generation.StubGenerator{Err: errors.New("capability unavailable")}
		f := newWindowFixture(domain.TenantFlags{Enabled: true}, gen)

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected window to survive generation failure, got %v", err)
		}

		if len(f.artifacts.Clusters) != 2 {
			t.Fatalf("expected clusters stored despite failure, got %d", len(f.artifacts.Clusters))
		}
		for _, c := range f.artifacts.Clusters {
			if c.Status != domain.ClusterStatusSummaryFailed {
				t.Errorf("expected summary_failed, got %s", c.Status)
			}
		}
		if len(f.artifacts.Summaries) != 1 {
			t.Fatal("expected deterministic summary even without generation")
		}
		if f.artifacts.Summaries[0].RiskNotes != "" {
			t.Error("expected no risk notes when generation failed")
		}
		if len(f.artifacts.Recommendations) != 0 {
			t.Error("expected no recommendations when generation failed")
		}
		if f.tenants.ErrDeltas[0] == 0 {
			t.Error("expected run error count to reflect failures")
		}

		correlationID := f.artifacts.Summaries[0].CorrelationID
		sawFailure := false
		for _, a := range f.audit.Actions(correlationID) {
			if a == domain.ActionGenerationFailed {
				sawFailure = true
			}
		}
		if !sawFailure {
			t.Error("expected generation.failed audit entries")
		}
	})

	t.Run("Safety Guard Withholds Cluster Output", func(t *testing.T) {
		gen := cleanGenerator()
		gen.Responses[clusterMarker] = `{"label": "Staff complaints", "summary": "The incompetent setup keeps failing.", "risk_notes": ""}`
		f := newWindowFixture(domain.TenantFlags{Enabled: true}, gen)

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, c := range f.artifacts.Clusters {
			if c.Status != domain.ClusterStatusNeedsReview {
				t.Errorf("expected needs_review, got %s", c.Status)
			}
			if c.Label != "" || c.Summary != "" {
				t.Error("withheld output must not be persisted on the cluster")
			}
		}
		if len(f.artifacts.Recommendations) != 0 {
			t.Error("expected no recommendations when every cluster is withheld")
		}

		correlationID := f.artifacts.Summaries[0].CorrelationID
		sawViolation := false
		for _, a := range f.audit.Actions(correlationID) {
			if a == domain.ActionSafetyViolation {
				sawViolation = true
			}
		}
		if !sawViolation {
			t.Error("expected safety.violation audit entries")
		}
	})

	t.Run("Safety Guard Skips Leaky Recommendation", func(t *testing.T) {
		gen := cleanGenerator()
		gen.Responses[aggregateMarker] = `{"risk_notes": "", "recommendations": [{"cluster": 1, "theme": "follow up", "actions": ["Call the reporter on 07912 345678"], "priority": "low", "privacy_note": ""}]}`
		f := newWindowFixture(domain.TenantFlags{Enabled: true}, gen)

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.artifacts.Recommendations) != 0 {
			t.Fatalf("expected leaky recommendation to be withheld, got %d", len(f.artifacts.Recommendations))
		}
	})

	t.Run("Invalid Priority Defaults To Medium", func(t *testing.T) {
		gen := cleanGenerator()
		gen.Responses[aggregateMarker] = `{"risk_notes": "", "recommendations": [{"cluster": 1, "theme": "save reliability", "actions": ["Fix the save handler"], "priority": "urgent", "privacy_note": ""}]}`
		f := newWindowFixture(domain.TenantFlags{Enabled: true}, gen)

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, rec := range f.artifacts.Recommendations {
			if rec.Priority != domain.PriorityMedium {
				t.Errorf("expected medium priority fallback, got %s", rec.Priority)
			}
		}
	})

	t.Run("Empty Queue Is A No-Op", func(t *testing.T) {
		f := newWindowFixture(domain.TenantFlags{Enabled: true}, cleanGenerator())
		f.queue.Queues["trust-a"] = nil

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.artifacts.Clusters) != 0 || len(f.artifacts.Summaries) != 0 {
			t.Error("expected no artifacts for an empty window")
		}
		if f.generator.CallCount() != 0 {
			t.Error("expected no generation calls for an empty window")
		}
		if f.tenants.RunCounter != 0 {
			t.Error("expected no run started for an empty window")
		}
	})

	t.Run("Disabled Tenant Is Skipped", func(t *testing.T) {
		f := newWindowFixture(domain.TenantFlags{Enabled: false}, cleanGenerator())

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.queue.Queues["trust-a"]) != 4 {
			t.Error("disabled tenant's queue must not be drained")
		}
	})

	t.Run("Shadow Flag Propagates To Artifacts", func(t *testing.T) {
		f := newWindowFixture(domain.TenantFlags{Enabled: true, Shadow: true}, cleanGenerator())

		if err := f.uc.ProcessTenant(context.Background(), "trust-a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, c := range f.artifacts.Clusters {
			if !c.Shadow {
				t.Error("expected shadow flag on clusters")
			}
		}
		if !f.artifacts.Summaries[0].Shadow {
			t.Error("expected shadow flag on summary")
		}
		for _, rec := range f.artifacts.Recommendations {
			if !rec.Shadow {
				t.Error("expected shadow flag on recommendations")
			}
		}
	})
}
