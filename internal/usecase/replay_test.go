package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/user/feedback-pipeline/internal/domain"
	"github.com/user/feedback-pipeline/internal/domain/mocks"
)

func seedTrail(t *testing.T, audit *mocks.MockAuditRepository, correlationID, tenantID string) {
	t.Helper()
	steps := []struct {
		action     string
		entityType string
		entityID   string
		actorType  domain.ActorType
		actor      string
	}{
		{domain.ActionClusterCreated, "cluster", "cl-1", domain.ActorSystem, "pipeline"},
		{domain.ActionSummaryCreated, "summary", "sum-1", domain.ActorSystem, "pipeline"},
		{domain.ActionRecCreated, "recommendation", "rec-1", domain.ActorSystem, "pipeline"},
		{domain.ActionRecApproved, "recommendation", "rec-1", domain.ActorHuman, "dr-jones"},
	}
	base := time.Now().UTC().Add(-time.Hour)
	for i, step := range steps {
		_, err := audit.Append(context.Background(), domain.AuditEntry{
			ID:            uuid.NewString(),
			CorrelationID: correlationID,
			TenantID:      tenantID,
			ActorType:     step.actorType,
			Actor:         step.actor,
			Action:        step.action,
			EntityType:    step.entityType,
			EntityID:      step.entityID,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}
}

func TestReplayUseCase_Reconstruct(t *testing.T) {
	logger := testLogger()

	newFixture := func() (*ReplayUseCase, *mocks.MockAuditRepository) {
		audit := &mocks.MockAuditRepository{}
		gate := NewRBACGate(audit, nil, logger)
		return NewReplayUseCase(audit, gate, logger), audit
	}

	t.Run("Terminal States From Trail", func(t *testing.T) {
		uc, audit := newFixture()
		seedTrail(t, audit, "run-1", "trust-a")

		rec, err := uc.Reconstruct(context.Background(), adminActor("trust-a"), "run-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !rec.ChainValid {
			t.Error("expected valid hash chain")
		}
		if rec.Entries != 4 {
			t.Errorf("expected 4 entries, got %d", rec.Entries)
		}
		if len(rec.States) != 3 {
			t.Fatalf("expected 3 entity states, got %d", len(rec.States))
		}

		byID := map[string]ArtifactState{}
		for _, s := range rec.States {
			byID[s.EntityID] = s
		}
		if byID["rec-1"].LastAction != domain.ActionRecApproved {
			t.Errorf("expected approval as terminal state, got %s", byID["rec-1"].LastAction)
		}
		if byID["rec-1"].LastActor != "dr-jones" {
			t.Errorf("expected human decider, got %s", byID["rec-1"].LastActor)
		}
		if byID["cl-1"].LastAction != domain.ActionClusterCreated {
			t.Errorf("unexpected cluster state %s", byID["cl-1"].LastAction)
		}
	})

	t.Run("Replay Is Idempotent", func(t *testing.T) {
		uc, audit := newFixture()
		seedTrail(t, audit, "run-1", "trust-a")

		first, err := uc.Reconstruct(context.Background(), adminActor("trust-a"), "run-1")
		if err != nil {
			t.Fatalf("first replay: %v", err)
		}
		second, err := uc.Reconstruct(context.Background(), adminActor("trust-a"), "run-1")
		if err != nil {
			t.Fatalf("second replay: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("expected identical reconstructions from the same trail")
		}
	})

	t.Run("Tampered Entry Breaks The Chain", func(t *testing.T) {
		uc, audit := newFixture()
		seedTrail(t, audit, "run-1", "trust-a")
		audit.Entries[1].Detail = "edited after the fact"

		rec, err := uc.Reconstruct(context.Background(), adminActor("trust-a"), "run-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.ChainValid {
			t.Error("expected tampering to invalidate the chain")
		}
	})

	t.Run("Unknown Correlation", func(t *testing.T) {
		uc, _ := newFixture()

		_, err := uc.Reconstruct(context.Background(), adminActor("trust-a"), "run-missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Foreign Tenant Trail Reads As Not Found", func(t *testing.T) {
		uc, audit := newFixture()
		seedTrail(t, audit, "run-1", "trust-b")

		_, err := uc.Reconstruct(context.Background(), adminActor("trust-a"), "run-1")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestVerifyChain(t *testing.T) {
	t.Run("Empty Trail Is Valid", func(t *testing.T) {
		if !VerifyChain(nil) {
			t.Error("expected empty trail to verify")
		}
	})

	t.Run("Reordered Entries Fail", func(t *testing.T) {
		audit := &mocks.MockAuditRepository{}
		seedTrail(t, audit, "run-1", "trust-a")

		trail, _ := audit.Trail(context.Background(), "run-1")
		trail[0], trail[1] = trail[1], trail[0]
		if VerifyChain(trail) {
			t.Error("expected reordered trail to fail verification")
		}
	})
}
