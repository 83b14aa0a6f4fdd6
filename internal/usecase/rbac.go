package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/feedback-pipeline/internal/adapter/metrics"
	"github.com/user/feedback-pipeline/internal/domain"
)

// Role is an authenticated actor's role within a tenant.
type Role string

const (
	RolePilotAdmin        Role = "pilot_admin"
	RoleDeveloper         Role = "developer"
	RoleComplianceOfficer Role = "compliance_officer"
	RoleSupport           Role = "support"
)

// Capability names one authorizable operation against pipeline data.
type Capability string

const (
	CapabilitySubmit         Capability = "submit"
	CapabilityApprove        Capability = "approve"
	CapabilityReadOutputs    Capability = "read_outputs"
	CapabilityReadAudit      Capability = "read_audit"
	CapabilityReadStatus     Capability = "read_status"
	CapabilityReadQuarantine Capability = "read_quarantine"
)

// roleCapabilities is the authorization matrix. developer and support read
// only redacted content; audit trails are reserved for pilot_admin and
// compliance_officer; only pilot_admin decides recommendations.
var roleCapabilities = map[Role]map[Capability]bool{
	RolePilotAdmin: {
		CapabilitySubmit: true, CapabilityApprove: true, CapabilityReadOutputs: true,
		CapabilityReadAudit: true, CapabilityReadStatus: true, CapabilityReadQuarantine: true,
	},
	RoleComplianceOfficer: {
		CapabilityReadOutputs: true, CapabilityReadAudit: true, CapabilityReadStatus: true,
	},
	RoleDeveloper: {
		CapabilitySubmit: true, CapabilityReadOutputs: true, CapabilityReadStatus: true,
	},
	RoleSupport: {
		CapabilitySubmit: true, CapabilityReadOutputs: true, CapabilityReadStatus: true,
	},
}

// Actor is an authenticated principal extracted from a verified token.
type Actor struct {
	ID       string
	Role     Role
	TenantID string
}

// RBACGate authorizes every read/write against pipeline data by role and
// tenant. Denials are themselves audited events.
type RBACGate struct {
	audit   domain.AuditRepository
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewRBACGate creates the gate.
func NewRBACGate(audit domain.AuditRepository, m *metrics.PipelineMetrics, logger *slog.Logger) *RBACGate {
	return &RBACGate{audit: audit, metrics: m, logger: logger.With("component", "rbac")}
}

// Authorize checks that actor holds capability within tenantID's scope. A
// denial writes an audit entry and returns *domain.AuthzError.
func (g *RBACGate) Authorize(ctx context.Context, actor Actor, capability Capability, tenantID string) error {
	allowed := actor.TenantID == tenantID && roleCapabilities[actor.Role][capability]
	if allowed {
		return nil
	}

	g.logger.Warn("authorization denied",
		"actor", actor.ID, "role", actor.Role, "capability", capability, "tenant", tenantID)
	if g.metrics != nil {
		g.metrics.AuthzDenials.Inc()
	}

	entry := domain.AuditEntry{
		ID:            uuid.NewString(),
		CorrelationID: "authz:" + actor.ID,
		TenantID:      tenantID,
		ActorType:     domain.ActorHuman,
		Actor:         actor.ID,
		Action:        domain.ActionAuthzDenied,
		EntityType:    "capability",
		EntityID:      string(capability),
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := g.audit.Append(ctx, entry); err != nil {
		g.logger.Error("failed to audit authorization denial", "error", err)
	}

	return &domain.AuthzError{Actor: actor.ID, Capability: string(capability)}
}
