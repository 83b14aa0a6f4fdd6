package domain

import (
	"context"
	"time"
)

// FeedbackRepository persists raw events (access-restricted) and their
// redacted derivatives. All queries are tenant-scoped.
type FeedbackRepository interface {
	// StoreEvent stores the immutable raw event. Idempotent on
	// (tenant_id, event_id) so transport retries are safe.
	StoreEvent(ctx context.Context, event FeedbackEvent) error

	// StoreRedacted stores the redacted derivative, created exactly once
	// per event.
	StoreRedacted(ctx context.Context, rf RedactedFeedback) error

	// Quarantine marks an event as failed-closed during redaction.
	Quarantine(ctx context.Context, tenantID, eventID string) error

	// ListQuarantined returns quarantined events for operator review.
	ListQuarantined(ctx context.Context, tenantID string) ([]FeedbackEvent, error)
}

// QueueRepository buffers redacted feedback per tenant with bounded
// capacity and admits it downstream at a configured rate.
type QueueRepository interface {
	// Enqueue appends to the tenant's queue, returning ErrBackpressure
	// when the queue is at capacity.
	Enqueue(ctx context.Context, rf RedactedFeedback) error

	// Dequeue removes up to max items in arrival order, subject to the
	// tenant's rate limit. Returning fewer items than max is normal.
	Dequeue(ctx context.Context, tenantID string, max int) ([]RedactedFeedback, error)

	// Depth reports the tenant's current queue length.
	Depth(ctx context.Context, tenantID string) (int64, error)
}

// Outputs bundles a window of persisted artifacts for the Review Console.
type Outputs struct {
	Summaries       []Summary        `json:"summaries"`
	Clusters        []Cluster        `json:"clusters"`
	Recommendations []Recommendation `json:"recommendations"`
}

// ArtifactRepository persists clusters, summaries and recommendations.
// Writes are insert-only except the single-row recommendation status
// update, which carries an optimistic prior-status check.
type ArtifactRepository interface {
	StoreCluster(ctx context.Context, c Cluster) error
	StoreSummary(ctx context.Context, s Summary) error
	StoreRecommendation(ctx context.Context, rec Recommendation) error

	GetRecommendation(ctx context.Context, tenantID, id string) (*Recommendation, error)
	ListPendingRecommendations(ctx context.Context, tenantID string) ([]Recommendation, error)

	// UpdateRecommendationStatus transitions a recommendation from the
	// expected prior status. A recommendation not in that status fails
	// with *TransitionError rather than silently overwriting.
	UpdateRecommendationStatus(ctx context.Context, tenantID, id string, from, to RecommendationStatus, actor, notes string, at time.Time) (*Recommendation, error)

	// ExpirePending moves pending recommendations created before cutoff to
	// expired and returns them for auditing.
	ExpirePending(ctx context.Context, cutoff time.Time) ([]Recommendation, error)

	ListOutputs(ctx context.Context, tenantID string, from, to time.Time) (*Outputs, error)
}

// AuditRepository is the append-only, tamper-evident trail. Entries are
// never updated or deleted by application code.
type AuditRepository interface {
	// Append writes an entry, assigning its position in the correlation's
	// hash chain, and returns the stored entry.
	Append(ctx context.Context, entry AuditEntry) (AuditEntry, error)

	// Trail returns the ordered entries for a correlation ID.
	Trail(ctx context.Context, correlationID string) ([]AuditEntry, error)
}

// TenantFlags are the per-tenant feature flags read at admission time.
type TenantFlags struct {
	Enabled bool
	Shadow  bool
}

// TenantStatus is the operational state surfaced by getStatus.
type TenantStatus struct {
	Enabled    bool      `json:"enabled"`
	LastRun    time.Time `json:"last_run"`
	ErrorCount int64     `json:"error_count"`
}

// TenantRepository reads tenant feature flags and records processing runs.
type TenantRepository interface {
	// Flags returns the tenant's feature flags. Implementations should
	// cache to keep the admission path cheap.
	Flags(ctx context.Context, tenantID string) (TenantFlags, error)

	// ListEnabled returns the IDs of tenants with the pipeline enabled.
	ListEnabled(ctx context.Context) ([]string, error)

	// StartRun increments and returns the tenant's run counter, used to
	// version clusters across re-runs.
	StartRun(ctx context.Context, tenantID string) (int64, error)

	// RecordRun stores the completion time of a run and accumulates its
	// error count.
	RecordRun(ctx context.Context, tenantID string, at time.Time, errDelta int64) error

	Status(ctx context.Context, tenantID string) (TenantStatus, error)
}
