package domain

import "time"

// ClusterStatus tracks the outcome of the summarization stage for a cluster.
type ClusterStatus string

const (
	// ClusterStatusOK means the cluster has a generated label and summary
	// that passed the safety guard.
	ClusterStatusOK ClusterStatus = "ok"
	// ClusterStatusSummaryFailed means generation exhausted its retries;
	// the cluster is surfaced as an operational alert.
	ClusterStatusSummaryFailed ClusterStatus = "summary_failed"
	// ClusterStatusNeedsReview means generated content was withheld by the
	// safety guard and the cluster awaits human-only review.
	ClusterStatusNeedsReview ClusterStatus = "needs_review"
)

// Cluster groups semantically similar redacted feedback. Re-running a
// processing window produces a new cluster with a higher version, never an
// in-place mutation.
type Cluster struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	CorrelationID string        `json:"correlation_id"`
	Version       int64         `json:"version"`
	Theme         string        `json:"theme"`
	Label         string        `json:"label,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	MemberIDs     []string      `json:"member_ids"`
	Modules       []string      `json:"modules"`
	Status        ClusterStatus `json:"status"`
	Shadow        bool          `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ThemeCount is one entry of a summary's top-theme table.
type ThemeCount struct {
	Theme   string   `json:"theme"`
	Count   int      `json:"count"`
	Modules []string `json:"modules"`
}

// Summary is the tenant-scoped report over one processing window.
type Summary struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	CorrelationID string       `json:"correlation_id"`
	WindowStart   time.Time    `json:"window_start"`
	WindowEnd     time.Time    `json:"window_end"`
	TopThemes     []ThemeCount `json:"top_themes"`
	TotalEvents   int          `json:"total_events"`
	RiskNotes     string       `json:"risk_notes,omitempty"`
	Shadow        bool         `json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Priority classifies how urgent a recommendation is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// RecommendationStatus is the state of the human-approval workflow.
type RecommendationStatus string

const (
	StatusPending   RecommendationStatus = "pending"
	StatusApproved  RecommendationStatus = "approved"
	StatusDismissed RecommendationStatus = "dismissed"
	StatusExpired   RecommendationStatus = "expired"
)

// CanTransitionTo reports whether moving from s to next is a legal
// transition. Only pending recommendations move; approved, dismissed and
// expired are terminal.
func (s RecommendationStatus) CanTransitionTo(next RecommendationStatus) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusApproved, StatusDismissed, StatusExpired:
		return true
	}
	return false
}

// Recommendation is the unit requiring human judgment. It is created in
// StatusPending and only the approval workflow may change its status; an
// approved status always has a human actor recorded in the audit trail.
type Recommendation struct {
	ID            string               `json:"id"`
	TenantID      string               `json:"tenant_id"`
	CorrelationID string               `json:"correlation_id"`
	Theme         string               `json:"theme"`
	Actions       []string             `json:"actions"`
	FeedbackIDs   []string             `json:"feedback_ids"`
	PrivacyNote   string               `json:"privacy_note,omitempty"`
	Priority      Priority             `json:"priority"`
	Status        RecommendationStatus `json:"status"`
	Shadow        bool                 `json:"-"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
	DecidedBy     string               `json:"decided_by,omitempty"`
	DecidedAt     *time.Time           `json:"decided_at,omitempty"`
	DecisionNotes string               `json:"decision_notes,omitempty"`
}
