package domain

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
)

// ActorType distinguishes pipeline-internal actions from human decisions.
type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorHuman  ActorType = "human"
)

// Audit actions written at stage boundaries. The replay use case depends on
// these names to reconstruct artifact states, so they are part of the
// persisted contract.
const (
	ActionEventAccepted    = "event.accepted"
	ActionEventRejected    = "event.rejected"
	ActionEventRedacted    = "event.redacted"
	ActionEventQuarantined = "event.quarantined"
	ActionEventEnqueued    = "event.enqueued"
	ActionClusterCreated   = "cluster.created"
	ActionGenerationFailed = "generation.failed"
	ActionSafetyViolation  = "safety.violation"
	ActionSummaryCreated   = "summary.created"
	ActionRecCreated       = "recommendation.created"
	ActionRecApproved      = "recommendation.approved"
	ActionRecDismissed     = "recommendation.dismissed"
	ActionRecExpired       = "recommendation.expired"
	ActionAuthzDenied      = "authz.denied"
)

// AuditEntry is one append-only record of the tamper-evident trail. Entries
// for a correlation ID form a hash chain: each EntryHash commits to the
// previous entry's hash and the entry's own content.
type AuditEntry struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	TenantID      string    `json:"tenant_id"`
	ActorType     ActorType `json:"actor_type"`
	Actor         string    `json:"actor"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail,omitempty"`
	PrevHash      string    `json:"prev_hash,omitempty"`
	EntryHash     string    `json:"entry_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// ComputeHash returns the chain hash for the entry given the previous
// entry's hash (empty for the first entry of a correlation). The hash covers
// every content field, so any retroactive edit breaks the chain.
func (e AuditEntry) ComputeHash(prevHash string) string {
	h := blake3.New()
	for _, part := range []string{
		prevHash,
		e.ID,
		e.CorrelationID,
		e.TenantID,
		string(e.ActorType),
		e.Actor,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.Detail,
		strconv.FormatInt(e.CreatedAt.UTC().UnixNano(), 10),
	} {
		h.WriteString(part)
		h.WriteString("\x1f")
	}
	return hex.EncodeToString(h.Sum(nil))
}
