package domain

import (
	"errors"
	"fmt"
)

// ErrBackpressure is returned when a tenant's queue is at capacity. The
// caller should retry later; the event is never silently dropped.
var ErrBackpressure = errors.New("tenant queue at capacity")

// ErrNotFound is returned when a requested artifact does not exist within
// the caller's tenant scope.
var ErrNotFound = errors.New("not found")

// ErrTenantDisabled is returned when the per-tenant feature flag is off.
var ErrTenantDisabled = errors.New("feedback pipeline disabled for tenant")

// ValidationError reports malformed or unconsented input. Recoverable by
// caller correction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// RedactionError means the redaction engine failed closed. The event is
// quarantined and never passed through unredacted.
type RedactionError struct {
	EventID string
	Reason  string
}

func (e *RedactionError) Error() string {
	return fmt.Sprintf("redaction failed for event %s: %s", e.EventID, e.Reason)
}

// GenerationError wraps a text-generation failure after the retry budget is
// exhausted.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SafetyError means generated content violated the safety guard and was
// withheld from storage.
type SafetyError struct {
	ArtifactType string
	Reasons      []string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("safety violation in %s: %v", e.ArtifactType, e.Reasons)
}

// TransitionError reports an illegal approval-state transition.
type TransitionError struct {
	From RecommendationStatus
	To   RecommendationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// AuthzError reports an RBAC denial. Always audited.
type AuthzError struct {
	Actor      string
	Capability string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("actor %s lacks capability %s", e.Actor, e.Capability)
}
