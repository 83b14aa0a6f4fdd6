package domain

import "time"

// Severity classifies how urgent a piece of feedback is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SubmitterRole identifies the kind of pilot user that filed the feedback.
type SubmitterRole string

const (
	SubmitterClinician SubmitterRole = "clinician"
	SubmitterManager   SubmitterRole = "manager"
	SubmitterSupport   SubmitterRole = "support"
	SubmitterOther     SubmitterRole = "other"
)

// ConsentFlags records the processing consents attached to a feedback event.
type ConsentFlags struct {
	ImprovementProcessing bool `json:"improvement_processing"`
}

// FeedbackEvent is the immutable input record delivered by the transport.
// It is never mutated after submission; downstream artifacts reference it
// by ID only.
type FeedbackEvent struct {
	ID            string        `json:"event_id"`
	TenantID      string        `json:"tenant_id"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	Module        string        `json:"module"`
	Severity      Severity      `json:"severity"`
	SubmitterRole SubmitterRole `json:"submitter_role,omitempty"`
	Text          string        `json:"text"`
	Attachments   []string      `json:"attachments,omitempty"` // opaque references, never opened here
	Consents      ConsentFlags  `json:"consents"`
}

// RedactionSpan records where a personal identifier was removed. Only the
// category, position and original length are kept; the original text is not
// recoverable from a span.
type RedactionSpan struct {
	Category string `json:"category"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
}

// RedactedFeedback is the privacy-safe derivative of a FeedbackEvent.
// Created exactly once per event; everything downstream of the redaction
// engine operates on this type, never on FeedbackEvent.
type RedactedFeedback struct {
	EventID        string          `json:"event_id"`
	TenantID       string          `json:"tenant_id"`
	Module         string          `json:"module"`
	Severity       Severity        `json:"severity"`
	Text           string          `json:"text"`
	Spans          []RedactionSpan `json:"spans,omitempty"`
	RuleSetVersion string          `json:"rule_set_version"`
	RedactedAt     time.Time       `json:"redacted_at"`
}
