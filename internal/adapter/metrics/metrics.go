package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the feedback pipeline.
// Every fail-closed error category increments ErrorsTotal so operators are
// alerted rather than errors being swallowed.
type PipelineMetrics struct {
	EventsTotal          *prometheus.CounterVec
	RedactionFailures    prometheus.Counter
	GenerationRetries    prometheus.Counter
	SafetyViolations     prometheus.Counter
	AuthzDenials         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	QueueDepth           *prometheus.GaugeVec
	RecommendationsTotal *prometheus.CounterVec
}

// NewPipelineMetrics initializes and registers the Prometheus metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of submitted events by outcome.",
		}, []string{"status"}), // status: accepted, rejected, backpressure, quarantined, disabled
		RedactionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "redaction",
			Name:      "failures_total",
			Help:      "Total number of fail-closed redaction failures (quarantined events).",
		}),
		GenerationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "generation",
			Name:      "retries_total",
			Help:      "Total number of generation calls that needed a retry.",
		}),
		SafetyViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "safety",
			Name:      "violations_total",
			Help:      "Total number of generated artifacts withheld by the safety guard.",
		}),
		AuthzDenials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "rbac",
			Name:      "denials_total",
			Help:      "Total number of audited authorization denials.",
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "worker",
			Name:      "errors_total",
			Help:      "Total number of escalated pipeline errors by category.",
		}, []string{"category"}), // category: redaction, generation, safety, transition, authz
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current per-tenant queue depth.",
		}, []string{"tenant"}),
		RecommendationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedback_pipeline",
			Subsystem: "approval",
			Name:      "recommendations_total",
			Help:      "Total number of recommendation status transitions.",
		}, []string{"status"}), // status: pending, approved, dismissed, expired
	}
}
