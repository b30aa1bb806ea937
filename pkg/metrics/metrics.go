// Package metrics exposes the orchestrator's Prometheus collectors: one
// counter/histogram per pipeline concern (decisions, selections, plans,
// LLM calls, stage errors), following the pack's package-level-collector
// convention rather than a per-request registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsProcessedTotal counts Stage A classifications completed.
	DecisionsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisions_processed_total",
		Help: "Total number of decisions classified by Stage A.",
	})

	// SelectionsProcessedTotal counts Stage AB selections completed.
	SelectionsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selections_processed_total",
		Help: "Total number of tool selections produced by Stage AB.",
	})

	// PlansProcessedTotal counts Stage C plans completed.
	PlansProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plans_processed_total",
		Help: "Total number of execution plans produced by Stage C.",
	})

	// StageDuration records per-stage wall-clock latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stage_duration_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// StageErrorsTotal counts stage failures by stage and error kind.
	StageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_errors_total",
		Help: "Total number of stage failures, labeled by stage and error kind.",
	}, []string{"stage", "kind"})

	// LLMCallsTotal counts LLM backend calls by stage and dialect.
	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_calls_total",
		Help: "Total number of LLM generate calls, labeled by stage and dialect.",
	}, []string{"stage", "dialect"})

	// LLMCallErrorsTotal counts failed LLM backend calls.
	LLMCallErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_call_errors_total",
		Help: "Total number of failed LLM generate calls, labeled by stage and error kind.",
	}, []string{"stage", "kind"})

	// LLMCallDuration records LLM call latency by dialect.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_call_duration_seconds",
		Help:    "LLM generate call latency, labeled by dialect.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dialect"})

	// RequiresApprovalTotal counts plans/selections flagged for approval.
	RequiresApprovalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requires_approval_total",
		Help: "Total number of records flagged as requiring approval, labeled by risk level.",
	}, []string{"risk_level"})

	// RequestsInFlight tracks concurrently-executing pipeline requests.
	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "requests_in_flight",
		Help: "Number of decision-pipeline requests currently being processed.",
	})
)

// RecordDecision increments the decisions counter.
func RecordDecision() { DecisionsProcessedTotal.Inc() }

// RecordSelection increments the selections counter.
func RecordSelection() { SelectionsProcessedTotal.Inc() }

// RecordPlan increments the plans counter.
func RecordPlan() { PlansProcessedTotal.Inc() }

// RecordStageDuration records d as a stage's observed latency.
func RecordStageDuration(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStageError increments the stage-error counter for stage/kind.
func RecordStageError(stage, kind string) {
	StageErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// RecordLLMCall increments the LLM call counter for stage/dialect and
// records d as the observed latency.
func RecordLLMCall(stage, dialect string, d time.Duration) {
	LLMCallsTotal.WithLabelValues(stage, dialect).Inc()
	LLMCallDuration.WithLabelValues(dialect).Observe(d.Seconds())
}

// RecordLLMCallError increments the LLM call error counter for stage/kind.
func RecordLLMCallError(stage, kind string) {
	LLMCallErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// RecordRequiresApproval increments the approval-flag counter for a risk
// level.
func RecordRequiresApproval(riskLevel string) {
	RequiresApprovalTotal.WithLabelValues(riskLevel).Inc()
}

// IncrementInFlight marks one more request as in progress.
func IncrementInFlight() { RequestsInFlight.Inc() }

// DecrementInFlight marks one request as finished.
func DecrementInFlight() { RequestsInFlight.Dec() }

// Timer measures elapsed wall-clock time and records it against one or
// more of the histograms above.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordStage records the elapsed time against the named stage's
// histogram.
func (t *Timer) RecordStage(stage string) {
	RecordStageDuration(stage, t.Elapsed())
}

// RecordLLMCall records the elapsed time against the LLM call histogram
// for the given stage and dialect.
func (t *Timer) RecordLLMCall(stage, dialect string) {
	RecordLLMCall(stage, dialect, t.Elapsed())
}
