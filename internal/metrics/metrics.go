// Package metrics holds the Prometheus collectors of the interview service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reqgather"

type Metrics struct {
	turns           *prometheus.CounterVec
	llmCalls        *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	regenerations   *prometheus.CounterVec
	forcedRejects   prometheus.Counter
	strikeOverrides prometheus.Counter
	mergeSkipped    *prometheus.CounterVec
	exportFailures  *prometheus.CounterVec
}

// New registers every collector on reg. Passing prometheus.NewRegistry()
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Interview turns by resulting status",
		}, []string{"status"}),
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Reasoning provider calls by model and outcome",
		}, []string{"model", "outcome"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_seconds",
			Help:      "Reasoning provider call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"model"}),
		regenerations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "regenerations_total",
			Help:      "Question regenerations requested by the duplicate guard",
		}, []string{"reason"}),
		forcedRejects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "forced_rejects_total",
			Help:      "Turns forced into REJECT after exhausting regenerations",
		}),
		strikeOverrides: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strike_overrides_total",
			Help:      "Turns whose pending intent was cleared by the strike counter",
		}),
		mergeSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_skipped_total",
			Help:      "Answers dropped by the intent dispatcher",
		}, []string{"reason"}),
		exportFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_failures_total",
			Help:      "Failed export writes by artefact kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Turn(status string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(status).Inc()
}

// LLMCall records one provider attempt.
func (m *Metrics) LLMCall(model, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, outcome).Inc()
	m.llmLatency.WithLabelValues(model).Observe(took.Seconds())
}

func (m *Metrics) Regeneration(reason string) {
	if m == nil {
		return
	}
	m.regenerations.WithLabelValues(reason).Inc()
}

func (m *Metrics) ForcedReject() {
	if m == nil {
		return
	}
	m.forcedRejects.Inc()
}

func (m *Metrics) StrikeOverride() {
	if m == nil {
		return
	}
	m.strikeOverrides.Inc()
}

func (m *Metrics) MergeSkipped(reason string) {
	if m == nil {
		return
	}
	m.mergeSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ExportFailure(kind string) {
	if m == nil {
		return
	}
	m.exportFailures.WithLabelValues(kind).Inc()
}
