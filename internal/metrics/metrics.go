// Package metrics holds sift's prometheus collectors. Each process builds
// one Metrics and passes it down; there is no global registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	OutcomeScored   = "scored"
	OutcomeDegraded = "degraded"

	DecisionPersisted      = "persisted"
	DecisionBelowThreshold = "below_threshold"
	DecisionForced         = "forced"
)

// Metrics is the set of collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry      *prometheus.Registry
	Scores        *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	MemoryEntries prometheus.Gauge
	Merges        *prometheus.CounterVec
	TrainDuration prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Scores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_scores_total",
				Help: "Texts scored, by outcome (scored or degraded when no model is loaded)",
			},
			[]string{"outcome"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_autolabel_decisions_total",
				Help: "Auto-label gate decisions",
			},
			[]string{"decision"},
		),
		MemoryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sift_memory_entries",
				Help: "Entries in the vector memory store",
			},
		),
		Merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_merges_total",
				Help: "Pending-label merges by status",
			},
			[]string{"status"},
		),
		TrainDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sift_train_duration_seconds",
				Help:    "Duration of model training runs",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
		),
	}
	m.Registry.MustRegister(
		m.Scores, m.Decisions, m.MemoryEntries, m.Merges, m.TrainDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveScore(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Scores.WithLabelValues(OutcomeDegraded).Inc()
		return
	}
	m.Scores.WithLabelValues(OutcomeScored).Inc()
}

func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) SetMemoryEntries(n int) {
	if m == nil {
		return
	}
	m.MemoryEntries.Set(float64(n))
}

func (m *Metrics) ObserveMerge(status string) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveTrain(d time.Duration) {
	if m == nil {
		return
	}
	m.TrainDuration.Observe(d.Seconds())
}
