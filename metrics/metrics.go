// Package metrics exposes Prometheus counters for the governance
// engine. Metrics are optional; a nil *Metrics is a no-op everywhere.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	violations  *prometheus.CounterVec
	commits     prometheus.Counter
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbgov",
			Name:      "evaluations_total",
			Help:      "Document evaluations by verdict.",
		}, []string{"verdict"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbgov",
			Name:      "violations_total",
			Help:      "Policy violations by rule and severity.",
		}, []string{"rule", "severity"}),
		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kbgov",
			Name:      "commits_total",
			Help:      "Accepted changes committed to the ledger.",
		}),
	}
}

// ObserveEvaluation records one evaluation outcome.
func (m *Metrics) ObserveEvaluation(accepted bool) {
	if m == nil {
		return
	}
	verdict := "rejected"
	if accepted {
		verdict = "accepted"
	}
	m.evaluations.WithLabelValues(verdict).Inc()
}

// ObserveViolation records one policy violation.
func (m *Metrics) ObserveViolation(rule, severity string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(rule, severity).Inc()
}

// ObserveCommit records one committed change.
func (m *Metrics) ObserveCommit() {
	if m == nil {
		return
	}
	m.commits.Inc()
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
