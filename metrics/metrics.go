// Package metrics provides Prometheus metrics for session engine
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session state gauge values.
const (
	StateUnauthenticated = 0
	StateLoading         = 1
	StateAuthenticated   = 2
)

// Metrics holds all Prometheus metrics for the session engine.
type Metrics struct {
	enabled bool

	// Context fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	staleDiscards prometheus.Counter

	// Redirect arbiter metrics
	redirectsTotal *prometheus.CounterVec

	// Impersonation action metrics
	actionsTotal *prometheus.CounterVec

	// Store metrics
	sessionState prometheus.Gauge
	logins       *prometheus.CounterVec
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_context_fetches_total",
		Help: "Total context fetches by outcome",
	}, []string{"outcome"})

	m.fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_context_fetch_duration_seconds",
		Help:    "Context fetch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.staleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_stale_fetch_results_discarded_total",
		Help: "Fetch results discarded because a newer fetch superseded them",
	})

	m.redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_redirects_total",
		Help: "Redirects issued by the arbiter, by decision rule",
	}, []string{"rule"})

	m.actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_impersonation_actions_total",
		Help: "Impersonation actions by action and result",
	}, []string{"action", "result"})

	m.sessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_state",
		Help: "Current session state (0=unauthenticated, 1=loading, 2=authenticated)",
	})

	m.logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	return m
}

// RecordFetch records one context fetch with its outcome ("ok",
// "unauthorized", "malformed", "network", "stale") and duration.
func (m *Metrics) RecordFetch(outcome string, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(durationSeconds)
}

// RecordStaleDiscard records a fetch result dropped by the generation
// guard.
func (m *Metrics) RecordStaleDiscard() {
	if !m.enabled {
		return
	}
	m.staleDiscards.Inc()
}

// RecordRedirect records an arbiter redirect for the given decision
// rule ("select_tenant", "leave_platform", "layout_guard").
func (m *Metrics) RecordRedirect(rule string) {
	if !m.enabled {
		return
	}
	m.redirectsTotal.WithLabelValues(rule).Inc()
}

// RecordAction records an impersonation action outcome.
func (m *Metrics) RecordAction(action, result string) {
	if !m.enabled {
		return
	}
	m.actionsTotal.WithLabelValues(action, result).Inc()
}

// SetSessionState sets the session state gauge.
func (m *Metrics) SetSessionState(state float64) {
	if !m.enabled {
		return
	}
	m.sessionState.Set(state)
}

// RecordLogin records a login attempt ("success", "rejected", "fetch_failed").
func (m *Metrics) RecordLogin(result string) {
	if !m.enabled {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}
