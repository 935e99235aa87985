// Package metrics provides Prometheus metrics for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	SessionsActive      prometheus.Gauge
	FlushesTotal        prometheus.Counter
	FlushedSecondsTotal prometheus.Counter
	FlushErrorsTotal    prometheus.Counter
	ReconcileRunsTotal  *prometheus.CounterVec
	RoleChangesTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "voicetime_sessions_active",
				Help: "Number of voice sessions currently tracked in memory.",
			},
		),
		FlushesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "voicetime_flushes_total",
				Help: "Total number of completed session flushes to the store.",
			},
		),
		FlushedSecondsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "voicetime_flushed_seconds_total",
				Help: "Total voice seconds committed to the store.",
			},
		),
		FlushErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "voicetime_flush_errors_total",
				Help: "Total flushes that failed and whose duration was dropped.",
			},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicetime_reconcile_runs_total",
				Help: "Total reconciliation passes by outcome.",
			},
			[]string{"status"},
		),
		RoleChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicetime_role_changes_total",
				Help: "Total role mutations applied by the reconciler.",
			},
			[]string{"action"},
		),
		registry: reg,
	}

	reg.MustRegister(m.SessionsActive)
	reg.MustRegister(m.FlushesTotal)
	reg.MustRegister(m.FlushedSecondsTotal)
	reg.MustRegister(m.FlushErrorsTotal)
	reg.MustRegister(m.ReconcileRunsTotal)
	reg.MustRegister(m.RoleChangesTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
