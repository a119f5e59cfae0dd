package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the locations service.
// All Record* methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Passes counts completed poll passes by worker slot and outcome
	Passes *prometheus.CounterVec
	// PassDuration tracks wall-clock time of a pass
	PassDuration *prometheus.HistogramVec
	// Accounts counts per-account results (published, removed, revoked, failed)
	Accounts *prometheus.CounterVec
	// UpstreamTimeouts counts calls abandoned by the timeout race, by call discriminator
	UpstreamTimeouts *prometheus.CounterVec
	// CredentialRefreshes counts token refresh attempts by result
	CredentialRefreshes *prometheus.CounterVec
	// WorkersLive is the number of running worker units
	WorkersLive prometheus.Gauge
	// WorkersRequired is ceil(accounts / capacity)
	WorkersRequired prometheus.Gauge
	// WorkerRestarts counts worker exits by reason
	WorkerRestarts *prometheus.CounterVec
	// DirectorySize is the number of tracked accounts
	DirectorySize prometheus.Gauge
	// SweepRemoved counts orphaned records removed by the sweeper
	SweepRemoved prometheus.Counter
	registry     *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of poll passes",
			},
			[]string{"worker", "outcome"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of a poll pass in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 4, 8, 12, 20, 30, 60},
			},
			[]string{"worker"},
		),
		Accounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "accounts_total",
				Help:      "Per-account pass results",
			},
			[]string{"result"},
		),
		UpstreamTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_timeouts_total",
				Help:      "Upstream calls abandoned after the per-call timeout",
			},
			[]string{"call"},
		),
		CredentialRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_refresh_total",
				Help:      "SSO token refresh attempts",
			},
			[]string{"result"},
		),
		WorkersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_live",
			Help:      "Running worker units",
		}),
		WorkersRequired: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_required",
			Help:      "Worker units required for the current account count",
		}),
		WorkerRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_restarts_total",
				Help:      "Worker unit exits followed by a restart",
			},
			[]string{"reason"},
		),
		DirectorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_accounts",
			Help:      "Accounts currently tracked",
		}),
		SweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Orphaned location records removed by the sweeper",
		}),
	}

	registry.MustRegister(
		m.Passes,
		m.PassDuration,
		m.Accounts,
		m.UpstreamTimeouts,
		m.CredentialRefreshes,
		m.WorkersLive,
		m.WorkersRequired,
		m.WorkerRestarts,
		m.DirectorySize,
		m.SweepRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPass records a completed pass
func (m *Metrics) RecordPass(worker, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(worker, outcome).Inc()
	m.PassDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordAccount records the result of processing one account
func (m *Metrics) RecordAccount(result string) {
	if m == nil {
		return
	}
	m.Accounts.WithLabelValues(result).Inc()
}

// RecordTimeout records an abandoned upstream call
func (m *Metrics) RecordTimeout(call string) {
	if m == nil {
		return
	}
	m.UpstreamTimeouts.WithLabelValues(call).Inc()
}

// RecordRefresh records a credential refresh attempt
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.CredentialRefreshes.WithLabelValues(result).Inc()
}

// SetWorkers sets the live and required worker gauges
func (m *Metrics) SetWorkers(live, required int) {
	if m == nil {
		return
	}
	m.WorkersLive.Set(float64(live))
	m.WorkersRequired.Set(float64(required))
}

// RecordRestart records a worker restart
func (m *Metrics) RecordRestart(reason string) {
	if m == nil {
		return
	}
	m.WorkerRestarts.WithLabelValues(reason).Inc()
}

// SetDirectorySize sets the tracked account gauge
func (m *Metrics) SetDirectorySize(n int) {
	if m == nil {
		return
	}
	m.DirectorySize.Set(float64(n))
}

// RecordSweep records orphaned records removed in one sweep
func (m *Metrics) RecordSweep(removed int) {
	if m == nil {
		return
	}
	m.SweepRemoved.Add(float64(removed))
}
