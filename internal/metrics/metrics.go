package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for deploy-sentinel.
type Metrics struct {
	registry                     *prometheus.Registry
	orchestrationDurationSeconds prometheus.Histogram
	deployAttemptsTotal          *prometheus.CounterVec
	pollRoundsTotal              *prometheus.CounterVec
	probeFailuresTotal           *prometheus.CounterVec
	restoresTotal                *prometheus.CounterVec
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		orchestrationDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deploy_sentinel_orchestration_duration_seconds",
			Help:    "Duration of full orchestration runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		deployAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deploy_sentinel_deploy_attempts_total",
			Help: "Total deployment attempts by environment and status.",
		}, []string{"environment", "status"}),
		pollRoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deploy_sentinel_poll_rounds_total",
			Help: "Total health poll rounds by environment and result.",
		}, []string{"environment", "result"}),
		probeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deploy_sentinel_probe_failures_total",
			Help: "Total failed endpoint probes by endpoint path.",
		}, []string{"endpoint"}),
		restoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deploy_sentinel_restores_total",
			Help: "Total artifact restore operations by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.orchestrationDurationSeconds,
		m.deployAttemptsTotal,
		m.pollRoundsTotal,
		m.probeFailuresTotal,
		m.restoresTotal,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOrchestrationDuration records a completed run's duration.
func (m *Metrics) ObserveOrchestrationDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.orchestrationDurationSeconds.Observe(duration.Seconds())
}

// IncDeployAttempts counts one deployment attempt outcome.
func (m *Metrics) IncDeployAttempts(environment, status string) {
	if m == nil {
		return
	}
	m.deployAttemptsTotal.WithLabelValues(environment, status).Inc()
}

// IncPollRounds counts one poll round outcome.
func (m *Metrics) IncPollRounds(environment, result string) {
	if m == nil {
		return
	}
	m.pollRoundsTotal.WithLabelValues(environment, result).Inc()
}

// IncProbeFailures counts one failed probe against an endpoint.
func (m *Metrics) IncProbeFailures(endpoint string) {
	if m == nil {
		return
	}
	m.probeFailuresTotal.WithLabelValues(endpoint).Inc()
}

// IncRestores counts one artifact restore by result.
func (m *Metrics) IncRestores(result string) {
	if m == nil {
		return
	}
	m.restoresTotal.WithLabelValues(result).Inc()
}
