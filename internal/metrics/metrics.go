package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kode4food/courier/pkg/api"
)

// Metrics holds the Prometheus collectors updated by the engine. A nil
// *Metrics is valid and records nothing
type Metrics struct {
	gatherer   prometheus.Gatherer
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
	steps      *prometheus.CounterVec
	attempts   *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	registered prometheus.Gauge
}

const namespace = "courier"

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates the collectors and registers them with reg.
// Gatherer g backs the HTTP handler
func NewWithRegistry(
	reg prometheus.Registerer, g prometheus.Gatherer,
) *Metrics {
	m := &Metrics{
		gatherer: g,
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Plan executions by final status",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of plan executions",
			Buckets:   prometheus.DefBuckets,
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Step results by action and status",
		}, []string{"action", "status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Capability invocations by action and outcome",
		}, []string{"action", "outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_dispatches_total",
			Help:      "Executions started by trigger type",
		}, []string{"trigger"}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_plans",
			Help:      "Plans currently registered for triggering",
		}),
	}
	reg.MustRegister(
		m.executions, m.duration, m.steps, m.attempts, m.dispatches,
		m.registered,
	)
	return m
}

// ExecutionFinished records a terminal execution
func (m *Metrics) ExecutionFinished(ex *api.Execution) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(string(ex.Status)).Inc()
	if !ex.CompletedAt.IsZero() {
		m.duration.Observe(ex.CompletedAt.Sub(ex.StartedAt).Seconds())
	}
}

// StepFinished records a step result
func (m *Metrics) StepFinished(action api.ActionName, status api.StepStatus) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(action), string(status)).Inc()
}

// Attempt records one capability invocation
func (m *Metrics) Attempt(action api.ActionName, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(string(action), outcome).Inc()
}

// Dispatched records an execution started by a trigger
func (m *Metrics) Dispatched(trigger api.TriggerType) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(string(trigger)).Inc()
}

// SetRegistered records how many plans are registered
func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.registered.Set(float64(n))
}

// Handler serves the collected metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
