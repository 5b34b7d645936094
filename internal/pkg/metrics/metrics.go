// Package metrics holds the gateway's Prometheus collectors. Every method is
// nil-safe so components can run without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultOK labels a successful CRM call.
const ResultOK = "ok"

// Metrics provides observability for CRM calls and subscriber workflows.
type Metrics struct {
	registry *prometheus.Registry

	// CRM calls by method and result ("ok" or a failure category)
	CRMCalls *prometheus.CounterVec

	// CRM call latency by method
	CRMLatency *prometheus.HistogramVec

	// Workflow outcomes by operation and kind
	WorkflowOutcomes *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CRMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriber_gateway_crm_calls_total",
			Help: "Total CRM calls by HTTP method and result",
		}, []string{"method", "result"}),

		CRMLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subscriber_gateway_crm_call_duration_seconds",
			Help:    "Duration of CRM calls including retries",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),

		WorkflowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriber_gateway_workflow_outcomes_total",
			Help: "Subscriber workflow outcomes by operation and kind",
		}, []string{"operation", "kind"}),
	}
}

// ObserveCRMCall records one CRM call.
func (m *Metrics) ObserveCRMCall(method, result string, d time.Duration) {
	if m != nil {
		m.CRMCalls.WithLabelValues(method, result).Inc()
		m.CRMLatency.WithLabelValues(method).Observe(d.Seconds())
	}
}

// IncrementOutcome records a workflow outcome.
func (m *Metrics) IncrementOutcome(operation, kind string) {
	if m != nil {
		m.WorkflowOutcomes.WithLabelValues(operation, kind).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
