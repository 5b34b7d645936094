package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCRMCall(t *testing.T) {
	m := New()

	m.ObserveCRMCall("GET", ResultOK, 20*time.Millisecond)
	m.ObserveCRMCall("GET", ResultOK, 30*time.Millisecond)
	m.ObserveCRMCall("POST", "ServerError", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CRMCalls.WithLabelValues("GET", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CRMCalls.WithLabelValues("POST", "ServerError")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CRMLatency))
}

func TestIncrementOutcome(t *testing.T) {
	m := New()
	m.IncrementOutcome("create", "success")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowOutcomes.WithLabelValues("create", "success")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCRMCall("GET", ResultOK, time.Millisecond)
	m.IncrementOutcome("create", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstancesDoNotShareRegistry(t *testing.T) {
	a, b := New(), New()
	a.IncrementOutcome("ping", "success")

	assert.Equal(t, 0.0, testutil.ToFloat64(b.WorkflowOutcomes.WithLabelValues("ping", "success")))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `subscriber_gateway_workflow_outcomes_total{kind="success",operation="ping"} 1`)
}
