package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordPass("0", "ok", 1500*time.Millisecond)
	m.RecordPass("0", "ok", time.Second)
	m.RecordPass("1", "upstream_down", 0)
	m.RecordAccount("published")
	m.RecordTimeout("ship")
	m.RecordRefresh("revoked")
	m.SetWorkers(2, 3)
	m.RecordRestart("failure")
	m.SetDirectorySize(1001)
	m.RecordSweep(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Passes.WithLabelValues("0", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamTimeouts.WithLabelValues("ship")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WorkersRequired))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepRemoved))

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "test_passes_total")
	assert.Contains(t, body, "test_directory_accounts 1001")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPass("0", "ok", time.Second)
		m.RecordAccount("removed")
		m.RecordTimeout("location")
		m.RecordRefresh("ok")
		m.SetWorkers(1, 1)
		m.RecordRestart("clean")
		m.SetDirectorySize(1)
		m.RecordSweep(1)
	})
}
