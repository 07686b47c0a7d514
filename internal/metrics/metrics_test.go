package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.PipelineRuns.WithLabelValues(StatusSuccess).Inc()
	a.StageFailures.WithLabelValues("train").Add(2)

	body := scrape(t, a)
	assert.Contains(t, body, `salescast_pipeline_runs_total{status="success"} 1`)
	assert.Contains(t, body, `salescast_stage_failures_total{stage="train"} 2`)
	assert.NotContains(t, scrape(t, b), `salescast_pipeline_runs_total{status="success"}`)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ForecastPoints.Add(12)

	body := scrape(t, m)
	assert.Contains(t, body, "salescast_forecast_points_total 12")
	assert.Contains(t, body, "go_goroutines")
}
