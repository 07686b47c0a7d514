package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/export"
	"github.com/wonny/salescast/internal/features"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/modelconfig"
	"github.com/wonny/salescast/pkg/logger"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	o, err := NewOrchestrator(modelconfig.Default(), features.NewUSCalendar(), m, logger.Nop())
	require.NoError(t, err)
	return o, m
}

func weeklySeries(values []float64) *contracts.Series {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	points := make([]contracts.ObservedPoint, len(values))
	for i, v := range values {
		points[i] = contracts.ObservedPoint{Date: start.AddDate(0, 0, 7*i), Value: v}
	}
	return &contracts.Series{Points: points}
}

func seasonal(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = 200 + 30*math.Sin(2*math.Pi*float64(i)/13) + float64(i)
	}
	return values
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestOrchestrator_FullRun(t *testing.T) {
	o, m := newTestOrchestrator(t)
	dir := t.TempDir()

	result, err := o.Run(context.Background(), RunConfig{BusinessID: "store-1", OutputDir: dir}, weeklySeries(seasonal(60)))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, o.ConfigHash(), result.ConfigHash)
	assert.Equal(t, []string{
		contracts.StageLoad, contracts.StageFeatures, contracts.StageTrain,
		contracts.StageEvaluate, contracts.StageForecast, contracts.StageExport,
	}, result.CompletedStages)
	assert.Empty(t, result.Failures)

	require.NotNil(t, result.Evaluation)
	assert.False(t, result.Evaluation.Insufficient)
	require.Len(t, result.Forecast, 12)
	assert.Equal(t, result.Series.Last().Date.AddDate(0, 0, 7), result.Forecast[0].Date)

	require.NotNil(t, result.Artifacts)
	assert.FileExists(t, filepath.Join(dir, export.CSVFile))
	assert.FileExists(t, filepath.Join(dir, export.PlotFile))

	data, err := os.ReadFile(filepath.Join(dir, export.JSONFile))
	require.NoError(t, err)
	var records []export.Record
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 12)

	assert.Contains(t, scrape(t, m), `salescast_pipeline_runs_total{status="success"} 1`)
}

func TestOrchestrator_EvaluationFailureDoesNotBlockForecast(t *testing.T) {
	o, m := newTestOrchestrator(t)

	// 20 points leave 8 feature rows: enough to train, too few to evaluate
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100
	}

	result, err := o.Run(context.Background(), RunConfig{Horizon: 4}, weeklySeries(values))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Failed(contracts.StageEvaluate))
	assert.NoError(t, result.Err())
	require.NotNil(t, result.Evaluation)
	assert.True(t, result.Evaluation.Insufficient)

	require.Len(t, result.Forecast, 4)
	for _, p := range result.Forecast {
		assert.InDelta(t, 100.0, p.PredictedValue, 1e-6)
	}
	assert.Nil(t, result.Artifacts, "no output dir, no export")

	out := scrape(t, m)
	assert.Contains(t, out, `salescast_pipeline_runs_total{status="partial"} 1`)
	assert.Contains(t, out, `salescast_stage_failures_total{stage="evaluate"} 1`)
}

func TestOrchestrator_ShortSeriesFailsAtFeatures(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	dir := t.TempDir()

	result, err := o.Run(context.Background(), RunConfig{RunID: "run-7", OutputDir: dir}, weeklySeries(seasonal(10)))
	require.Error(t, err)

	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
	assert.True(t, IsDataError(err))

	var failure contracts.StageFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, contracts.StageFeatures, failure.Stage)

	assert.Equal(t, "run-7", result.RunID)
	assert.False(t, result.Success)
	assert.Equal(t, []string{contracts.StageLoad}, result.CompletedStages)
	assert.Nil(t, result.Training)
	assert.Empty(t, result.Forecast)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing exported")
}

func TestOrchestrator_RunDocument(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	type rec struct {
		Week  string  `json:"Week_Start"`
		Sales float64 `json:"Total_Sales"`
	}
	var recs []rec
	for i, v := range seasonal(30) {
		recs = append(recs, rec{
			Week:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i).Format(contracts.DateLayout),
			Sales: v,
		})
	}
	doc, err := json.Marshal(map[string]interface{}{"sales_data": recs})
	require.NoError(t, err)

	result, err := o.RunDocument(context.Background(), RunConfig{Horizon: 6}, doc)
	require.NoError(t, err)
	require.NotNil(t, result.Load)
	assert.Equal(t, "Week_Start", result.Load.DateField)
	assert.Equal(t, "Total_Sales", result.Load.ValueField)
	assert.Len(t, result.Forecast, 6)
}

func TestOrchestrator_RunDocument_SchemaError(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result, err := o.RunDocument(context.Background(), RunConfig{}, []byte(`[{"foo": 1}]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrSchema)
	assert.True(t, result.Failed(contracts.StageLoad))
	assert.Empty(t, result.CompletedStages)
}

func TestOrchestrator_EmptySeries(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Run(context.Background(), RunConfig{}, &contracts.Series{})
	assert.ErrorIs(t, err, contracts.ErrSchema)
}

func TestOrchestrator_Deterministic(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	s := weeklySeries(seasonal(45))

	a, err := o.Run(context.Background(), RunConfig{}, s)
	require.NoError(t, err)
	b, err := o.Run(context.Background(), RunConfig{}, s)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Forecast, b.Forecast)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx, RunConfig{}, weeklySeries(seasonal(40)))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, result.Failed(contracts.StageTrain))
}
