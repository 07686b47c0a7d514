package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/features"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/modelconfig"
	"github.com/wonny/salescast/internal/pipeline"
	"github.com/wonny/salescast/pkg/logger"
)

type memStore struct {
	inputs    map[string][]contracts.InputRecord
	forecasts map[string][]contracts.ForecastRecord
	order     []string
	listErr   error
}

func (m *memStore) ListBusinesses(context.Context) ([]string, error) {
	return m.order, m.listErr
}

func (m *memStore) GetInputs(_ context.Context, id string) ([]contracts.InputRecord, error) {
	return m.inputs[id], nil
}

func (m *memStore) ReplaceForecasts(_ context.Context, id string, rows []contracts.ForecastRecord, _ *time.Time) error {
	m.forecasts[id] = rows
	return nil
}

type recordingCache struct{ prefixes []string }

func (c *recordingCache) Invalidate(_ context.Context, prefix string) error {
	c.prefixes = append(c.prefixes, prefix)
	return nil
}

func inputs(n int, value func(i int) float64) []contracts.InputRecord {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]contracts.InputRecord, n)
	for i := range rows {
		rows[i] = contracts.InputRecord{Date: start.AddDate(0, 0, 7*i), Sales: value(i)}
	}
	return rows
}

func newRunner(t *testing.T) *pipeline.Orchestrator {
	t.Helper()
	o, err := pipeline.NewOrchestrator(modelconfig.Default(), features.NewUSCalendar(), nil, logger.Nop())
	require.NoError(t, err)
	return o
}

func TestForecastJob_IsolatesFailures(t *testing.T) {
	store := &memStore{
		inputs: map[string][]contracts.InputRecord{
			"good":  inputs(30, func(i int) float64 { return 100 + float64(i%4) }),
			"short": inputs(8, func(int) float64 { return 5 }),
		},
		forecasts: map[string][]contracts.ForecastRecord{},
		order:     []string{"short", "empty", "good"},
	}
	cache := &recordingCache{}
	m := metrics.New()

	job := NewForecastJob(store, newRunner(t), cache, "0 0 3 * * 1", time.Minute, 8, m, logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.forecasts["good"], 8)
	assert.Equal(t, "good", store.forecasts["good"][0].BusinessID)
	assert.NotContains(t, store.forecasts, "short")
	assert.Equal(t, []string{"sales:good:"}, cache.prefixes)

	outcomes := job.LastOutcomes()
	require.Len(t, outcomes, 3)
	assert.ErrorIs(t, outcomes[0].Err, contracts.ErrInsufficientData)
	assert.ErrorIs(t, outcomes[1].Err, contracts.ErrInsufficientData)
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, 8, outcomes[2].Points)
	assert.NotEmpty(t, outcomes[2].RunID)
}

func TestForecastJob_AllFailed(t *testing.T) {
	store := &memStore{
		inputs:    map[string][]contracts.InputRecord{"a": inputs(3, func(int) float64 { return 1 })},
		forecasts: map[string][]contracts.ForecastRecord{},
		order:     []string{"a"},
	}

	job := NewForecastJob(store, newRunner(t), nil, "@weekly", time.Minute, 4, nil, logger.Nop())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestForecastJob_NoBusinesses(t *testing.T) {
	store := &memStore{forecasts: map[string][]contracts.ForecastRecord{}}
	job := NewForecastJob(store, newRunner(t), nil, "@weekly", time.Minute, 4, nil, logger.Nop())

	assert.NoError(t, job.Run(context.Background()))
	assert.Empty(t, job.LastOutcomes())
	assert.Equal(t, "forecast_pipeline", job.Name())
	assert.Equal(t, "@weekly", job.Schedule())
}

func TestForecastJob_ListError(t *testing.T) {
	store := &memStore{listErr: errors.New("db down")}
	job := NewForecastJob(store, newRunner(t), nil, "@weekly", time.Minute, 4, nil, logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}

type slowRunner struct{}

func (slowRunner) Run(ctx context.Context, rc pipeline.RunConfig, _ *contracts.Series) (*pipeline.RunResult, error) {
	<-ctx.Done()
	return &pipeline.RunResult{RunID: "slow"}, ctx.Err()
}

func TestForecastJob_Timeout(t *testing.T) {
	store := &memStore{
		inputs:    map[string][]contracts.InputRecord{"a": inputs(30, func(int) float64 { return 1 })},
		forecasts: map[string][]contracts.ForecastRecord{},
		order:     []string{"a"},
	}

	job := NewForecastJob(store, slowRunner{}, nil, "@weekly", 10*time.Millisecond, 4, nil, logger.Nop())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrForecast)

	outcomes := job.LastOutcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "slow", outcomes[0].RunID)
}
