package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/pipeline"
	"github.com/wonny/salescast/pkg/logger"
	"github.com/wonny/salescast/pkg/redis"
)

// Store is what the job reads inputs from and writes forecasts to
type Store interface {
	ListBusinesses(ctx context.Context) ([]string, error)
	GetInputs(ctx context.Context, businessID string) ([]contracts.InputRecord, error)
	ReplaceForecasts(ctx context.Context, businessID string, rows []contracts.ForecastRecord, generatedAt *time.Time) error
}

// Runner runs one pipeline on a loaded series
type Runner interface {
	Run(ctx context.Context, rc pipeline.RunConfig, s *contracts.Series) (*pipeline.RunResult, error)
}

// Invalidator drops cached query responses
type Invalidator interface {
	Invalidate(ctx context.Context, prefix string) error
}

// BusinessOutcome is the result of one business in a job run
type BusinessOutcome struct {
	BusinessID string
	RunID      string
	Points     int
	Err        error
}

// ForecastJob re-forecasts every stored business
// Schedule: FORECAST_SCHEDULE (default Mondays 03:00)
type ForecastJob struct {
	store      Store
	runner     Runner
	cache      Invalidator // optional
	schedule   string
	runTimeout time.Duration
	horizon    int
	metrics    *metrics.Metrics
	logger     *logger.Logger

	mu       sync.Mutex
	outcomes []BusinessOutcome
}

// NewForecastJob creates a new forecast job. cache and m may be nil.
func NewForecastJob(store Store, runner Runner, cache Invalidator, schedule string, runTimeout time.Duration, horizon int, m *metrics.Metrics, log *logger.Logger) *ForecastJob {
	return &ForecastJob{
		store:      store,
		runner:     runner,
		cache:      cache,
		schedule:   schedule,
		runTimeout: runTimeout,
		horizon:    horizon,
		metrics:    m,
		logger:     log,
	}
}

// Name returns the job name
func (j *ForecastJob) Name() string {
	return "forecast_pipeline"
}

// Schedule returns the cron schedule (with seconds)
func (j *ForecastJob) Schedule() string {
	return j.schedule
}

// Run forecasts each business independently. One business failing never
// stops the others; the job fails only when no business succeeded.
func (j *ForecastJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled forecast pipeline")

	businesses, err := j.store.ListBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	if len(businesses) == 0 {
		j.logger.Info("No businesses stored, skipping")
		j.setOutcomes(nil)
		return nil
	}

	outcomes := make([]BusinessOutcome, 0, len(businesses))
	var errs []error
	succeeded := 0

	for _, id := range businesses {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome := j.forecastOne(ctx, id)
		outcomes = append(outcomes, outcome)

		status := metrics.StatusSuccess
		if outcome.Err != nil {
			status = metrics.StatusFailed
			errs = append(errs, fmt.Errorf("%s: %w", id, outcome.Err))
			j.logger.WithError(outcome.Err).WithFields(map[string]interface{}{
				"business_id": id,
				"run_id":      outcome.RunID,
			}).Error("Business forecast failed, continuing")
		} else {
			succeeded++
		}
		if j.metrics != nil {
			j.metrics.SchedulerRuns.WithLabelValues(status).Inc()
		}
	}
	j.setOutcomes(outcomes)

	j.logger.WithFields(map[string]interface{}{
		"businesses": len(businesses),
		"succeeded":  succeeded,
		"failed":     len(errs),
	}).Info("Scheduled forecast pipeline finished")

	if succeeded == 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LastOutcomes returns the per-business outcomes of the last completed Run
func (j *ForecastJob) LastOutcomes() []BusinessOutcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]BusinessOutcome(nil), j.outcomes...)
}

func (j *ForecastJob) setOutcomes(outcomes []BusinessOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = outcomes
}

// forecastOne runs one business under its own deadline
func (j *ForecastJob) forecastOne(ctx context.Context, businessID string) BusinessOutcome {
	outcome := BusinessOutcome{BusinessID: businessID}

	runCtx, cancel := context.WithTimeout(ctx, j.runTimeout)
	defer cancel()

	inputs, err := j.store.GetInputs(runCtx, businessID)
	if err != nil {
		outcome.Err = fmt.Errorf("load inputs: %w", err)
		return outcome
	}
	if len(inputs) == 0 {
		outcome.Err = fmt.Errorf("%w: no stored input rows", contracts.ErrInsufficientData)
		return outcome
	}

	result, err := j.runner.Run(runCtx, pipeline.RunConfig{
		BusinessID: businessID,
		Horizon:    j.horizon,
	}, contracts.SeriesFromInputs(inputs))
	if result != nil {
		outcome.RunID = result.RunID
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: run exceeded %s: %v", contracts.ErrForecast, j.runTimeout, err)
		}
		outcome.Err = err
		return outcome
	}

	rows := contracts.ForecastRecordsFrom(businessID, result.Forecast)
	if err := j.store.ReplaceForecasts(runCtx, businessID, rows, nil); err != nil {
		outcome.Err = fmt.Errorf("save forecasts: %w", err)
		return outcome
	}
	outcome.Points = len(rows)

	if j.cache != nil {
		if err := j.cache.Invalidate(ctx, redis.BusinessPrefix(businessID)); err != nil {
			j.logger.WithError(err).WithField("business_id", businessID).Warn("Cache invalidation failed")
		}
	}
	return outcome
}
