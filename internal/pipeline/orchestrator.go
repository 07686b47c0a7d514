package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/evaluate"
	"github.com/wonny/salescast/internal/export"
	"github.com/wonny/salescast/internal/features"
	"github.com/wonny/salescast/internal/forecaster"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/model"
	"github.com/wonny/salescast/internal/modelconfig"
	"github.com/wonny/salescast/internal/series"
	"github.com/wonny/salescast/pkg/logger"
	"github.com/wonny/salescast/pkg/otel"
)

// Orchestrator runs one business' forecasting pipeline
// load → features → train → evaluate (side-channel) → forecast → export.
// It holds no per-run state; concurrent runs share nothing mutable.
type Orchestrator struct {
	cfg        *modelconfig.Config
	configHash string

	loader     *series.Loader
	engineer   *features.Engineer
	trainer    *model.Trainer
	evaluator  *evaluate.Evaluator
	forecaster *forecaster.Forecaster

	metrics *metrics.Metrics
	logger  *logger.Logger
}

// RunConfig holds per-run settings
type RunConfig struct {
	RunID      string // generated when empty
	BusinessID string
	Horizon    int    // 0 means the configured horizon
	OutputDir  string // artifacts are written only when set
}

// RunResult is the typed outcome of every stage. A nil field means the
// stage did not produce output; Failures says why.
type RunResult struct {
	RunID           string                      `json:"run_id"`
	BusinessID      string                      `json:"business_id,omitempty"`
	ConfigHash      string                      `json:"config_hash"`
	Success         bool                        `json:"success"`
	CompletedStages []string                    `json:"completed_stages"`
	Failures        []contracts.StageFailure    `json:"-"`
	Load            *series.LoadResult          `json:"-"`
	Series          *contracts.Series           `json:"-"`
	Features        *contracts.FeatureSet       `json:"-"`
	Training        *model.TrainingResult       `json:"training,omitempty"`
	Evaluation      *contracts.EvaluationReport `json:"evaluation,omitempty"`
	Forecast        []contracts.ForecastPoint   `json:"forecast,omitempty"`
	Artifacts       *export.Artifacts           `json:"artifacts,omitempty"`
	Duration        time.Duration               `json:"duration"`
}

// Err returns the first fatal stage failure, or nil
func (r *RunResult) Err() error {
	for _, f := range r.Failures {
		if f.Fatal() {
			return f
		}
	}
	return nil
}

// Failed reports whether stage recorded a failure
func (r *RunResult) Failed(stage string) bool {
	for _, f := range r.Failures {
		if f.Stage == stage {
			return true
		}
	}
	return false
}

// NewOrchestrator wires the stage components from one model configuration.
// metrics may be nil.
func NewOrchestrator(cfg *modelconfig.Config, calendar features.HolidayCalendar, m *metrics.Metrics, log *logger.Logger) (*Orchestrator, error) {
	hash, err := modelconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash model config: %w", err)
	}

	zl := log.Zerolog()
	engineer := features.NewEngineer(cfg.Features, calendar, zl)
	trainer := model.NewTrainer(cfg, zl)

	return &Orchestrator{
		cfg:        cfg,
		configHash: hash,
		loader:     series.NewLoader(zl),
		engineer:   engineer,
		trainer:    trainer,
		evaluator:  evaluate.NewEvaluator(cfg.Split, trainer, zl),
		forecaster: forecaster.NewForecaster(cfg.Forecast, engineer, zl),
		metrics:    m,
		logger:     log,
	}, nil
}

// ConfigHash returns the hash recorded on every run
func (o *Orchestrator) ConfigHash() string {
	return o.configHash
}

// RunDocument parses a raw sales document and runs the pipeline on it
func (o *Orchestrator) RunDocument(ctx context.Context, rc RunConfig, data []byte) (*RunResult, error) {
	result := o.newResult(rc)
	start := time.Now()

	_ = o.stage(ctx, result, contracts.StageLoad, func(ctx context.Context) error {
		loaded, err := o.loader.Parse(data)
		if err != nil {
			return err
		}
		result.Load = loaded
		result.Series = loaded.Series
		return nil
	})

	return o.finish(ctx, rc, result, start)
}

// Run runs the pipeline on an already loaded series
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig, s *contracts.Series) (*RunResult, error) {
	result := o.newResult(rc)
	start := time.Now()

	_ = o.stage(ctx, result, contracts.StageLoad, func(ctx context.Context) error {
		if s.Len() == 0 {
			return fmt.Errorf("%w: empty series", contracts.ErrSchema)
		}
		result.Series = s
		return nil
	})

	return o.finish(ctx, rc, result, start)
}

func (o *Orchestrator) newResult(rc RunConfig) *RunResult {
	runID := rc.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &RunResult{
		RunID:           runID,
		BusinessID:      rc.BusinessID,
		ConfigHash:      o.configHash,
		CompletedStages: make([]string, 0, 6),
	}
}

// finish runs every stage after load. Each stage only runs when its inputs
// exist; evaluation failures never block forecasting.
func (o *Orchestrator) finish(ctx context.Context, rc RunConfig, result *RunResult, start time.Time) (*RunResult, error) {
	log := o.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"business_id": result.BusinessID,
		"config_hash": result.ConfigHash,
	})
	log.Info("Starting forecast pipeline run")

	horizon := rc.Horizon
	if horizon <= 0 {
		horizon = o.cfg.Forecast.Horizon
	}

	if result.Series != nil {
		_ = o.stage(ctx, result, contracts.StageFeatures, func(ctx context.Context) error {
			fs, err := o.engineer.Build(result.Series)
			if err != nil {
				return err
			}
			result.Features = fs
			return nil
		})
	}

	if result.Features != nil {
		_ = o.stage(ctx, result, contracts.StageTrain, func(ctx context.Context) error {
			tr, err := o.trainer.Train(ctx, result.Features)
			if err != nil {
				return err
			}
			result.Training = tr
			return nil
		})
	}

	if result.Training != nil {
		_ = o.stage(ctx, result, contracts.StageEvaluate, func(ctx context.Context) error {
			report, err := o.evaluator.Evaluate(ctx, result.Features)
			if report != nil {
				result.Evaluation = report
			}
			if err != nil {
				return err
			}
			if o.metrics != nil && report.MAPEDefined {
				o.metrics.EvaluationMAPE.Set(report.MAPE)
			}
			return nil
		})

		_ = o.stage(ctx, result, contracts.StageForecast, func(ctx context.Context) error {
			fr, err := o.forecaster.Forecast(ctx, result.Training.Model, result.Series, result.Features, horizon)
			if err != nil {
				return err
			}
			result.Forecast = fr.Points
			if o.metrics != nil {
				o.metrics.ForecastPoints.Add(float64(len(fr.Points)))
			}
			return nil
		})
	}

	// export is all-or-nothing per horizon
	if rc.OutputDir != "" && len(result.Forecast) == horizon {
		_ = o.stage(ctx, result, contracts.StageExport, func(ctx context.Context) error {
			art, err := export.NewExporter(rc.OutputDir, o.logger.Zerolog()).Export(result.Series, result.Forecast)
			if err != nil {
				return err
			}
			result.Artifacts = art
			return nil
		})
	}

	result.Duration = time.Since(start)
	err := result.Err()
	result.Success = err == nil && len(result.Forecast) == horizon

	status := metrics.StatusSuccess
	switch {
	case !result.Success:
		status = metrics.StatusFailed
	case len(result.Failures) > 0:
		status = metrics.StatusPartial
	}
	if o.metrics != nil {
		o.metrics.PipelineRuns.WithLabelValues(status).Inc()
	}

	done := log.WithFields(map[string]interface{}{
		"status":           status,
		"completed_stages": result.CompletedStages,
		"duration_ms":      result.Duration.Milliseconds(),
	})
	if err != nil {
		done.WithError(err).Error("Forecast pipeline run failed")
		return result, err
	}
	if !result.Success {
		err = fmt.Errorf("%w: forecast incomplete", contracts.ErrForecast)
		done.WithError(err).Error("Forecast pipeline run failed")
		return result, err
	}
	done.Info("Forecast pipeline run completed")
	return result, nil
}

// stage runs fn inside a span, records its duration and either marks the
// stage completed or appends a StageFailure
func (o *Orchestrator) stage(ctx context.Context, result *RunResult, name string, fn func(context.Context) error) error {
	ctx, span := otel.StartSpan(ctx, "pipeline."+name,
		otel.AttrRunID.String(result.RunID),
		otel.AttrBusinessID.String(result.BusinessID),
		otel.AttrStage.String(name),
	)
	defer span.End()

	start := time.Now()
	err := runSafely(ctx, fn)
	if o.metrics != nil {
		o.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		otel.RecordError(span, err)
		failure := contracts.StageFailure{Stage: name, Err: err}
		result.Failures = append(result.Failures, failure)
		if o.metrics != nil {
			o.metrics.StageFailures.WithLabelValues(name).Inc()
		}

		entry := o.logger.WithFields(map[string]interface{}{
			"run_id": result.RunID,
			"stage":  name,
			"fatal":  failure.Fatal(),
		}).WithError(err)
		if failure.Fatal() {
			entry.Error("Pipeline stage failed")
		} else {
			entry.Warn("Pipeline stage failed, continuing")
		}
		return failure
	}

	result.CompletedStages = append(result.CompletedStages, name)
	return nil
}

// runSafely converts a stage panic into an error so one bad run never
// crashes a caller iterating many businesses
func runSafely(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// IsDataError reports whether err comes from the input rather than the system
func IsDataError(err error) bool {
	return errors.Is(err, contracts.ErrSchema) || errors.Is(err, contracts.ErrInsufficientData)
}
