package evaluate

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/accuracy"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/model"
	"github.com/wonny/salescast/internal/modelconfig"
)

// Fitter retrains an equivalently configured model on a row subset
type Fitter interface {
	Fit(ctx context.Context, fs *contracts.FeatureSet) (*model.Model, error)
}

// Evaluator measures hold-out accuracy on the most recent rows.
// It is diagnostic only; its errors never block forecasting.
type Evaluator struct {
	cfg    modelconfig.Split
	fitter Fitter
	log    zerolog.Logger
}

// NewEvaluator creates an evaluator
func NewEvaluator(cfg modelconfig.Split, fitter Fitter, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		fitter: fitter,
		log:    log.With().Str("component", "evaluate").Logger(),
	}
}

// Evaluate holds out max(1, TestFraction of rows) from the end, retrains on
// the rest and reports MAE, RMSE and MAPE. Below MinEvaluationRows it
// returns a zeroed report with ErrEvaluationInsufficientData.
func (e *Evaluator) Evaluate(ctx context.Context, fs *contracts.FeatureSet) (*contracts.EvaluationReport, error) {
	n := fs.Len()
	if n < e.cfg.MinEvaluationRows {
		e.log.Warn().Int("rows", n).Int("min", e.cfg.MinEvaluationRows).Msg("insufficient data for evaluation")
		return &contracts.EvaluationReport{Insufficient: true}, fmt.Errorf("%w: %d rows, need %d",
			contracts.ErrEvaluationInsufficientData, n, e.cfg.MinEvaluationRows)
	}

	testSize := int(math.Floor(float64(n) * e.cfg.TestFraction))
	if testSize < 1 {
		testSize = 1
	}
	split := n - testSize

	m, err := e.fitter.Fit(ctx, fs.Slice(0, split))
	if err != nil {
		return nil, err
	}

	actual, predicted, err := model.PredictSet(m, fs.Slice(split, n))
	if err != nil {
		return nil, fmt.Errorf("predict hold-out: %w", err)
	}

	mape := accuracy.MAPE(actual, predicted)
	report := &contracts.EvaluationReport{
		MAE:         accuracy.MAE(actual, predicted),
		RMSE:        accuracy.RMSE(actual, predicted),
		MAPE:        mape.Value,
		MAPEDefined: mape.Defined,
		ZeroActuals: mape.Zeros,
		TrainSize:   split,
		TestSize:    testSize,
	}

	evt := e.log.Info().
		Int("train_size", report.TrainSize).
		Int("test_size", report.TestSize).
		Float64("mae", report.MAE).
		Float64("rmse", report.RMSE)
	if report.MAPEDefined {
		evt = evt.Float64("mape", report.MAPE)
	}
	if report.ZeroActuals > 0 {
		evt = evt.Int("zero_actuals_skipped", report.ZeroActuals)
	}
	evt.Msg("evaluation complete")

	return report, nil
}
