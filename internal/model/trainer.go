package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/accuracy"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/modelconfig"
)

// Model is an immutable trained regressor: booster, scaling transform and
// the ordered feature names used at fit time.
type Model struct {
	columns []string
	scaler  *Scaler
	booster *Booster
}

// Columns returns a copy of the fit-time feature order
func (m *Model) Columns() []string {
	out := make([]string, len(m.columns))
	copy(out, m.columns)
	return out
}

// Predict scales a raw feature vector (in Columns order) and predicts
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != len(m.columns) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(features), len(m.columns))
	}
	return m.booster.Predict(m.scaler.Transform(features)), nil
}

// Trees returns the number of trees kept after early stopping
func (m *Model) Trees() int {
	return len(m.booster.Trees)
}

// FeatureImportance is the normalized split gain of one feature
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TrainingResult is the trained model plus fit diagnostics
type TrainingResult struct {
	Model          *Model              `json:"-"`
	Importances    []FeatureImportance `json:"importances"`
	TrainRows      int                 `json:"train_rows"`
	ValidationRows int                 `json:"validation_rows"`
	ValidationRMSE float64             `json:"validation_rmse"`
	ValidationMAE  float64             `json:"validation_mae"`
	BestIteration  int                 `json:"best_iteration"`
}

// Trainer fits gradient-boosted tree models on engineered features
type Trainer struct {
	cfg *modelconfig.Config
	log zerolog.Logger
}

// NewTrainer creates a trainer
func NewTrainer(cfg *modelconfig.Config, log zerolog.Logger) *Trainer {
	return &Trainer{
		cfg: cfg,
		log: log.With().Str("component", "model.trainer").Logger(),
	}
}

// Train splits the rows temporally (no shuffling), fits the scaler on the
// training slice only and boosts with validation-based early stopping.
func (t *Trainer) Train(ctx context.Context, fs *contracts.FeatureSet) (*TrainingResult, error) {
	n := fs.Len()
	if n < t.cfg.Split.MinTrainingRows {
		return nil, fmt.Errorf("%w: training needs at least %d rows, got %d",
			contracts.ErrInsufficientData, t.cfg.Split.MinTrainingRows, n)
	}

	split := int(float64(n) * (1 - t.cfg.Split.ValidationFraction))
	if split < 1 {
		split = 1
	}
	if split > n {
		split = n
	}

	train := fs.Slice(0, split)
	valid := fs.Slice(split, n)

	model, booster, err := t.fit(ctx, train, valid)
	if err != nil {
		return nil, err
	}

	result := &TrainingResult{
		Model:          model,
		TrainRows:      train.Len(),
		ValidationRows: valid.Len(),
		BestIteration:  booster.BestIteration,
	}
	result.Importances = rankImportances(fs.Columns, booster.importances())

	if valid.Len() > 0 {
		actual, predicted, err := PredictSet(model, valid)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrTraining, err)
		}
		result.ValidationRMSE = accuracy.RMSE(actual, predicted)
		result.ValidationMAE = accuracy.MAE(actual, predicted)
	}

	evt := t.log.Info().
		Int("train_rows", result.TrainRows).
		Int("validation_rows", result.ValidationRows).
		Int("trees", model.Trees()).
		Float64("validation_rmse", result.ValidationRMSE).
		Float64("validation_mae", result.ValidationMAE)
	if len(result.Importances) > 0 {
		evt = evt.Str("top_feature", result.Importances[0].Feature)
	}
	evt.Msg("model trained")

	return result, nil
}

// Fit trains on every row without a validation slice or early stopping.
// Used by the evaluator to retrain an equivalently configured model.
func (t *Trainer) Fit(ctx context.Context, fs *contracts.FeatureSet) (*Model, error) {
	if fs.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows to fit", contracts.ErrTraining)
	}
	model, _, err := t.fit(ctx, fs, nil)
	return model, err
}

// fit validates the input, then fits scaler and booster. A panic or invalid
// value surfaces as ErrTraining and no model is returned.
func (t *Trainer) fit(ctx context.Context, train, valid *contracts.FeatureSet) (model *Model, booster *Booster, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, booster = nil, nil
			err = fmt.Errorf("%w: panic during fit: %v", contracts.ErrTraining, r)
		}
	}()

	x, y := train.Matrix()
	if err := checkFinite(x, y, len(train.Columns)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", contracts.ErrTraining, err)
	}

	scaler, err := FitScaler(x)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", contracts.ErrTraining, err)
	}

	var eval *evalSet
	if valid != nil && valid.Len() > 0 {
		vx, vy := valid.Matrix()
		if err := checkFinite(vx, vy, len(valid.Columns)); err != nil {
			return nil, nil, fmt.Errorf("%w: validation: %v", contracts.ErrTraining, err)
		}
		eval = &evalSet{x: scaler.TransformAll(vx), y: vy}
	}

	booster, err = fitBooster(ctx, t.cfg.Booster, scaler.TransformAll(x), y, eval)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", contracts.ErrTraining, err)
	}

	columns := make([]string, len(train.Columns))
	copy(columns, train.Columns)
	return &Model{columns: columns, scaler: scaler, booster: booster}, booster, nil
}

// PredictSet predicts every row of fs and returns actuals and predictions
func PredictSet(m *Model, fs *contracts.FeatureSet) ([]float64, []float64, error) {
	actual := make([]float64, fs.Len())
	predicted := make([]float64, fs.Len())
	for i, r := range fs.Rows {
		p, err := m.Predict(r.Values)
		if err != nil {
			return nil, nil, err
		}
		actual[i] = r.Target
		predicted[i] = p
	}
	return actual, predicted, nil
}

func checkFinite(x [][]float64, y []float64, width int) error {
	if width == 0 {
		return fmt.Errorf("no feature columns")
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite feature at row %d column %d", i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("non-finite target at row %d", i)
		}
	}
	return nil
}

// rankImportances pairs gains with column names, highest first
func rankImportances(columns []string, gains []float64) []FeatureImportance {
	out := make([]FeatureImportance, len(columns))
	for i, c := range columns {
		out[i] = FeatureImportance{Feature: c, Importance: gains[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}
