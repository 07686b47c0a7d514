package model

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/modelconfig"
)

// linearSet builds rows where target = 10*x0 + 50*x1 + 100
func linearSet(n int) *contracts.FeatureSet {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fs := &contracts.FeatureSet{Columns: []string{"x0", "x1", "constant"}}
	for i := 0; i < n; i++ {
		x0 := float64(i % 10)
		x1 := float64(i % 3)
		target := 10*x0 + 50*x1 + 100
		fs.Rows = append(fs.Rows, contracts.FeatureRow{
			Date:   start.AddDate(0, 0, 7*i),
			Target: target,
			Values: []float64{x0, x1, 7},
		})
	}
	return fs
}

func newTestTrainer() *Trainer {
	return NewTrainer(modelconfig.Default(), zerolog.Nop())
}

func TestFitScaler(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 5}, {3, 5}})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2, 5}, s.Mean, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, s.Scale, 1e-12, "population std of {1,3} is 1; constant column scales by 1")
	assert.InDeltaSlice(t, []float64{-1, 0}, s.Transform([]float64{1, 5}), 1e-12)

	_, err = FitScaler(nil)
	assert.Error(t, err)
}

func TestTrainer_Train_LearnsSignal(t *testing.T) {
	fs := linearSet(60)
	res, err := newTestTrainer().Train(context.Background(), fs)
	require.NoError(t, err)

	assert.Equal(t, 48, res.TrainRows)
	assert.Equal(t, 12, res.ValidationRows)
	assert.Equal(t, fs.Columns, res.Model.Columns())

	var sum float64
	for _, imp := range res.Importances {
		sum += imp.Importance
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, "constant", res.Importances[2].Feature)
	assert.Zero(t, res.Importances[2].Importance)

	// in-sample error must be well under the target spread (100..290)
	actual, predicted, err := PredictSet(res.Model, fs)
	require.NoError(t, err)
	for i := range actual {
		assert.InDelta(t, actual[i], predicted[i], 40)
	}
	assert.Less(t, res.ValidationRMSE, 40.0)
}

func TestTrainer_Train_FlatSeriesPredictsConstant(t *testing.T) {
	fs := &contracts.FeatureSet{Columns: []string{"a", "b"}}
	for i := 0; i < 8; i++ {
		fs.Rows = append(fs.Rows, contracts.FeatureRow{Target: 100, Values: []float64{float64(i), 100}})
	}

	res, err := newTestTrainer().Train(context.Background(), fs)
	require.NoError(t, err)

	p, err := res.Model.Predict([]float64{42, 100})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, p, 1e-9)
	assert.Equal(t, 1, res.Model.Trees(), "early stopping keeps the first best round")
}

func TestTrainer_Train_Deterministic(t *testing.T) {
	fs := linearSet(40)

	a, err := newTestTrainer().Train(context.Background(), fs)
	require.NoError(t, err)
	b, err := newTestTrainer().Train(context.Background(), fs)
	require.NoError(t, err)

	for _, r := range fs.Rows {
		pa, _ := a.Model.Predict(r.Values)
		pb, _ := b.Model.Predict(r.Values)
		assert.Equal(t, pa, pb)
	}
	assert.Equal(t, a.Importances, b.Importances)
}

func TestTrainer_Train_InsufficientRows(t *testing.T) {
	_, err := newTestTrainer().Train(context.Background(), linearSet(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestTrainer_Train_NonFiniteInput(t *testing.T) {
	fs := linearSet(20)
	fs.Rows[3].Values[0] = math.Inf(1)

	res, err := newTestTrainer().Train(context.Background(), fs)
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrTraining)
	assert.Nil(t, res)
}

func TestTrainer_Train_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestTrainer().Train(ctx, linearSet(20))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainer_Fit_NoEarlyStopping(t *testing.T) {
	cfg := modelconfig.Default()
	cfg.Booster.NEstimators = 15

	m, err := NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), linearSet(30))
	require.NoError(t, err)
	assert.Equal(t, 15, m.Trees())

	_, err = NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), &contracts.FeatureSet{Columns: []string{"a"}})
	assert.ErrorIs(t, err, contracts.ErrTraining)
}

func TestModel_Predict_WrongWidth(t *testing.T) {
	res, err := newTestTrainer().Train(context.Background(), linearSet(20))
	require.NoError(t, err)

	_, err = res.Model.Predict([]float64{1})
	assert.Error(t, err)
}

func TestSampleIndices(t *testing.T) {
	idx := sampleIndices(newRand(1), 10, 0.8)
	assert.Len(t, idx, 8)
	assert.IsIncreasing(t, idx)

	assert.Len(t, sampleIndices(newRand(1), 3, 0.01), 1)
	assert.Equal(t, []int{0, 1, 2}, sampleIndices(newRand(1), 3, 1))
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
