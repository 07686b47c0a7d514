package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMAE(t *testing.T) {
	actual := []float64{100, 200, 300, 400}
	predicted := []float64{110, 190, 310, 380}

	assert.InDelta(t, 12.5, MAE(actual, predicted), 1e-12)
}

func TestRMSE(t *testing.T) {
	actual := []float64{100, 200, 300, 400}
	predicted := []float64{110, 190, 310, 380}

	// sqrt((100+100+100+400)/4)
	assert.InDelta(t, 13.228756555322953, RMSE(actual, predicted), 1e-9)
}

func TestMAPE(t *testing.T) {
	tests := []struct {
		name        string
		actual      []float64
		predicted   []float64
		wantValue   float64
		wantDefined bool
		wantZeros   int
	}{
		{"all non-zero", []float64{100, 200}, []float64{110, 180}, 10, true, 0},
		{"zero actual skipped", []float64{0, 100}, []float64{5, 90}, 10, true, 1},
		{"all zero", []float64{0, 0}, []float64{1, 2}, 0, false, 2},
		{"mismatched", []float64{1, 2}, []float64{1}, 0, false, 0},
		{"empty", nil, nil, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MAPE(tt.actual, tt.predicted)
			assert.InDelta(t, tt.wantValue, got.Value, 1e-9)
			assert.Equal(t, tt.wantDefined, got.Defined)
			assert.Equal(t, tt.wantZeros, got.Zeros)
		})
	}
}

func TestMetrics_MismatchedLength(t *testing.T) {
	assert.Zero(t, MAE([]float64{1, 2, 3}, []float64{1, 2}))
	assert.Zero(t, RMSE([]float64{1, 2, 3}, []float64{1, 2}))
}
