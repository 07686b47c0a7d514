// Package accuracy computes point-forecast error metrics.
package accuracy

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MAE calculates Mean Absolute Error
func MAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, predicted)
	return floats.Norm(diff, 1) / float64(len(actual))
}

// RMSE calculates Root Mean Squared Error
func RMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, predicted)
	return floats.Norm(diff, 2) / math.Sqrt(float64(len(actual)))
}

// MAPEResult is MAPE over the non-zero actuals.
// Defined is false when every actual was zero.
type MAPEResult struct {
	Value   float64
	Defined bool
	Zeros   int // actuals skipped because they were zero
}

// MAPE calculates Mean Absolute Percentage Error in percent, skipping zero actuals
func MAPE(actual, predicted []float64) MAPEResult {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return MAPEResult{}
	}

	var res MAPEResult
	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] == 0 {
			res.Zeros++
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		count++
	}

	if count == 0 {
		return res
	}
	res.Value = (sum / float64(count)) * 100
	res.Defined = true
	return res
}
