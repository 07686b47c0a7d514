package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy of the forecasting pipeline. Stage code wraps these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	// ErrSchema unrecognizable input shape
	ErrSchema = errors.New("schema error")
	// ErrInsufficientData too few rows for a stage's minimum
	ErrInsufficientData = errors.New("insufficient data")
	// ErrTraining model fitting failure
	ErrTraining = errors.New("training error")
	// ErrForecast forecast without a trained model or a failed recursive step
	ErrForecast = errors.New("forecast error")
	// ErrEvaluationInsufficientData non-fatal, comes with a zeroed report
	ErrEvaluationInsufficientData = errors.New("insufficient data for evaluation")
)

// Stage names
const (
	StageLoad     = "load"
	StageFeatures = "features"
	StageTrain    = "train"
	StageEvaluate = "evaluate"
	StageForecast = "forecast"
	StageExport   = "export"
)

// StageFailure records which stage failed and why
type StageFailure struct {
	Stage string `json:"stage"`
	Err   error  `json:"-"`
}

// Error implements error
func (f StageFailure) Error() string {
	return fmt.Sprintf("%s stage failed: %v", f.Stage, f.Err)
}

// Unwrap exposes the stage error to errors.Is/As
func (f StageFailure) Unwrap() error {
	return f.Err
}

// Fatal reports whether the failure aborts the run
func (f StageFailure) Fatal() bool {
	return f.Stage != StageEvaluate
}
