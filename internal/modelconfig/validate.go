package modelconfig

import (
	"fmt"
)

// ValidationError is a rejected field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Features ===
	if cfg.Features.MaxLag < 1 {
		return ValidationError{"features.max_lag", "must be >= 1"}
	}
	for i, w := range cfg.Features.RollingWindows {
		if w < 1 {
			return ValidationError{fmt.Sprintf("features.rolling_windows[%d]", i), "must be >= 1"}
		}
		if i > 0 && w <= cfg.Features.RollingWindows[i-1] {
			return ValidationError{"features.rolling_windows", "must be strictly increasing"}
		}
	}
	if cfg.Features.ProximityDays < 1 {
		return ValidationError{"features.proximity_days", "must be >= 1"}
	}

	// === Booster ===
	b := cfg.Booster
	if b.NEstimators < 1 {
		return ValidationError{"booster.n_estimators", "must be >= 1"}
	}
	if b.MaxDepth < 1 {
		return ValidationError{"booster.max_depth", "must be >= 1"}
	}
	if b.LearningRate <= 0 || b.LearningRate > 1 {
		return ValidationError{"booster.learning_rate", "must be in (0, 1]"}
	}
	if err := validateFraction(b.Subsample, "booster.subsample"); err != nil {
		return err
	}
	if err := validateFraction(b.ColsampleByTree, "booster.colsample_bytree"); err != nil {
		return err
	}
	if b.Lambda < 0 {
		return ValidationError{"booster.lambda", "must be >= 0"}
	}
	if b.MinChildWeight < 0 {
		return ValidationError{"booster.min_child_weight", "must be >= 0"}
	}
	if b.EarlyStoppingRounds < 1 {
		return ValidationError{"booster.early_stopping_rounds", "must be >= 1"}
	}

	// === Split ===
	if cfg.Split.ValidationFraction <= 0 || cfg.Split.ValidationFraction >= 1 {
		return ValidationError{"split.validation_fraction", "must be in (0, 1)"}
	}
	if cfg.Split.TestFraction <= 0 || cfg.Split.TestFraction >= 1 {
		return ValidationError{"split.test_fraction", "must be in (0, 1)"}
	}
	if cfg.Split.MinTrainingRows < 2 {
		return ValidationError{"split.min_training_rows", "must be >= 2"}
	}
	if cfg.Split.MinEvaluationRows < 2 {
		return ValidationError{"split.min_evaluation_rows", "must be >= 2"}
	}

	// === Forecast ===
	if cfg.Forecast.Horizon < 1 {
		return ValidationError{"forecast.horizon", "must be >= 1"}
	}
	if cfg.Forecast.WindowSize < cfg.Features.MaxLag {
		return ValidationError{"forecast.window_size", fmt.Sprintf("must be >= features.max_lag=%d", cfg.Features.MaxLag)}
	}
	if cfg.Forecast.BandFraction < 0 || cfg.Forecast.BandFraction >= 1 {
		return ValidationError{"forecast.band_fraction", "must be in [0, 1)"}
	}

	return nil
}

// validateFraction requires (0, 1]
func validateFraction(v float64, field string) error {
	if v <= 0 || v > 1 {
		return ValidationError{field, "must be in (0, 1]"}
	}
	return nil
}
