package modelconfig

// Config holds every tunable of the forecasting pipeline
type Config struct {
	Features Features `yaml:"features" json:"features"`
	Booster  Booster  `yaml:"booster" json:"booster"`
	Split    Split    `yaml:"split" json:"split"`
	Forecast Forecast `yaml:"forecast" json:"forecast"`
}

// Features controls lag and rolling-window construction
type Features struct {
	MaxLag         int   `yaml:"max_lag" json:"max_lag"`
	RollingWindows []int `yaml:"rolling_windows" json:"rolling_windows"`
	// ProximityDays is the half-width of the holiday proximity window
	ProximityDays int `yaml:"proximity_days" json:"proximity_days"`
}

// Booster holds gradient-boosted tree hyper-parameters
type Booster struct {
	NEstimators         int     `yaml:"n_estimators" json:"n_estimators"`
	MaxDepth            int     `yaml:"max_depth" json:"max_depth"`
	LearningRate        float64 `yaml:"learning_rate" json:"learning_rate"`
	Subsample           float64 `yaml:"subsample" json:"subsample"`
	ColsampleByTree     float64 `yaml:"colsample_bytree" json:"colsample_bytree"`
	Lambda              float64 `yaml:"lambda" json:"lambda"`
	MinChildWeight      float64 `yaml:"min_child_weight" json:"min_child_weight"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds" json:"early_stopping_rounds"`
	Seed                int64   `yaml:"seed" json:"seed"`
}

// Split holds temporal split fractions and stage minimums
type Split struct {
	ValidationFraction float64 `yaml:"validation_fraction" json:"validation_fraction"`
	TestFraction       float64 `yaml:"test_fraction" json:"test_fraction"`
	MinTrainingRows    int     `yaml:"min_training_rows" json:"min_training_rows"`
	MinEvaluationRows  int     `yaml:"min_evaluation_rows" json:"min_evaluation_rows"`
}

// Forecast holds recursive forecasting settings
type Forecast struct {
	Horizon int `yaml:"horizon" json:"horizon"`
	// WindowSize is the rolling window length; must cover MaxLag
	WindowSize int `yaml:"window_size" json:"window_size"`
	// BandFraction is the fixed ±band around each prediction (heuristic, not a fitted interval)
	BandFraction float64 `yaml:"band_fraction" json:"band_fraction"`
}

// Default returns the production defaults
func Default() *Config {
	return &Config{
		Features: Features{
			MaxLag:         12,
			RollingWindows: []int{4, 8, 12},
			ProximityDays:  14,
		},
		Booster: Booster{
			NEstimators:         100,
			MaxDepth:            4,
			LearningRate:        0.1,
			Subsample:           0.8,
			ColsampleByTree:     0.8,
			Lambda:              1.0,
			MinChildWeight:      1.0,
			EarlyStoppingRounds: 10,
			Seed:                42,
		},
		Split: Split{
			ValidationFraction: 0.2,
			TestFraction:       0.2,
			MinTrainingRows:    5,
			MinEvaluationRows:  10,
		},
		Forecast: Forecast{
			Horizon:      12,
			WindowSize:   12,
			BandFraction: 0.10,
		},
	}
}
