package logger_test

import (
	"errors"

	"github.com/wonny/salescast/pkg/config"
	"github.com/wonny/salescast/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	runLog := log.WithFields(map[string]interface{}{
		"run_id":      "0b6f3c1e",
		"business_id": "store-17",
		"horizon":     12,
	})
	runLog.Info("Forecast pipeline run completed")

	err := errors.New("insufficient data: feature engineering needs more than 12 points, got 9")
	runLog.WithError(err).Error("Forecast pipeline run failed")
}
