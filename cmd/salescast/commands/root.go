package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/wonny/salescast/internal/cache"
	"github.com/wonny/salescast/internal/features"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/modelconfig"
	"github.com/wonny/salescast/internal/pipeline"
	"github.com/wonny/salescast/internal/store"
	"github.com/wonny/salescast/pkg/config"
	"github.com/wonny/salescast/pkg/database"
	"github.com/wonny/salescast/pkg/logger"
	"github.com/wonny/salescast/pkg/otel"
	"github.com/wonny/salescast/pkg/redis"
)

// version is reported by the API root and the tracer resource
const version = "1.0.0"

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "salescast",
	Short: "Weekly sales forecasting",
	Long: `salescast Unified CLI

Weekly sales forecasting: load → features → train → evaluate → forecast → export.
Forecasts are persisted per business and served by a read-only query API.

Usage:
  go run ./cmd/salescast [command]

Examples:
  go run ./cmd/salescast forecast --input weekly_sales_data.json
  go run ./cmd/salescast load --business store-17 --input-json in.json --forecast-json output/sales_forecast.json
  go run ./cmd/salescast api
  go run ./cmd/salescast scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// app holds what every command needs
type app struct {
	cfg *config.Config
	log *logger.Logger
	tp  *sdktrace.TracerProvider
}

// bootstrap loads configuration, builds the logger and installs tracing
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	tp, err := otel.InitTracer(ctx, &otel.Config{
		Enabled:           cfg.Tracing.Enabled,
		ServiceName:       "salescast",
		ServiceVersion:    version,
		Environment:       cfg.Env,
		CollectorEndpoint: cfg.Tracing.Endpoint,
		SamplingRate:      cfg.Tracing.SamplingRate,
	})
	if err != nil {
		// tracing is optional; a missing collector never blocks a run
		log.WithError(err).Warn("Tracing disabled")
	}

	return &app{cfg: cfg, log: log, tp: tp}, nil
}

// close flushes spans
func (a *app) close(ctx context.Context) {
	if err := otel.Shutdown(ctx, a.tp); err != nil {
		a.log.WithError(err).Warn("Tracer shutdown failed")
	}
}

// modelConfig loads the YAML model config, or defaults driven by the environment
func (a *app) modelConfig(path string) (*modelconfig.Config, error) {
	if path == "" {
		path = a.cfg.Forecast.ModelConfig
	}
	if path != "" {
		cfg, _, err := modelconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load model config: %w", err)
		}
		return cfg, nil
	}

	cfg := modelconfig.Default()
	cfg.Forecast.Horizon = a.cfg.Forecast.Weeks
	cfg.Booster.Seed = a.cfg.Forecast.Seed
	if err := modelconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// orchestrator wires a pipeline from the model config
func (a *app) orchestrator(modelCfg *modelconfig.Config, m *metrics.Metrics) (*pipeline.Orchestrator, error) {
	return pipeline.NewOrchestrator(modelCfg, features.NewUSCalendar(), m, a.log)
}

// openStore connects to PostgreSQL and returns the sales repository
func (a *app) openStore(ctx context.Context) (*database.DB, *store.Repository, error) {
	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	a.log.Info("Connected to database")
	return db, store.NewRepository(db.Pool, db.Schema, a.log.Zerolog()), nil
}

// openCache builds the tiered response cache; Redis joins it when enabled
func (a *app) openCache(ctx context.Context, m *metrics.Metrics) (*cache.Tiered, *redis.Client, error) {
	client, err := redis.New(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}

	var remote cache.Remote
	if client.Enabled() {
		remote = redis.NewCache(client, "salescast")
		a.log.Info("Connected to Redis")
	}

	tiered, err := cache.NewTiered(a.cfg.API.CacheSize, a.cfg.API.CacheTTL, remote, m, a.log.Zerolog())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return tiered, client, nil
}

// invalidateBusiness drops a business' cached responses from Redis.
// Failures are logged; cached entries expire on their own.
func (a *app) invalidateBusiness(ctx context.Context, businessID string) {
	client, err := redis.New(ctx, a.cfg)
	if err != nil {
		a.log.WithError(err).Warn("Redis unavailable, cache not invalidated")
		return
	}
	defer client.Close()

	n, err := redis.NewCache(client, "salescast").DeletePrefix(ctx, redis.BusinessPrefix(businessID))
	if err != nil {
		a.log.WithError(err).Warn("Cache invalidation failed")
		return
	}
	if client.Enabled() {
		a.log.WithFields(map[string]interface{}{
			"business_id": businessID,
			"keys":        n,
		}).Info("Cache invalidated")
	}
}
