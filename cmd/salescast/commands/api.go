package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/api"
	"github.com/wonny/salescast/internal/api/handlers"
	"github.com/wonny/salescast/internal/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only query API",
	Long: `Serves stored input and forecast rows.

Endpoints:
  GET /                                  - Service info
  GET /api/health                        - Database health
  GET /api/businesses                    - Known business ids
  GET /api/sales/{business_id}           - Inputs and forecast with totals
  GET /api/sales/{business_id}/input     - Inputs
  GET /api/sales/{business_id}/forecast  - Forecast
  GET /metrics                           - Prometheus metrics

Example:
  go run ./cmd/salescast api
  go run ./cmd/salescast api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	db, repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	responseCache, redisClient, err := a.openCache(ctx, m)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	router, err := api.NewRouter(a.cfg.API,
		handlers.NewSalesHandler(repo, responseCache, log),
		handlers.NewHealthHandler(db, version),
		m, log)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	server := api.New(a.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a failed start
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
