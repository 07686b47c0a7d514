package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/pipeline"
)

// forecastCmd represents the forecast command
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run the forecasting pipeline on a sales document",
	Long: `Runs load → features → train → evaluate → forecast → export on a JSON
document of weekly sales and writes sales_forecast.csv, sales_forecast.json and sales_forecast.png.

The document is a list of records (or a list under sales_data/data/records/items)
with a date-like field ("date"/"week") and a sales-like field ("sales"/"revenue").

Example:
  go run ./cmd/salescast forecast --input weekly_sales_data.json
  go run ./cmd/salescast forecast --input in.json --weeks 26 --business store-17 --save`,
	RunE: runForecast,
}

var (
	forecastInput       string
	forecastWeeks       int
	forecastOutput      string
	forecastBusiness    string
	forecastSave        bool
	forecastModelConfig string
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().StringVar(&forecastInput, "input", "", "path to the sales JSON document")
	forecastCmd.Flags().IntVar(&forecastWeeks, "weeks", 0, "forecast horizon in weeks (default FORECAST_WEEKS)")
	forecastCmd.Flags().StringVar(&forecastOutput, "output", "", "output directory (default FORECAST_OUTPUT_DIR)")
	forecastCmd.Flags().StringVar(&forecastBusiness, "business", "", "business id, required with --save")
	forecastCmd.Flags().BoolVar(&forecastSave, "save", false, "store inputs and forecast in PostgreSQL")
	forecastCmd.Flags().StringVar(&forecastModelConfig, "model-config", "", "model YAML (default FORECAST_MODEL_CONFIG)")
	_ = forecastCmd.MarkFlagRequired("input")
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if forecastSave && forecastBusiness == "" {
		return fmt.Errorf("--business is required with --save")
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	modelCfg, err := a.modelConfig(forecastModelConfig)
	if err != nil {
		return err
	}
	weeks := forecastWeeks
	if weeks <= 0 {
		weeks = modelCfg.Forecast.Horizon
	}
	output := forecastOutput
	if output == "" {
		output = a.cfg.Forecast.OutputDir
	}

	orch, err := a.orchestrator(modelCfg, nil)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(forecastInput)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	PrintHeader("Sales Forecast", [][2]string{
		{"Input", forecastInput},
		{"Horizon", strconv.Itoa(weeks) + " weeks"},
		{"Output", output},
		{"Business", valueOr(forecastBusiness, "-")},
	})

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Forecast.RunTimeout)
	defer cancel()

	result, runErr := orch.RunDocument(ctx, pipeline.RunConfig{
		BusinessID: forecastBusiness,
		Horizon:    weeks,
		OutputDir:  output,
	}, data)
	PrintRunResult(result)

	if runErr != nil {
		fmt.Println()
		PrintError("Forecast failed")
		return runErr
	}

	fmt.Println()
	if result.Artifacts != nil {
		PrintSuccess("Wrote " + result.Artifacts.CSVPath)
		PrintSuccess("Wrote " + result.Artifacts.JSONPath)
		PrintSuccess("Wrote " + result.Artifacts.PlotPath)
	}

	if forecastSave {
		if err := saveRun(ctx, a, forecastBusiness, result); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Saved %d input and %d forecast rows for %s",
			result.Series.Len(), len(result.Forecast), forecastBusiness))
	}
	return nil
}

// saveRun replaces the business' stored inputs and forecast with this run's
func saveRun(ctx context.Context, a *app, businessID string, result *pipeline.RunResult) error {
	db, repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.ReplaceBusiness(ctx, businessID,
		contracts.InputRecordsFrom(businessID, result.Series),
		contracts.ForecastRecordsFrom(businessID, result.Forecast), nil); err != nil {
		return err
	}

	a.invalidateBusiness(ctx, businessID)
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
