package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/series"
	"github.com/wonny/salescast/internal/store"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load input and forecast JSON into PostgreSQL",
	Long: `Replaces a business' stored input and forecast rows with the given
documents. Prior rows of the business are purged, not merged.

Forecast records may use date/predicted_sales/lower_bound/upper_bound or
ds/yhat/yhat_lower/yhat_upper; incomplete records are skipped.

Example:
  go run ./cmd/salescast load --business store-17 \
    --input-json weekly_sales_data.json --forecast-json output/sales_forecast.json`,
	RunE: runLoad,
}

var (
	loadBusiness     string
	loadInputJSON    string
	loadForecastJSON string
	loadGeneratedAt  string
)

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadBusiness, "business", "", "business id")
	loadCmd.Flags().StringVar(&loadInputJSON, "input-json", "weekly_sales_data.json", "historical sales JSON")
	loadCmd.Flags().StringVar(&loadForecastJSON, "forecast-json", "output/sales_forecast.json", "forecast JSON")
	loadCmd.Flags().StringVar(&loadGeneratedAt, "generated-at", "", "RFC 3339 generation time (default: upsert time)")
	_ = loadCmd.MarkFlagRequired("business")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var generatedAt *time.Time
	if loadGeneratedAt != "" {
		t, err := time.Parse(time.RFC3339, loadGeneratedAt)
		if err != nil {
			return fmt.Errorf("--generated-at: %w", err)
		}
		generatedAt = &t
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	loaded, err := series.NewLoader(a.log.Zerolog()).LoadFile(loadInputJSON)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}

	data, err := os.ReadFile(loadForecastJSON)
	if err != nil {
		return fmt.Errorf("read forecast: %w", err)
	}
	forecasts, skipped, err := store.ParseForecasts(data)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}

	PrintHeader("Load Sales Data", [][2]string{
		{"Business", loadBusiness},
		{"Inputs", fmt.Sprintf("%s (%d rows, %d dropped)", loadInputJSON, loaded.Series.Len(), loaded.Dropped)},
		{"Forecast", fmt.Sprintf("%s (%d rows, %d skipped)", loadForecastJSON, len(forecasts), skipped)},
	})

	db, repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.ReplaceBusiness(ctx, loadBusiness,
		contracts.InputRecordsFrom(loadBusiness, loaded.Series), forecasts, generatedAt); err != nil {
		return err
	}

	a.invalidateBusiness(ctx, loadBusiness)

	PrintSuccess("Loaded " + strconv.Itoa(loaded.Series.Len()) + " input rows and " +
		strconv.Itoa(len(forecasts)) + " forecast rows into Postgres")
	return nil
}
