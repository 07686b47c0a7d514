package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database utilities",
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the database connection and pool",
	RunE:  runDBPing,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the input and forecast tables",
	Long: `Creates input_sales and forecast_sales (and DB_SCHEMA when set).
Safe to run repeatedly.

Example:
  go run ./cmd/salescast db migrate`,
	RunE: runDBMigrate,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbPingCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func runDBPing(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	db, _, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	PrintHeader("Database", [][2]string{
		{"Schema", valueOr(db.Schema, "public")},
		{"Response", status.ResponseTime.String()},
		{"Conns", fmt.Sprintf("%d total / %d idle / %d max", status.Stats.TotalConns, status.Stats.IdleConns, status.Stats.MaxConns)},
		{"Acquires", strconv.FormatInt(status.Stats.AcquireCount, 10)},
	})
	if err != nil {
		PrintError("Database unhealthy: " + status.Error)
		return err
	}
	PrintSuccess("Database healthy")
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	db, repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	PrintSuccess("Schema ready")
	return nil
}
