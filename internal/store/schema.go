package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	inputTable    = "input_sales"
	forecastTable = "forecast_sales"
)

// tableName returns a quoted, optionally schema-qualified table name
func tableName(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

// schemaDDL returns the statements EnsureSchema runs, in order
func schemaDDL(schema string) []string {
	var stmts []string
	if schema != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize()))
	}

	stmts = append(stmts,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			business_id TEXT NOT NULL,
			date DATE NOT NULL,
			sales NUMERIC NOT NULL,
			PRIMARY KEY (business_id, date)
		)`, tableName(schema, inputTable)),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			business_id TEXT NOT NULL,
			date DATE NOT NULL,
			predicted_sales NUMERIC NOT NULL,
			lower_bound NUMERIC NOT NULL,
			upper_bound NUMERIC NOT NULL,
			generated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (business_id, date)
		)`, tableName(schema, forecastTable)),
	)
	return stmts
}

// EnsureSchema creates the schema and tables when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaDDL(r.schema) {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	r.log.Info().Str("schema", r.schema).Msg("sales tables ready")
	return nil
}
