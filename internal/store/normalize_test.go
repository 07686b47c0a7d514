package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
)

func TestParseForecasts_ExportedShape(t *testing.T) {
	doc := `[
		{"date": "2024-06-03", "predicted_sales": 100, "lower_bound": 90, "upper_bound": 110},
		{"date": "2024-06-10", "predicted_sales": "105.5", "lower_bound": 94.95, "upper_bound": 116.05}
	]`

	rows, skipped, err := ParseForecasts([]byte(doc))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, 100.0, rows[0].PredictedSales)
	assert.Equal(t, 105.5, rows[1].PredictedSales)
	assert.Nil(t, rows[0].GeneratedAt)
}

func TestParseForecasts_Aliases(t *testing.T) {
	doc := `{"data": [
		{"ds": "2024-06-03", "yhat": 50, "yhat_lower": 45, "yhat_upper": 55},
		{"date": "2024-06-10", "yhat": 0, "lower_bound": 0, "yhat_upper": 0}
	]}`

	rows, skipped, err := ParseForecasts([]byte(doc))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, rows, 2)
	assert.Equal(t, 50.0, rows[0].PredictedSales)
	assert.Equal(t, 45.0, rows[0].LowerBound)
	// zero is a value, not a missing field
	assert.Equal(t, 0.0, rows[1].PredictedSales)
}

func TestParseForecasts_SkipsIncomplete(t *testing.T) {
	doc := `[
		{"date": "2024-06-03", "predicted_sales": 100, "lower_bound": 90, "upper_bound": 110},
		{"date": "2024-06-10", "predicted_sales": 100, "lower_bound": 90},
		{"date": "not a date", "predicted_sales": 100, "lower_bound": 90, "upper_bound": 110},
		{"date": "2024-06-24", "predicted_sales": null, "lower_bound": 90, "upper_bound": 110},
		{"date": "2024-07-01", "predicted_sales": "abc", "lower_bound": 90, "upper_bound": 110}
	]`

	rows, skipped, err := ParseForecasts([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 4, skipped)
}

func TestParseForecasts_NothingValid(t *testing.T) {
	_, skipped, err := ParseForecasts([]byte(`[{"foo": 1}]`))
	assert.ErrorIs(t, err, contracts.ErrSchema)
	assert.Equal(t, 1, skipped)

	_, _, err = ParseForecasts([]byte(`42`))
	assert.ErrorIs(t, err, contracts.ErrSchema)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, `"input_sales"`, tableName("", inputTable))
	assert.Equal(t, `"analytics"."forecast_sales"`, tableName("analytics", forecastTable))
}

func TestSchemaDDL(t *testing.T) {
	assert.Len(t, schemaDDL(""), 2)

	stmts := schemaDDL("analytics")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], `CREATE SCHEMA IF NOT EXISTS "analytics"`)
	assert.Contains(t, stmts[2], "DEFAULT NOW()")
	assert.Contains(t, stmts[2], "PRIMARY KEY (business_id, date)")
}
