package store

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/series"
)

// forecast field names, exported name first, then its alias
var (
	dateKeys      = []string{"date", "ds"}
	predictedKeys = []string{"predicted_sales", "yhat"}
	lowerKeys     = []string{"lower_bound", "yhat_lower"}
	upperKeys     = []string{"upper_bound", "yhat_upper"}
)

// NormalizeForecasts maps forecast records onto ForecastRecord.
// Records missing a field or holding an unparsable value are skipped and counted.
func NormalizeForecasts(records []series.Record) ([]contracts.ForecastRecord, int) {
	out := make([]contracts.ForecastRecord, 0, len(records))
	skipped := 0

	for _, rec := range records {
		row, ok := normalizeForecast(rec)
		if !ok {
			skipped++
			continue
		}
		out = append(out, row)
	}
	return out, skipped
}

// ParseForecasts decodes a forecast document (list or wrapped list) and normalizes it
func ParseForecasts(data []byte) ([]contracts.ForecastRecord, int, error) {
	records, err := series.DecodeRecords(data)
	if err != nil {
		return nil, 0, err
	}
	rows, skipped := NormalizeForecasts(records)
	if len(rows) == 0 {
		return nil, skipped, fmt.Errorf("%w: no valid forecast rows", contracts.ErrSchema)
	}
	return rows, skipped, nil
}

func normalizeForecast(rec series.Record) (contracts.ForecastRecord, bool) {
	var row contracts.ForecastRecord

	rawDate, ok := first(rec, dateKeys)
	if !ok {
		return row, false
	}
	date, err := series.ParseDate(rawDate)
	if err != nil {
		return row, false
	}
	row.Date = date

	for _, f := range []struct {
		keys []string
		dst  *float64
	}{
		{predictedKeys, &row.PredictedSales},
		{lowerKeys, &row.LowerBound},
		{upperKeys, &row.UpperBound},
	} {
		raw, ok := first(rec, f.keys)
		if !ok {
			return row, false
		}
		v, ok := series.CoerceNumber(raw)
		if !ok {
			return row, false
		}
		*f.dst = v
	}
	return row, true
}

// first returns the value of the first key present and not null
func first(rec series.Record, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := rec.Get(k); ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}
