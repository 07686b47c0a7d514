package series

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// dateFormats tried in order when parsing a date-like field
var dateFormats = []string{
	contracts.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// LoadResult is the cleaned series plus what cleaning did to it
type LoadResult struct {
	Series     *contracts.Series
	DateField  string
	ValueField string
	Records    int
	Dropped    int // rows whose date or value failed coercion, negatives included
	Negative   int // rows dropped for a negative value
	Duplicates int // rows collapsed onto an existing date
}

// Loader turns raw sales records into an ordered series
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a new loader
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{
		log: log.With().Str("component", "series.loader").Logger(),
	}
}

// LoadFile reads and parses a JSON document
func (l *Loader) LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.Parse(data)
}

// Parse decodes a JSON document and cleans its records
func (l *Loader) Parse(data []byte) (*LoadResult, error) {
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, err
	}
	return l.FromRecords(records)
}

// FromRecords identifies the date and value fields, coerces every row,
// drops what fails, sorts by date and collapses duplicate dates (last wins).
func (l *Loader) FromRecords(records []Record) (*LoadResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", contracts.ErrSchema)
	}

	dateField, valueField, err := identifyFields(records)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		DateField:  dateField,
		ValueField: valueField,
		Records:    len(records),
	}

	points := make([]contracts.ObservedPoint, 0, len(records))
	for _, rec := range records {
		rawDate, okDate := rec.Get(dateField)
		rawValue, okValue := rec.Get(valueField)
		if !okDate || !okValue {
			result.Dropped++
			continue
		}

		date, err := parseDate(rawDate)
		if err != nil {
			result.Dropped++
			continue
		}
		value, ok := coerceNumber(rawValue)
		if !ok {
			result.Dropped++
			continue
		}
		// observed points are non-negative
		if value < 0 {
			result.Dropped++
			result.Negative++
			continue
		}
		points = append(points, contracts.ObservedPoint{Date: date, Value: value})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no row has a valid %q date and numeric %q value",
			contracts.ErrSchema, dateField, valueField)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	cleaned := points[:0]
	for _, p := range points {
		if n := len(cleaned); n > 0 && cleaned[n-1].Date.Equal(p.Date) {
			cleaned[n-1] = p
			result.Duplicates++
			continue
		}
		cleaned = append(cleaned, p)
	}
	result.Series = &contracts.Series{Points: cleaned}

	if result.Negative > 0 {
		l.log.Warn().
			Int("negative", result.Negative).
			Msg("rows with negative sales dropped")
	}

	l.log.Info().
		Str("date_field", dateField).
		Str("value_field", valueField).
		Int("records", result.Records).
		Int("points", len(cleaned)).
		Int("dropped", result.Dropped).
		Int("duplicates", result.Duplicates).
		Str("from", cleaned[0].Date.Format(contracts.DateLayout)).
		Str("to", cleaned[len(cleaned)-1].Date.Format(contracts.DateLayout)).
		Msg("series loaded")

	return result, nil
}

// identifyFields picks the date-like and sales-like keys. Exact "date" and
// "sales" win; otherwise the first key (document order over all records)
// containing "date"/"week" and "sales"/"revenue", case-insensitively.
func identifyFields(records []Record) (string, string, error) {
	var keys []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, f := range rec {
			if !seen[f.Key] {
				seen[f.Key] = true
				keys = append(keys, f.Key)
			}
		}
	}

	if seen["date"] && seen["sales"] {
		return "date", "sales", nil
	}

	var dateField, valueField string
	for _, k := range keys {
		lower := strings.ToLower(k)
		if dateField == "" && (strings.Contains(lower, "date") || strings.Contains(lower, "week")) {
			dateField = k
		}
		if valueField == "" && (strings.Contains(lower, "sales") || strings.Contains(lower, "revenue")) {
			valueField = k
		}
	}

	if dateField == "" || valueField == "" {
		return "", "", fmt.Errorf("%w: required date and sales fields not found in %v", contracts.ErrSchema, keys)
	}
	return dateField, valueField, nil
}

// parseDate accepts a JSON string in one of dateFormats, normalized to a UTC calendar date
func parseDate(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var lastErr error
	for _, layout := range dateFormats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// coerceNumber accepts JSON numbers and numeric strings
func coerceNumber(raw json.RawMessage) (float64, bool) {
	if string(raw) == "null" {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate parses a raw JSON date value the same way the loader does
func ParseDate(raw json.RawMessage) (time.Time, error) {
	return parseDate(raw)
}

// CoerceNumber converts a raw JSON number or numeric string
func CoerceNumber(raw json.RawMessage) (float64, bool) {
	return coerceNumber(raw)
}
