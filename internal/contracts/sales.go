package contracts

import (
	"math"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on every boundary
const DateLayout = "2006-01-02"

// ObservedPoint is one cleaned weekly observation
type ObservedPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"sales"`
}

// Series is an ordered, duplicate-free sequence of observations.
// Dates are strictly increasing; the loader guarantees it.
type Series struct {
	Points []ObservedPoint `json:"points"`
}

// Len returns the number of observations
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Values returns the observation values in date order
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Last returns the most recent observation
func (s *Series) Last() ObservedPoint {
	return s.Points[len(s.Points)-1]
}

// Tail returns up to n most recent observations
func (s *Series) Tail(n int) []ObservedPoint {
	if n >= len(s.Points) {
		return s.Points
	}
	return s.Points[len(s.Points)-n:]
}

// FeatureRow holds the engineered features for one date.
// Values are aligned with FeatureSet.Columns; a NaN marks an undefined value.
type FeatureRow struct {
	Date   time.Time `json:"date"`
	Target float64   `json:"target"`
	Values []float64 `json:"values"`
}

// FeatureSet is the output of feature engineering. Columns is the fixed,
// ordered list every downstream consumer must use.
type FeatureSet struct {
	Columns []string     `json:"columns"`
	Rows    []FeatureRow `json:"rows"`
}

// Len returns the number of rows
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Rows)
}

// ColumnIndex returns the position of a column or -1
func (fs *FeatureSet) ColumnIndex(name string) int {
	for i, c := range fs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the named feature of row i
func (fs *FeatureSet) Value(i int, name string) (float64, bool) {
	idx := fs.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(fs.Rows) {
		return math.NaN(), false
	}
	v := fs.Rows[i].Values[idx]
	return v, !math.IsNaN(v)
}

// Matrix returns the feature matrix and target vector
func (fs *FeatureSet) Matrix() ([][]float64, []float64) {
	x := make([][]float64, len(fs.Rows))
	y := make([]float64, len(fs.Rows))
	for i, r := range fs.Rows {
		x[i] = r.Values
		y[i] = r.Target
	}
	return x, y
}

// Slice returns rows [from, to) sharing the same columns
func (fs *FeatureSet) Slice(from, to int) *FeatureSet {
	return &FeatureSet{Columns: fs.Columns, Rows: fs.Rows[from:to]}
}

// ForecastPoint is one predicted future week
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedValue float64   `json:"predicted_sales"`
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`
}

// EvaluationReport holds hold-out error metrics.
// MAPE is reported only over non-zero actuals; MAPEDefined is false
// when every held-out actual was zero.
type EvaluationReport struct {
	MAE          float64 `json:"mae"`
	RMSE         float64 `json:"rmse"`
	MAPE         float64 `json:"mape"`
	MAPEDefined  bool    `json:"mape_defined"`
	ZeroActuals  int     `json:"zero_actuals"`
	TrainSize    int     `json:"train_size"`
	TestSize     int     `json:"test_size"`
	Insufficient bool    `json:"insufficient"`
}

// InputRecord is a persisted historical row
type InputRecord struct {
	BusinessID string    `json:"business_id,omitempty"`
	Date       time.Time `json:"date"`
	Sales      float64   `json:"sales"`
}

// ForecastRecord is a persisted forecast row
type ForecastRecord struct {
	BusinessID     string     `json:"business_id,omitempty"`
	Date           time.Time  `json:"date"`
	PredictedSales float64    `json:"predicted_sales"`
	LowerBound     float64    `json:"lower_bound"`
	UpperBound     float64    `json:"upper_bound"`
	GeneratedAt    *time.Time `json:"generated_at,omitempty"`
}

// ForecastRecordsFrom converts forecast points into persistable rows
func ForecastRecordsFrom(businessID string, points []ForecastPoint) []ForecastRecord {
	rows := make([]ForecastRecord, len(points))
	for i, p := range points {
		rows[i] = ForecastRecord{
			BusinessID:     businessID,
			Date:           p.Date,
			PredictedSales: p.PredictedValue,
			LowerBound:     p.LowerBound,
			UpperBound:     p.UpperBound,
		}
	}
	return rows
}

// InputRecordsFrom converts a series into persistable rows
func InputRecordsFrom(businessID string, series *Series) []InputRecord {
	rows := make([]InputRecord, series.Len())
	for i, p := range series.Points {
		rows[i] = InputRecord{BusinessID: businessID, Date: p.Date, Sales: p.Value}
	}
	return rows
}

// SeriesFromInputs rebuilds a series from stored rows (already date-ordered)
func SeriesFromInputs(rows []InputRecord) *Series {
	points := make([]ObservedPoint, len(rows))
	for i, r := range rows {
		points[i] = ObservedPoint{Date: r.Date, Value: r.Sales}
	}
	return &Series{Points: points}
}
