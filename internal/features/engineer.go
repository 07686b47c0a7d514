package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/modelconfig"
)

// Column names shared by training and forecasting
const (
	ColYear             = "year"
	ColMonth            = "month"
	ColWeekOfYear       = "week_of_year"
	ColDayOfWeek        = "day_of_week"
	ColIsHoliday        = "is_holiday"
	ColHolidayProximity = "holiday_proximity"
	ColSinMonth         = "sin_month"
	ColCosMonth         = "cos_month"
	ColSinDay           = "sin_day"
	ColCosDay           = "cos_day"
)

var errCalendarUnavailable = errors.New("holiday calendar unavailable")

// LagColumn names the k-period lag feature
func LagColumn(k int) string {
	return fmt.Sprintf("lag_%d", k)
}

// RollingColumn names the w-period rolling mean feature
func RollingColumn(w int) string {
	return fmt.Sprintf("rolling_mean_%d", w)
}

// Engineer derives calendar, lag, rolling, holiday and cyclical features
type Engineer struct {
	cfg      modelconfig.Features
	calendar HolidayCalendar
	log      zerolog.Logger
}

// NewEngineer creates a feature engineer. A nil calendar yields zero holiday features.
func NewEngineer(cfg modelconfig.Features, calendar HolidayCalendar, log zerolog.Logger) *Engineer {
	return &Engineer{
		cfg:      cfg,
		calendar: calendar,
		log:      log.With().Str("component", "features.engineer").Logger(),
	}
}

// Build engineers the feature set of a cleaned series.
// Lag and rolling values at row i only use points strictly before i.
func (e *Engineer) Build(series *contracts.Series) (*contracts.FeatureSet, error) {
	n := series.Len()
	if n <= e.cfg.MaxLag {
		return nil, fmt.Errorf("%w: feature engineering needs more than %d points, got %d",
			contracts.ErrInsufficientData, e.cfg.MaxLag, n)
	}

	// windows without enough history are omitted entirely, never partially filled
	windows := make([]int, 0, len(e.cfg.RollingWindows))
	for _, w := range e.cfg.RollingWindows {
		if n > w {
			windows = append(windows, w)
		} else {
			e.log.Warn().Int("window", w).Int("points", n).Msg("rolling window omitted, not enough history")
		}
	}

	columns := e.columns(windows)
	values := series.Values()
	holidaysOK := true

	rows := make([]contracts.FeatureRow, 0, n)
	for i, p := range series.Points {
		vec := make([]float64, 0, len(columns))
		vec = append(vec, dateParts(p.Date)...)

		for k := 1; k <= e.cfg.MaxLag; k++ {
			if i-k >= 0 {
				vec = append(vec, values[i-k])
			} else {
				vec = append(vec, math.NaN())
			}
		}
		for _, w := range windows {
			if i >= w {
				vec = append(vec, stat.Mean(values[i-w:i], nil))
			} else {
				vec = append(vec, math.NaN())
			}
		}

		isHoliday, proximity := 0.0, 0.0
		if holidaysOK {
			var err error
			isHoliday, proximity, err = holidayFeatures(e.calendar, p.Date, e.cfg.ProximityDays)
			if err != nil {
				e.log.Warn().Err(err).Msg("holiday features unavailable, defaulting to 0")
				holidaysOK = false
				isHoliday, proximity = 0, 0
			}
		}
		vec = append(vec, isHoliday, proximity)
		vec = append(vec, cyclical(p.Date)...)

		rows = append(rows, contracts.FeatureRow{Date: p.Date, Target: p.Value, Values: vec})
	}

	if !holidaysOK {
		hIdx := len(columns) - 6
		for i := range rows {
			rows[i].Values[hIdx] = 0
			rows[i].Values[hIdx+1] = 0
		}
	}

	complete := rows[:0]
	for _, r := range rows {
		if !hasNaN(r.Values) {
			complete = append(complete, r)
		}
	}
	if len(complete) == 0 {
		return nil, fmt.Errorf("%w: no complete feature rows", contracts.ErrInsufficientData)
	}

	e.log.Info().
		Int("rows", len(complete)).
		Int("features", len(columns)).
		Int("dropped", n-len(complete)).
		Msg("feature engineering complete")

	return &contracts.FeatureSet{Columns: columns, Rows: complete}, nil
}

// DateFeatures computes the features that depend only on the date:
// calendar parts, holiday signal and cyclical encodings.
func (e *Engineer) DateFeatures(d time.Time) map[string]float64 {
	parts := dateParts(d)
	cyc := cyclical(d)

	isHoliday, proximity, err := holidayFeatures(e.calendar, d, e.cfg.ProximityDays)
	if err != nil {
		isHoliday, proximity = 0, 0
	}

	return map[string]float64{
		ColYear:             parts[0],
		ColMonth:            parts[1],
		ColWeekOfYear:       parts[2],
		ColDayOfWeek:        parts[3],
		ColIsHoliday:        isHoliday,
		ColHolidayProximity: proximity,
		ColSinMonth:         cyc[0],
		ColCosMonth:         cyc[1],
		ColSinDay:           cyc[2],
		ColCosDay:           cyc[3],
	}
}

// columns returns the fixed feature order (date and target excluded)
func (e *Engineer) columns(windows []int) []string {
	cols := []string{ColYear, ColMonth, ColWeekOfYear, ColDayOfWeek}
	for k := 1; k <= e.cfg.MaxLag; k++ {
		cols = append(cols, LagColumn(k))
	}
	for _, w := range windows {
		cols = append(cols, RollingColumn(w))
	}
	return append(cols, ColIsHoliday, ColHolidayProximity, ColSinMonth, ColCosMonth, ColSinDay, ColCosDay)
}

// dateParts returns year, month, ISO week and day-of-week (Monday=0)
func dateParts(d time.Time) []float64 {
	_, week := d.ISOWeek()
	return []float64{
		float64(d.Year()),
		float64(d.Month()),
		float64(week),
		float64(dayOfWeek(d)),
	}
}

// cyclical encodes month (period 12) and day-of-week (period 7) on the unit circle
func cyclical(d time.Time) []float64 {
	month := float64(d.Month())
	dow := float64(dayOfWeek(d))
	return []float64{
		math.Sin(2 * math.Pi * month / 12),
		math.Cos(2 * math.Pi * month / 12),
		math.Sin(2 * math.Pi * dow / 7),
		math.Cos(2 * math.Pi * dow / 7),
	}
}

// dayOfWeek maps time.Weekday (Sunday=0) to Monday=0..Sunday=6
func dayOfWeek(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
