package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/modelconfig"
)

type fixedCalendar struct {
	holidays []Holiday
	err      error
}

func (c fixedCalendar) Holidays(year int) ([]Holiday, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []Holiday
	for _, h := range c.holidays {
		if h.Date.Year() == year {
			out = append(out, h)
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weeklySeries(start time.Time, values ...float64) *contracts.Series {
	points := make([]contracts.ObservedPoint, len(values))
	for i, v := range values {
		points[i] = contracts.ObservedPoint{Date: start.AddDate(0, 0, 7*i), Value: v}
	}
	return &contracts.Series{Points: points}
}

func rampValues(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(100 + i*3 + (i%5)*7)
	}
	return values
}

func newTestEngineer(calendar HolidayCalendar) *Engineer {
	return NewEngineer(modelconfig.Default().Features, calendar, zerolog.Nop())
}

func TestEngineer_Build_ColumnOrder(t *testing.T) {
	fs, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 1, 2), rampValues(30)...))
	require.NoError(t, err)

	want := []string{"year", "month", "week_of_year", "day_of_week"}
	for k := 1; k <= 12; k++ {
		want = append(want, LagColumn(k))
	}
	want = append(want, "rolling_mean_4", "rolling_mean_8", "rolling_mean_12",
		"is_holiday", "holiday_proximity", "sin_month", "cos_month", "sin_day", "cos_day")

	assert.Equal(t, want, fs.Columns)
	for _, r := range fs.Rows {
		assert.Len(t, r.Values, len(want))
	}
}

func TestEngineer_Build_DropsRowsWithoutFullLags(t *testing.T) {
	values := rampValues(30)
	fs, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 1, 2), values...))
	require.NoError(t, err)

	require.Equal(t, 30-12, fs.Len())
	assert.Equal(t, day(2023, 1, 2).AddDate(0, 0, 7*12), fs.Rows[0].Date)
	assert.Equal(t, values[12], fs.Rows[0].Target)
}

func TestEngineer_Build_LagsUsePriorValues(t *testing.T) {
	values := rampValues(26)
	fs, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 1, 2), values...))
	require.NoError(t, err)

	// row i of the feature set is series index i+12
	for i := range fs.Rows {
		src := i + 12
		for k := 1; k <= 12; k++ {
			v, ok := fs.Value(i, LagColumn(k))
			require.True(t, ok)
			assert.Equal(t, values[src-k], v, "lag_%d at series index %d", k, src)
		}
	}
}

func TestEngineer_Build_RollingMeanExcludesCurrent(t *testing.T) {
	values := rampValues(26)
	fs, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 1, 2), values...))
	require.NoError(t, err)

	for i := range fs.Rows {
		src := i + 12
		want := (values[src-4] + values[src-3] + values[src-2] + values[src-1]) / 4
		got, ok := fs.Value(i, RollingColumn(4))
		require.True(t, ok)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestEngineer_Build_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1, 5, 12} {
		_, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 1, 2), rampValues(n)...))
		require.Error(t, err, "n=%d", n)
		assert.ErrorIs(t, err, contracts.ErrInsufficientData)
	}

	fs, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 1, 2), rampValues(13)...))
	require.NoError(t, err)
	assert.Equal(t, 1, fs.Len())
}

func TestEngineer_Build_OmitsWindowsWithoutHistory(t *testing.T) {
	cfg := modelconfig.Default().Features
	cfg.MaxLag = 3
	cfg.RollingWindows = []int{4, 8, 12}

	e := NewEngineer(cfg, NewUSCalendar(), zerolog.Nop())
	fs, err := e.Build(weeklySeries(day(2023, 1, 2), rampValues(9)...))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, fs.ColumnIndex(RollingColumn(4)), 0)
	assert.GreaterOrEqual(t, fs.ColumnIndex(RollingColumn(8)), 0)
	assert.Equal(t, -1, fs.ColumnIndex(RollingColumn(12)))
}

func TestEngineer_Build_CalendarFailureDefaultsHolidayFeatures(t *testing.T) {
	e := newTestEngineer(fixedCalendar{err: errors.New("calendar offline")})
	fs, err := e.Build(weeklySeries(day(2023, 10, 2), rampValues(20)...))
	require.NoError(t, err)

	for i := range fs.Rows {
		h, _ := fs.Value(i, ColIsHoliday)
		p, _ := fs.Value(i, ColHolidayProximity)
		assert.Zero(t, h)
		assert.Zero(t, p)
	}
}

func TestEngineer_Build_CalendarAndCyclical(t *testing.T) {
	// 2023-12-25 is a Monday and Christmas Day
	fs, err := newTestEngineer(NewUSCalendar()).Build(weeklySeries(day(2023, 10, 2), rampValues(13)...))
	require.NoError(t, err)
	require.Equal(t, 1, fs.Len())
	require.Equal(t, day(2023, 12, 25), fs.Rows[0].Date)

	get := func(name string) float64 {
		v, ok := fs.Value(0, name)
		require.True(t, ok, name)
		return v
	}
	assert.Equal(t, 2023.0, get(ColYear))
	assert.Equal(t, 12.0, get(ColMonth))
	assert.Equal(t, 52.0, get(ColWeekOfYear))
	assert.Equal(t, 0.0, get(ColDayOfWeek))
	assert.Equal(t, 1.0, get(ColIsHoliday))
	assert.Equal(t, 1.0, get(ColHolidayProximity))
	assert.InDelta(t, math.Sin(2*math.Pi), get(ColSinMonth), 1e-12)
	assert.InDelta(t, 1.0, get(ColCosMonth), 1e-12)
	assert.InDelta(t, 0.0, get(ColSinDay), 1e-12)
	assert.InDelta(t, 1.0, get(ColCosDay), 1e-12)
}

func TestHolidayFeatures_Proximity(t *testing.T) {
	holiday := day(2024, 7, 4)
	cal := fixedCalendar{holidays: []Holiday{{Date: holiday, Name: "Independence Day", Major: true}}}

	tests := []struct {
		name     string
		date     time.Time
		wantHol  float64
		wantProx float64
	}{
		{"on the holiday", holiday, 1, 1},
		{"7 days before", holiday.AddDate(0, 0, -7), 0, 0.5},
		{"7 days after", holiday.AddDate(0, 0, 7), 0, 0.5},
		{"13 days after", holiday.AddDate(0, 0, 13), 0, 1.0 / 14},
		{"14 days before", holiday.AddDate(0, 0, -14), 0, 0},
		{"far away", holiday.AddDate(0, 0, 40), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isHol, prox, err := holidayFeatures(cal, tt.date, 14)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHol, isHol)
			assert.InDelta(t, tt.wantProx, prox, 1e-12)
		})
	}
}

func TestHolidayFeatures_MinorHolidayHasNoProximity(t *testing.T) {
	labor := day(2024, 9, 2)
	cal := fixedCalendar{holidays: []Holiday{{Date: labor, Name: "Labor Day"}}}

	isHol, prox, err := holidayFeatures(cal, labor, 14)
	require.NoError(t, err)
	assert.Equal(t, 1.0, isHol)
	assert.Zero(t, prox)
}

func TestHolidayFeatures_AcrossYearBoundary(t *testing.T) {
	isHol, prox, err := holidayFeatures(NewUSCalendar(), day(2023, 12, 29), 14)
	require.NoError(t, err)
	assert.Zero(t, isHol)
	// Christmas is 4 days back, New Year 3 days ahead
	assert.InDelta(t, 11.0/14, prox, 1e-12)
}

func TestHolidayFeatures_NilCalendar(t *testing.T) {
	_, _, err := holidayFeatures(nil, day(2024, 1, 1), 14)
	assert.ErrorIs(t, err, errCalendarUnavailable)
}

func TestUSCalendar_ObservedDates(t *testing.T) {
	// July 4th 2026 is a Saturday, observed Friday July 3rd
	hs, err := NewUSCalendar().Holidays(2026)
	require.NoError(t, err)

	var found bool
	for _, h := range hs {
		if sameDay(h.Date, day(2026, 7, 3)) {
			found = true
			assert.True(t, h.Major)
		}
	}
	assert.True(t, found)
}

func TestEngineer_DateFeatures(t *testing.T) {
	e := newTestEngineer(NewUSCalendar())
	f := e.DateFeatures(day(2024, 11, 28)) // Thanksgiving, a Thursday

	assert.Equal(t, 2024.0, f[ColYear])
	assert.Equal(t, 11.0, f[ColMonth])
	assert.Equal(t, 3.0, f[ColDayOfWeek])
	assert.Equal(t, 1.0, f[ColIsHoliday])
	assert.Equal(t, 1.0, f[ColHolidayProximity])
}
