package features

import (
	"math"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// Holiday is a resolved holiday date
type Holiday struct {
	Date  time.Time
	Name  string
	Major bool
}

// HolidayCalendar resolves the public holidays of a year.
// An error means holiday data is unavailable; features then default to 0.
type HolidayCalendar interface {
	Holidays(year int) ([]Holiday, error)
}

// majorHolidays drive holiday_proximity: New Year, Independence Day,
// Thanksgiving and Christmas (actual and observed dates).
var majorHolidays = map[*cal.Holiday]bool{
	us.NewYear:         true,
	us.IndependenceDay: true,
	us.ThanksgivingDay: true,
	us.ChristmasDay:    true,
}

// USCalendar is the US federal holiday calendar, memoized per year
type USCalendar struct {
	holidays []*cal.Holiday
	mu       sync.Mutex
	byYear   map[int][]Holiday
}

// NewUSCalendar creates a calendar over the federal holiday set
func NewUSCalendar() *USCalendar {
	return &USCalendar{
		holidays: us.Holidays,
		byYear:   make(map[int][]Holiday),
	}
}

// Holidays returns every actual and observed holiday date of year
func (c *USCalendar) Holidays(year int) ([]Holiday, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.byYear[year]; ok {
		return cached, nil
	}

	var out []Holiday
	for _, h := range c.holidays {
		actual, observed := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		major := majorHolidays[h]
		out = append(out, Holiday{Date: calendarDate(actual), Name: h.Name, Major: major})
		if !observed.IsZero() && !sameDay(actual, observed) {
			out = append(out, Holiday{Date: calendarDate(observed), Name: h.Name + " (observed)", Major: major})
		}
	}
	c.byYear[year] = out
	return out, nil
}

// holidayFeatures computes is_holiday and holiday_proximity for d.
// Neighbouring years are included so late-December and early-January dates
// see holidays across the year boundary.
func holidayFeatures(calendar HolidayCalendar, d time.Time, proximityDays int) (isHoliday, proximity float64, err error) {
	if calendar == nil {
		return 0, 0, errCalendarUnavailable
	}

	for year := d.Year() - 1; year <= d.Year()+1; year++ {
		hs, err := calendar.Holidays(year)
		if err != nil {
			return 0, 0, err
		}
		for _, h := range hs {
			if sameDay(h.Date, d) {
				isHoliday = 1
			}
			if !h.Major {
				continue
			}
			days := math.Abs(daysBetween(d, h.Date))
			if days <= float64(proximityDays) {
				score := math.Max(0, (float64(proximityDays)-days)/float64(proximityDays))
				proximity = math.Max(proximity, score)
			}
		}
	}
	return isHoliday, proximity, nil
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// daysBetween counts whole calendar days from b to a
func daysBetween(a, b time.Time) float64 {
	return math.Round(calendarDate(a).Sub(calendarDate(b)).Hours() / 24)
}
