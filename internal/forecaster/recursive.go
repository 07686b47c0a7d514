package forecaster

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/modelconfig"
)

// Predictor is a trained model: it scales and predicts a raw feature
// vector laid out in Columns order.
type Predictor interface {
	Predict(features []float64) (float64, error)
	Columns() []string
}

// DateFeaturer computes the features that depend only on the date
type DateFeaturer interface {
	DateFeatures(d time.Time) map[string]float64
}

// Result is the forecast plus the feature vector used at every step
type Result struct {
	Points   []contracts.ForecastPoint
	Inputs   [][]float64
	Negative int // steps whose prediction was negative
}

// Forecaster produces multi-week forecasts autoregressively: each step's
// lag and rolling features come from a window holding true values for the
// observed history and earlier predictions for future weeks.
type Forecaster struct {
	cfg   modelconfig.Forecast
	dates DateFeaturer
	log   zerolog.Logger
}

// NewForecaster creates a recursive forecaster
func NewForecaster(cfg modelconfig.Forecast, dates DateFeaturer, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		cfg:   cfg,
		dates: dates,
		log:   log.With().Str("component", "forecaster").Logger(),
	}
}

type columnKind int

const (
	kindDate columnKind = iota
	kindLag
	kindRolling
)

// columnSpec says how a fit-time column is recomputed for a future date
type columnSpec struct {
	name string
	kind columnKind
	n    int // lag distance or rolling width
}

// Forecast predicts horizon weeks after the last observed point.
// fs supplies the engineered vectors of the observed tail; steps are strictly sequential.
func (f *Forecaster) Forecast(ctx context.Context, model Predictor, series *contracts.Series, fs *contracts.FeatureSet, horizon int) (*Result, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no trained model", contracts.ErrForecast)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty history", contracts.ErrForecast)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be >= 1, got %d", contracts.ErrForecast, horizon)
	}

	columns := model.Columns()
	specs := parseColumns(columns)
	win := f.seedWindow(series, fs, columns)
	last := series.Last().Date

	result := &Result{
		Points: make([]contracts.ForecastPoint, 0, horizon),
		Inputs: make([][]float64, 0, horizon),
	}

	for i := 0; i < horizon; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", contracts.ErrForecast, i, err)
		}

		date := last.AddDate(0, 0, 7*(i+1))
		vec := f.assemble(date, specs, win)

		pred, err := model.Predict(vec)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", contracts.ErrForecast, i, err)
		}
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			return nil, fmt.Errorf("%w: step %d: non-finite prediction", contracts.ErrForecast, i)
		}
		if pred < 0 {
			result.Negative++
			f.log.Warn().
				Str("date", date.Format(contracts.DateLayout)).
				Float64("prediction", pred).
				Msg("negative prediction, band is inverted")
		}

		result.Points = append(result.Points, contracts.ForecastPoint{
			Date:           date,
			PredictedValue: pred,
			LowerBound:     pred * (1 - f.cfg.BandFraction),
			UpperBound:     pred * (1 + f.cfg.BandFraction),
		})
		result.Inputs = append(result.Inputs, vec)

		win.Push(entry{Date: date, Value: pred, Features: vec, Synthetic: true})
	}

	f.log.Info().
		Int("horizon", horizon).
		Str("from", result.Points[0].Date.Format(contracts.DateLayout)).
		Str("to", result.Points[horizon-1].Date.Format(contracts.DateLayout)).
		Int("negative", result.Negative).
		Msg("recursive forecast complete")

	return result, nil
}

// seedWindow fills the window with the most recent observed points,
// attaching the engineered vector of each date when it exists
func (f *Forecaster) seedWindow(series *contracts.Series, fs *contracts.FeatureSet, columns []string) *window {
	byDate := make(map[time.Time][]float64)
	if fs != nil && slices.Equal(fs.Columns, columns) {
		for _, r := range fs.Rows {
			byDate[r.Date] = r.Values
		}
	}

	win := newWindow(f.cfg.WindowSize)
	for _, p := range series.Tail(f.cfg.WindowSize) {
		win.Push(entry{Date: p.Date, Value: p.Value, Features: byDate[p.Date]})
	}
	return win
}

// assemble builds the feature vector for date in fit-time column order
func (f *Forecaster) assemble(date time.Time, specs []columnSpec, win *window) []float64 {
	dateFeats := f.dates.DateFeatures(date)
	vec := make([]float64, len(specs))

	for j, s := range specs {
		v := math.NaN()
		switch s.kind {
		case kindDate:
			if dv, ok := dateFeats[s.name]; ok {
				v = dv
			}
		case kindLag:
			if e, ok := win.Back(s.n); ok {
				v = e.Value
			}
		case kindRolling:
			if win.Len() >= s.n {
				v = stat.Mean(win.Trailing(s.n), nil)
			}
		}
		if math.IsNaN(v) {
			v = windowMean(win, j)
		}
		vec[j] = v
	}
	return vec
}

// windowMean is the mean of feature j over window entries that carry it, else 0
func windowMean(win *window, j int) float64 {
	var values []float64
	for _, e := range win.Entries() {
		if j < len(e.Features) && !math.IsNaN(e.Features[j]) {
			values = append(values, e.Features[j])
		}
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func parseColumns(columns []string) []columnSpec {
	specs := make([]columnSpec, len(columns))
	for i, c := range columns {
		specs[i] = columnSpec{name: c, kind: kindDate}
		if n, ok := suffixInt(c, "lag_"); ok {
			specs[i] = columnSpec{name: c, kind: kindLag, n: n}
		} else if n, ok := suffixInt(c, "rolling_mean_"); ok {
			specs[i] = columnSpec{name: c, kind: kindRolling, n: n}
		}
	}
	return specs
}

func suffixInt(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
