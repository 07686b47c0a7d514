package export

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wonny/salescast/internal/contracts"
)

// PlotFile is the chart artifact name
const PlotFile = "sales_forecast.png"

var (
	plotWidth  = 12 * vg.Inch
	plotHeight = 6 * vg.Inch

	historyColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	forecastColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	bandColor     = color.RGBA{R: 214, G: 39, B: 40, A: 50}
)

// WritePlot renders the history, the forecast and its band as a PNG.
// history may be nil.
func WritePlot(w io.Writer, history *contracts.Series, points []contracts.ForecastPoint) error {
	p := plot.New()
	p.Title.Text = "Weekly Sales Forecast"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Sales"
	p.X.Tick.Marker = plot.TimeTicks{Format: contracts.DateLayout}
	p.Add(plotter.NewGrid())

	if history.Len() > 0 {
		xys := make(plotter.XYs, history.Len())
		for i, pt := range history.Points {
			xys[i] = plotter.XY{X: float64(pt.Date.Unix()), Y: pt.Value}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("history line: %w", err)
		}
		line.LineStyle.Color = historyColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("Historical Sales", line)
	}

	if len(points) > 0 {
		// upper edge forward, lower edge back
		band := make(plotter.XYs, 0, 2*len(points))
		for _, pt := range points {
			band = append(band, plotter.XY{X: float64(pt.Date.Unix()), Y: pt.UpperBound})
		}
		for i := len(points) - 1; i >= 0; i-- {
			band = append(band, plotter.XY{X: float64(points[i].Date.Unix()), Y: points[i].LowerBound})
		}
		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return fmt.Errorf("band: %w", err)
		}
		poly.Color = bandColor
		poly.LineStyle.Width = 0
		p.Add(poly)
		p.Legend.Add("Confidence Band", poly)

		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i] = plotter.XY{X: float64(pt.Date.Unix()), Y: pt.PredictedValue}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("forecast line: %w", err)
		}
		line.LineStyle.Color = forecastColor
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(line)
		p.Legend.Add("Forecast", line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
