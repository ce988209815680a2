package quant

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ErrSeriesGrid is returned when the series of one chart have different x
// values.
var ErrSeriesGrid = errors.New("chart series do not share an x grid")

// ChartOptions controls the size and labels of rendered HTML charts.
type ChartOptions struct {
	Title  string
	XLabel string
	YLabel string
	Width  string
	Height string
}

// Series is one named line of a chart.
type Series struct {
	Name  string
	Table NumericTable
}

func formatAxisLabel(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// NewLineChart builds an echarts line chart. Every series must share the
// x grid of the first one.
func NewLineChart(options ChartOptions, series ...Series) (*charts.Line, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("chart %q has no series", options.Title)
	}
	grid := series[0].Table
	for _, s := range series[1:] {
		if s.Table.Len() != grid.Len() {
			return nil, fmt.Errorf("%w: series %q has %d points, expected %d",
				ErrSeriesGrid, s.Name, s.Table.Len(), grid.Len())
		}
		for ii := 0; ii < grid.Len(); ii++ {
			if s.Table.X(ii) != grid.X(ii) {
				return nil, fmt.Errorf("%w: series %q has x=%g at index %d, expected %g",
					ErrSeriesGrid, s.Name, s.Table.X(ii), ii, grid.X(ii))
			}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: options.Title,
			Width:     options.Width,
			Height:    options.Height,
		}),
		charts.WithTitleOpts(opts.Title{Title: options.Title}),
		charts.WithXAxisOpts(opts.XAxis{Name: options.XLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: options.YLabel}),
	)

	labels := make([]string, grid.Len())
	for ii := range labels {
		labels[ii] = formatAxisLabel(grid.X(ii))
	}
	line.SetXAxis(labels)

	for _, s := range series {
		items := make([]opts.LineData, s.Table.Len())
		for ii := range items {
			items[ii] = opts.LineData{Value: s.Table.Y(ii)}
		}
		line.AddSeries(s.Name, items)
	}
	return line, nil
}

// RenderSpotCurves writes an HTML page charting one or more spot curves on a
// shared tenor grid.
func RenderSpotCurves(w io.Writer, options ChartOptions, series ...Series) error {
	if options.Title == "" {
		options.Title = "Spot Curve"
	}
	if options.XLabel == "" {
		options.XLabel = "time to maturity"
	}
	if options.YLabel == "" {
		options.YLabel = "spot rates"
	}
	line, err := NewLineChart(options, series...)
	if err != nil {
		return err
	}
	return line.Render(w)
}

// RenderPriceCurves writes an HTML page charting option prices against the
// underlying price, one line per series.
func RenderPriceCurves(w io.Writer, options ChartOptions, series ...Series) error {
	if options.Title == "" {
		options.Title = "Black-Scholes Price"
	}
	if options.XLabel == "" {
		options.XLabel = "underlying price"
	}
	if options.YLabel == "" {
		options.YLabel = "option price"
	}
	line, err := NewLineChart(options, series...)
	if err != nil {
		return err
	}
	return line.Render(w)
}
