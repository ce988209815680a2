package quant

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	kPlotWidth  = 5 * vg.Inch
	kPlotHeight = 4 * vg.Inch
)

func tableXYs(table NumericTable) plotter.XYs {
	pts := make(plotter.XYs, table.Len())
	for ii := range pts {
		pts[ii].X = table.X(ii)
		pts[ii].Y = table.Y(ii)
	}
	return pts
}

// NewCurvePlot plots every series as a line on one set of axes.
func NewCurvePlot(title, xLabel, yLabel string, series ...Series) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("plot %q has no series", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	for ii, s := range series {
		line, err := plotter.NewLine(tableXYs(s.Table))
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.Color = plotutil.Color(ii)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	return p, nil
}

// WriteCurvePlot writes every series on one set of rate axes as an image.
// format is any extension gonum/plot supports, e.g. "png" or "svg".
func WriteCurvePlot(w io.Writer, title string, format string, series ...Series) error {
	p, err := NewCurvePlot(title, "time to maturity", "rate", series...)
	if err != nil {
		return err
	}
	writer, err := p.WriterTo(kPlotWidth, kPlotHeight, format)
	if err != nil {
		return err
	}
	_, err = writer.WriteTo(w)
	return err
}

// WriteSpotCurvePlot writes the swap and spot curves as an image.
func WriteSpotCurvePlot(
	w io.Writer, swap NumericTable, spot NumericTable, format string) error {

	return WriteCurvePlot(w, "Spot Curve", format,
		Series{Name: "swap", Table: swap},
		Series{Name: "spot", Table: spot})
}

// SaveSpotCurvePlot writes the plot to path; the format follows the file
// extension.
func SaveSpotCurvePlot(path string, swap NumericTable, spot NumericTable) error {
	p, err := NewCurvePlot("Spot Curve", "time to maturity", "rate",
		Series{Name: "swap", Table: swap},
		Series{Name: "spot", Table: spot})
	if err != nil {
		return err
	}
	return p.Save(kPlotWidth, kPlotHeight, path)
}
