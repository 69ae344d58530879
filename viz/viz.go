// Package viz renders fitted receptive fields as delay-curve plots.
package viz

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrShape is returned when the coefficient grid and delay axis do not
// line up.
var ErrShape = errors.New("viz: coefficient shape mismatch")

// DelayCurves plots one line per feature of a single output's receptive
// field, coefficient value against lag in seconds. coef is indexed as
// (features x delays) and names labels the features; pass nil to omit
// the legend.
func DelayCurves(coef [][]float64, delays []int, sfreq float64, names []string) (*plot.Plot, error) {
	if sfreq <= 0 {
		return nil, fmt.Errorf("viz: invalid sampling rate %v", sfreq)
	}
	if len(coef) == 0 {
		return nil, fmt.Errorf("%w: no features", ErrShape)
	}
	if names != nil && len(names) != len(coef) {
		return nil, fmt.Errorf("%w: %d names for %d features", ErrShape, len(names), len(coef))
	}

	p := plot.New()
	p.Title.Text = "Receptive field"
	p.X.Label.Text = "lag (s)"
	p.Y.Label.Text = "coefficient"

	for f, row := range coef {
		if len(row) != len(delays) {
			return nil, fmt.Errorf("%w: feature %d has %d delays, axis has %d", ErrShape, f, len(row), len(delays))
		}
		pts := make(plotter.XYs, len(row))
		for i, v := range row {
			pts[i].X = float64(delays[i]) / sfreq
			pts[i].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(f)
		p.Add(line)
		if names != nil {
			p.Legend.Add(names[f], line)
		}
	}
	return p, nil
}

// Save writes the plot to path, the format is inferred from the
// extension.
func Save(p *plot.Plot, path string) error {
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
