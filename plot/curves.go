// Package plot renders evaluation curves (ROC, precision-recall) as PNG
// images with gonum/plot. Images are returned as bytes so callers can embed
// them in a page or a JSON response without touching the filesystem.
package plot

import (
	"bytes"
	"fmt"
	"image/color"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Default image size
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4.5 * vg.Inch
)

// Curve is one labeled line. X and Y must have the same length.
type Curve struct {
	Label string
	X     []float64
	Y     []float64
}

// Options controls the rendered image
type Options struct {
	Width  vg.Length
	Height vg.Length
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

// ROC draws false positive rate against true positive rate for every curve,
// with the chance diagonal as reference.
func ROC(title string, curves []Curve, opts Options) ([]byte, error) {
	p := newUnitPlot(title, "FPR", "TPR")

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reference line")
	}
	diag.LineStyle.Color = color.Gray{Y: 160}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diag)

	if err := addCurves(p, curves); err != nil {
		return nil, err
	}
	p.Legend.Left = false
	p.Legend.Top = false
	return render(p, opts)
}

// PRC draws recall against precision for every curve.
func PRC(title string, curves []Curve, opts Options) ([]byte, error) {
	p := newUnitPlot(title, "Recall", "Precision")
	if err := addCurves(p, curves); err != nil {
		return nil, err
	}
	p.Legend.Left = true
	p.Legend.Top = false
	return render(p, opts)
}

func newUnitPlot(title, xLabel, yLabel string) *gplot.Plot {
	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.02
	p.Add(plotter.NewGrid())
	p.Legend.XOffs = -vg.Points(6)
	p.Legend.YOffs = vg.Points(6)
	return p
}

func addCurves(p *gplot.Plot, curves []Curve) error {
	if len(curves) == 0 {
		return errors.New("no curves to plot")
	}
	for i, c := range curves {
		if len(c.X) != len(c.Y) {
			return errors.Newf("curve %q: %d x values but %d y values", c.Label, len(c.X), len(c.Y))
		}
		if len(c.X) == 0 {
			return errors.Newf("curve %q is empty", c.Label)
		}
		pts := make(plotter.XYs, len(c.X))
		for k := range c.X {
			pts[k].X = c.X[k]
			pts[k].Y = c.Y[k]
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "curve %q", c.Label)
		}
		l.LineStyle.Width = vg.Points(2)
		l.LineStyle.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(c.Label, l)
	}
	return nil
}

func render(p *gplot.Plot, opts Options) ([]byte, error) {
	w, h := opts.size()
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create png canvas")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

// LegendLabel formats a legend entry as "name (metric=0.912)".
func LegendLabel(name, metric string, value float64) string {
	return fmt.Sprintf("%s (%s=%.3f)", name, metric, value)
}
