package automl

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/metrics"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/plot"
)

// PlotROC renders the ROC curve of every fitted model on the test split as a
// PNG image. The legend shows each model's AUC.
func (c *Classifier) PlotROC(title string) ([]byte, error) {
	return c.plotCurves(title, "AUC", func(y, p *mat.VecDense) ([]float64, []float64, float64, error) {
		fpr, tpr, _, err := metrics.ROCCurve(y, p)
		if err != nil {
			return nil, nil, 0, err
		}
		auc, err := metrics.AUC(y, p)
		return fpr, tpr, auc, err
	}, plot.ROC)
}

// PlotPRC renders the precision-recall curve of every fitted model on the
// test split as a PNG image. The legend shows each model's average precision.
func (c *Classifier) PlotPRC(title string) ([]byte, error) {
	return c.plotCurves(title, "AP", func(y, p *mat.VecDense) ([]float64, []float64, float64, error) {
		precision, recall, _, err := metrics.PrecisionRecallCurve(y, p)
		if err != nil {
			return nil, nil, 0, err
		}
		ap, err := metrics.AveragePrecision(y, p)
		return recall, precision, ap, err
	}, plot.PRC)
}

type curveFunc func(yTrue, proba *mat.VecDense) (x, y []float64, summary float64, err error)

type renderFunc func(title string, curves []plot.Curve, opts plot.Options) ([]byte, error)

func (c *Classifier) plotCurves(title, summary string, curve curveFunc, render renderFunc) (img []byte, err error) {
	defer errors.Recover(&err, "Classifier.plot")

	results := c.Results()
	if len(results) == 0 {
		return nil, errors.NewNotFittedError("Classifier", "Plot")
	}
	yTest := mat.NewVecDense(len(c.yTest), c.yTest)
	curves := make([]plot.Curve, 0, len(results))
	for _, r := range results {
		x, y, v, err := curve(yTest, mat.NewVecDense(len(r.Proba), r.Proba))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compute curve for %s", r.Acronym)
		}
		curves = append(curves, plot.Curve{Label: plot.LegendLabel(r.Acronym, summary, v), X: x, Y: y})
	}
	return render(title, curves, plot.Options{})
}
