package automl

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/parallel"
	"github.com/YuminosukeSato/atomgo/metrics"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// Table is a metrics table with one row per model and one column per metric.
type Table struct {
	Columns []string
	Rows    []TableRow
}

// TableRow holds the metric values of one model, in column order
type TableRow struct {
	ID     ModelID
	Model  string
	Values []float64
}

// Get returns the value of metric for model id
func (t Table) Get(id ModelID, metric string) (float64, bool) {
	col := -1
	for j, name := range t.Columns {
		if name == metric {
			col = j
			break
		}
	}
	if col < 0 {
		return 0, false
	}
	for _, row := range t.Rows {
		if row.ID == id {
			return row.Values[col], true
		}
	}
	return 0, false
}

// Evaluate scores every fitted model of the last Run on the test split with
// every binary metric. Models are scored concurrently; rows keep run order.
func (c *Classifier) Evaluate() (table Table, err error) {
	defer errors.Recover(&err, "Classifier.Evaluate")

	results := c.Results()
	if len(results) == 0 {
		return Table{}, errors.NewNotFittedError("Classifier", "Evaluate")
	}

	scorers := metrics.BinaryScorers()
	for _, s := range scorers {
		table.Columns = append(table.Columns, s.Name)
	}
	yTest := mat.NewVecDense(len(c.yTest), c.yTest)
	table.Rows = make([]TableRow, len(results))
	err = parallel.ForEach(context.Background(), len(results), c.nJobs, func(_ context.Context, i int) error {
		r := results[i]
		labels := mat.NewVecDense(len(r.Pred), r.Pred)
		proba := mat.NewVecDense(len(r.Proba), r.Proba)
		row := TableRow{ID: r.ID, Model: r.Acronym, Values: make([]float64, len(scorers))}
		for j, s := range scorers {
			v, err := s.Score(yTest, labels, proba)
			if err != nil {
				return errors.Wrapf(err, "failed to compute %s for %s", s.Name, r.Acronym)
			}
			row.Values[j] = v
		}
		table.Rows[i] = row
		return nil
	})
	if err != nil {
		return Table{}, err
	}

	c.logger.Info("Evaluated models",
		log.StageKey, "evaluate",
		"models", len(table.Rows),
		log.SamplesKey, len(c.yTest),
	)
	return table, nil
}
