package automl

import (
	"context"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/metrics"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// ModelResult holds one model of a Run: the fitted estimator and its test
// predictions, or the error that made it fail.
type ModelResult struct {
	ID        ModelID
	Acronym   string
	Name      string
	Estimator model.Classifier
	// Score is the value of the run metric on the test split
	Score float64
	// Proba is the positive-class probability of every test row
	Proba []float64
	// Pred is the predicted label code of every test row
	Pred    []float64
	FitTime time.Duration
	Err     error
}

// OK reports whether the model was fitted and scored
func (r *ModelResult) OK() bool { return r.Err == nil }

// Run fits every model on the training split and scores it on the test split
// with metric. A model that fails is logged and kept in Results with its
// error; Run fails only when no model succeeds.
func (c *Classifier) Run(ctx context.Context, models []ModelID, metric string) (err error) {
	defer errors.Recover(&err, "Classifier.Run")

	if len(models) == 0 {
		return errors.NewValueError("Run", "no models to fit")
	}
	scorer, err := metrics.GetScorer(metric)
	if err != nil {
		return err
	}
	if names := c.categorical(); len(names) > 0 {
		return errors.Newf("categorical columns remain; encode the data first: %s", strings.Join(names, ", "))
	}
	if len(c.train) == 0 {
		return errors.NewValueError("Run", "no feature columns left")
	}
	if len(c.mapping) != 2 {
		return errors.NewValueError("Run", "target must have exactly two classes")
	}

	ids, err := dedupe(models)
	if err != nil {
		return err
	}

	all := allIdx(len(c.train))
	xTrain := matrix(c.train, all)
	xTest := matrix(c.test, all)
	yTrain := mat.NewDense(len(c.yTrain), 1, c.yTrain)
	yTest := mat.NewVecDense(len(c.yTest), c.yTest)

	missing := c.hasMissing()
	opts := ModelOptions{
		RandomState: c.randomState,
		NJobs:       c.nJobs,
		NEstimators: c.nEstimators,
		Logger:      c.logger,
	}

	c.metric = scorer.Name
	c.results = c.results[:0]
	var firstErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "run cancelled")
		}
		spec, _ := id.Spec()
		logger := c.logger.With(log.ModelIDKey, string(id), log.ModelNameKey, spec.Name)
		if missing && !spec.HandlesMissing {
			logger.Warn("Data contains missing values; impute before fitting this model")
		}

		res := c.fitOne(spec, opts, xTrain, yTrain, xTest, yTest, scorer)
		c.results = append(c.results, res)
		if res.Err != nil {
			logger.Error("Model failed", "error", res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		logger.Info("Fitted model",
			log.StageKey, "fit",
			log.MetricKey, scorer.Name,
			log.ScoreKey, res.Score,
			log.DurationMsKey, res.FitTime.Milliseconds(),
		)
	}

	if len(c.Results()) == 0 {
		return errors.Wrap(firstErr, "all models failed")
	}
	c.branch = append(c.branch, "Run(metric="+scorer.Name+"): "+strings.Join(idStrings(ids), ", "))
	return nil
}

func (c *Classifier) fitOne(spec ModelSpec, opts ModelOptions, xTrain, yTrain, xTest mat.Matrix, yTest *mat.VecDense, scorer metrics.Scorer) (res *ModelResult) {
	res = &ModelResult{ID: spec.ID, Acronym: spec.Acronym, Name: spec.Name}
	defer errors.Recover(&res.Err, "fit "+spec.Acronym)

	est := spec.New(opts)
	start := time.Now()
	if err := est.Fit(xTrain, yTrain); err != nil {
		res.Err = errors.Wrapf(err, "failed to fit %s", spec.Acronym)
		return res
	}
	res.FitTime = time.Since(start)
	res.Estimator = est

	proba, err := est.PredictProba(xTest)
	if err != nil {
		res.Err = errors.Wrapf(err, "failed to predict with %s", spec.Acronym)
		return res
	}
	pred, err := est.Predict(xTest)
	if err != nil {
		res.Err = errors.Wrapf(err, "failed to predict with %s", spec.Acronym)
		return res
	}
	res.Proba = positiveProba(proba, est.Classes())
	res.Pred = mat.Col(nil, 0, pred)

	res.Score, err = scorer.Score(yTest, mat.NewVecDense(len(res.Pred), res.Pred), mat.NewVecDense(len(res.Proba), res.Proba))
	if err != nil {
		res.Err = errors.Wrapf(err, "failed to score %s", spec.Acronym)
	}
	return res
}

// positiveProba extracts the probability of label 1. A model that only saw
// one class during training gives 0 or 1 everywhere.
func positiveProba(proba mat.Matrix, classes []int) []float64 {
	n, _ := proba.Dims()
	out := make([]float64, n)
	for k, cls := range classes {
		if cls == 1 {
			for i := range out {
				out[i] = proba.At(i, k)
			}
			return out
		}
	}
	return out
}

func dedupe(models []ModelID) ([]ModelID, error) {
	seen := make(map[ModelID]bool, len(models))
	var ids []ModelID
	for _, id := range models {
		if _, ok := id.Spec(); !ok {
			return nil, errors.NewValidationError("model", "unknown model", string(id))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func idStrings(ids []ModelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Metric returns the canonical name of the metric of the last Run
func (c *Classifier) Metric() string { return c.metric }

// Results returns the models of the last Run that were fitted successfully,
// in run order.
func (c *Classifier) Results() []*ModelResult {
	var out []*ModelResult
	for _, r := range c.results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the models of the last Run that failed
func (c *Classifier) Failed() []*ModelResult {
	var out []*ModelResult
	for _, r := range c.results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Winner returns the model with the best metric score. Ties go to the model
// that ran first.
func (c *Classifier) Winner() (*ModelResult, error) {
	var best *ModelResult
	for _, r := range c.Results() {
		if best == nil || r.Score > best.Score {
			best = r
		}
	}
	if best == nil {
		return nil, errors.NewNotFittedError("Classifier", "Winner")
	}
	return best, nil
}
