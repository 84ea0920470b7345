// Package linear_model implements L2-regularized logistic regression.
package linear_model

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// LogisticRegression implements logistic regression for classification.
// Binary targets fit a single model; more classes are fitted one-vs-rest.
//
// Features are standardized internally and the learned weights are mapped
// back, so coef_ and intercept_ apply to the raw features.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	maxIter      int
	tol          float64
	randomState  int64
	logger       log.Logger

	// Model parameters
	coef_      [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nIter_     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of gradient steps per binary model
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the gradient tolerance for stopping
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState sets the seed of the initial weights
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

// WithLRLogger sets the logger used for training progress
func WithLRLogger(l log.Logger) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.logger = l }
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "must be l2 or none", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	if lr.tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", lr.tol)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.ValidateXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := lr.validate(); err != nil {
		return err
	}
	if err := errors.CheckFinite("LogisticRegression.Fit", X); err != nil {
		return err
	}
	classes, err := model.ExtractClasses("LogisticRegression.Fit", y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "target needs at least two classes")
	}

	start := time.Now()
	lr.state.Reset()
	lr.classes_ = classes
	lr.nClasses_ = len(classes)

	Z, mean, scale := standardize(X)
	idx := model.ClassIndex(y, classes)
	rng := rand.New(rand.NewSource(lr.randomState))

	nModels := lr.nClasses_
	if nModels == 2 {
		nModels = 1
	}
	lr.coef_ = make([][]float64, nModels)
	lr.intercept_ = make([]float64, nModels)
	lr.nIter_ = make([]int, nModels)

	target := make([]float64, nSamples)
	for k := 0; k < nModels; k++ {
		// binary: positive is classes_[1]; OvR: positive is classes_[k]
		pos := k
		if nModels == 1 {
			pos = 1
		}
		for i, c := range idx {
			target[i] = 0
			if c == pos {
				target[i] = 1
			}
		}
		w, b, iters := lr.fitBinary(Z, target, rng)

		// back to the raw feature scale
		coef := make([]float64, nFeatures)
		for j := range coef {
			coef[j] = w[j] / scale[j]
			b -= coef[j] * mean[j]
		}
		lr.coef_[k] = coef
		lr.intercept_[k] = b
		lr.nIter_[k] = iters
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	logger := log.OrDefault(lr.logger, "linear_model.logistic")
	logger.Debug("Training completed",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, lr.nClasses_,
		"n_iter", lr.nIter_,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	for _, it := range lr.nIter_ {
		if it >= lr.maxIter {
			logger.Warn("LogisticRegression did not converge; increase max_iter", "max_iter", lr.maxIter)
			break
		}
	}
	return nil
}

// standardize returns the columns of X centered and scaled to unit variance.
// Constant columns keep a scale of 1.
func standardize(X mat.Matrix) (*mat.Dense, []float64, []float64) {
	n, p := X.Dims()
	Z := mat.DenseCopyOf(X)
	mean := make([]float64, p)
	scale := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, Z)
		m, v := stat.PopMeanVariance(col, nil)
		s := math.Sqrt(v)
		if s == 0 {
			s = 1
		}
		mean[j], scale[j] = m, s
		for i := range col {
			col[i] = (col[i] - m) / s
		}
		Z.SetCol(j, col)
	}
	return Z, mean, scale
}

// fitBinary minimizes the mean log loss plus ||w||^2 / (2 C n) by gradient
// descent on standardized features. The step is bounded by the Lipschitz
// constant of the gradient, which is at most (p+1)/4 + lambda for unit
// variance columns.
func (lr *LogisticRegression) fitBinary(Z *mat.Dense, y []float64, rng *rand.Rand) ([]float64, float64, int) {
	nSamples, nFeatures := Z.Dims()
	n := float64(nSamples)

	lambda := 0.0
	if lr.penalty == "l2" {
		lambda = 1.0 / (lr.C * n)
	}
	step := 1.0 / (0.25*float64(nFeatures+1) + lambda)

	w := make([]float64, nFeatures)
	for j := range w {
		w[j] = rng.NormFloat64() * 0.01
	}
	var b float64

	grad := make([]float64, nFeatures)
	iter := 0
	for iter < lr.maxIter {
		iter++
		for j := range grad {
			grad[j] = 0
		}
		gradB := 0.0
		for i := 0; i < nSamples; i++ {
			row := Z.RawRowView(i)
			z := b
			for j, v := range row {
				z += v * w[j]
			}
			e := sigmoid(z) - y[i]
			gradB += e
			for j, v := range row {
				grad[j] += e * v
			}
		}

		maxGrad := 0.0
		for j := range grad {
			grad[j] = grad[j]/n + lambda*w[j]
			w[j] -= step * grad[j]
			maxGrad = math.Max(maxGrad, math.Abs(grad[j]))
		}
		if lr.fitIntercept {
			gradB /= n
			b -= step * gradB
			maxGrad = math.Max(maxGrad, math.Abs(gradB))
		}
		if maxGrad < lr.tol {
			break
		}
	}
	return w, b, iter
}

func (lr *LogisticRegression) decision(op string, X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", op); err != nil {
		return nil, err
	}
	n, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression."+op, nFeatures); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite("LogisticRegression."+op, X); err != nil {
		return nil, err
	}
	out := mat.NewDense(n, len(lr.coef_), nil)
	for i := 0; i < n; i++ {
		for k, coef := range lr.coef_ {
			z := lr.intercept_[k]
			for j, c := range coef {
				z += X.At(i, j) * c
			}
			out.Set(i, k, z)
		}
	}
	return out, nil
}

// DecisionFunction returns the linear scores: one column for a binary model
// and one per class otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	return lr.decision("DecisionFunction", X)
}

// PredictProba returns class probabilities ordered as Classes(). One-vs-rest
// probabilities are normalized to sum to 1.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.decision("PredictProba", X)
	if err != nil {
		return nil, err
	}
	n, _ := scores.Dims()
	out := mat.NewDense(n, lr.nClasses_, nil)
	for i := 0; i < n; i++ {
		if lr.nClasses_ == 2 {
			p := sigmoid(scores.At(i, 0))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		sum := 0.0
		for k := 0; k < lr.nClasses_; k++ {
			p := sigmoid(scores.At(i, k))
			out.Set(i, k, p)
			sum += p
		}
		for k := 0; k < lr.nClasses_; k++ {
			out.Set(i, k, out.At(i, k)/sum)
		}
	}
	return out, nil
}

// Predict returns the most probable class of every row
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, lr.classes_), nil
}

// Score returns the mean accuracy on the given data
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0
	}
	return model.Accuracy(y, pred)
}

// Classes returns the labels seen during Fit
func (lr *LogisticRegression) Classes() []int { return lr.classes_ }

// Coef returns the weights on the raw features
func (lr *LogisticRegression) Coef() [][]float64 { return lr.coef_ }

// Intercept returns the intercepts
func (lr *LogisticRegression) Intercept() []float64 { return lr.intercept_ }

// NIter returns the gradient steps taken by every binary model
func (lr *LogisticRegression) NIter() []int { return lr.nIter_ }

// GetParams returns the hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// SetParams sets the hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			lr.penalty = v
		case "C":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be float64", value)
			}
			lr.C = v
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be bool", value)
			}
			lr.fitIntercept = v
		case "max_iter":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be int", value)
			}
			lr.maxIter = v
		case "tol":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be float64", value)
			}
			lr.tol = v
		case "random_state":
			v, ok := value.(int64)
			if !ok {
				return errors.NewValidationError(key, "must be int64", value)
			}
			lr.randomState = v
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return lr.validate()
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
