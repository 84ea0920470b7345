package lightgbm

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// LGBMClassifier implements a LightGBM-style classifier with a scikit-learn like API
type LGBMClassifier struct {
	state *model.StateManager

	// Model holds the trained trees; nil before Fit
	Model *Model

	// Hyperparameters (named after Python LightGBM)
	nEstimators     int
	learningRate    float64
	numLeaves       int
	maxDepth        int
	minChildSamples int
	minChildWeight  float64
	subsample       float64
	colsampleBytree float64
	regAlpha        float64
	regLambda       float64
	minSplitGain    float64
	maxBin          int
	randomState     int64

	logger log.Logger

	classes_  []int
	nClasses_ int
}

// Option configures an LGBMClassifier
type Option func(*LGBMClassifier)

// WithNEstimators sets the number of boosting iterations
func WithNEstimators(n int) Option { return func(c *LGBMClassifier) { c.nEstimators = n } }

// WithLearningRate sets the shrinkage applied to every tree
func WithLearningRate(lr float64) Option { return func(c *LGBMClassifier) { c.learningRate = lr } }

// WithNumLeaves sets the maximum number of leaves per tree
func WithNumLeaves(n int) Option { return func(c *LGBMClassifier) { c.numLeaves = n } }

// WithMaxDepth sets the maximum tree depth (<= 0 means no limit)
func WithMaxDepth(d int) Option { return func(c *LGBMClassifier) { c.maxDepth = d } }

// WithMinChildSamples sets the minimum number of samples in a leaf
func WithMinChildSamples(n int) Option { return func(c *LGBMClassifier) { c.minChildSamples = n } }

// WithMinChildWeight sets the minimum hessian sum in a leaf
func WithMinChildWeight(w float64) Option { return func(c *LGBMClassifier) { c.minChildWeight = w } }

// WithSubsample sets the row fraction drawn for each iteration
func WithSubsample(r float64) Option { return func(c *LGBMClassifier) { c.subsample = r } }

// WithColsampleBytree sets the feature fraction drawn for each tree
func WithColsampleBytree(r float64) Option { return func(c *LGBMClassifier) { c.colsampleBytree = r } }

// WithRegAlpha sets L1 regularization
func WithRegAlpha(a float64) Option { return func(c *LGBMClassifier) { c.regAlpha = a } }

// WithRegLambda sets L2 regularization
func WithRegLambda(l float64) Option { return func(c *LGBMClassifier) { c.regLambda = l } }

// WithMaxBin sets the maximum number of histogram bins per feature (at most 255)
func WithMaxBin(n int) Option { return func(c *LGBMClassifier) { c.maxBin = n } }

// WithRandomState sets the seed used for row and feature sampling
func WithRandomState(seed int64) Option { return func(c *LGBMClassifier) { c.randomState = seed } }

// WithLogger sets the logger used for training progress
func WithLogger(l log.Logger) Option { return func(c *LGBMClassifier) { c.logger = l } }

// NewLGBMClassifier creates a new classifier with LightGBM's default parameters
func NewLGBMClassifier(opts ...Option) *LGBMClassifier {
	c := &LGBMClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		learningRate:    0.1,
		numLeaves:       31,
		maxDepth:        -1,
		minChildSamples: 20,
		minChildWeight:  1e-3,
		subsample:       1.0,
		colsampleBytree: 1.0,
		maxBin:          maxBinLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LGBMClassifier) validateParams() error {
	switch {
	case c.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", c.nEstimators)
	case c.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", c.learningRate)
	case c.numLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", c.numLeaves)
	case c.subsample <= 0 || c.subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", c.subsample)
	case c.colsampleBytree <= 0 || c.colsampleBytree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", c.colsampleBytree)
	case c.regAlpha < 0 || c.regLambda < 0:
		return errors.NewValidationError("reg_alpha/reg_lambda", "must be non-negative",
			fmt.Sprintf("%g/%g", c.regAlpha, c.regLambda))
	case c.maxBin < 2 || c.maxBin > maxBinLimit:
		return errors.NewValidationError("max_bin", fmt.Sprintf("must be in [2, %d]", maxBinLimit), c.maxBin)
	}
	return nil
}

// Fit trains the classifier. X may contain NaN.
func (c *LGBMClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMClassifier.Fit")

	nSamples, nFeatures, err := model.ValidateXY("LGBMClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := c.validateParams(); err != nil {
		return err
	}
	if err := errors.CheckNoInf("LGBMClassifier.Fit", X); err != nil {
		return err
	}
	classes, err := model.ExtractClasses("LGBMClassifier.Fit", y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.NewValueError("LGBMClassifier.Fit", "target must contain at least two classes")
	}
	labels := model.ClassIndex(y, classes)

	objName := ObjectiveBinary
	if len(classes) > 2 {
		objName = ObjectiveMulticlass
	}
	obj, err := NewObjective(objName, len(classes))
	if err != nil {
		return err
	}

	logger := log.OrDefault(c.logger, "lightgbm.classifier")
	start := time.Now()
	logger.Debug("Training LGBMClassifier",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
		"objective", objName,
	)

	c.state.Reset()
	m := c.boost(X, labels, len(classes), obj, logger)
	m.Classes = classes

	c.Model = m
	c.classes_ = classes
	c.nClasses_ = len(classes)
	c.state.SetDimensions(nFeatures, nSamples)
	c.state.SetFitted()

	logger.Debug("Training completed",
		log.IterationKey, m.NumIterations(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// boost runs the boosting iterations
func (c *LGBMClassifier) boost(X mat.Matrix, labels []int, nClasses int, obj ObjectiveFunction, logger log.Logger) *Model {
	n, nFeatures := X.Dims()
	k := obj.NumTrees()
	data := newBinnedData(X, c.maxBin)
	xs := make([][]float64, n)
	for i := range xs {
		xs[i] = mat.Row(nil, i, X)
	}
	rng := rand.New(rand.NewSource(c.randomState))

	m := &Model{
		Objective:         obj.Name(),
		NumClass:          nClasses,
		NumFeatures:       nFeatures,
		TreesPerIteration: k,
		InitScores:        obj.InitScores(labels),
	}

	scores := make([]float64, n*k)
	for i := 0; i < n; i++ {
		copy(scores[i*k:(i+1)*k], m.InitScores)
	}
	grad := make([]float64, n*k)
	hess := make([]float64, n*k)
	classGrad := make([]float64, n)
	classHess := make([]float64, n)

	params := TrainingParams{
		LearningRate:   c.learningRate,
		NumLeaves:      c.numLeaves,
		MaxDepth:       c.maxDepth,
		MinDataInLeaf:  c.minChildSamples,
		MinSumHessian:  c.minChildWeight,
		Lambda:         c.regLambda,
		Alpha:          c.regAlpha,
		MinGainToSplit: c.minSplitGain,
	}

	allRows := make([]int, n)
	for i := range allRows {
		allRows[i] = i
	}
	allFeatures := make([]int, nFeatures)
	for j := range allFeatures {
		allFeatures[j] = j
	}

	for iter := 0; iter < c.nEstimators; iter++ {
		obj.Gradients(scores, labels, grad, hess)
		rows := c.bagRows(rng, allRows)

		iterTrees := make([]Tree, k)
		split := false
		for cls := 0; cls < k; cls++ {
			for i := 0; i < n; i++ {
				classGrad[i] = grad[i*k+cls]
				classHess[i] = hess[i*k+cls]
			}
			learner := &treeLearner{
				params:   params,
				data:     data,
				features: c.sampleFeatures(rng, allFeatures),
				grad:     classGrad,
				hess:     classHess,
			}
			iterTrees[cls] = learner.train(rows)
			if len(iterTrees[cls].Nodes) > 1 {
				split = true
			}
		}
		if !split {
			logger.Debug("Stopped training because no leaf meets the split requirements",
				log.IterationKey, iter)
			break
		}

		// out-of-bag rows are scored too
		for cls := range iterTrees {
			for i := 0; i < n; i++ {
				scores[i*k+cls] += iterTrees[cls].Predict(xs[i])
			}
		}
		m.Trees = append(m.Trees, iterTrees...)
	}
	return m
}

// bagRows draws the rows used by one iteration
func (c *LGBMClassifier) bagRows(rng *rand.Rand, all []int) []int {
	if c.subsample >= 1 {
		return all
	}
	size := int(math.Max(1, math.Floor(float64(len(all))*c.subsample)))
	perm := rng.Perm(len(all))[:size]
	return perm
}

// sampleFeatures draws the features available to one tree
func (c *LGBMClassifier) sampleFeatures(rng *rand.Rand, all []int) []int {
	if c.colsampleBytree >= 1 {
		return all
	}
	size := int(math.Max(1, math.Round(float64(len(all))*c.colsampleBytree)))
	return rng.Perm(len(all))[:size]
}

func (c *LGBMClassifier) checkPredict(op string, X mat.Matrix) error {
	if err := c.state.RequireFitted("LGBMClassifier", op); err != nil {
		return err
	}
	_, cols := X.Dims()
	if err := c.state.RequireFeatures("LGBMClassifier."+op, cols); err != nil {
		return err
	}
	return errors.CheckNoInf("LGBMClassifier."+op, X)
}

// DecisionFunction returns the raw scores: one column for binary targets,
// one per class otherwise.
func (c *LGBMClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("DecisionFunction", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	k := c.Model.TreesPerIteration
	out := mat.NewDense(rows, k, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, c.Model.RawScores(x))
	}
	return out, nil
}

// PredictProba returns class probabilities with one column per class
func (c *LGBMClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	obj, err := NewObjective(c.Model.Objective, c.nClasses_)
	if err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, c.nClasses_, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, obj.Transform(c.Model.RawScores(x)))
	}
	return out, nil
}

// Predict returns the most probable class for each sample
func (c *LGBMClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, c.classes_), nil
}

// Score returns the mean accuracy on the given data
func (c *LGBMClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := c.Predict(X)
	if err != nil {
		return 0
	}
	return model.Accuracy(y, pred)
}

// Classes returns the class labels seen during Fit
func (c *LGBMClassifier) Classes() []int { return c.classes_ }

// GetFeatureImportance returns the split count ("split") or total gain
// ("gain") of each feature.
func (c *LGBMClassifier) GetFeatureImportance(importanceType string) []float64 {
	if c.Model == nil {
		return nil
	}
	return c.Model.FeatureImportance(importanceType)
}

// GetFeatureImportances returns gain importances normalized to sum to one
func (c *LGBMClassifier) GetFeatureImportances() []float64 {
	imp := c.GetFeatureImportance("gain")
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if sum > 0 {
		for j := range imp {
			imp[j] /= sum
		}
	}
	return imp
}

// SaveModel writes the fitted model as JSON
func (c *LGBMClassifier) SaveModel(path string) error {
	if err := c.state.RequireFitted("LGBMClassifier", "SaveModel"); err != nil {
		return err
	}
	return c.Model.SaveToFile(path)
}

// LoadModel restores a model written by SaveModel
func (c *LGBMClassifier) LoadModel(path string) error {
	m, err := LoadFromFile(path)
	if err != nil {
		return err
	}
	c.Model = m
	c.classes_ = m.Classes
	c.nClasses_ = len(m.Classes)
	c.state.SetDimensions(m.NumFeatures, 0)
	c.state.SetFitted()
	return nil
}

// GetParams returns the hyperparameters
func (c *LGBMClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      c.nEstimators,
		"learning_rate":     c.learningRate,
		"num_leaves":        c.numLeaves,
		"max_depth":         c.maxDepth,
		"min_child_samples": c.minChildSamples,
		"min_child_weight":  c.minChildWeight,
		"subsample":         c.subsample,
		"colsample_bytree":  c.colsampleBytree,
		"reg_alpha":         c.regAlpha,
		"reg_lambda":        c.regLambda,
		"min_split_gain":    c.minSplitGain,
		"max_bin":           c.maxBin,
		"random_state":      c.randomState,
	}
}

// SetParams sets hyperparameters by their Python LightGBM names
func (c *LGBMClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			c.nEstimators, err = toInt(key, value)
		case "num_leaves":
			c.numLeaves, err = toInt(key, value)
		case "max_depth":
			c.maxDepth, err = toInt(key, value)
		case "min_child_samples":
			c.minChildSamples, err = toInt(key, value)
		case "max_bin":
			c.maxBin, err = toInt(key, value)
		case "random_state":
			var seed int
			seed, err = toInt(key, value)
			c.randomState = int64(seed)
		case "learning_rate":
			c.learningRate, err = toFloat(key, value)
		case "min_child_weight":
			c.minChildWeight, err = toFloat(key, value)
		case "subsample":
			c.subsample, err = toFloat(key, value)
		case "colsample_bytree":
			c.colsampleBytree, err = toFloat(key, value)
		case "reg_alpha":
			c.regAlpha, err = toFloat(key, value)
		case "reg_lambda":
			c.regLambda, err = toFloat(key, value)
		case "min_split_gain":
			c.minSplitGain, err = toFloat(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func toInt(key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(key, "must be an integer", v)
}

func toFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(key, "must be a number", v)
}
