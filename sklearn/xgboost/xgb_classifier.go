// Package xgboost provides a pure Go gradient boosting classifier in the
// style of XGBoost.
//
// Trees are grown depth-wise with the exact greedy algorithm: every distinct
// value of every feature is a split candidate, scored with the second order
// gain
//
//	G_L^2/(H_L+lambda) + G_R^2/(H_R+lambda) - G^2/(H+lambda)
//
// and a split is kept only if the gain exceeds gamma. Rows with a missing
// value (NaN) are tried on both sides of each candidate and the better side
// becomes the node's default direction.
//
//	clf := xgboost.NewXGBClassifier(xgboost.WithMaxDepth(6))
//	if err := clf.Fit(X, y); err != nil {
//	    return err
//	}
//	proba, _ := clf.PredictProba(XTest)
package xgboost

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// Objective names
const (
	ObjectiveBinaryLogistic = "binary:logistic"
	ObjectiveMultiSoftprob  = "multi:softprob"
)

// XGBClassifier is a second order gradient boosting classifier
type XGBClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	nEstimators     int
	learningRate    float64
	maxDepth        int
	minChildWeight  float64
	gamma           float64
	regLambda       float64
	regAlpha        float64
	subsample       float64
	colsampleBytree float64
	randomState     int64

	logger log.Logger

	// 学習済みパラメータ
	booster   *Booster
	classes_  []int
	nClasses_ int
}

// Booster is the trained ensemble.
// Trees are stored round-major with TreesPerRound trees per boosting round.
type Booster struct {
	Objective     string    `json:"objective"`
	Classes       []int     `json:"classes"`
	NumFeatures   int       `json:"num_features"`
	TreesPerRound int       `json:"trees_per_round"`
	BaseMargin    []float64 `json:"base_margin"`
	Trees         []Tree    `json:"trees"`
}

// Margins returns the raw scores of one sample
func (b *Booster) Margins(x []float64) []float64 {
	out := append([]float64(nil), b.BaseMargin...)
	for t := range b.Trees {
		out[t%b.TreesPerRound] += b.Trees[t].Predict(x)
	}
	return out
}

// Option は XGBClassifier の設定関数
type Option func(*XGBClassifier)

// WithNEstimators sets the number of boosting rounds
func WithNEstimators(n int) Option { return func(c *XGBClassifier) { c.nEstimators = n } }

// WithLearningRate sets eta
func WithLearningRate(eta float64) Option { return func(c *XGBClassifier) { c.learningRate = eta } }

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(d int) Option { return func(c *XGBClassifier) { c.maxDepth = d } }

// WithMinChildWeight sets the minimum hessian sum of a child
func WithMinChildWeight(w float64) Option { return func(c *XGBClassifier) { c.minChildWeight = w } }

// WithGamma sets the minimum loss reduction required to split
func WithGamma(g float64) Option { return func(c *XGBClassifier) { c.gamma = g } }

// WithRegLambda sets L2 regularization on leaf weights
func WithRegLambda(l float64) Option { return func(c *XGBClassifier) { c.regLambda = l } }

// WithRegAlpha sets L1 regularization on leaf weights
func WithRegAlpha(a float64) Option { return func(c *XGBClassifier) { c.regAlpha = a } }

// WithSubsample sets the row fraction drawn for each round
func WithSubsample(r float64) Option { return func(c *XGBClassifier) { c.subsample = r } }

// WithColsampleBytree sets the feature fraction drawn for each tree
func WithColsampleBytree(r float64) Option { return func(c *XGBClassifier) { c.colsampleBytree = r } }

// WithRandomState sets the sampling seed
func WithRandomState(seed int64) Option { return func(c *XGBClassifier) { c.randomState = seed } }

// WithLogger sets the logger used for training progress
func WithLogger(l log.Logger) Option { return func(c *XGBClassifier) { c.logger = l } }

// NewXGBClassifier creates a classifier with XGBoost's default parameters
func NewXGBClassifier(opts ...Option) *XGBClassifier {
	c := &XGBClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		learningRate:    0.3,
		maxDepth:        6,
		minChildWeight:  1,
		regLambda:       1,
		subsample:       1,
		colsampleBytree: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *XGBClassifier) validateParams() error {
	switch {
	case c.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", c.nEstimators)
	case c.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", c.learningRate)
	case c.maxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", c.maxDepth)
	case c.minChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", c.minChildWeight)
	case c.gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", c.gamma)
	case c.regLambda < 0 || c.regAlpha < 0:
		return errors.NewValidationError("reg_lambda/reg_alpha", "must be non-negative",
			fmt.Sprintf("%g/%g", c.regLambda, c.regAlpha))
	case c.subsample <= 0 || c.subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", c.subsample)
	case c.colsampleBytree <= 0 || c.colsampleBytree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", c.colsampleBytree)
	}
	return nil
}

// Fit は勾配ブースティングでモデルを学習する。X は NaN を含んでよい。
func (c *XGBClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBClassifier.Fit")

	nSamples, nFeatures, err := model.ValidateXY("XGBClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := c.validateParams(); err != nil {
		return err
	}
	if err := errors.CheckNoInf("XGBClassifier.Fit", X); err != nil {
		return err
	}
	classes, err := model.ExtractClasses("XGBClassifier.Fit", y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.NewValueError("XGBClassifier.Fit", "target must contain at least two classes")
	}
	labels := model.ClassIndex(y, classes)

	logger := log.OrDefault(c.logger, "xgboost.classifier")
	start := time.Now()

	c.state.Reset()
	b := c.train(X, labels, classes)
	c.booster = b
	c.classes_ = classes
	c.nClasses_ = len(classes)
	c.state.SetDimensions(nFeatures, nSamples)
	c.state.SetFitted()

	logger.Debug("Training completed",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"objective", b.Objective,
		"trees", len(b.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// train runs the boosting rounds
func (c *XGBClassifier) train(X mat.Matrix, labels []int, classes []int) *Booster {
	n, nFeatures := X.Dims()
	k := 1
	objective := ObjectiveBinaryLogistic
	if len(classes) > 2 {
		k = len(classes)
		objective = ObjectiveMultiSoftprob
	}
	b := &Booster{
		Objective:     objective,
		Classes:       classes,
		NumFeatures:   nFeatures,
		TreesPerRound: k,
		// base_score 0.5 の logit は 0
		BaseMargin: make([]float64, k),
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	sorted := presort(rows, nFeatures)
	rng := rand.New(rand.NewSource(c.randomState))

	margins := make([]float64, n*k)
	grad := make([]float64, n)
	hess := make([]float64, n)
	params := treeParams{
		eta:            c.learningRate,
		maxDepth:       c.maxDepth,
		minChildWeight: c.minChildWeight,
		gamma:          c.gamma,
		lambda:         c.regLambda,
		alpha:          c.regAlpha,
	}

	allFeatures := make([]int, nFeatures)
	for j := range allFeatures {
		allFeatures[j] = j
	}

	for round := 0; round < c.nEstimators; round++ {
		sample := c.sampleRows(rng, n)
		roundTrees := make([]Tree, k)
		for cls := 0; cls < k; cls++ {
			c.gradients(margins, labels, k, cls, grad, hess)
			g := &grower{
				params:   params,
				X:        rows,
				sorted:   sorted,
				features: c.sampleFeatures(rng, allFeatures),
				grad:     grad,
				hess:     hess,
				inNode:   make([]bool, n),
			}
			g.grow(sample, 0)
			roundTrees[cls] = g.tree
		}
		for cls, t := range roundTrees {
			for i := 0; i < n; i++ {
				margins[i*k+cls] += t.Predict(rows[i])
			}
		}
		b.Trees = append(b.Trees, roundTrees...)
	}
	return b
}

// gradients fills grad and hess for output cls from the current margins
func (c *XGBClassifier) gradients(margins []float64, labels []int, k, cls int, grad, hess []float64) {
	const eps = 1e-16
	for i, l := range labels {
		if k == 1 {
			p := sigmoid(margins[i])
			grad[i] = p - float64(l)
			hess[i] = math.Max(p*(1-p), eps)
			continue
		}
		p := softmax(margins[i*k : (i+1)*k])[cls]
		target := 0.0
		if l == cls {
			target = 1
		}
		grad[i] = p - target
		hess[i] = math.Max(2*p*(1-p), eps)
	}
}

// sampleRows draws the rows used by one round (without replacement)
func (c *XGBClassifier) sampleRows(rng *rand.Rand, n int) []int {
	if c.subsample >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	size := int(math.Max(1, math.Floor(float64(n)*c.subsample)))
	return rng.Perm(n)[:size]
}

// sampleFeatures draws the features available to one tree
func (c *XGBClassifier) sampleFeatures(rng *rand.Rand, all []int) []int {
	if c.colsampleBytree >= 1 {
		return all
	}
	size := int(math.Max(1, math.Floor(float64(len(all))*c.colsampleBytree)))
	return rng.Perm(len(all))[:size]
}

func sigmoid(x float64) float64 {
	return 1 / (1 + errors.StabilizeExp(-x))
}

func softmax(raw []float64) []float64 {
	lse := errors.LogSumExp(raw)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = math.Exp(v - lse)
	}
	return out
}

func (c *XGBClassifier) checkPredict(op string, X mat.Matrix) error {
	if err := c.state.RequireFitted("XGBClassifier", op); err != nil {
		return err
	}
	_, cols := X.Dims()
	if err := c.state.RequireFeatures("XGBClassifier."+op, cols); err != nil {
		return err
	}
	return errors.CheckNoInf("XGBClassifier."+op, X)
}

// PredictMargin returns the untransformed scores: one column for binary
// targets, one per class otherwise.
func (c *XGBClassifier) PredictMargin(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("PredictMargin", X); err != nil {
		return nil, err
	}
	r, cols := X.Dims()
	out := mat.NewDense(r, c.booster.TreesPerRound, nil)
	x := make([]float64, cols)
	for i := 0; i < r; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, c.booster.Margins(x))
	}
	return out, nil
}

// PredictProba は各クラスの確率を返す
func (c *XGBClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	r, cols := X.Dims()
	out := mat.NewDense(r, c.nClasses_, nil)
	x := make([]float64, cols)
	for i := 0; i < r; i++ {
		mat.Row(x, i, X)
		m := c.booster.Margins(x)
		if c.booster.TreesPerRound == 1 {
			p := sigmoid(m[0])
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		out.SetRow(i, softmax(m))
	}
	return out, nil
}

// Predict は確率が最大のクラスを返す
func (c *XGBClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, c.classes_), nil
}

// Score は正解率を返す
func (c *XGBClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := c.Predict(X)
	if err != nil {
		return 0
	}
	return model.Accuracy(y, pred)
}

// Classes は学習時のクラスを返す
func (c *XGBClassifier) Classes() []int { return c.classes_ }

// GetScore returns the importance of every feature: "weight" (number of
// splits), "gain" (average gain) or "cover" (average hessian sum).
func (c *XGBClassifier) GetScore(importanceType string) ([]float64, error) {
	if err := c.state.RequireFitted("XGBClassifier", "GetScore"); err != nil {
		return nil, err
	}
	if importanceType != "weight" && importanceType != "gain" && importanceType != "cover" {
		return nil, errors.NewValidationError("importance_type", "must be weight, gain or cover", importanceType)
	}
	nf := c.booster.NumFeatures
	splits := make([]float64, nf)
	total := make([]float64, nf)
	for _, t := range c.booster.Trees {
		for _, n := range t {
			if n.IsLeaf() {
				continue
			}
			splits[n.Split]++
			switch importanceType {
			case "gain":
				total[n.Split] += n.Gain
			case "cover":
				total[n.Split] += n.Cover
			}
		}
	}
	if importanceType == "weight" {
		return splits, nil
	}
	for j := range total {
		if splits[j] > 0 {
			total[j] /= splits[j]
		}
	}
	return total, nil
}

// GetFeatureImportances は平均ゲインを合計1に正規化した特徴量重要度を返す
func (c *XGBClassifier) GetFeatureImportances() []float64 {
	imp, err := c.GetScore("gain")
	if err != nil {
		return nil
	}
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

// SaveModel は学習済みモデルを JSON で書き出す
func (c *XGBClassifier) SaveModel(path string) error {
	if err := c.state.RequireFitted("XGBClassifier", "SaveModel"); err != nil {
		return err
	}
	data, err := json.Marshal(c.booster)
	if err != nil {
		return errors.Wrap(err, "failed to encode booster")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write model to %s", path)
	}
	return nil
}

// LoadModel は SaveModel で書き出したモデルを読み込む
func (c *XGBClassifier) LoadModel(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read model from %s", path)
	}
	var b Booster
	if err := json.Unmarshal(data, &b); err != nil {
		return errors.Wrap(err, "failed to decode booster")
	}
	if len(b.Classes) < 2 || b.TreesPerRound < 1 || len(b.BaseMargin) != b.TreesPerRound {
		return errors.Newf("invalid booster: %d classes, %d trees per round, %d base margins",
			len(b.Classes), b.TreesPerRound, len(b.BaseMargin))
	}
	c.booster = &b
	c.classes_ = b.Classes
	c.nClasses_ = len(b.Classes)
	c.state.SetDimensions(b.NumFeatures, 0)
	c.state.SetFitted()
	return nil
}

// GetParams はハイパーパラメータを返す
func (c *XGBClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     c.nEstimators,
		"learning_rate":    c.learningRate,
		"max_depth":        c.maxDepth,
		"min_child_weight": c.minChildWeight,
		"gamma":            c.gamma,
		"reg_lambda":       c.regLambda,
		"reg_alpha":        c.regAlpha,
		"subsample":        c.subsample,
		"colsample_bytree": c.colsampleBytree,
		"random_state":     c.randomState,
	}
}

// SetParams はハイパーパラメータを設定する
func (c *XGBClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators", "max_depth", "random_state":
			v, ok := asInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			switch key {
			case "n_estimators":
				c.nEstimators = v
			case "max_depth":
				c.maxDepth = v
			default:
				c.randomState = int64(v)
			}
		case "learning_rate", "min_child_weight", "gamma", "reg_lambda", "reg_alpha", "subsample", "colsample_bytree":
			v, ok := asFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			switch key {
			case "learning_rate":
				c.learningRate = v
			case "min_child_weight":
				c.minChildWeight = v
			case "gamma":
				c.gamma = v
			case "reg_lambda":
				c.regLambda = v
			case "reg_alpha":
				c.regAlpha = v
			case "subsample":
				c.subsample = v
			default:
				c.colsampleBytree = v
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

func asInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), x == math.Trunc(x)
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}
