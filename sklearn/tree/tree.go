// Package tree implements CART decision tree classifiers.
//
// DecisionTreeClassifier is used on its own and as the base learner of the
// forests in sklearn/ensemble, which grow trees on row subsets through
// FitSubset so that every tree shares the forest's class set.
package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Splitter strategies.
const (
	SplitterBest   = "best"
	SplitterRandom = "random"
)

// node は木の1ノード。葉では feature = -1。
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // クラス確率
	nSamples  int
	impurity  float64
	depth     int
}

func (n *node) isLeaf() bool { return n.feature < 0 }

// DecisionTreeClassifier は CART 決定木分類器
type DecisionTreeClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	criterion       string
	splitter        string
	maxDepth        int // 0 以下は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 以下は全特徴量
	randomState     int64

	// 学習済みパラメータ
	nodes               []node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	rng                 *rand.Rand
}

// Option は DecisionTreeClassifier の設定関数
type Option func(*DecisionTreeClassifier)

// WithCriterion は不純度の指標 ("gini" または "entropy") を設定する
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithSplitter は分割点の探索方法 ("best" または "random") を設定する
func WithSplitter(splitter string) Option {
	return func(dt *DecisionTreeClassifier) { dt.splitter = splitter }
}

// WithMaxDepth は木の最大深さを設定する (0 以下は無制限)
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures は各分割で検討する特徴量の数を設定する (0 以下は全特徴量)
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier は新しい決定木分類器を作成する
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		splitter:        SplitterBest,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validateParams() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.splitter != SplitterBest && dt.splitter != SplitterRandom {
		return errors.NewValidationError("splitter", "must be best or random", dt.splitter)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit は訓練データから決定木を構築する
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, _, err := model.ValidateXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckFinite("DecisionTreeClassifier.Fit", X); err != nil {
		return err
	}
	classes, err := model.ExtractClasses("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}
	rows := make([]int, nSamples)
	for i := range rows {
		rows[i] = i
	}
	return dt.FitSubset(X, y, rows, classes)
}

// FitSubset は rows で指定した行 (重複可) だけを使って木を構築する。
// classes は確率ベクトルの列順を決める。X は有限値であることを前提とする。
func (dt *DecisionTreeClassifier) FitSubset(X, y mat.Matrix, rows []int, classes []int) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	_, nFeatures := X.Dims()

	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = make([]float64, nFeatures)
	dt.nodes = dt.nodes[:0]
	dt.rng = rand.New(rand.NewSource(dt.randomState))

	b := &builder{
		dt:     dt,
		X:      X,
		labels: model.ClassIndex(y, classes),
		total:  float64(len(rows)),
	}
	b.build(append([]int(nil), rows...), 0)

	sum := 0.0
	for _, v := range dt.featureImportances_ {
		sum += v
	}
	if sum > 0 {
		for j := range dt.featureImportances_ {
			dt.featureImportances_[j] /= sum
		}
	}

	dt.state.SetDimensions(nFeatures, len(rows))
	dt.state.SetFitted()
	return nil
}

// builder は木の成長中の一時状態を保持する
type builder struct {
	dt     *DecisionTreeClassifier
	X      mat.Matrix
	labels []int
	total  float64
}

func (b *builder) counts(rows []int) []float64 {
	c := make([]float64, b.dt.nClasses_)
	for _, i := range rows {
		c[b.labels[i]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	if b.dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, c := range counts {
		p := c / n
		imp -= p * p
	}
	return imp
}

// build はノードを追加し、そのインデックスを返す
func (b *builder) build(rows []int, depth int) int {
	dt := b.dt
	counts := b.counts(rows)
	n := float64(len(rows))
	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / n
	}
	imp := b.impurity(counts, n)

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{
		feature:  -1,
		value:    value,
		nSamples: len(rows),
		impurity: imp,
		depth:    depth,
	})

	if imp <= 1e-12 ||
		len(rows) < dt.minSamplesSplit ||
		len(rows) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		return id
	}

	s, ok := b.bestSplit(rows, counts, imp)
	if !ok {
		return id
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(rows)-s.nLeft)
	for _, i := range rows {
		if b.X.At(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	dt.featureImportances_[s.feature] += n / b.total * s.decrease
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	nd := &dt.nodes[id]
	nd.feature = s.feature
	nd.threshold = s.threshold
	nd.left = l
	nd.right = r
	return id
}

type split struct {
	feature   int
	threshold float64
	decrease  float64
	nLeft     int
}

// bestSplit は候補特徴量の中で不純度減少が最大の分割を探す
func (b *builder) bestSplit(rows []int, parentCounts []float64, parentImp float64) (split, bool) {
	dt := b.dt
	maxFeatures := dt.maxFeatures
	if maxFeatures <= 0 || maxFeatures > dt.nFeatures_ {
		maxFeatures = dt.nFeatures_
	}

	best := split{decrease: math.Inf(-1)}
	found := false
	visited := 0
	vals := make([]float64, len(rows))
	for _, f := range dt.rng.Perm(dt.nFeatures_) {
		if visited >= maxFeatures && found {
			break
		}
		for k, i := range rows {
			vals[k] = b.X.At(i, f)
		}
		var s split
		var ok bool
		if dt.splitter == SplitterRandom {
			s, ok = b.randomSplitOn(f, rows, vals, parentCounts, parentImp)
		} else {
			s, ok = b.bestSplitOn(f, rows, vals, parentCounts, parentImp)
		}
		if !ok {
			// 定数特徴量は候補数に数えない
			continue
		}
		visited++
		if !found || s.decrease > best.decrease {
			best, found = s, true
		}
	}
	return best, found
}

// bestSplitOn は特徴量 f の全ての分割点を走査する
func (b *builder) bestSplitOn(f int, rows []int, vals []float64, parentCounts []float64, parentImp float64) (split, bool) {
	dt := b.dt
	order := make([]int, len(rows))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, c int) bool { return vals[order[a]] < vals[order[c]] })
	if vals[order[0]] == vals[order[len(order)-1]] {
		return split{}, false
	}

	n := float64(len(rows))
	leftCounts := make([]float64, len(parentCounts))
	rightCounts := append([]float64(nil), parentCounts...)
	best := split{feature: f, decrease: math.Inf(-1)}
	found := false
	for k := 0; k < len(order)-1; k++ {
		lbl := b.labels[rows[order[k]]]
		leftCounts[lbl]++
		rightCounts[lbl]--
		cur, next := vals[order[k]], vals[order[k+1]]
		if cur == next {
			continue
		}
		nLeft := k + 1
		if nLeft < dt.minSamplesLeaf || len(rows)-nLeft < dt.minSamplesLeaf {
			continue
		}
		nl, nr := float64(nLeft), n-float64(nLeft)
		dec := parentImp - nl/n*b.impurity(leftCounts, nl) - nr/n*b.impurity(rightCounts, nr)
		if dec > best.decrease {
			threshold := cur + (next-cur)/2
			if threshold == next {
				threshold = cur
			}
			best = split{feature: f, threshold: threshold, decrease: dec, nLeft: nLeft}
			found = true
		}
	}
	return best, found
}

// randomSplitOn は特徴量 f の範囲から一様に選んだ1つの閾値を評価する
func (b *builder) randomSplitOn(f int, rows []int, vals []float64, parentCounts []float64, parentImp float64) (split, bool) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return split{}, false
	}
	threshold := lo + b.dt.rng.Float64()*(hi-lo)
	if threshold >= hi {
		threshold = lo
	}

	leftCounts := make([]float64, len(parentCounts))
	nLeft := 0
	for k, v := range vals {
		if v <= threshold {
			leftCounts[b.labels[rows[k]]]++
			nLeft++
		}
	}
	if nLeft < b.dt.minSamplesLeaf || len(rows)-nLeft < b.dt.minSamplesLeaf {
		return split{}, false
	}
	rightCounts := make([]float64, len(parentCounts))
	for k := range parentCounts {
		rightCounts[k] = parentCounts[k] - leftCounts[k]
	}
	n := float64(len(rows))
	nl, nr := float64(nLeft), n-float64(nLeft)
	dec := parentImp - nl/n*b.impurity(leftCounts, nl) - nr/n*b.impurity(rightCounts, nr)
	return split{feature: f, threshold: threshold, decrease: dec, nLeft: nLeft}, true
}

// leaf はサンプル x が到達する葉を返す
func (dt *DecisionTreeClassifier) leaf(x func(j int) float64) *node {
	nd := &dt.nodes[0]
	for !nd.isLeaf() {
		if x(nd.feature) <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

func (dt *DecisionTreeClassifier) checkPredict(op string, X mat.Matrix) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", op); err != nil {
		return err
	}
	_, c := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier."+op, c); err != nil {
		return err
	}
	return errors.CheckFinite("DecisionTreeClassifier."+op, X)
}

// PredictProba は各クラスの確率 (葉におけるクラス比率) を返す
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	dt.AddProba(X, out)
	return out, nil
}

// AddProba は各サンプルのクラス確率を out に加算する。
// 入力の検証は呼び出し側の責任。
func (dt *DecisionTreeClassifier) AddProba(X mat.Matrix, out *mat.Dense) {
	r, _ := X.Dims()
	for i := 0; i < r; i++ {
		nd := dt.leaf(func(j int) float64 { return X.At(i, j) })
		for k, p := range nd.value {
			out.Set(i, k, out.At(i, k)+p)
		}
	}
}

// Predict は確率が最大のクラスを返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, dt.classes_), nil
}

// Score は正解率を返す
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	return model.Accuracy(y, pred)
}

// Classes は学習時のクラスを返す
func (dt *DecisionTreeClassifier) Classes() []int { return dt.classes_ }

// GetDepth は木の深さを返す
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for i := range dt.nodes {
		if dt.nodes[i].depth > depth {
			depth = dt.nodes[i].depth
		}
	}
	return depth
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for i := range dt.nodes {
		if dt.nodes[i].isLeaf() {
			n++
		}
	}
	return n
}

// GetFeatureImportances は正規化された不純度減少量による特徴量重要度を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"splitter":          dt.splitter,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams はハイパーパラメータを設定する
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion", "splitter":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			if key == "criterion" {
				dt.criterion = s
			} else {
				dt.splitter = s
			}
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				dt.maxDepth = v
			case "min_samples_split":
				dt.minSamplesSplit = v
			case "min_samples_leaf":
				dt.minSamplesLeaf = v
			default:
				dt.maxFeatures = v
			}
		case "random_state":
			v, ok := value.(int64)
			if !ok {
				return errors.NewValidationError(key, "must be an int64", value)
			}
			dt.randomState = v
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validateParams()
}
