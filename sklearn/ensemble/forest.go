// Package ensemble implements bagged decision tree ensembles: random forests
// and extremely randomized trees.
package ensemble

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/core/parallel"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/sklearn/tree"
)

// Forest は決定木のアンサンブル。RandomForestClassifier と
// ExtraTreesClassifier の共通実装。
type Forest struct {
	state *model.StateManager
	name  string

	// ハイパーパラメータ
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	splitter        string
	randomState     int64
	nJobs           int

	// 学習済みパラメータ
	trees     []*tree.DecisionTreeClassifier
	classes_  []int
	nClasses_ int
}

// Option は Forest の設定関数
type Option func(*Forest)

// WithNEstimators は木の本数を設定する
func WithNEstimators(n int) Option { return func(f *Forest) { f.nEstimators = n } }

// WithCriterion は不純度の指標を設定する
func WithCriterion(c string) Option { return func(f *Forest) { f.criterion = c } }

// WithMaxDepth は各木の最大深さを設定する (0 以下は無制限)
func WithMaxDepth(d int) Option { return func(f *Forest) { f.maxDepth = d } }

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option { return func(f *Forest) { f.minSamplesSplit = n } }

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option { return func(f *Forest) { f.minSamplesLeaf = n } }

// WithMaxFeatures は各分割で検討する特徴量数の規則 ("sqrt", "log2", "all") を設定する
func WithMaxFeatures(m string) Option { return func(f *Forest) { f.maxFeatures = m } }

// WithBootstrap はブートストラップ標本を使うかどうかを設定する
func WithBootstrap(b bool) Option { return func(f *Forest) { f.bootstrap = b } }

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) Option { return func(f *Forest) { f.randomState = seed } }

// WithNJobs は木の構築に使うワーカー数を設定する (0 以下は CPU 数)
func WithNJobs(n int) Option { return func(f *Forest) { f.nJobs = n } }

func newForest(name string, bootstrap bool, splitter string, opts []Option) Forest {
	f := Forest{
		state:           model.NewStateManager(),
		name:            name,
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       bootstrap,
		splitter:        splitter,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// RandomForestClassifier はブートストラップ標本と最良分割による決定木のアンサンブル
type RandomForestClassifier struct {
	Forest
}

// NewRandomForestClassifier は新しいランダムフォレストを作成する
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{Forest: newForest("RandomForestClassifier", true, tree.SplitterBest, opts)}
}

// ExtraTreesClassifier は全標本とランダム分割による決定木のアンサンブル
type ExtraTreesClassifier struct {
	Forest
}

// NewExtraTreesClassifier は新しい Extra-Trees を作成する
func NewExtraTreesClassifier(opts ...Option) *ExtraTreesClassifier {
	return &ExtraTreesClassifier{Forest: newForest("ExtraTreesClassifier", false, tree.SplitterRandom, opts)}
}

func (f *Forest) resolveMaxFeatures(nFeatures int) (int, error) {
	switch f.maxFeatures {
	case "sqrt":
		return int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures))))), nil
	case "log2":
		return int(math.Max(1, math.Floor(math.Log2(float64(nFeatures))))), nil
	case "all", "":
		return nFeatures, nil
	default:
		return 0, errors.NewValidationError("max_features", "must be sqrt, log2 or all", f.maxFeatures)
	}
}

// Fit は木を並列に構築する。各木のシードは random_state から順に導出され、
// 結果はスケジューリングに依存しない。
func (f *Forest) Fit(X, y mat.Matrix) error {
	op := f.name + ".Fit"
	nSamples, nFeatures, err := model.ValidateXY(op, X, y)
	if err != nil {
		return err
	}
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return err
	}
	classes, err := model.ExtractClasses(op, y)
	if err != nil {
		return err
	}
	maxFeatures, err := f.resolveMaxFeatures(nFeatures)
	if err != nil {
		return err
	}

	seeder := rand.New(rand.NewSource(f.randomState))
	seeds := make([]int64, f.nEstimators)
	for i := range seeds {
		seeds[i] = seeder.Int63()
	}

	trees := make([]*tree.DecisionTreeClassifier, f.nEstimators)
	errs := make([]error, f.nEstimators)
	parallel.ParallelizeN(f.nEstimators, f.nJobs, func(start, end int) {
		for t := start; t < end; t++ {
			trees[t], errs[t] = f.fitTree(X, y, nSamples, classes, maxFeatures, seeds[t])
		}
	})
	for _, e := range errs {
		if e != nil {
			return errors.NewModelError(op, "tree", e)
		}
	}

	f.trees = trees
	f.classes_ = classes
	f.nClasses_ = len(classes)
	f.state.SetDimensions(nFeatures, nSamples)
	f.state.SetFitted()
	return nil
}

func (f *Forest) fitTree(X, y mat.Matrix, nSamples int, classes []int, maxFeatures int, seed int64) (*tree.DecisionTreeClassifier, error) {
	rows := make([]int, nSamples)
	if f.bootstrap {
		rng := rand.New(rand.NewSource(seed))
		for i := range rows {
			rows[i] = rng.Intn(nSamples)
		}
	} else {
		for i := range rows {
			rows[i] = i
		}
	}
	dt := tree.NewDecisionTreeClassifier(
		tree.WithCriterion(f.criterion),
		tree.WithSplitter(f.splitter),
		tree.WithMaxDepth(f.maxDepth),
		tree.WithMinSamplesSplit(f.minSamplesSplit),
		tree.WithMinSamplesLeaf(f.minSamplesLeaf),
		tree.WithMaxFeatures(maxFeatures),
		tree.WithRandomState(seed),
	)
	if err := dt.FitSubset(X, y, rows, classes); err != nil {
		return nil, err
	}
	return dt, nil
}

// PredictProba は全ての木のクラス確率の平均を返す
func (f *Forest) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted(f.name, "PredictProba"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.state.RequireFeatures(f.name+".PredictProba", c); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite(f.name+".PredictProba", X); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, f.nClasses_, nil)
	for _, t := range f.trees {
		t.AddProba(X, out)
	}
	out.Scale(1/float64(len(f.trees)), out)
	return out, nil
}

// Predict は平均確率が最大のクラスを返す
func (f *Forest) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, f.classes_), nil
}

// Score は正解率を返す
func (f *Forest) Score(X, y mat.Matrix) float64 {
	pred, err := f.Predict(X)
	if err != nil {
		return 0
	}
	return model.Accuracy(y, pred)
}

// Classes は学習時のクラスを返す
func (f *Forest) Classes() []int { return f.classes_ }

// NEstimators は学習済みの木の本数を返す
func (f *Forest) NEstimators() int { return len(f.trees) }

// GetFeatureImportances は各木の特徴量重要度の平均を返す
func (f *Forest) GetFeatureImportances() []float64 {
	if len(f.trees) == 0 {
		return nil
	}
	nFeatures, _ := f.state.GetDimensions()
	imp := make([]float64, nFeatures)
	for _, t := range f.trees {
		for j, v := range t.GetFeatureImportances() {
			imp[j] += v
		}
	}
	for j := range imp {
		imp[j] /= float64(len(f.trees))
	}
	return imp
}

// GetParams はハイパーパラメータを返す
func (f *Forest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"random_state":      f.randomState,
		"n_jobs":            f.nJobs,
	}
}
