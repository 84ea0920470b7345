// Package naive_bayes implements Gaussian Naive Bayes classification.
package naive_bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// GaussianNB はガウス分布を仮定したナイーブベイズ分類器
//
// 各クラスについて特徴量ごとの平均と分散を推定し、
// 事後確率 P(c|x) ∝ P(c) Π N(x_j; μ_cj, σ²_cj) で分類する。
type GaussianNB struct {
	state *model.StateManager

	// ハイパーパラメータ
	varSmoothing float64
	priors       []float64

	// 学習済みパラメータ
	classes_    []int
	nClasses_   int
	classPrior_ []float64
	classCount_ []float64
	theta_      [][]float64 // クラスごとの平均
	var_        [][]float64 // クラスごとの分散
	epsilon_    float64
}

// GaussianNBOption は GaussianNB の設定関数
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing は分散に加える安定化項の係数を設定する
// (全特徴量の最大分散に対する比率、デフォルト 1e-9)
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// WithPriors はクラス事前確率を固定する
func WithPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.priors = append([]float64(nil), priors...) }
}

// NewGaussianNB は新しい GaussianNB を作成する
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit はクラスごとの平均・分散と事前確率を推定する
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.ValidateXY("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckFinite("GaussianNB.Fit", X); err != nil {
		return err
	}
	classes, err := model.ExtractClasses("GaussianNB.Fit", y)
	if err != nil {
		return err
	}
	if nb.priors != nil {
		if len(nb.priors) != len(classes) {
			return errors.NewValidationError("priors", fmt.Sprintf("expected %d priors", len(classes)), nb.priors)
		}
		if math.Abs(floats.Sum(nb.priors)-1) > 1e-8 {
			return errors.NewValidationError("priors", "priors must sum to 1", nb.priors)
		}
	}

	idx := model.ClassIndex(y, classes)
	k := len(classes)

	// 全体の最大分散から安定化項を決める
	maxVar := 0.0
	col := make([]float64, nSamples)
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.epsilon_ = nb.varSmoothing * maxVar
	if nb.epsilon_ == 0 {
		nb.epsilon_ = nb.varSmoothing
	}

	nb.classes_ = classes
	nb.nClasses_ = k
	nb.classCount_ = make([]float64, k)
	nb.theta_ = make([][]float64, k)
	nb.var_ = make([][]float64, k)

	rowsByClass := make([][]int, k)
	for i, c := range idx {
		rowsByClass[c] = append(rowsByClass[c], i)
	}
	for c := 0; c < k; c++ {
		rows := rowsByClass[c]
		nb.classCount_[c] = float64(len(rows))
		nb.theta_[c] = make([]float64, nFeatures)
		nb.var_[c] = make([]float64, nFeatures)
		vals := make([]float64, len(rows))
		for j := 0; j < nFeatures; j++ {
			for r, i := range rows {
				vals[r] = X.At(i, j)
			}
			mean, variance := stat.PopMeanVariance(vals, nil)
			nb.theta_[c][j] = mean
			nb.var_[c][j] = variance + nb.epsilon_
		}
	}

	if nb.priors != nil {
		nb.classPrior_ = append([]float64(nil), nb.priors...)
	} else {
		nb.classPrior_ = make([]float64, k)
		for c := range nb.classPrior_ {
			nb.classPrior_[c] = nb.classCount_[c] / float64(nSamples)
		}
	}

	nb.state.SetDimensions(nFeatures, nSamples)
	nb.state.SetFitted()
	return nil
}

// jointLogLikelihood は各サンプル・各クラスの log P(c) + log P(x|c) を計算する
func (nb *GaussianNB) jointLogLikelihood(op string, X mat.Matrix) ([][]float64, error) {
	if err := nb.state.RequireFitted("GaussianNB", op); err != nil {
		return nil, err
	}
	n, nFeatures := X.Dims()
	if err := nb.state.RequireFeatures("GaussianNB."+op, nFeatures); err != nil {
		return nil, err
	}
	if err := errors.CheckFinite("GaussianNB."+op, X); err != nil {
		return nil, err
	}

	jll := make([][]float64, n)
	for i := 0; i < n; i++ {
		jll[i] = make([]float64, nb.nClasses_)
		for c := 0; c < nb.nClasses_; c++ {
			ll := math.Log(nb.classPrior_[c])
			for j := 0; j < nFeatures; j++ {
				dist := distuv.Normal{Mu: nb.theta_[c][j], Sigma: math.Sqrt(nb.var_[c][j])}
				ll += dist.LogProb(X.At(i, j))
			}
			jll[i][c] = ll
		}
	}
	return jll, nil
}

// PredictLogProba は対数事後確率を返す
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(jll), nb.nClasses_, nil)
	for i, row := range jll {
		norm := floats.LogSumExp(row)
		for c, v := range row {
			out.Set(i, c, v-norm)
		}
	}
	return out, nil
}

// PredictProba は事後確率を返す
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	r, c := logProba.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, logProba)
	return out, nil
}

// Predict は事後確率が最大のクラスを返す
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := nb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, nb.classes_), nil
}

// Score は正解率を返す
func (nb *GaussianNB) Score(X, y mat.Matrix) float64 {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0
	}
	return model.Accuracy(y, pred)
}

// Classes は学習時に観測したクラスを返す
func (nb *GaussianNB) Classes() []int { return nb.classes_ }

// Theta はクラスごとの特徴量平均を返す
func (nb *GaussianNB) Theta() [][]float64 { return nb.theta_ }

// Var はクラスごとの特徴量分散 (安定化項込み) を返す
func (nb *GaussianNB) Var() [][]float64 { return nb.var_ }

// GetParams はハイパーパラメータを返す
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}

// SetParams はハイパーパラメータを設定する
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "var_smoothing":
			v, ok := value.(float64)
			if !ok || v < 0 {
				return errors.NewValidationError(key, "must be a non-negative float64", value)
			}
			nb.varSmoothing = v
		case "priors":
			p, ok := value.([]float64)
			if !ok {
				return errors.NewValidationError(key, "must be []float64", value)
			}
			nb.priors = p
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}
