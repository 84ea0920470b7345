package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaPredictor はクラス確率を出力できるモデルのインターフェース
type ProbaPredictor interface {
	// PredictProba は (n_samples, n_classes) の確率行列を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は分類器の共通インターフェース
//
// ラベルは 0..n_classes-1 に符号化された float64 として y の1列目に渡す。
type Classifier interface {
	Fitter
	Predictor
	ProbaPredictor

	// Classes は学習時に観測したクラスを返す
	Classes() []int
}

// ParamsGetter はハイパーパラメータを公開するモデルのインターフェース
type ParamsGetter interface {
	GetParams() map[string]interface{}
}

// ParamsSetter はハイパーパラメータを変更できるモデルのインターフェース
type ParamsSetter interface {
	SetParams(params map[string]interface{}) error
}

// FeatureImportancer は特徴量重要度を返せるモデルのインターフェース
type FeatureImportancer interface {
	GetFeatureImportances() []float64
}
