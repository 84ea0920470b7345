package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// validatePair は入力ベクトルを検証し、サンプル数を返す
func validatePair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "input vectors must not be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinary は yTrue が 0/1 のみを含むことを確認する
func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be binary (0 or 1)")
		}
	}
	return nil
}

// firstColumn は行列の1列目をベクトルとして取り出す
func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "input matrix must not be nil")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 (1 - accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionMatrix は二値分類の混同行列 (陽性クラス = 1)
type ConfusionMatrix struct {
	TP, FP, TN, FN float64
}

// BinaryConfusion は二値ラベルから混同行列を計算する
func BinaryConfusion(yTrue, yPred *mat.VecDense) (ConfusionMatrix, error) {
	n, err := validatePair("BinaryConfusion", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinary("BinaryConfusion", yTrue); err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinary("BinaryConfusion", yPred); err != nil {
		return ConfusionMatrix{}, err
	}
	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		switch t, p := yTrue.AtVec(i), yPred.AtVec(i); {
		case t == 1 && p == 1:
			cm.TP++
		case t == 0 && p == 1:
			cm.FP++
		case t == 0 && p == 0:
			cm.TN++
		default:
			cm.FN++
		}
	}
	return cm, nil
}

// ratio は分母が0のとき UndefinedMetricWarning を発行して0を返す
func ratio(metric, condition string, num, den float64) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return num / den
}

// Precision は適合率 TP / (TP + FP) を計算する
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ratio("precision", "no predicted samples", cm.TP, cm.TP+cm.FP), nil
}

// Recall は再現率 TP / (TP + FN) を計算する
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ratio("recall", "no true samples", cm.TP, cm.TP+cm.FN), nil
}

// F1Score は適合率と再現率の調和平均を計算する
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ratio("f1", "no true nor predicted samples", 2*cm.TP, 2*cm.TP+cm.FP+cm.FN), nil
}

// Jaccard は TP / (TP + FP + FN) を計算する
func Jaccard(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ratio("jaccard", "no true nor predicted samples", cm.TP, cm.TP+cm.FP+cm.FN), nil
}

// BalancedAccuracy はクラスごとの再現率の平均を計算する
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum, k float64
	if cm.TP+cm.FN > 0 {
		sum += cm.TP / (cm.TP + cm.FN)
		k++
	}
	if cm.TN+cm.FP > 0 {
		sum += cm.TN / (cm.TN + cm.FP)
		k++
	}
	return sum / k, nil
}

// MatthewsCorrCoef はマシューズ相関係数を計算する
// 分母が0の場合は0を返す
func MatthewsCorrCoef(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	den := math.Sqrt((cm.TP + cm.FP) * (cm.TP + cm.FN) * (cm.TN + cm.FP) * (cm.TN + cm.FN))
	if den == 0 {
		return 0, nil
	}
	return (cm.TP*cm.TN - cm.FP*cm.FN) / den, nil
}

// AUC はROC曲線下面積を計算する
//
// Mann-Whitney U 統計量として計算し、同順位のスコアには平均順位を割り当てる。
// 陽性または陰性のサンプルが存在しない場合は未定義のため0.5を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := validatePair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b])
	})

	var nPos, rankSum float64
	for i := 0; i < n; {
		j := i
		for j < n && yScore.AtVec(idx[j]) == yScore.AtVec(idx[i]) {
			j++
		}
		// ranks i+1..j share their average
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				nPos++
				rankSum += avg
			}
		}
		i = j
	}
	nNeg := float64(n) - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列形式の入力 (1列目を使用) に対してAUCを計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	s, err := firstColumn("AUCMatrix", yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// BinaryLogLoss は二値分類の対数損失を計算する
// 確率は log(0) を避けるため [eps, 1-eps] にクリップされる
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := validatePair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), eps, 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}
