package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// thresholdCounts walks the distinct scores in decreasing order and returns
// the cumulative true and false positive counts at each threshold.
func thresholdCounts(op string, yTrue, yScore *mat.VecDense) (tps, fps, thresholds []float64, err error) {
	n, err := validatePair(op, yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkBinary(op, yTrue); err != nil {
		return nil, nil, nil, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) > yScore.AtVec(idx[b])
	})

	var tp, fp float64
	for k, i := range idx {
		if yTrue.AtVec(i) == 1 {
			tp++
		} else {
			fp++
		}
		if k == n-1 || yScore.AtVec(idx[k+1]) != yScore.AtVec(i) {
			tps = append(tps, tp)
			fps = append(fps, fp)
			thresholds = append(thresholds, yScore.AtVec(i))
		}
	}
	return tps, fps, thresholds, nil
}

// ROCCurve は受信者操作特性曲線の点を返す
//
// 最初の点は閾値 +Inf における (0, 0) で、閾値は降順に並ぶ。
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	tps, fps, ths, err := thresholdCounts("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	pos, neg := tps[len(tps)-1], fps[len(fps)-1]

	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{math.Inf(1)}
	for k := range tps {
		fpr = append(fpr, ratioOrZero(fps[k], neg))
		tpr = append(tpr, ratioOrZero(tps[k], pos))
		thresholds = append(thresholds, ths[k])
	}
	if pos == 0 || neg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_curve", "only one class present in y_true", 0))
	}
	return fpr, tpr, thresholds, nil
}

// PrecisionRecallCurve は適合率-再現率曲線の点を返す
//
// 最初の点は (recall 0, precision 1) で、再現率は単調非減少に並ぶ。
func PrecisionRecallCurve(yTrue, yScore *mat.VecDense) (precision, recall, thresholds []float64, err error) {
	tps, fps, ths, err := thresholdCounts("PrecisionRecallCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	pos := tps[len(tps)-1]

	precision = []float64{1}
	recall = []float64{0}
	thresholds = []float64{math.Inf(1)}
	for k := range tps {
		precision = append(precision, tps[k]/(tps[k]+fps[k]))
		recall = append(recall, ratioOrZero(tps[k], pos))
		thresholds = append(thresholds, ths[k])
	}
	return precision, recall, thresholds, nil
}

// AveragePrecision は適合率-再現率曲線を再現率の増分で重み付けした平均を計算する
// AP = Σ (R_k - R_{k-1}) P_k
// 陽性サンプルが存在しない場合は0を返す。
func AveragePrecision(yTrue, yScore *mat.VecDense) (float64, error) {
	precision, recall, _, err := PrecisionRecallCurve(yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if recall[len(recall)-1] == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("average_precision", "no positive samples in y_true", 0))
		return 0, nil
	}
	var ap float64
	for k := 1; k < len(recall); k++ {
		ap += (recall[k] - recall[k-1]) * precision[k]
	}
	return ap, nil
}

func ratioOrZero(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
