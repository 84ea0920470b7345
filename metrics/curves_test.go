package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAveragePrecision(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect ranking",
			yTrue: []float64{1, 1, 1, 0, 0},
			yPred: []float64{5, 4, 3, 2, 1},
			want:  1.0,
		},
		{
			name:  "Worst ranking",
			yTrue: []float64{1, 1, 1, 0, 0},
			yPred: []float64{1, 2, 3, 4, 5},
			want:  (1.0/3 + 2.0/4 + 3.0/5) / 3,
		},
		{
			name:  "Mixed ranking",
			yTrue: []float64{1, 0, 1, 0, 1},
			yPred: []float64{0.9, 0.8, 0.7, 0.6, 0.5},
			want:  (1.0/1 + 2.0/3 + 3.0/5) / 3,
		},
		{
			name:  "Single relevant",
			yTrue: []float64{0, 0, 1, 0, 0},
			yPred: []float64{0.1, 0.2, 0.3, 0.4, 0.5},
			want:  1.0 / 3,
		},
		{
			name:  "Tied scores",
			yTrue: []float64{1, 0, 1, 0},
			yPred: []float64{0.5, 0.5, 0.5, 0.5},
			want:  0.5,
		},
		{
			name:  "No relevant items",
			yTrue: []float64{0, 0, 0, 0},
			yPred: []float64{1, 2, 3, 4},
			want:  0.0,
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{1, 2, 3},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AveragePrecision(mat.NewVecDense(len(tt.yTrue), tt.yTrue), mat.NewVecDense(len(tt.yPred), tt.yPred))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestROCCurve(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yScore := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})

	fpr, tpr, thresholds, err := ROCCurve(yTrue, yScore)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0.5, 0.5, 1}, fpr)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, tpr)
	assert.True(t, math.IsInf(thresholds[0], 1))
	assert.Equal(t, []float64{0.8, 0.4, 0.35, 0.1}, thresholds[1:])

	// Trapezoidal area under the curve agrees with AUC.
	var area float64
	for k := 1; k < len(fpr); k++ {
		area += (fpr[k] - fpr[k-1]) * (tpr[k] + tpr[k-1]) / 2
	}
	auc, err := AUC(yTrue, yScore)
	require.NoError(t, err)
	assert.InDelta(t, auc, area, 1e-12)
}

func TestPrecisionRecallCurve(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yScore := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})

	precision, recall, _, err := PrecisionRecallCurve(yTrue, yScore)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, recall)
	assert.InDeltaSlice(t, []float64{1, 1, 0.5, 2.0 / 3.0, 0.5}, precision, 1e-12)
}

func TestCurves_Errors(t *testing.T) {
	_, _, _, err := ROCCurve(nil, nil)
	assert.Error(t, err)
	_, _, _, err = PrecisionRecallCurve(mat.NewVecDense(2, []float64{0, 2}), mat.NewVecDense(2, []float64{0.1, 0.2}))
	assert.Error(t, err)
}
