package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

func TestStandardScaler_MeanZeroStdOne(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})
	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)

	for j := 0; j < 2; j++ {
		col := mat.Col(nil, j, out)
		mean, variance := stat.PopMeanVariance(col, nil)
		assert.InDelta(t, 0, mean, 1e-12)
		assert.InDelta(t, 1, variance, 1e-12)
	}
	assert.InDelta(t, 2.5, scaler.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), scaler.Scale[0], 1e-12)
}

func TestStandardScaler_NaNPassesThrough(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 1, []float64{1, nan, 3, 5})
	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 3, scaler.Mean[0], 1e-12)
	assert.True(t, math.IsNaN(out.At(1, 0)))
	assert.InDelta(t, 0, out.At(2, 0), 1e-12)

	back, err := scaler.InverseTransform(out)
	require.NoError(t, err)
	assert.InDelta(t, 5, back.At(3, 0), 1e-12)
}

func TestStandardScaler_ConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{7, 7, 7})
	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scaler.Scale[0])
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 0, out))
}

func TestStandardScaler_Errors(t *testing.T) {
	scaler := NewStandardScalerDefault()
	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 4, 6})
	scaler := NewMinMaxScalerDefault()
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))

	back, err := scaler.InverseTransform(out)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 4, 6}, mat.Col(nil, 0, back), 1e-12)
}

func TestNewScaler(t *testing.T) {
	s, err := NewScaler("")
	require.NoError(t, err)
	assert.IsType(t, &StandardScaler{}, s)

	s, err = NewScaler("minmax")
	require.NoError(t, err)
	assert.IsType(t, &MinMaxScaler{}, s)

	_, err = NewScaler("robust")
	assert.Error(t, err)
}
