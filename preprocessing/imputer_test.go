package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSimpleImputer_Strategies(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(5, 1, []float64{1, 2, 2, nan, 10})

	tests := []struct {
		strategy string
		want     float64
	}{
		{ImputeMean, 3.75},
		{ImputeMedian, 2},
		{ImputeMostFrequent, 2},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp, err := NewSimpleImputer(tt.strategy)
			require.NoError(t, err)
			out, err := imp.FitTransform(X)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out.At(3, 0), 1e-12)
			assert.Equal(t, 10.0, out.At(4, 0))
		})
	}
}

func TestSimpleImputer_Constant(t *testing.T) {
	imp, err := NewSimpleImputer(ImputeConstant)
	require.NoError(t, err)
	imp.FillValue = -1
	out, err := imp.FitTransform(mat.NewDense(2, 1, []float64{math.NaN(), 3}))
	require.NoError(t, err)
	assert.Equal(t, -1.0, out.At(0, 0))
}

func TestSimpleImputer_DropsAllMissingColumns(t *testing.T) {
	nan := math.NaN()
	train := mat.NewDense(3, 3, []float64{
		1, nan, 4,
		nan, nan, 5,
		3, nan, nan,
	})
	imp, err := NewSimpleImputer(ImputeMedian)
	require.NoError(t, err)
	out, err := imp.FitTransform(train)
	require.NoError(t, err)

	_, c := out.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, []int{0, 2}, imp.KeptColumns())
	assert.Equal(t, []float64{1, 2, 3}, mat.Col(nil, 0, out))
	assert.Equal(t, []float64{4, 5, 4.5}, mat.Col(nil, 1, out))

	test, err := imp.Transform(mat.NewDense(1, 3, []float64{nan, 9, nan}))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4.5}, mat.Row(nil, 0, test))
}

func TestSimpleImputer_UnknownStrategy(t *testing.T) {
	_, err := NewSimpleImputer("knn")
	assert.Error(t, err)
}

func TestCategoricalImputer(t *testing.T) {
	imp, err := NewCategoricalImputer(ImputeMostFrequent)
	require.NoError(t, err)
	imp.Fit([]string{"b", "a", "", "b", "a"})
	assert.Equal(t, "a", imp.Statistic)

	out, err := imp.Transform([]string{"", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, out)

	empty, err := NewCategoricalImputer(ImputeMostFrequent)
	require.NoError(t, err)
	empty.Fit([]string{"", ""})
	assert.True(t, empty.AllMissing())

	_, err = NewCategoricalImputer("median")
	assert.Error(t, err)
}
