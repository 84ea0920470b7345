package xgboost

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func separable(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%10)/10.0)
		X.Set(i, 2, 0.5)
		if i >= n/2 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func TestXGBClassifierBinary(t *testing.T) {
	X, y := separable(100)
	clf := NewXGBClassifier()
	require.NoError(t, clf.Fit(X, y))

	assert.True(t, clf.state.IsFitted())
	assert.Equal(t, []int{0, 1}, clf.Classes())
	assert.Equal(t, 1.0, clf.Score(X, y))

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}
	assert.Greater(t, proba.At(99, 1), 0.9)
	assert.Less(t, proba.At(0, 1), 0.1)

	margin, err := clf.PredictMargin(X)
	require.NoError(t, err)
	_, mc := margin.Dims()
	assert.Equal(t, 1, mc)
}

func TestXGBClassifierFirstTreeSplitsOnSeparatingFeature(t *testing.T) {
	X, y := separable(100)
	clf := NewXGBClassifier(WithNEstimators(1))
	require.NoError(t, clf.Fit(X, y))

	root := clf.booster.Trees[0][0]
	assert.Equal(t, 0, root.Split)
	assert.Equal(t, 49.5, root.SplitCondition)
	assert.Greater(t, root.Gain, 0.0)

	// cover of the root is the hessian sum at margin 0
	assert.InDelta(t, 25.0, root.Cover, 1e-9)

	imp := clf.GetFeatureImportances()
	assert.InDelta(t, 1.0, imp[0], 1e-12)
	assert.Equal(t, 0.0, imp[2])
}

func TestXGBClassifierMulticlass(t *testing.T) {
	X := mat.NewDense(150, 2, nil)
	y := mat.NewDense(150, 1, nil)
	for i := 0; i < 150; i++ {
		X.Set(i, 0, float64(i/50)+float64(i%5)/10)
		X.Set(i, 1, float64(i%7))
		y.Set(i, 0, float64(i/50))
	}

	clf := NewXGBClassifier(WithNEstimators(20))
	require.NoError(t, clf.Fit(X, y))
	assert.Equal(t, 3, clf.booster.TreesPerRound)
	assert.Len(t, clf.booster.Trees, 60)
	assert.Equal(t, 1.0, clf.Score(X, y))

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		assert.InDelta(t, 1.0, mat.Sum(proba.(*mat.Dense).RowView(i)), 1e-9)
	}
}

func TestXGBClassifierLearnsMissingDirection(t *testing.T) {
	X := mat.NewDense(100, 1, nil)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		switch {
		case i < 40:
			X.Set(i, 0, float64(i))
		case i < 80:
			X.Set(i, 0, float64(i))
			y.Set(i, 0, 1)
		default:
			// missing values belong to the high class
			X.Set(i, 0, math.NaN())
			y.Set(i, 0, 1)
		}
	}

	clf := NewXGBClassifier(WithNEstimators(10))
	require.NoError(t, clf.Fit(X, y))

	root := clf.booster.Trees[0][0]
	require.False(t, root.IsLeaf())
	assert.Equal(t, root.No, root.Missing)

	pred, err := clf.Predict(mat.NewDense(3, 1, []float64{math.NaN(), 5, 70}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, mat.Col(nil, 0, pred))
}

func TestXGBClassifierRegularization(t *testing.T) {
	X, y := separable(60)

	t.Run("large gamma prevents splits", func(t *testing.T) {
		clf := NewXGBClassifier(WithGamma(1e6), WithNEstimators(3))
		require.NoError(t, clf.Fit(X, y))
		for _, tree := range clf.booster.Trees {
			assert.Len(t, tree, 1)
		}
	})

	t.Run("max depth", func(t *testing.T) {
		clf := NewXGBClassifier(WithMaxDepth(1), WithNEstimators(3))
		require.NoError(t, clf.Fit(X, y))
		for _, tree := range clf.booster.Trees {
			for _, n := range tree {
				assert.LessOrEqual(t, n.Depth, 1)
			}
		}
	})

	t.Run("sampling is reproducible", func(t *testing.T) {
		fit := func() mat.Matrix {
			clf := NewXGBClassifier(WithSubsample(0.5), WithColsampleBytree(0.7), WithRandomState(3))
			require.NoError(t, clf.Fit(X, y))
			p, err := clf.PredictProba(X)
			require.NoError(t, err)
			return p
		}
		assert.True(t, mat.Equal(fit(), fit()))
	})
}

func TestXGBClassifierErrors(t *testing.T) {
	X, y := separable(10)

	clf := NewXGBClassifier()
	_, err := clf.Predict(X)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not fitted")

	_, err = clf.GetScore("gain")
	assert.Error(t, err)

	tests := []struct {
		name string
		opt  Option
	}{
		{"zero rounds", WithNEstimators(0)},
		{"zero depth", WithMaxDepth(0)},
		{"negative gamma", WithGamma(-1)},
		{"subsample", WithSubsample(0)},
		{"colsample", WithColsampleBytree(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewXGBClassifier(tt.opt).Fit(X, y))
		})
	}

	require.NoError(t, clf.Fit(X, y))
	_, err = clf.Predict(mat.NewDense(2, 2, nil))
	assert.Error(t, err)
	_, err = clf.GetScore("total_gain")
	assert.Error(t, err)
}

func TestXGBClassifierSaveLoad(t *testing.T) {
	X, y := separable(80)
	clf := NewXGBClassifier(WithNEstimators(5))
	require.NoError(t, clf.Fit(X, y))

	path := filepath.Join(t.TempDir(), "xgb.json")
	require.NoError(t, clf.SaveModel(path))

	restored := NewXGBClassifier()
	require.NoError(t, restored.LoadModel(path))

	p1, err := clf.PredictProba(X)
	require.NoError(t, err)
	p2, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(p1, p2, 1e-12))
}

func TestXGBClassifierParams(t *testing.T) {
	clf := NewXGBClassifier()
	require.NoError(t, clf.SetParams(map[string]interface{}{
		"n_estimators":  50,
		"learning_rate": 0.1,
		"max_depth":     3.0,
		"gamma":         1,
	}))
	params := clf.GetParams()
	assert.Equal(t, 50, params["n_estimators"])
	assert.Equal(t, 0.1, params["learning_rate"])
	assert.Equal(t, 3, params["max_depth"])
	assert.Equal(t, 1.0, params["gamma"])

	assert.Error(t, clf.SetParams(map[string]interface{}{"booster": "gblinear"}))
	assert.Error(t, clf.SetParams(map[string]interface{}{"max_depth": 2.5}))
}
