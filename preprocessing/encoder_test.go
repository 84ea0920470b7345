package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumnEncoder_ByCardinality(t *testing.T) {
	tests := []struct {
		name        string
		cardinality int
		maxOneHot   int
		strategy    string
		want        ColumnEncoder
	}{
		{name: "binary", cardinality: 2, maxOneHot: 10, want: &OrdinalEncoder{}},
		{name: "constant", cardinality: 1, maxOneHot: 10, want: &OrdinalEncoder{}},
		{name: "low", cardinality: 3, maxOneHot: 10, want: &OneHotEncoder{}},
		{name: "at limit", cardinality: 10, maxOneHot: 10, want: &OneHotEncoder{}},
		{name: "high", cardinality: 11, maxOneHot: 10, strategy: StrategyLeaveOneOut, want: &LeaveOneOutEncoder{}},
		{name: "one-hot disabled", cardinality: 3, maxOneHot: 0, want: &LeaveOneOutEncoder{}},
		{name: "target", cardinality: 20, maxOneHot: 10, strategy: StrategyTarget, want: &TargetEncoder{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewColumnEncoder(tt.cardinality, tt.maxOneHot, tt.strategy)
			require.NoError(t, err)
			assert.IsType(t, tt.want, enc)
		})
	}

	_, err := NewColumnEncoder(50, 10, "WOE")
	assert.Error(t, err)
}

func TestOrdinalEncoder(t *testing.T) {
	enc := NewOrdinalEncoder()
	out, err := enc.FitTransform([]string{"No", "Yes", "", "No"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0][0])
	assert.Equal(t, 1.0, out[0][1])
	assert.True(t, math.IsNaN(out[0][2]))
	assert.Equal(t, []string{"No", "Yes"}, enc.Categories())

	test, err := enc.Transform([]string{"Maybe"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(test[0][0]))
}

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder()
	out, err := enc.FitTransform([]string{"b", "a", "c", ""}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"dir_a", "dir_b", "dir_c"}, enc.FeatureNames("dir"))
	assert.Equal(t, []float64{0, 1, 0}, out[0][:3])
	assert.Equal(t, []float64{1, 0, 0}, out[1][:3])
	assert.Equal(t, []float64{0, 0, 1}, out[2][:3])
	for k := range out {
		assert.True(t, math.IsNaN(out[k][3]))
	}

	test, err := enc.Transform([]string{"z"})
	require.NoError(t, err)
	for k := range test {
		assert.Equal(t, 0.0, test[k][0])
	}
}

func TestLeaveOneOutEncoder(t *testing.T) {
	values := []string{"a", "a", "a", "b", "c", ""}
	y := []float64{1, 0, 1, 1, 0, 0}

	enc := NewLeaveOneOutEncoder()
	out, err := enc.FitTransform(values, y)
	require.NoError(t, err)

	// Each "a" row sees only the other two "a" targets.
	assert.InDelta(t, 0.5, out[0][0], 1e-12)
	assert.InDelta(t, 1.0, out[0][1], 1e-12)
	assert.InDelta(t, 0.5, out[0][2], 1e-12)
	// Singletons fall back to the prior.
	assert.InDelta(t, 0.5, out[0][3], 1e-12)
	assert.InDelta(t, 0.5, out[0][4], 1e-12)
	assert.True(t, math.IsNaN(out[0][5]))

	test, err := enc.Transform([]string{"a", "b", "zzz"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0 / 3.0, 1, 0.5}, test[0], 1e-12)

	_, err = enc.FitTransform(values, y[:2])
	assert.Error(t, err)
}

func TestTargetEncoder(t *testing.T) {
	enc := NewTargetEncoder(1)
	out, err := enc.FitTransform([]string{"a", "a", "b"}, []float64{1, 1, 0})
	require.NoError(t, err)
	prior := 2.0 / 3.0
	assert.InDelta(t, (2+prior)/3, out[0][0], 1e-12)
	assert.InDelta(t, prior/2, out[0][2], 1e-12)
}
