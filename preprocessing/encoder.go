package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Encoding strategies for high-cardinality columns.
const (
	StrategyLeaveOneOut = "LeaveOneOut"
	StrategyTarget      = "Target"
)

// ColumnEncoder turns one categorical column into one or more numeric columns.
// Missing cells ("") become NaN in every output column.
type ColumnEncoder interface {
	// FitTransform learns the encoding from the training column and returns
	// its encoded training values. y holds the label-encoded target.
	FitTransform(values []string, y []float64) ([][]float64, error)

	// Transform encodes unseen data with the fitted parameters.
	Transform(values []string) ([][]float64, error)

	// FeatureNames returns the output column names for source column name.
	FeatureNames(name string) []string
}

// NewColumnEncoder picks an encoder by cardinality: two or fewer distinct
// values are encoded ordinally, up to maxOneHot values are one-hot encoded,
// and anything larger uses strategy. maxOneHot below 3 disables one-hot.
func NewColumnEncoder(cardinality, maxOneHot int, strategy string) (ColumnEncoder, error) {
	switch {
	case cardinality <= 2:
		return NewOrdinalEncoder(), nil
	case cardinality <= maxOneHot:
		return NewOneHotEncoder(), nil
	}
	switch strategy {
	case "", StrategyLeaveOneOut:
		return NewLeaveOneOutEncoder(), nil
	case StrategyTarget:
		return NewTargetEncoder(1.0), nil
	default:
		return nil, errors.NewValidationError("strategy", "unknown encoding strategy", strategy)
	}
}

// Categories returns the sorted distinct non-missing values.
func Categories(values []string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// OrdinalEncoder maps sorted categories to 0, 1, 2, ...
// Unseen categories become NaN.
type OrdinalEncoder struct {
	state      *model.StateManager
	categories []string
	index      map[string]int
}

// NewOrdinalEncoder creates an unfitted OrdinalEncoder.
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{state: model.NewStateManager()}
}

// Fit learns the categories.
func (e *OrdinalEncoder) Fit(values []string) error {
	e.categories = Categories(values)
	e.index = make(map[string]int, len(e.categories))
	for i, c := range e.categories {
		e.index[c] = i
	}
	e.state.SetDimensions(1, len(values))
	e.state.SetFitted()
	return nil
}

// FitTransform implements ColumnEncoder; y is unused.
func (e *OrdinalEncoder) FitTransform(values []string, _ []float64) ([][]float64, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Transform implements ColumnEncoder.
func (e *OrdinalEncoder) Transform(values []string) ([][]float64, error) {
	if err := e.state.RequireFitted("OrdinalEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if idx, ok := e.index[v]; ok {
			out[i] = float64(idx)
		} else {
			out[i] = math.NaN()
		}
	}
	return [][]float64{out}, nil
}

// FeatureNames implements ColumnEncoder.
func (e *OrdinalEncoder) FeatureNames(name string) []string { return []string{name} }

// Categories returns the fitted categories in code order.
func (e *OrdinalEncoder) Categories() []string { return e.categories }

// OneHotEncoder emits one 0/1 column per category, named "<column>_<value>".
// Unseen categories encode as all zeros.
type OneHotEncoder struct {
	state      *model.StateManager
	categories []string
	index      map[string]int
}

// NewOneHotEncoder creates an unfitted OneHotEncoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{state: model.NewStateManager()}
}

// Fit learns the categories.
func (e *OneHotEncoder) Fit(values []string) error {
	e.categories = Categories(values)
	e.index = make(map[string]int, len(e.categories))
	for i, c := range e.categories {
		e.index[c] = i
	}
	e.state.SetDimensions(len(e.categories), len(values))
	e.state.SetFitted()
	return nil
}

// FitTransform implements ColumnEncoder; y is unused.
func (e *OneHotEncoder) FitTransform(values []string, _ []float64) ([][]float64, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Transform implements ColumnEncoder.
func (e *OneHotEncoder) Transform(values []string) ([][]float64, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([][]float64, len(e.categories))
	for k := range out {
		out[k] = make([]float64, len(values))
	}
	for i, v := range values {
		if v == "" {
			for k := range out {
				out[k][i] = math.NaN()
			}
			continue
		}
		if idx, ok := e.index[v]; ok {
			out[idx][i] = 1
		}
	}
	return out, nil
}

// FeatureNames implements ColumnEncoder.
func (e *OneHotEncoder) FeatureNames(name string) []string {
	names := make([]string, len(e.categories))
	for i, c := range e.categories {
		names[i] = name + "_" + c
	}
	return names
}

// LeaveOneOutEncoder replaces each category with the mean target of the
// other training rows in that category. Test rows use the full category
// mean; unseen categories and singletons use the global target mean.
type LeaveOneOutEncoder struct {
	state  *model.StateManager
	sums   map[string]float64
	counts map[string]float64
	prior  float64
}

// NewLeaveOneOutEncoder creates an unfitted LeaveOneOutEncoder.
func NewLeaveOneOutEncoder() *LeaveOneOutEncoder {
	return &LeaveOneOutEncoder{state: model.NewStateManager()}
}

// FitTransform implements ColumnEncoder.
func (e *LeaveOneOutEncoder) FitTransform(values []string, y []float64) ([][]float64, error) {
	if len(values) != len(y) {
		return nil, errors.NewDimensionError("LeaveOneOutEncoder.Fit", len(values), len(y), 0)
	}
	e.sums, e.counts, e.prior = targetStats(values, y)
	e.state.SetDimensions(1, len(values))
	e.state.SetFitted()

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v == "":
			out[i] = math.NaN()
		case e.counts[v] > 1:
			out[i] = (e.sums[v] - y[i]) / (e.counts[v] - 1)
		default:
			out[i] = e.prior
		}
	}
	return [][]float64{out}, nil
}

// Transform implements ColumnEncoder.
func (e *LeaveOneOutEncoder) Transform(values []string) ([][]float64, error) {
	if err := e.state.RequireFitted("LeaveOneOutEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v == "":
			out[i] = math.NaN()
		case e.counts[v] > 0:
			out[i] = e.sums[v] / e.counts[v]
		default:
			out[i] = e.prior
		}
	}
	return [][]float64{out}, nil
}

// FeatureNames implements ColumnEncoder.
func (e *LeaveOneOutEncoder) FeatureNames(name string) []string { return []string{name} }

// TargetEncoder replaces each category with its smoothed target mean:
// (sum + prior*smoothing) / (count + smoothing).
type TargetEncoder struct {
	state     *model.StateManager
	smoothing float64
	sums      map[string]float64
	counts    map[string]float64
	prior     float64
}

// NewTargetEncoder creates an unfitted TargetEncoder.
func NewTargetEncoder(smoothing float64) *TargetEncoder {
	return &TargetEncoder{state: model.NewStateManager(), smoothing: smoothing}
}

// FitTransform implements ColumnEncoder.
func (e *TargetEncoder) FitTransform(values []string, y []float64) ([][]float64, error) {
	if len(values) != len(y) {
		return nil, errors.NewDimensionError("TargetEncoder.Fit", len(values), len(y), 0)
	}
	e.sums, e.counts, e.prior = targetStats(values, y)
	e.state.SetDimensions(1, len(values))
	e.state.SetFitted()
	return e.Transform(values)
}

// Transform implements ColumnEncoder.
func (e *TargetEncoder) Transform(values []string) ([][]float64, error) {
	if err := e.state.RequireFitted("TargetEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if v == "" {
			out[i] = math.NaN()
			continue
		}
		out[i] = (e.sums[v] + e.prior*e.smoothing) / (e.counts[v] + e.smoothing)
	}
	return [][]float64{out}, nil
}

// FeatureNames implements ColumnEncoder.
func (e *TargetEncoder) FeatureNames(name string) []string { return []string{name} }

func targetStats(values []string, y []float64) (sums, counts map[string]float64, prior float64) {
	sums = make(map[string]float64)
	counts = make(map[string]float64)
	total := 0.0
	for i, v := range values {
		total += y[i]
		if v == "" {
			continue
		}
		sums[v] += y[i]
		counts[v]++
	}
	if len(y) > 0 {
		prior = total / float64(len(y))
	}
	return sums, counts, prior
}
