package preprocessing

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Imputation strategies.
const (
	ImputeMean         = "mean"
	ImputeMedian       = "median"
	ImputeMostFrequent = "most_frequent"
	ImputeConstant     = "constant"
)

// SimpleImputer fills NaN cells column by column with a statistic learned
// from the training data. Columns with no observed value during Fit are
// dropped by Transform.
type SimpleImputer struct {
	state *model.StateManager

	// Strategy は mean, median, most_frequent, constant のいずれか
	Strategy string

	// FillValue は constant 戦略で使う値
	FillValue float64

	// Statistics は列ごとの補完値 (全欠損列は NaN)
	Statistics []float64

	kept []int
}

// NewSimpleImputer creates a SimpleImputer with the given strategy.
func NewSimpleImputer(strategy string) (*SimpleImputer, error) {
	switch strategy {
	case ImputeMean, ImputeMedian, ImputeMostFrequent, ImputeConstant:
	default:
		return nil, errors.NewValidationError("strategy", "unknown numeric imputation strategy", strategy)
	}
	return &SimpleImputer{state: model.NewStateManager(), Strategy: strategy}, nil
}

// Fit learns one fill value per column.
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Statistics = make([]float64, c)
	s.kept = s.kept[:0]
	for j := 0; j < c; j++ {
		col := observed(X, j)
		if len(col) == 0 {
			s.Statistics[j] = math.NaN()
			continue
		}
		v, err := s.statistic(col)
		if err != nil {
			return errors.Wrapf(err, "SimpleImputer: column %d", j)
		}
		s.Statistics[j] = v
		s.kept = append(s.kept, j)
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

func (s *SimpleImputer) statistic(col []float64) (float64, error) {
	switch s.Strategy {
	case ImputeMean:
		return stats.Mean(col)
	case ImputeMedian:
		return stats.Median(col)
	case ImputeMostFrequent:
		return mostFrequentFloat(col), nil
	default:
		return s.FillValue, nil
	}
}

// Transform fills missing cells and drops columns that were entirely
// missing during Fit.
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}
	if len(s.kept) == 0 {
		return nil, errors.NewValueError("SimpleImputer.Transform", "every column is entirely missing")
	}
	out := mat.NewDense(r, len(s.kept), nil)
	for i := 0; i < r; i++ {
		for k, j := range s.kept {
			v := X.At(i, j)
			if math.IsNaN(v) {
				v = s.Statistics[j]
			}
			out.Set(i, k, v)
		}
	}
	return out, nil
}

// FitTransform implements model.Transformer.
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// KeptColumns returns the indices of the input columns present in the output.
func (s *SimpleImputer) KeptColumns() []int {
	return append([]int(nil), s.kept...)
}

// CategoricalImputer fills "" cells with the most frequent category or a
// constant string.
type CategoricalImputer struct {
	state *model.StateManager

	Strategy  string
	FillValue string

	// Statistic は学習した補完値 (全欠損列では "")
	Statistic string
}

// NewCategoricalImputer creates a CategoricalImputer.
func NewCategoricalImputer(strategy string) (*CategoricalImputer, error) {
	switch strategy {
	case ImputeMostFrequent, ImputeConstant:
	default:
		return nil, errors.NewValidationError("strategy", "unknown categorical imputation strategy", strategy)
	}
	return &CategoricalImputer{state: model.NewStateManager(), Strategy: strategy, FillValue: "missing"}, nil
}

// Fit learns the fill value.
func (c *CategoricalImputer) Fit(values []string) {
	if c.Strategy == ImputeConstant {
		c.Statistic = c.FillValue
	} else {
		c.Statistic = mostFrequentString(values)
	}
	c.state.SetDimensions(1, len(values))
	c.state.SetFitted()
}

// AllMissing reports whether Fit saw no observed value.
func (c *CategoricalImputer) AllMissing() bool {
	return c.Statistic == ""
}

// Transform returns a copy of values with missing cells filled.
func (c *CategoricalImputer) Transform(values []string) ([]string, error) {
	if err := c.state.RequireFitted("CategoricalImputer", "Transform"); err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = c.Statistic
		}
		out[i] = v
	}
	return out, nil
}

// mostFrequentFloat returns the most frequent value, the smallest on ties.
func mostFrequentFloat(col []float64) float64 {
	counts := make(map[float64]int, len(col))
	for _, v := range col {
		counts[v]++
	}
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

// mostFrequentString returns the most frequent non-empty value, the
// lexicographically smallest on ties.
func mostFrequentString(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best := ""
	for _, k := range Categories(values) {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
