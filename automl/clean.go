package automl

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/dataset"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
	"github.com/YuminosukeSato/atomgo/preprocessing"
)

// ScaleOptions configures Scale. The zero value standardizes.
type ScaleOptions struct {
	// Strategy is "standard" (default) or "minmax"
	Strategy string
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// Strategy encodes columns with more than MaxOneHot categories:
	// "LeaveOneOut" (default) or "Target"
	Strategy string
	// MaxOneHot is the largest cardinality that is one-hot encoded (default 10)
	MaxOneHot int
}

// ImputeOptions configures Impute.
type ImputeOptions struct {
	// StratNum is "drop", "mean", "median" (default) or "most_frequent"
	StratNum string
	// StratCat is "drop" or "most_frequent" (default)
	StratCat string
}

// StratDrop removes rows with a missing value instead of filling them
const StratDrop = "drop"

// Scale fits a scaler on the numeric training features and applies it to
// both splits. Categorical columns are left untouched and NaN is preserved.
func (c *Classifier) Scale(opts ScaleOptions) error {
	if opts.Strategy == "" {
		opts.Strategy = "standard"
	}
	scaler, err := preprocessing.NewScaler(opts.Strategy)
	if err != nil {
		return err
	}
	idx := c.numericIdx()
	if len(idx) == 0 {
		c.logger.Warn("No numeric columns to scale")
		c.branch = append(c.branch, fmt.Sprintf("Scale(strategy=%s): no numeric columns", opts.Strategy))
		return nil
	}

	trainOut, err := scaler.FitTransform(matrix(c.train, idx))
	if err != nil {
		return errors.Wrap(err, "failed to fit scaler")
	}
	testOut, err := scaler.Transform(matrix(c.test, idx))
	if err != nil {
		return errors.Wrap(err, "failed to transform test set")
	}
	for k, j := range idx {
		c.train[j].Num = mat.Col(nil, k, trainOut)
		c.test[j].Num = mat.Col(nil, k, testOut)
	}

	c.logger.Info("Scaled features",
		log.StageKey, "scale",
		log.StrategyKey, opts.Strategy,
		log.FeaturesKey, len(idx),
	)
	c.branch = append(c.branch, fmt.Sprintf("Scale(strategy=%s): %d numeric columns", opts.Strategy, len(idx)))
	return nil
}

// Encode converts every categorical feature into numeric columns, choosing
// the encoding by the number of categories in the training split.
// Missing cells stay missing (NaN).
func (c *Classifier) Encode(opts EncodeOptions) error {
	if opts.Strategy == "" {
		opts.Strategy = preprocessing.StrategyLeaveOneOut
	}
	if opts.MaxOneHot == 0 {
		opts.MaxOneHot = 10
	}

	var train, test []dataset.Column
	var summary []string
	for j, col := range c.train {
		if col.Kind != dataset.Categorical {
			train = append(train, col)
			test = append(test, c.test[j])
			continue
		}
		cardinality := len(preprocessing.Categories(col.Cat))
		enc, err := preprocessing.NewColumnEncoder(cardinality, opts.MaxOneHot, opts.Strategy)
		if err != nil {
			return err
		}
		trainOut, err := enc.FitTransform(col.Cat, c.yTrain)
		if err != nil {
			return errors.Wrapf(err, "failed to encode column %q", col.Name)
		}
		testOut, err := enc.Transform(c.test[j].Cat)
		if err != nil {
			return errors.Wrapf(err, "failed to encode column %q", col.Name)
		}
		names := enc.FeatureNames(col.Name)
		for k, name := range names {
			train = append(train, dataset.Column{Name: name, Kind: dataset.Numeric, Num: trainOut[k]})
			test = append(test, dataset.Column{Name: name, Kind: dataset.Numeric, Num: testOut[k]})
		}

		kind := encoderKind(enc)
		c.logger.Debug("Encoded column",
			log.StageKey, "encode",
			log.ColumnKey, col.Name,
			log.StrategyKey, kind,
			"categories", cardinality,
		)
		summary = append(summary, fmt.Sprintf("%s->%s", col.Name, kind))
	}
	c.train, c.test = train, test

	c.logger.Info("Encoded categorical features",
		log.StageKey, "encode",
		log.FeaturesKey, len(summary),
	)
	desc := "none"
	if len(summary) > 0 {
		desc = strings.Join(summary, ", ")
	}
	c.branch = append(c.branch, fmt.Sprintf("Encode(strategy=%s, max_onehot=%d): %s", opts.Strategy, opts.MaxOneHot, desc))
	return nil
}

func encoderKind(enc preprocessing.ColumnEncoder) string {
	switch enc.(type) {
	case *preprocessing.OrdinalEncoder:
		return "Ordinal"
	case *preprocessing.OneHotEncoder:
		return "OneHot"
	case *preprocessing.LeaveOneOutEncoder:
		return "LeaveOneOut"
	case *preprocessing.TargetEncoder:
		return "Target"
	}
	return fmt.Sprintf("%T", enc)
}

// Impute handles missing values: numeric columns are filled with a training
// statistic, categorical columns with the most frequent training category,
// or rows are dropped with the "drop" strategy. Columns that are entirely
// missing in the training split are removed.
func (c *Classifier) Impute(opts ImputeOptions) error {
	if opts.StratNum == "" {
		opts.StratNum = preprocessing.ImputeMedian
	}
	if opts.StratCat == "" {
		opts.StratCat = preprocessing.ImputeMostFrequent
	}
	switch opts.StratNum {
	case StratDrop, preprocessing.ImputeMean, preprocessing.ImputeMedian, preprocessing.ImputeMostFrequent:
	default:
		return errors.NewValidationError("strat_num", "must be drop, mean, median or most_frequent", opts.StratNum)
	}
	switch opts.StratCat {
	case StratDrop, preprocessing.ImputeMostFrequent:
	default:
		return errors.NewValidationError("strat_cat", "must be drop or most_frequent", opts.StratCat)
	}

	droppedCols := c.dropEmptyColumns()

	if err := c.imputeNumeric(opts.StratNum); err != nil {
		return err
	}
	if err := c.imputeCategorical(opts.StratCat); err != nil {
		return err
	}

	droppedRows := 0
	if opts.StratNum == StratDrop || opts.StratCat == StratDrop {
		droppedRows = c.dropMissingRows()
		if len(c.yTrain) == 0 || len(c.yTest) == 0 {
			return errors.NewValueError("Impute", "dropping rows with missing values left an empty split")
		}
	}

	c.logger.Info("Imputed missing values",
		log.StageKey, "impute",
		"strat_num", opts.StratNum,
		"strat_cat", opts.StratCat,
		"dropped_columns", len(droppedCols),
		"dropped_rows", droppedRows,
	)
	desc := fmt.Sprintf("Impute(strat_num=%s, strat_cat=%s)", opts.StratNum, opts.StratCat)
	if len(droppedCols) > 0 {
		desc += ": dropped " + strings.Join(droppedCols, ", ")
	}
	c.branch = append(c.branch, desc)
	return nil
}

// dropEmptyColumns removes features with no observed value in the training split
func (c *Classifier) dropEmptyColumns() []string {
	var dropped []string
	var train, test []dataset.Column
	for j, col := range c.train {
		if col.MissingCount() == col.Len() {
			dropped = append(dropped, col.Name)
			continue
		}
		train = append(train, col)
		test = append(test, c.test[j])
	}
	c.train, c.test = train, test
	return dropped
}

func (c *Classifier) imputeNumeric(strategy string) error {
	if strategy == StratDrop {
		return nil
	}
	idx := c.numericIdx()
	if len(idx) == 0 {
		return nil
	}
	imp, err := preprocessing.NewSimpleImputer(strategy)
	if err != nil {
		return err
	}
	trainOut, err := imp.FitTransform(matrix(c.train, idx))
	if err != nil {
		return errors.Wrap(err, "failed to impute numeric columns")
	}
	testOut, err := imp.Transform(matrix(c.test, idx))
	if err != nil {
		return errors.Wrap(err, "failed to impute numeric columns")
	}
	// empty columns were removed beforehand, so every column is kept
	for k, j := range imp.KeptColumns() {
		c.train[idx[j]].Num = mat.Col(nil, k, trainOut)
		c.test[idx[j]].Num = mat.Col(nil, k, testOut)
	}
	return nil
}

func (c *Classifier) imputeCategorical(strategy string) error {
	if strategy == StratDrop {
		return nil
	}
	for j, col := range c.train {
		if col.Kind != dataset.Categorical {
			continue
		}
		imp, err := preprocessing.NewCategoricalImputer(strategy)
		if err != nil {
			return err
		}
		imp.Fit(col.Cat)
		if c.train[j].Cat, err = imp.Transform(col.Cat); err != nil {
			return err
		}
		if c.test[j].Cat, err = imp.Transform(c.test[j].Cat); err != nil {
			return err
		}
	}
	return nil
}

// dropMissingRows removes rows that still hold a missing value
func (c *Classifier) dropMissingRows() int {
	before := len(c.yTrain) + len(c.yTest)
	c.train, c.yTrain = filterComplete(c.train, c.yTrain)
	c.test, c.yTest = filterComplete(c.test, c.yTest)
	return before - len(c.yTrain) - len(c.yTest)
}

func filterComplete(cols []dataset.Column, y []float64) ([]dataset.Column, []float64) {
	var keep []int
	for i := range y {
		complete := true
		for _, col := range cols {
			if col.IsMissing(i) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	out := make([]dataset.Column, len(cols))
	for j, col := range cols {
		out[j] = takeRows(col, keep)
	}
	yOut := make([]float64, len(keep))
	for k, i := range keep {
		yOut[k] = y[i]
	}
	return out, yOut
}

// hasMissing reports whether any numeric feature of either split holds NaN
func (c *Classifier) hasMissing() bool {
	for _, cols := range [][]dataset.Column{c.train, c.test} {
		for _, col := range cols {
			for _, v := range col.Num {
				if math.IsNaN(v) {
					return true
				}
			}
		}
	}
	return false
}
