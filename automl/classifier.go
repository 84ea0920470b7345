// Package automl drives an end-to-end binary classification experiment on a
// tabular dataset: train/test split, data cleaning, multi-model fitting,
// evaluation and plotting.
//
// A Classifier owns a private copy of the data. Cleaning steps are applied in
// call order and always fitted on the training split only:
//
//	clf, err := automl.NewClassifier(ds, automl.WithRandomState(1))
//	if err != nil {
//	    return err
//	}
//	_ = clf.Encode(automl.EncodeOptions{Strategy: "LeaveOneOut", MaxOneHot: 10})
//	_ = clf.Impute(automl.ImputeOptions{StratNum: "median", StratCat: "most_frequent"})
//	if err := clf.Run(ctx, []automl.ModelID{automl.RF, automl.LGB}, "f1"); err != nil {
//	    return err
//	}
//	table, err := clf.Evaluate()
package automl

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/dataset"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// Defaults
const (
	DefaultTestSize    = 0.2
	DefaultRandomState = 1
)

// Classifier holds the data and the fitted models of one experiment.
type Classifier struct {
	logger      log.Logger
	randomState int64
	testSize    float64
	nJobs       int
	nEstimators int

	target  string
	mapping []string // label code -> original target value

	train  []dataset.Column
	test   []dataset.Column
	yTrain []float64
	yTest  []float64

	branch  []string
	metric  string
	results []*ModelResult
}

// Option configures a Classifier
type Option func(*Classifier)

// WithRandomState sets the seed of the split and of every model
func WithRandomState(seed int64) Option { return func(c *Classifier) { c.randomState = seed } }

// WithTestSize sets the fraction of rows held out for evaluation
func WithTestSize(size float64) Option { return func(c *Classifier) { c.testSize = size } }

// WithLogger sets the logger
func WithLogger(l log.Logger) Option { return func(c *Classifier) { c.logger = l } }

// WithNJobs sets the worker count used by the forests (0 or less means all CPUs)
func WithNJobs(n int) Option { return func(c *Classifier) { c.nJobs = n } }

// WithNEstimators overrides the number of trees or boosting rounds of the
// ensemble models (0 keeps each model's default)
func WithNEstimators(n int) Option { return func(c *Classifier) { c.nEstimators = n } }

// NewClassifier copies ds, drops rows with a missing target, label-encodes
// the target (last column) and makes a stratified train/test split.
func NewClassifier(ds *dataset.Dataset, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		randomState: DefaultRandomState,
		testSize:    DefaultTestSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger, "automl")

	if ds == nil || ds.NRows() == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if ds.NCols() < 2 {
		return nil, errors.NewValueError("NewClassifier", "dataset needs at least one feature column and a target column")
	}
	if c.testSize <= 0 || c.testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", c.testSize)
	}

	targetCol := ds.Target()
	c.target = targetCol.Name
	rows := make([]int, 0, ds.NRows())
	for i := 0; i < ds.NRows(); i++ {
		if !targetCol.IsMissing(i) {
			rows = append(rows, i)
		}
	}
	if dropped := ds.NRows() - len(rows); dropped > 0 {
		c.logger.Info("Dropped rows with a missing target",
			log.ColumnKey, c.target,
			"rows", dropped,
		)
	}

	labels, mapping := encodeTarget(targetCol, rows)
	c.mapping = mapping

	trainIdx, testIdx, err := stratifiedSplit(labels, c.testSize, c.randomState)
	if err != nil {
		return nil, err
	}

	features := ds.Columns()
	features = features[:len(features)-1]
	c.train = make([]dataset.Column, len(features))
	c.test = make([]dataset.Column, len(features))
	for j, col := range features {
		c.train[j] = takeRows(col, pick(rows, trainIdx))
		c.test[j] = takeRows(col, pick(rows, testIdx))
	}
	c.yTrain = pickFloat(labels, trainIdx)
	c.yTest = pickFloat(labels, testIdx)

	c.logger.Info("Initialized experiment",
		log.SourceKey, ds.Name(),
		log.SamplesKey, len(rows),
		log.FeaturesKey, len(features),
		log.ClassesKey, len(mapping),
		"train", len(trainIdx),
		"test", len(testIdx),
	)
	return c, nil
}

// encodeTarget maps the target values of rows to codes 0..k-1 in sorted
// order (numeric order for numeric targets).
func encodeTarget(col dataset.Column, rows []int) ([]int, []string) {
	seen := make(map[string]struct{})
	for _, i := range rows {
		seen[col.String(i)] = struct{}{}
	}
	mapping := make([]string, 0, len(seen))
	for v := range seen {
		mapping = append(mapping, v)
	}
	if col.Kind == dataset.Numeric {
		sort.Slice(mapping, func(a, b int) bool {
			x, _ := strconv.ParseFloat(mapping[a], 64)
			y, _ := strconv.ParseFloat(mapping[b], 64)
			return x < y
		})
	} else {
		sort.Strings(mapping)
	}
	code := make(map[string]int, len(mapping))
	for k, v := range mapping {
		code[v] = k
	}
	labels := make([]int, len(rows))
	for k, i := range rows {
		labels[k] = code[col.String(i)]
	}
	return labels, mapping
}

// stratifiedSplit shuffles every class with the seed and holds out
// round(testSize * n_class) rows of it, keeping at least one row of each
// class with two or more rows on both sides.
func stratifiedSplit(labels []int, testSize float64, seed int64) (train, test []int, err error) {
	if len(labels) < 2 {
		return nil, nil, errors.NewValueError("NewClassifier", "need at least two rows with a target value")
	}
	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for l := range byClass {
		classes = append(classes, l)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, l := range classes {
		idx := byClass[l]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(math.Round(testSize * float64(len(idx))))
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		if nTest >= len(idx) && len(idx) > 1 {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, errors.NewValueError("NewClassifier", "train/test split left one side empty")
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func pick(rows, idx []int) []int {
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = rows[i]
	}
	return out
}

func pickFloat(labels, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = float64(labels[i])
	}
	return out
}

func takeRows(col dataset.Column, rows []int) dataset.Column {
	out := dataset.Column{Name: col.Name, Kind: col.Kind}
	if col.Kind == dataset.Categorical {
		out.Cat = make([]string, len(rows))
		for k, i := range rows {
			out.Cat[k] = col.Cat[i]
		}
		return out
	}
	out.Num = make([]float64, len(rows))
	for k, i := range rows {
		out.Num[k] = col.Num[i]
	}
	return out
}

// Target returns the name of the target column
func (c *Classifier) Target() string { return c.target }

// Mapping returns the original target value of every label code
func (c *Classifier) Mapping() []string { return append([]string(nil), c.mapping...) }

// Shape returns the number of train rows, test rows and feature columns
func (c *Classifier) Shape() (nTrain, nTest, nFeatures int) {
	return len(c.yTrain), len(c.yTest), len(c.train)
}

// FeatureNames returns the current feature column names
func (c *Classifier) FeatureNames() []string {
	names := make([]string, len(c.train))
	for j, col := range c.train {
		names[j] = col.Name
	}
	return names
}

// Branch returns a description of every transformation applied so far
func (c *Classifier) Branch() []string { return append([]string(nil), c.branch...) }

// categorical returns the names of the remaining categorical features
func (c *Classifier) categorical() []string {
	var names []string
	for _, col := range c.train {
		if col.Kind == dataset.Categorical {
			names = append(names, col.Name)
		}
	}
	return names
}

// numericIdx returns the positions of the numeric features
func (c *Classifier) numericIdx() []int {
	var idx []int
	for j, col := range c.train {
		if col.Kind == dataset.Numeric {
			idx = append(idx, j)
		}
	}
	return idx
}

// matrix stacks the given numeric columns into a dense matrix
func matrix(cols []dataset.Column, idx []int) *mat.Dense {
	if len(cols) == 0 || len(idx) == 0 {
		return nil
	}
	n := cols[idx[0]].Len()
	m := mat.NewDense(n, len(idx), nil)
	for k, j := range idx {
		m.SetCol(k, cols[j].Num)
	}
	return m
}

func allIdx(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
