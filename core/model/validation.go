package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// ValidateXY checks that X and y are non-empty and aligned, returning the
// sample and feature counts.
func ValidateXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.WithStack(errors.ErrEmptyData)
	}
	yRows, _ := y.Dims()
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	return nSamples, nFeatures, nil
}

// ExtractClasses returns the sorted distinct integer labels in the first
// column of y. Labels must be finite non-negative integers.
func ExtractClasses(op string, y mat.Matrix) ([]int, error) {
	n, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || v < 0 || v != math.Trunc(v) {
			return nil, errors.NewValueError(op, "target must contain non-negative integer labels")
		}
		seen[int(v)] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, nil
}

// ClassIndex maps every label in y to its position in classes.
func ClassIndex(y mat.Matrix, classes []int) []int {
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	n, _ := y.Dims()
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		idx[i] = pos[int(y.At(i, 0))]
	}
	return idx
}

// ArgmaxLabels converts a probability matrix into a column of class labels.
func ArgmaxLabels(proba mat.Matrix, classes []int) *mat.Dense {
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

// Accuracy is the share of rows where the first columns of yTrue and yPred agree.
func Accuracy(yTrue, yPred mat.Matrix) float64 {
	n, _ := yTrue.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.At(i, 0) == yPred.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
