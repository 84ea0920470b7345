package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Objective names
const (
	ObjectiveBinary     = "binary"
	ObjectiveMulticlass = "multiclass"
)

// ObjectiveFunction computes first and second order gradients of the loss.
// Scores are stored row-major with NumTrees() values per sample.
type ObjectiveFunction interface {
	// Name returns the objective name stored in the model
	Name() string

	// NumTrees returns the number of trees grown per boosting iteration
	NumTrees() int

	// InitScores returns the starting raw score of each tree slot
	InitScores(labels []int) []float64

	// Gradients fills grad and hess (row-major, NumTrees() per sample)
	Gradients(scores []float64, labels []int, grad, hess []float64)

	// Transform converts the raw scores of one sample into class probabilities
	Transform(raw []float64) []float64
}

// NewObjective returns the objective for the given number of classes.
func NewObjective(name string, nClasses int) (ObjectiveFunction, error) {
	switch name {
	case ObjectiveBinary:
		return &BinaryLogloss{}, nil
	case ObjectiveMulticlass:
		return &MulticlassSoftmax{NumClass: nClasses}, nil
	}
	return nil, errors.NewValidationError("objective", "must be binary or multiclass", name)
}

const minHessian = 1e-16

// BinaryLogloss is the logistic loss on one raw score per sample.
type BinaryLogloss struct{}

func (o *BinaryLogloss) Name() string  { return ObjectiveBinary }
func (o *BinaryLogloss) NumTrees() int { return 1 }

// InitScores returns log(p/(1-p)) of the positive rate
func (o *BinaryLogloss) InitScores(labels []int) []float64 {
	pos := 0
	for _, l := range labels {
		pos += l
	}
	p := errors.ClipValue(float64(pos)/float64(len(labels)), 1e-15, 1-1e-15)
	return []float64{math.Log(p / (1 - p))}
}

func (o *BinaryLogloss) Gradients(scores []float64, labels []int, grad, hess []float64) {
	for i, s := range scores {
		p := sigmoid(s)
		grad[i] = p - float64(labels[i])
		hess[i] = math.Max(p*(1-p), minHessian)
	}
}

func (o *BinaryLogloss) Transform(raw []float64) []float64 {
	p := sigmoid(raw[0])
	return []float64{1 - p, p}
}

// MulticlassSoftmax is the cross-entropy loss on NumClass raw scores per sample.
type MulticlassSoftmax struct {
	NumClass int
}

func (o *MulticlassSoftmax) Name() string  { return ObjectiveMulticlass }
func (o *MulticlassSoftmax) NumTrees() int { return o.NumClass }

// InitScores returns the log class priors
func (o *MulticlassSoftmax) InitScores(labels []int) []float64 {
	counts := make([]float64, o.NumClass)
	for _, l := range labels {
		counts[l]++
	}
	init := make([]float64, o.NumClass)
	for k, c := range counts {
		init[k] = errors.StabilizeLog(c / float64(len(labels)))
	}
	return init
}

func (o *MulticlassSoftmax) Gradients(scores []float64, labels []int, grad, hess []float64) {
	k := o.NumClass
	factor := float64(k) / float64(k-1)
	for i := range labels {
		p := softmax(scores[i*k : (i+1)*k])
		for c := 0; c < k; c++ {
			target := 0.0
			if labels[i] == c {
				target = 1
			}
			grad[i*k+c] = p[c] - target
			hess[i*k+c] = math.Max(factor*p[c]*(1-p[c]), minHessian)
		}
	}
}

func (o *MulticlassSoftmax) Transform(raw []float64) []float64 {
	return softmax(raw)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + errors.StabilizeExp(-x))
}

func softmax(raw []float64) []float64 {
	lse := errors.LogSumExp(raw)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = math.Exp(v - lse)
	}
	return out
}
