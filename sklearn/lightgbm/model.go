package lightgbm

import (
	"encoding/json"
	"math"
	"os"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Node represents a single node in a decision tree.
// Leaves have LeftChild == RightChild == -1.
type Node struct {
	LeftChild  int `json:"left_child"`
	RightChild int `json:"right_child"`

	// Split information (for non-leaf nodes)
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`
	DefaultLeft  bool    `json:"default_left"` // direction for missing values
	Gain         float64 `json:"split_gain"`

	// Leaf information. LeafValue already includes the learning rate.
	LeafValue float64 `json:"leaf_value"`
	LeafCount int     `json:"leaf_count"`
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a single regression tree on raw scores.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value reached by x
func (t *Tree) Predict(x []float64) float64 {
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		v := x[n.SplitFeature]
		var left bool
		if math.IsNaN(v) {
			left = n.DefaultLeft
		} else {
			left = v <= n.Threshold
		}
		if left {
			n = &t.Nodes[n.LeftChild]
		} else {
			n = &t.Nodes[n.RightChild]
		}
	}
	return n.LeafValue
}

// NumLeaves returns the number of leaves
func (t *Tree) NumLeaves() int {
	c := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			c++
		}
	}
	return c
}

// Model is a trained boosting ensemble.
// Trees are stored iteration-major: tree k of iteration m is Trees[m*TreesPerIteration+k].
type Model struct {
	Objective         string    `json:"objective"`
	NumClass          int       `json:"num_class"`
	Classes           []int     `json:"classes"`
	NumFeatures       int       `json:"num_features"`
	TreesPerIteration int       `json:"trees_per_iteration"`
	InitScores        []float64 `json:"init_scores"`
	Trees             []Tree    `json:"trees"`
}

// NumIterations returns the number of boosting iterations kept in the model
func (m *Model) NumIterations() int {
	if m.TreesPerIteration == 0 {
		return 0
	}
	return len(m.Trees) / m.TreesPerIteration
}

// RawScores returns the summed tree outputs for one sample
func (m *Model) RawScores(x []float64) []float64 {
	raw := append([]float64(nil), m.InitScores...)
	for t := range m.Trees {
		raw[t%m.TreesPerIteration] += m.Trees[t].Predict(x)
	}
	return raw
}

// FeatureImportance returns the number of splits ("split") or the total gain
// ("gain") of every feature.
func (m *Model) FeatureImportance(importanceType string) []float64 {
	imp := make([]float64, m.NumFeatures)
	for t := range m.Trees {
		for _, n := range m.Trees[t].Nodes {
			if n.IsLeaf() {
				continue
			}
			if importanceType == "split" {
				imp[n.SplitFeature]++
			} else {
				imp[n.SplitFeature] += n.Gain
			}
		}
	}
	return imp
}

// SaveToFile writes the model as JSON
func (m *Model) SaveToFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write model to %s", path)
	}
	return nil
}

// LoadFromFile reads a model written by SaveToFile
func LoadFromFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model from %s", path)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode model")
	}
	if m.TreesPerIteration < 1 || len(m.InitScores) != m.TreesPerIteration {
		return nil, errors.Newf("invalid model: %d trees per iteration with %d init scores",
			m.TreesPerIteration, len(m.InitScores))
	}
	if len(m.Classes) != m.NumClass || m.NumClass < 2 {
		return nil, errors.Newf("invalid model: %d classes listed for num_class %d",
			len(m.Classes), m.NumClass)
	}
	return &m, nil
}
