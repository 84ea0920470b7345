package xgboost

import (
	"math"
	"sort"
)

// kRtEps is the smallest loss change accepted as an improvement.
const kRtEps = 1e-6

// Node is one node of a regression tree, in the layout of XGBoost's JSON dump.
// Leaves have Split == -1.
type Node struct {
	NodeID         int     `json:"nodeid"`
	Depth          int     `json:"depth"`
	Split          int     `json:"split"`
	SplitCondition float64 `json:"split_condition"`
	Yes            int     `json:"yes"`
	No             int     `json:"no"`
	Missing        int     `json:"missing"`
	Leaf           float64 `json:"leaf"`
	Gain           float64 `json:"gain"`
	Cover          float64 `json:"cover"`
}

// IsLeaf reports whether n is a leaf
func (n *Node) IsLeaf() bool { return n.Split < 0 }

// Tree is a regression tree on margins.
type Tree []Node

// Predict returns the leaf value reached by x.
// Values below the split condition go to Yes, NaN goes to Missing.
func (t Tree) Predict(x []float64) float64 {
	n := &t[0]
	for !n.IsLeaf() {
		v := x[n.Split]
		switch {
		case math.IsNaN(v):
			n = &t[n.Missing]
		case v < n.SplitCondition:
			n = &t[n.Yes]
		default:
			n = &t[n.No]
		}
	}
	return n.Leaf
}

// treeParams holds the regularization used while growing one tree
type treeParams struct {
	eta            float64
	maxDepth       int
	minChildWeight float64
	gamma          float64
	lambda         float64
	alpha          float64
}

func (p treeParams) thresholdL1(g float64) float64 {
	switch {
	case g > p.alpha:
		return g - p.alpha
	case g < -p.alpha:
		return g + p.alpha
	}
	return 0
}

// gain is the structure score G^2 / (H + lambda) of a node
func (p treeParams) gain(g, h float64) float64 {
	if h < p.minChildWeight {
		return 0
	}
	t := p.thresholdL1(g)
	return t * t / (h + p.lambda)
}

// weight is the optimal leaf weight -G / (H + lambda)
func (p treeParams) weight(g, h float64) float64 {
	if h < p.minChildWeight {
		return 0
	}
	return -p.thresholdL1(g) / (h + p.lambda)
}

// grower builds one tree with the exact greedy algorithm
type grower struct {
	params   treeParams
	X        [][]float64
	sorted   [][]int // per feature, rows with a value, ordered by value
	features []int
	grad     []float64
	hess     []float64
	inNode   []bool
	tree     Tree
}

// presort orders the non-missing rows of every feature by value
func presort(X [][]float64, nFeatures int) [][]int {
	sorted := make([][]int, nFeatures)
	for f := 0; f < nFeatures; f++ {
		idx := make([]int, 0, len(X))
		for i, row := range X {
			if !math.IsNaN(row[f]) {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool { return X[idx[a]][f] < X[idx[b]][f] })
		sorted[f] = idx
	}
	return sorted
}

type candidate struct {
	feature     int
	threshold   float64
	defaultLeft bool
	lossChg     float64
}

// grow adds the subtree for rows and returns its node id
func (g *grower) grow(rows []int, depth int) int {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += g.grad[i]
		sumH += g.hess[i]
	}
	id := len(g.tree)
	g.tree = append(g.tree, Node{
		NodeID: id,
		Depth:  depth,
		Split:  -1,
		Leaf:   g.params.eta * g.params.weight(sumG, sumH),
		Cover:  sumH,
	})

	if depth >= g.params.maxDepth || sumH < 2*g.params.minChildWeight {
		return id
	}
	best, ok := g.bestSplit(rows, sumG, sumH)
	if !ok || best.lossChg < kRtEps || best.lossChg < g.params.gamma {
		return id
	}

	var left, right []int
	for _, i := range rows {
		v := g.X[i][best.feature]
		if (math.IsNaN(v) && best.defaultLeft) || (!math.IsNaN(v) && v < best.threshold) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	yes := g.grow(left, depth+1)
	no := g.grow(right, depth+1)

	n := &g.tree[id]
	n.Split = best.feature
	n.SplitCondition = best.threshold
	n.Yes = yes
	n.No = no
	n.Missing = no
	if best.defaultLeft {
		n.Missing = yes
	}
	n.Gain = best.lossChg
	n.Leaf = 0
	return id
}

// bestSplit enumerates every distinct value of every feature, trying the
// missing values on the right and then on the left.
func (g *grower) bestSplit(rows []int, sumG, sumH float64) (candidate, bool) {
	for _, i := range rows {
		g.inNode[i] = true
	}
	defer func() {
		for _, i := range rows {
			g.inNode[i] = false
		}
	}()

	p := g.params
	rootGain := p.gain(sumG, sumH)
	best := candidate{lossChg: math.Inf(-1)}
	found := false

	for _, f := range g.features {
		present := make([]int, 0, len(rows))
		var presG, presH float64
		for _, i := range g.sorted[f] {
			if g.inNode[i] {
				present = append(present, i)
				presG += g.grad[i]
				presH += g.hess[i]
			}
		}
		if len(present) < 1 {
			continue
		}
		missG, missH := sumG-presG, sumH-presH

		for _, missingLeft := range [2]bool{false, true} {
			var lg, lh float64
			if missingLeft {
				lg, lh = missG, missH
			}
			hasMissing := len(present) < len(rows)
			for k := 0; k < len(present); k++ {
				i := present[k]
				lg += g.grad[i]
				lh += g.hess[i]
				cur := g.X[i][f]
				next := math.Inf(1)
				if k < len(present)-1 {
					next = g.X[present[k+1]][f]
				} else if missingLeft || !hasMissing {
					// all values on one side is only a split against the missing rows
					break
				}
				if cur == next {
					continue
				}
				rg, rh := sumG-lg, sumH-lh
				if lh < p.minChildWeight || rh < p.minChildWeight {
					continue
				}
				chg := p.gain(lg, lh) + p.gain(rg, rh) - rootGain
				if chg > best.lossChg {
					threshold := cur + (next-cur)/2
					if math.IsInf(next, 1) {
						threshold = math.Nextafter(cur, next)
					} else if threshold <= cur {
						threshold = next
					}
					best = candidate{feature: f, threshold: threshold, defaultLeft: missingLeft, lossChg: chg}
					found = true
				}
			}
			if !hasMissing {
				// nothing missing: the second direction is identical
				break
			}
		}
	}
	return best, found
}
