package lightgbm

import (
	"math"
)

// TrainingParams holds the parameters of leaf-wise tree growth
type TrainingParams struct {
	LearningRate   float64
	NumLeaves      int
	MaxDepth       int // <= 0 means no limit
	MinDataInLeaf  int
	MinSumHessian  float64
	Lambda         float64 // L2 regularization
	Alpha          float64 // L1 regularization
	MinGainToSplit float64
}

// splitInfo describes the best split found for a leaf
type splitInfo struct {
	feature     int
	bin         int // rows with bin <= bin go left
	threshold   float64
	defaultLeft bool
	gain        float64

	leftGrad, leftHess   float64
	leftCount            int
	rightGrad, rightHess float64
	rightCount           int
}

// leafState is a leaf under construction
type leafState struct {
	node  int
	rows  []int
	grad  float64
	hess  float64
	depth int
	hist  histogram
	best  splitInfo
	ok    bool
}

// treeLearner grows one tree on fixed gradients
type treeLearner struct {
	params   TrainingParams
	data     *binnedData
	features []int
	grad     []float64
	hess     []float64
}

// thresholdL1 applies L1 soft thresholding to a gradient sum
func thresholdL1(g, alpha float64) float64 {
	if alpha <= 0 {
		return g
	}
	if g > alpha {
		return g - alpha
	}
	if g < -alpha {
		return g + alpha
	}
	return 0
}

func (tl *treeLearner) leafGain(g, h float64) float64 {
	t := thresholdL1(g, tl.params.Alpha)
	return t * t / (h + tl.params.Lambda)
}

func (tl *treeLearner) leafOutput(g, h float64) float64 {
	return -thresholdL1(g, tl.params.Alpha) / (h + tl.params.Lambda)
}

// train grows a tree leaf-wise on rows
func (tl *treeLearner) train(rows []int) Tree {
	root := &leafState{rows: rows, depth: 0}
	for _, i := range rows {
		root.grad += tl.grad[i]
		root.hess += tl.hess[i]
	}
	root.hist = tl.data.buildHistogram(rows, tl.grad, tl.hess, tl.features)
	tl.findBestSplit(root)

	tree := Tree{Nodes: []Node{{LeftChild: -1, RightChild: -1}}}
	leaves := []*leafState{root}

	for len(leaves) < tl.params.NumLeaves {
		bestIdx := -1
		for i, l := range leaves {
			if l.ok && (bestIdx < 0 || l.best.gain > leaves[bestIdx].best.gain) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		left, right := tl.split(&tree, leaves[bestIdx])
		leaves[bestIdx] = left
		leaves = append(leaves, right)
	}

	for _, l := range leaves {
		n := &tree.Nodes[l.node]
		n.LeafValue = tl.params.LearningRate * tl.leafOutput(l.grad, l.hess)
		n.LeafCount = len(l.rows)
	}
	return tree
}

// split turns leaf into an internal node and returns its two children
func (tl *treeLearner) split(tree *Tree, leaf *leafState) (*leafState, *leafState) {
	s := leaf.best
	col := tl.data.bins[s.feature]
	missing := tl.data.mappers[s.feature].MissingBin()

	left := &leafState{depth: leaf.depth + 1, grad: s.leftGrad, hess: s.leftHess,
		rows: make([]int, 0, s.leftCount)}
	right := &leafState{depth: leaf.depth + 1, grad: s.rightGrad, hess: s.rightHess,
		rows: make([]int, 0, s.rightCount)}
	for _, i := range leaf.rows {
		b := int(col[i])
		if (b == missing && s.defaultLeft) || (b != missing && b <= s.bin) {
			left.rows = append(left.rows, i)
		} else {
			right.rows = append(right.rows, i)
		}
	}

	left.node = len(tree.Nodes)
	right.node = left.node + 1
	tree.Nodes = append(tree.Nodes,
		Node{LeftChild: -1, RightChild: -1},
		Node{LeftChild: -1, RightChild: -1})
	n := &tree.Nodes[leaf.node]
	n.LeftChild = left.node
	n.RightChild = right.node
	n.SplitFeature = s.feature
	n.Threshold = s.threshold
	n.DefaultLeft = s.defaultLeft
	n.Gain = s.gain

	// histogram subtraction: build the smaller child, derive the larger one
	small, large := left, right
	if len(right.rows) < len(left.rows) {
		small, large = right, left
	}
	small.hist = tl.data.buildHistogram(small.rows, tl.grad, tl.hess, tl.features)
	large.hist = leaf.hist.subtract(small.hist)
	leaf.hist = nil

	tl.findBestSplit(left)
	tl.findBestSplit(right)
	return left, right
}

// findBestSplit scans the histogram of leaf for the split with the largest gain
func (tl *treeLearner) findBestSplit(leaf *leafState) {
	leaf.ok = false
	p := tl.params
	if p.MaxDepth > 0 && leaf.depth >= p.MaxDepth {
		return
	}
	minData := p.MinDataInLeaf
	if minData < 1 {
		minData = 1
	}
	if len(leaf.rows) < 2*minData {
		return
	}
	parentGain := tl.leafGain(leaf.grad, leaf.hess)
	total := len(leaf.rows)

	for _, f := range tl.features {
		m := tl.data.mappers[f]
		base := tl.data.offsets[f]
		nb := m.NumBins()
		miss := leaf.hist[base+m.MissingBin()]

		var accG, accH float64
		accN := 0
		for b := 0; b < nb; b++ {
			bin := leaf.hist[base+b]
			accG += bin.grad
			accH += bin.hess
			accN += bin.count

			// at the last bin only "missing alone on the right" is a split
			tryLeft := miss.count > 0 && b < nb-1
			for _, toLeft := range [2]bool{false, true} {
				if toLeft && !tryLeft {
					continue
				}
				lg, lh, ln := accG, accH, accN
				if toLeft {
					lg += miss.grad
					lh += miss.hess
					ln += miss.count
				}
				rg, rh, rn := leaf.grad-lg, leaf.hess-lh, total-ln
				if ln < minData || rn < minData || lh < p.MinSumHessian || rh < p.MinSumHessian {
					continue
				}
				gain := tl.leafGain(lg, lh) + tl.leafGain(rg, rh) - parentGain
				if gain <= p.MinGainToSplit || (leaf.ok && gain <= leaf.best.gain) {
					continue
				}
				defaultLeft := toLeft
				if miss.count == 0 {
					// no missing values seen here: send them with the heavier side
					defaultLeft = lh >= rh
				}
				threshold := m.UpperBounds[b]
				if math.IsInf(threshold, 1) {
					threshold = math.MaxFloat64
				}
				leaf.best = splitInfo{
					feature: f, bin: b, threshold: threshold, defaultLeft: defaultLeft, gain: gain,
					leftGrad: lg, leftHess: lh, leftCount: ln,
					rightGrad: rg, rightHess: rh, rightCount: rn,
				}
				leaf.ok = true
			}
		}
	}
}
