package lightgbm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// maxBinLimit is the largest number of value bins per feature. One more bin
// is reserved for missing values, so bin indices fit in a uint8.
const maxBinLimit = 255

// BinMapper discretizes one feature into ordered bins.
// Bin b holds the values v with UpperBounds[b-1] < v <= UpperBounds[b].
// The last upper bound is always +Inf. NaN maps to MissingBin.
type BinMapper struct {
	UpperBounds []float64 `json:"upper_bounds"`
}

// NumBins returns the number of value bins (without the missing bin)
func (m *BinMapper) NumBins() int { return len(m.UpperBounds) }

// MissingBin returns the index of the bin holding NaN
func (m *BinMapper) MissingBin() int { return len(m.UpperBounds) }

// ValueToBin maps a raw feature value to its bin index
func (m *BinMapper) ValueToBin(v float64) int {
	if math.IsNaN(v) {
		return m.MissingBin()
	}
	return sort.SearchFloat64s(m.UpperBounds, v)
}

// NewBinMapper builds bin boundaries from the observed values of a feature.
// Up to maxBin distinct values each get their own bin; beyond that the bins
// hold roughly equal numbers of samples.
func NewBinMapper(values []float64, maxBin int) *BinMapper {
	if maxBin < 2 || maxBin > maxBinLimit {
		maxBin = maxBinLimit
	}
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) == 0 {
		return &BinMapper{UpperBounds: []float64{math.Inf(1)}}
	}
	sort.Float64s(observed)

	distinct := make([]float64, 0)
	counts := make([]int, 0)
	for i, v := range observed {
		if i == 0 || v != observed[i-1] {
			distinct = append(distinct, v)
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
	}

	bounds := make([]float64, 0, maxBin)
	if len(distinct) <= maxBin {
		for i := 0; i < len(distinct)-1; i++ {
			bounds = append(bounds, midpoint(distinct[i], distinct[i+1]))
		}
	} else {
		perBin := float64(len(observed)) / float64(maxBin)
		cum := 0
		for i := 0; i < len(distinct)-1 && len(bounds) < maxBin-1; i++ {
			cum += counts[i]
			if float64(cum) >= perBin*float64(len(bounds)+1) {
				bounds = append(bounds, midpoint(distinct[i], distinct[i+1]))
			}
		}
	}
	bounds = append(bounds, math.Inf(1))
	return &BinMapper{UpperBounds: bounds}
}

func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		return a
	}
	return m
}

// binnedData is the training matrix after discretization.
type binnedData struct {
	mappers []*BinMapper
	bins    [][]uint8 // [feature][row]
	offsets []int     // start of each feature in a flat histogram
	size    int
}

func newBinnedData(X mat.Matrix, maxBin int) *binnedData {
	rows, cols := X.Dims()
	d := &binnedData{
		mappers: make([]*BinMapper, cols),
		bins:    make([][]uint8, cols),
		offsets: make([]int, cols),
	}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		m := NewBinMapper(col, maxBin)
		d.mappers[j] = m
		b := make([]uint8, rows)
		for i, v := range col {
			b[i] = uint8(m.ValueToBin(v))
		}
		d.bins[j] = b
		d.offsets[j] = d.size
		d.size += m.NumBins() + 1
	}
	return d
}

// histBin accumulates gradient statistics of the samples in one bin.
type histBin struct {
	grad  float64
	hess  float64
	count int
}

// histogram is a flat array of bins for every feature, laid out by offsets.
type histogram []histBin

// buildHistogram accumulates gradients of rows for the given features
func (d *binnedData) buildHistogram(rows []int, grad, hess []float64, features []int) histogram {
	h := make(histogram, d.size)
	for _, f := range features {
		base := d.offsets[f]
		col := d.bins[f]
		for _, i := range rows {
			b := &h[base+int(col[i])]
			b.grad += grad[i]
			b.hess += hess[i]
			b.count++
		}
	}
	return h
}

// subtract returns parent - child, the histogram of the sibling leaf.
func (h histogram) subtract(child histogram) histogram {
	out := make(histogram, len(h))
	for i := range h {
		out[i] = histBin{
			grad:  h[i].grad - child[i].grad,
			hess:  h[i].hess - child[i].hess,
			count: h[i].count - child[i].count,
		}
	}
	return out
}
