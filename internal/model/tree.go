package model

import (
	"sort"
)

// node is one node of a regression tree stored in a flat slice.
// Leaves carry the already shrunk output value.
type node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

// tree is a fitted regression tree; nodes[0] is the root
type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeParams are the per-tree growth limits
type treeParams struct {
	maxDepth       int
	lambda         float64
	minChildWeight float64
	learningRate   float64
}

// treeBuilder grows one tree with exact greedy split search over
// second-order gradient statistics (squared error: hessian 1 per row).
type treeBuilder struct {
	params treeParams
	x      [][]float64
	grad   []float64
	hess   []float64
	cols   []int
	gain   []float64 // split gain accumulated per feature
	nodes  []node
}

func newTreeBuilder(params treeParams, x [][]float64, grad, hess []float64, cols []int, gain []float64) *treeBuilder {
	return &treeBuilder{params: params, x: x, grad: grad, hess: hess, cols: cols, gain: gain}
}

func (b *treeBuilder) build(rows []int) *tree {
	b.nodes = nil
	b.grow(rows, 0)
	return &tree{Nodes: b.nodes}
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	g, h := b.sums(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{
		Leaf:  true,
		Value: -g / (h + b.params.lambda) * b.params.learningRate,
	})

	if depth >= b.params.maxDepth || len(rows) < 2 {
		return idx
	}

	best, ok := b.bestSplit(rows, g, h)
	if !ok {
		return idx
	}

	b.gain[best.feature] += best.gain
	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	b.nodes[idx] = node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
	}
	return idx
}

func (b *treeBuilder) sums(rows []int) (g, h float64) {
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

// bestSplit scans every sampled feature in sorted order and returns the
// threshold with the largest positive gain that respects min_child_weight
func (b *treeBuilder) bestSplit(rows []int, g, h float64) (split, bool) {
	lambda := b.params.lambda
	parent := g * g / (h + lambda)

	var best split
	found := false
	sorted := make([]int, len(rows))

	for _, f := range b.cols {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		var gl, hl float64
		for k := 0; k < len(sorted)-1; k++ {
			r := sorted[k]
			gl += b.grad[r]
			hl += b.hess[r]

			cur, next := b.x[r][f], b.x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.params.minChildWeight || hr < b.params.minChildWeight {
				continue
			}

			gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent)
			if gain > 1e-12 && (!found || gain > best.gain) {
				found = true
				threshold := (cur + next) / 2
				if threshold <= cur {
					threshold = next
				}
				best = split{feature: f, threshold: threshold, gain: gain}
			}
		}
	}

	if !found {
		return split{}, false
	}

	for _, r := range rows {
		if b.x[r][best.feature] < best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	if len(best.left) == 0 || len(best.right) == 0 {
		return split{}, false
	}
	return best, true
}
