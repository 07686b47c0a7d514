package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/salescast/internal/accuracy"
	"github.com/wonny/salescast/internal/modelconfig"
)

// Booster is a gradient-boosted regression tree ensemble minimizing squared error
type Booster struct {
	BaseScore     float64   `json:"base_score"`
	Trees         []*tree   `json:"trees"`
	Gain          []float64 `json:"gain"`
	BestIteration int       `json:"best_iteration"`
	BestScore     float64   `json:"best_score"`
}

// Predict sums the base score and every tree output for an already scaled row
func (b *Booster) Predict(x []float64) float64 {
	out := b.BaseScore
	for _, t := range b.Trees {
		out += t.predict(x)
	}
	return out
}

// evalSet is an optional validation slice used for early stopping
type evalSet struct {
	x [][]float64
	y []float64
}

// fitBooster trains up to NEstimators trees. With a non-empty eval set the
// ensemble stops after EarlyStoppingRounds rounds without a strict validation
// RMSE improvement and is truncated to the best iteration.
func fitBooster(ctx context.Context, cfg modelconfig.Booster, x [][]float64, y []float64, eval *evalSet) (*Booster, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	width := len(x[0])
	if width == 0 {
		return nil, fmt.Errorf("no feature columns")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	params := treeParams{
		maxDepth:       cfg.MaxDepth,
		lambda:         cfg.Lambda,
		minChildWeight: cfg.MinChildWeight,
		learningRate:   cfg.LearningRate,
	}

	b := &Booster{
		BaseScore:     stat.Mean(y, nil),
		Gain:          make([]float64, width),
		BestIteration: -1,
		BestScore:     math.Inf(1),
	}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = b.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}

	var evalPred []float64
	if eval != nil && len(eval.x) > 0 {
		evalPred = make([]float64, len(eval.x))
		for i := range evalPred {
			evalPred[i] = b.BaseScore
		}
	}

	// gains are staged per round so truncation drops the gain of discarded trees
	roundGain := make([][]float64, 0, cfg.NEstimators)
	sinceBest := 0

	for round := 0; round < cfg.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := range grad {
			grad[i] = pred[i] - y[i]
		}

		rows := sampleIndices(rng, n, cfg.Subsample)
		cols := sampleIndices(rng, width, cfg.ColsampleByTree)
		gain := make([]float64, width)

		t := newTreeBuilder(params, x, grad, hess, cols, gain).build(rows)
		b.Trees = append(b.Trees, t)
		roundGain = append(roundGain, gain)

		for i, row := range x {
			pred[i] += t.predict(row)
		}

		if evalPred == nil {
			continue
		}

		for i, row := range eval.x {
			evalPred[i] += t.predict(row)
		}
		score := accuracy.RMSE(eval.y, evalPred)
		if score < b.BestScore {
			b.BestScore = score
			b.BestIteration = round
			sinceBest = 0
			continue
		}
		sinceBest++
		if cfg.EarlyStoppingRounds > 0 && sinceBest >= cfg.EarlyStoppingRounds {
			break
		}
	}

	if evalPred != nil && b.BestIteration >= 0 {
		b.Trees = b.Trees[:b.BestIteration+1]
		roundGain = roundGain[:b.BestIteration+1]
	} else {
		b.BestIteration = len(b.Trees) - 1
	}

	for _, g := range roundGain {
		floats.Add(b.Gain, g)
	}
	return b, nil
}

// sampleIndices draws round(fraction*n) distinct indices (at least one) in ascending order
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	k := int(math.Round(fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	if k >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

// importances normalizes accumulated split gain to sum to 1
func (b *Booster) importances() []float64 {
	out := make([]float64, len(b.Gain))
	copy(out, b.Gain)
	total := floats.Sum(out)
	if total <= 0 {
		return out
	}
	floats.Scale(1/total, out)
	return out
}
