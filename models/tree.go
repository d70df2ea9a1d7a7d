package models

import (
	"math/rand"
	"sort"
)

// treeConfig controls regression-tree growth. Boosting uses shallow trees
// (small maxDepth, all features); the forest uses deep trees with a random
// feature subset per split.
type treeConfig struct {
	maxDepth int // 0 = unlimited
	minLeaf  int
	mtry     int // features considered per split; 0 = all
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// growTree builds a regression tree over the given rows by greedy SSE
// minimization. rng is only consulted when cfg.mtry limits the feature
// subset; pass nil for deterministic all-feature growth.
func growTree(x [][]float64, y []float64, rows []int, cfg treeConfig, depth int, rng *rand.Rand) *treeNode {
	node := &treeNode{leaf: true, value: meanOf(y, rows)}
	if len(rows) < 2*cfg.minLeaf {
		return node
	}
	if cfg.maxDepth > 0 && depth >= cfg.maxDepth {
		return node
	}

	feature, threshold, ok := bestSplit(x, y, rows, cfg, rng)
	if !ok {
		return node
	}

	var left, right []int
	for _, r := range rows {
		if x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < cfg.minLeaf || len(right) < cfg.minLeaf {
		return node
	}

	node.leaf = false
	node.feature = feature
	node.threshold = threshold
	node.left = growTree(x, y, left, cfg, depth+1, rng)
	node.right = growTree(x, y, right, cfg, depth+1, rng)
	return node
}

// bestSplit scans candidate features for the split with the lowest total
// SSE. Candidate thresholds are midpoints between consecutive distinct
// values. Only strictly better splits replace the incumbent, so ties resolve
// toward the lowest feature index deterministically.
func bestSplit(x [][]float64, y []float64, rows []int, cfg treeConfig, rng *rand.Rand) (int, float64, bool) {
	p := len(x[rows[0]])
	features := make([]int, p)
	for i := range features {
		features[i] = i
	}
	if cfg.mtry > 0 && cfg.mtry < p && rng != nil {
		perm := rng.Perm(p)
		features = perm[:cfg.mtry]
		sort.Ints(features)
	}

	type fv struct {
		v float64
		y float64
	}
	bestFeature, bestThreshold := -1, 0.0
	bestSSE := sseOf(y, rows)
	found := false

	vals := make([]fv, 0, len(rows))
	for _, f := range features {
		vals = vals[:0]
		for _, r := range rows {
			vals = append(vals, fv{v: x[r][f], y: y[r]})
		}
		sort.Slice(vals, func(a, b int) bool { return vals[a].v < vals[b].v })

		var totalSum float64
		for _, e := range vals {
			totalSum += e.y
		}
		totalN := float64(len(vals))

		var leftSum float64
		var leftSq, rightSq float64
		for _, e := range vals {
			rightSq += e.y * e.y
		}
		for i := 0; i < len(vals)-1; i++ {
			leftSum += vals[i].y
			leftSq += vals[i].y * vals[i].y
			rightSq -= vals[i].y * vals[i].y
			if vals[i].v == vals[i+1].v {
				continue
			}
			nl := float64(i + 1)
			nr := totalN - nl
			if int(nl) < cfg.minLeaf || int(nr) < cfg.minLeaf {
				continue
			}
			rightSum := totalSum - leftSum
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (vals[i].v + vals[i+1].v) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func meanOf(y []float64, rows []int) float64 {
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	return sum / float64(len(rows))
}

func sseOf(y []float64, rows []int) float64 {
	m := meanOf(y, rows)
	var sum float64
	for _, r := range rows {
		d := y[r] - m
		sum += d * d
	}
	return sum
}
