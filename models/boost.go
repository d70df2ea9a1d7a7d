package models

import (
	"fmt"
	"sort"
)

// BoostConfig configures the gradient-boosted regression-tree family.
type BoostConfig struct {
	// Trees is the total ensemble size. Zero means 500.
	Trees int
	// Depth of each tree. Zero means 3.
	Depth int
	// Shrinkage is the learning rate weighting each new tree. Zero means 0.1.
	Shrinkage float64
	// MinLeaf is the smallest leaf size. Zero means 5.
	MinLeaf int
	// SweepPoints are the ensemble sizes at which Sweep reports errors.
	// Empty means ten evenly spaced points up to Trees; a point beyond
	// Trees is a configuration error.
	SweepPoints []int
}

func (c *BoostConfig) withDefaults() BoostConfig {
	out := *c
	if out.Trees == 0 {
		out.Trees = 500
	}
	if out.Depth == 0 {
		out.Depth = 3
	}
	if out.Shrinkage == 0 {
		out.Shrinkage = 0.1
	}
	if out.MinLeaf == 0 {
		out.MinLeaf = 5
	}
	if len(out.SweepPoints) == 0 {
		step := out.Trees / 10
		if step == 0 {
			step = 1
		}
		for t := step; t <= out.Trees; t += step {
			out.SweepPoints = append(out.SweepPoints, t)
		}
	}
	sort.Ints(out.SweepPoints)
	return out
}

// BoostModel fits a sequential ensemble of shallow trees, each fit to the
// residual of the accumulated ensemble, with a shrinkage-weighted additive
// update. The fit itself is deterministic: no row or feature subsampling.
type BoostModel struct {
	Config BoostConfig
}

func (m *BoostModel) Name() string { return "gradient-boosted trees" }

func (m *BoostModel) Fit(train *FeatureSet) (Artifact, error) {
	if err := train.CheckComplete(); err != nil {
		return nil, fmt.Errorf("boost fit: %w", err)
	}
	cfg := m.Config.withDefaults()
	if last := cfg.SweepPoints[len(cfg.SweepPoints)-1]; last > cfg.Trees {
		return nil, fmt.Errorf("boost fit: sweep point %d exceeds ensemble size %d", last, cfg.Trees)
	}

	n := train.Len()
	rows := allIndices(n)
	base := meanOf(train.Y, rows)

	current := make([]float64, n)
	residual := make([]float64, n)
	for i := range current {
		current[i] = base
	}

	tcfg := treeConfig{maxDepth: cfg.Depth, minLeaf: cfg.MinLeaf}
	trees := make([]*treeNode, 0, cfg.Trees)
	for t := 0; t < cfg.Trees; t++ {
		for i := 0; i < n; i++ {
			residual[i] = train.Y[i] - current[i]
		}
		tree := growTree(train.X, residual, rows, tcfg, 0, nil)
		trees = append(trees, tree)
		for i := 0; i < n; i++ {
			current[i] += cfg.Shrinkage * tree.predict(train.X[i])
		}
	}

	return &BoostArtifact{cfg: cfg, base: base, trees: trees}, nil
}

// BoostArtifact is the fitted boosted ensemble.
type BoostArtifact struct {
	cfg   BoostConfig
	base  float64
	trees []*treeNode
}

func (a *BoostArtifact) ModelName() string { return "gradient-boosted trees" }

// Predict applies the full ensemble.
func (a *BoostArtifact) Predict(fs *FeatureSet) ([]float64, error) {
	return a.predictUpTo(fs, len(a.trees))
}

func (a *BoostArtifact) predictUpTo(fs *FeatureSet, trees int) ([]float64, error) {
	if err := fs.CheckComplete(); err != nil {
		return nil, fmt.Errorf("boost predict: %w", err)
	}
	out := make([]float64, fs.Len())
	for i, row := range fs.X {
		pred := a.base
		for t := 0; t < trees; t++ {
			pred += a.cfg.Shrinkage * a.trees[t].predict(row)
		}
		out[i] = pred
	}
	return out, nil
}

// SweepPoint is one entry of the tree-count sweep: the error trend across
// ensemble sizes, reported so overfitting is visible rather than hidden
// behind a single final value.
type SweepPoint struct {
	Trees     int
	TrainRMSE float64
	TestRMSE  float64
}

// Sweep evaluates the ensemble at each configured size against both
// partitions. Predictions accumulate incrementally so the sweep costs one
// pass over the trees.
func (a *BoostArtifact) Sweep(train, test *FeatureSet) ([]SweepPoint, error) {
	if err := train.CheckComplete(); err != nil {
		return nil, fmt.Errorf("boost sweep: %w", err)
	}
	if err := test.CheckComplete(); err != nil {
		return nil, fmt.Errorf("boost sweep: %w", err)
	}

	trainPred := fill(train.Len(), a.base)
	testPred := fill(test.Len(), a.base)

	points := make([]SweepPoint, 0, len(a.cfg.SweepPoints))
	next := 0
	for t := 0; t < len(a.trees) && next < len(a.cfg.SweepPoints); t++ {
		for i, row := range train.X {
			trainPred[i] += a.cfg.Shrinkage * a.trees[t].predict(row)
		}
		for i, row := range test.X {
			testPred[i] += a.cfg.Shrinkage * a.trees[t].predict(row)
		}
		if t+1 == a.cfg.SweepPoints[next] {
			points = append(points, SweepPoint{
				Trees:     t + 1,
				TrainRMSE: RMSE(trainPred, train.Y),
				TestRMSE:  RMSE(testPred, test.Y),
			})
			next++
		}
	}
	return points, nil
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
