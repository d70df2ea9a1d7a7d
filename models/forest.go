package models

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

// ForestConfig configures the random-forest family.
type ForestConfig struct {
	// Trees is the ensemble size. Zero means 300.
	Trees int
	// Mtry is the number of features considered at each split. Zero means
	// p/3 (at least 1), the usual regression default.
	Mtry int
	// MinLeaf is the smallest leaf size. Zero means 5.
	MinLeaf int
	// Workers sizes the tree-growing worker pool. Zero means NumCPU.
	Workers int
	// Seed drives the bootstrap and feature sampling. Each tree derives its
	// own generator from Seed so fits are reproducible and parallel-safe.
	Seed int64
}

// ForestModel fits a bagged ensemble of independently grown deep trees,
// each using a random feature subset per split, and reports out-of-bag
// error and permutation variable importance.
type ForestModel struct {
	Config ForestConfig
}

func (m *ForestModel) Name() string { return "random forest" }

func (m *ForestModel) Fit(train *FeatureSet) (Artifact, error) {
	if err := train.CheckComplete(); err != nil {
		return nil, fmt.Errorf("forest fit: %w", err)
	}
	cfg := m.Config
	if cfg.Trees == 0 {
		cfg.Trees = 300
	}
	if cfg.Mtry == 0 {
		cfg.Mtry = train.Dim() / 3
		if cfg.Mtry < 1 {
			cfg.Mtry = 1
		}
	}
	if cfg.MinLeaf == 0 {
		cfg.MinLeaf = 5
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.Trees {
		workers = cfg.Trees
	}

	n := train.Len()
	p := train.Dim()
	tcfg := treeConfig{minLeaf: cfg.MinLeaf, mtry: cfg.Mtry}

	type grown struct {
		root       *treeNode
		oob        []int
		importance []float64 // per-feature SSE increase on OOB rows
	}
	results := make([]grown, cfg.Trees)

	jobs := make(chan int, cfg.Trees)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for t := range jobs {
				rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))

				inBag := make([]bool, n)
				bag := make([]int, n)
				for i := range bag {
					r := rng.Intn(n)
					bag[i] = r
					inBag[r] = true
				}
				root := growTree(train.X, train.Y, bag, tcfg, 0, rng)

				var oob []int
				for i := 0; i < n; i++ {
					if !inBag[i] {
						oob = append(oob, i)
					}
				}

				imp := make([]float64, p)
				if len(oob) > 0 {
					var baseSSE float64
					for _, r := range oob {
						d := root.predict(train.X[r]) - train.Y[r]
						baseSSE += d * d
					}
					perm := make([]int, len(oob))
					scratch := make([]float64, len(oob))
					for f := 0; f < p; f++ {
						copy(perm, rng.Perm(len(oob)))
						var permSSE float64
						for i, r := range oob {
							scratch[i] = train.X[r][f]
						}
						for i, r := range oob {
							row := cloneRow(train.X[r])
							row[f] = scratch[perm[i]]
							d := root.predict(row) - train.Y[r]
							permSSE += d * d
						}
						imp[f] = (permSSE - baseSSE) / float64(len(oob))
					}
				}

				results[t] = grown{root: root, oob: oob, importance: imp}
			}
		}()
	}
	for t := 0; t < cfg.Trees; t++ {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	// Out-of-bag predictions: each row is scored only by trees that never
	// saw it during fitting.
	oobSum := make([]float64, n)
	oobCnt := make([]int, n)
	for _, g := range results {
		for _, r := range g.oob {
			oobSum[r] += g.root.predict(train.X[r])
			oobCnt[r]++
		}
	}
	var sumSq float64
	var counted int
	for i := 0; i < n; i++ {
		if oobCnt[i] == 0 {
			continue
		}
		d := oobSum[i]/float64(oobCnt[i]) - train.Y[i]
		sumSq += d * d
		counted++
	}
	oobRMSE := math.NaN()
	if counted > 0 {
		oobRMSE = math.Sqrt(sumSq / float64(counted))
	}

	importance := make([]Importance, p)
	for f := 0; f < p; f++ {
		var total float64
		for _, g := range results {
			total += g.importance[f]
		}
		importance[f] = Importance{
			Name:         train.Names[f],
			MeanIncrease: total / float64(len(results)),
		}
	}
	sort.SliceStable(importance, func(a, b int) bool {
		return importance[a].MeanIncrease > importance[b].MeanIncrease
	})

	trees := make([]*treeNode, len(results))
	for t, g := range results {
		trees[t] = g.root
	}
	return &ForestArtifact{trees: trees, oobRMSE: oobRMSE, importance: importance}, nil
}

// Importance is the out-of-bag permutation importance of one predictor: the
// mean increase in OOB squared error when its values are shuffled.
type Importance struct {
	Name         string
	MeanIncrease float64
}

// ForestArtifact is the fitted bagged ensemble.
type ForestArtifact struct {
	trees      []*treeNode
	oobRMSE    float64
	importance []Importance
}

func (a *ForestArtifact) ModelName() string { return "random forest" }

// OOBRMSE returns the out-of-bag error estimate.
func (a *ForestArtifact) OOBRMSE() float64 { return a.oobRMSE }

// VariableImportance returns predictors ordered by permutation importance.
func (a *ForestArtifact) VariableImportance() []Importance {
	out := make([]Importance, len(a.importance))
	copy(out, a.importance)
	return out
}

func (a *ForestArtifact) Predict(fs *FeatureSet) ([]float64, error) {
	if err := fs.CheckComplete(); err != nil {
		return nil, fmt.Errorf("forest predict: %w", err)
	}
	out := make([]float64, fs.Len())
	for i, row := range fs.X {
		var sum float64
		for _, tree := range a.trees {
			sum += tree.predict(row)
		}
		out[i] = sum / float64(len(a.trees))
	}
	return out, nil
}

func cloneRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
