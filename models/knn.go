package models

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// KNNConfig configures the k-nearest-neighbors regression family.
type KNNConfig struct {
	// Ks is the candidate neighbor-count set explored by leave-one-out
	// cross-validation. Empty means 1..40.
	Ks []int

	// Workers sizes the worker pool used for the LOOCV distance sweep.
	// Zero means runtime.NumCPU().
	Workers int

	// Curve optionally supplies a previously computed LOOCV curve (for
	// example loaded from the tuning cache). When its parameter sweep
	// matches Ks exactly, Fit reuses it instead of re-running LOOCV.
	Curve *TuningCurve
}

// KNNModel tunes and fits a Euclidean k-NN regressor. Each partition is
// centered and scaled with its own statistics before distances are taken.
// The neighbor count is chosen by LOOCV over the candidate set; ties on the
// minimum error go to the LARGEST k, a deliberate bias toward smoother fits.
type KNNModel struct {
	Config KNNConfig
}

func (m *KNNModel) Name() string { return "k-NN regression" }

// Fit standardizes the training partition, runs the LOOCV sweep over the
// candidate ks, and freezes the winning k into the artifact along with the
// tuning curve.
func (m *KNNModel) Fit(train *FeatureSet) (Artifact, error) {
	if err := train.CheckComplete(); err != nil {
		return nil, fmt.Errorf("knn fit: %w", err)
	}
	ks := m.Config.Ks
	if len(ks) == 0 {
		ks = make([]int, 40)
		for i := range ks {
			ks[i] = i + 1
		}
	}
	sort.Ints(ks)
	n := train.Len()
	if ks[0] < 1 {
		return nil, fmt.Errorf("knn fit: k must be >= 1, got %d", ks[0])
	}
	if ks[len(ks)-1] > n-1 {
		return nil, fmt.Errorf("knn fit: largest candidate k (%d) exceeds n-1 (%d)", ks[len(ks)-1], n-1)
	}

	scaled, _, _ := train.standardized()

	// A cached curve from an earlier run short-circuits the sweep when its
	// parameter set matches the candidate ks exactly.
	if c := m.Config.Curve; c != nil && paramsMatch(c.Params(), ks) {
		curve := append([]TuningPoint(nil), c.Points...)
		best := 0
		for ki := 1; ki < len(curve); ki++ {
			if curve[ki].Err <= curve[best].Err {
				best = ki
			}
		}
		return &KNNArtifact{
			k:       ks[best],
			curve:   curve,
			trainX:  scaled,
			trainY:  train.Y,
			workers: m.Config.Workers,
		}, nil
	}

	// Neighbor order per held-out point; rows are independent so the sweep
	// runs on a worker pool.
	orders, err := neighborOrders(scaled, m.Config.Workers)
	if err != nil {
		return nil, err
	}

	maxK := ks[len(ks)-1]
	curve := make([]TuningPoint, len(ks))
	for ki, k := range ks {
		curve[ki] = TuningPoint{Param: k}
	}
	for i := 0; i < n; i++ {
		// Running mean of the nearest neighbors' targets, excluding self.
		var sum float64
		ki := 0
		for rank := 0; rank < maxK; rank++ {
			sum += train.Y[orders[i][rank]]
			k := rank + 1
			for ki < len(ks) && ks[ki] == k {
				d := sum/float64(k) - train.Y[i]
				curve[ki].Err += d * d
				ki++
			}
		}
	}
	for ki := range curve {
		curve[ki].Err /= float64(n)
	}

	// The selection rule: minimum LOOCV MSE, ties broken toward larger k.
	best := 0
	for ki := 1; ki < len(curve); ki++ {
		if curve[ki].Err <= curve[best].Err {
			best = ki
		}
	}

	return &KNNArtifact{
		k:       ks[best],
		curve:   curve,
		trainX:  scaled,
		trainY:  train.Y,
		workers: m.Config.Workers,
	}, nil
}

// KNNArtifact predicts by averaging the targets of the k nearest training
// observations in standardized feature space.
type KNNArtifact struct {
	k       int
	curve   []TuningPoint
	trainX  [][]float64
	trainY  []float64
	workers int
}

func (a *KNNArtifact) ModelName() string { return "k-NN regression" }

// K returns the neighbor count chosen by LOOCV.
func (a *KNNArtifact) K() int { return a.k }

// TuningCurve returns the LOOCV (k, MSE) sweep behind the selection.
func (a *KNNArtifact) TuningCurve() *TuningCurve {
	return &TuningCurve{Family: "knn-loocv", Points: a.curve}
}

func (a *KNNArtifact) Predict(fs *FeatureSet) ([]float64, error) {
	if err := fs.CheckComplete(); err != nil {
		return nil, fmt.Errorf("knn predict: %w", err)
	}
	if fs.Dim() != len(a.trainX[0]) {
		return nil, fmt.Errorf("knn predict: feature dimension %d does not match fit dimension %d", fs.Dim(), len(a.trainX[0]))
	}
	scaled, _, _ := fs.standardized()

	out := make([]float64, len(scaled))
	for i, row := range scaled {
		idx := nearest(a.trainX, row, a.k)
		var sum float64
		for _, j := range idx {
			sum += a.trainY[j]
		}
		out[i] = sum / float64(len(idx))
	}
	return out, nil
}

// neighborOrders computes, for every row, the other rows ordered by
// Euclidean distance. Ties order by index so results are deterministic.
func neighborOrders(x [][]float64, workers int) ([][]int, error) {
	n := len(x)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	orders := make([][]int, n)
	jobs := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				type nd struct {
					idx int
					d   float64
				}
				ds := make([]nd, 0, n-1)
				for j := 0; j < n; j++ {
					if j == i {
						continue
					}
					ds = append(ds, nd{idx: j, d: sqDist(x[i], x[j])})
				}
				sort.Slice(ds, func(a, b int) bool {
					if ds[a].d != ds[b].d {
						return ds[a].d < ds[b].d
					}
					return ds[a].idx < ds[b].idx
				})
				order := make([]int, len(ds))
				for k, e := range ds {
					order[k] = e.idx
				}
				orders[i] = order
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return orders, nil
}

// nearest returns the indices of the k rows of x closest to row.
func nearest(x [][]float64, row []float64, k int) []int {
	type nd struct {
		idx int
		d   float64
	}
	ds := make([]nd, len(x))
	for j := range x {
		ds[j] = nd{idx: j, d: sqDist(row, x[j])}
	}
	sort.Slice(ds, func(a, b int) bool {
		if ds[a].d != ds[b].d {
			return ds[a].d < ds[b].d
		}
		return ds[a].idx < ds[b].idx
	})
	if k > len(ds) {
		k = len(ds)
	}
	idx := make([]int, k)
	for i := 0; i < k; i++ {
		idx[i] = ds[i].idx
	}
	return idx
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
