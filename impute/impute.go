// Package impute completes missing weather values with an iterative
// PCA-based algorithm and projects the completed weather block onto its
// leading principal components. Train and test partitions are imputed and
// reduced with separate fits so no information crosses between them.
package impute

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Options controls the iterative imputation loop.
type Options struct {
	// Rank of the low-rank PCA approximation used for refilling.
	Rank int
	// Tol is the RMS change over refilled cells below which the loop stops.
	// Zero means the default of 1e-6.
	Tol float64
	// MaxIter caps the number of refill iterations. Zero means 100.
	MaxIter int
}

// ConvergenceError reports that the iteration cap was hit before the refill
// deltas dropped below tolerance. Best holds the best-effort completed
// matrix, so the caller can decide to accept it or abort; callers that
// accept it must say so.
type ConvergenceError struct {
	Iterations int
	LastDelta  float64
	Tol        float64
	Best       [][]float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("imputation did not converge after %d iterations (last delta %.3g, tol %.3g)", e.Iterations, e.LastDelta, e.Tol)
}

// Impute fills the NaN cells of block by alternating between a rank-limited
// PCA approximation and refilling the missing cells with the approximation's
// reconstructed values. Observed cells are never touched, so a fully
// observed block is returned unchanged. The input is not mutated.
func Impute(block [][]float64, opts Options) ([][]float64, error) {
	n := len(block)
	if n == 0 {
		return nil, fmt.Errorf("cannot impute an empty block")
	}
	p := len(block[0])
	if opts.Rank < 1 {
		return nil, fmt.Errorf("rank must be >= 1, got %d", opts.Rank)
	}
	tol := opts.Tol
	if tol == 0 {
		tol = 1e-6
	}
	maxIter := opts.MaxIter
	if maxIter == 0 {
		maxIter = 100
	}

	work := copyBlock(block)
	var missing [][2]int
	for i, row := range work {
		if len(row) != p {
			return nil, fmt.Errorf("ragged block: row %d has %d columns, want %d", i, len(row), p)
		}
		for j, v := range row {
			if math.IsNaN(v) {
				missing = append(missing, [2]int{i, j})
			}
		}
	}
	if len(missing) == 0 {
		return work, nil
	}

	// Initialize missing cells with observed column means.
	for j := 0; j < p; j++ {
		var sum float64
		var cnt int
		for i := 0; i < n; i++ {
			if !math.IsNaN(work[i][j]) {
				sum += work[i][j]
				cnt++
			}
		}
		if cnt == 0 {
			return nil, fmt.Errorf("column %d has no observed values", j)
		}
		m := sum / float64(cnt)
		for i := 0; i < n; i++ {
			if math.IsNaN(work[i][j]) {
				work[i][j] = m
			}
		}
	}

	var lastDelta float64
	for iter := 1; iter <= maxIter; iter++ {
		recon, err := lowRankApprox(work, opts.Rank)
		if err != nil {
			return nil, err
		}

		var sumSq float64
		for _, cell := range missing {
			i, j := cell[0], cell[1]
			d := recon[i][j] - work[i][j]
			sumSq += d * d
			work[i][j] = recon[i][j]
		}
		lastDelta = math.Sqrt(sumSq / float64(len(missing)))
		if lastDelta < tol {
			return work, nil
		}
	}

	return nil, &ConvergenceError{
		Iterations: maxIter,
		LastDelta:  lastDelta,
		Tol:        tol,
		Best:       work,
	}
}

// lowRankApprox standardizes the matrix per column, reconstructs it from its
// top-rank singular vectors, and returns the reconstruction mapped back to
// the original scale.
func lowRankApprox(block [][]float64, rank int) ([][]float64, error) {
	n, p := len(block), len(block[0])
	means, scales := columnStats(block)

	z := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			z.Set(i, j, (block[i][j]-means[j])/scales[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(z, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD failed to factorize the standardized block")
	}
	s := svd.Values(nil)
	r := rank
	if r > len(s) {
		r = len(s)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	ur := u.Slice(0, n, 0, r)
	vr := v.Slice(0, p, 0, r)
	var us, recon mat.Dense
	us.Mul(ur, mat.NewDiagDense(r, s[:r]))
	recon.Mul(&us, vr.T())

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = recon.At(i, j)*scales[j] + means[j]
		}
		out[i] = row
	}
	return out, nil
}

// columnStats returns per-column means and standard deviations. Zero-variance
// columns get a scale of 1 so standardization stays defined.
func columnStats(block [][]float64) (means, scales []float64) {
	n, p := len(block), len(block[0])
	means = make([]float64, p)
	scales = make([]float64, p)
	for j := 0; j < p; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += block[i][j]
		}
		means[j] = sum / float64(n)
		var sq float64
		for i := 0; i < n; i++ {
			d := block[i][j] - means[j]
			sq += d * d
		}
		if n > 1 {
			scales[j] = math.Sqrt(sq / float64(n-1))
		}
		if scales[j] == 0 {
			scales[j] = 1
		}
	}
	return means, scales
}

// DropIncomplete removes rows that still contain NaN after imputation and
// returns the surviving rows plus their original indices. Dropping (rather
// than guessing) is the documented policy for rows the reconstruction could
// not complete.
func DropIncomplete(block [][]float64) (complete [][]float64, kept []int) {
	for i, row := range block {
		ok := true
		for _, v := range row {
			if math.IsNaN(v) {
				ok = false
				break
			}
		}
		if ok {
			complete = append(complete, row)
			kept = append(kept, i)
		}
	}
	return complete, kept
}

func copyBlock(block [][]float64) [][]float64 {
	out := make([][]float64, len(block))
	for i, row := range block {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}
