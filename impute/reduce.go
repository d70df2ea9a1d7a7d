package impute

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reduction is a fitted principal-component projection of a completed
// weather block. Scores replace the original weather columns in the reduced
// feature set.
type Reduction struct {
	// Scores is the n x Components matrix of projected values.
	Scores [][]float64
	// Loadings is the p x Components matrix of component directions.
	Loadings [][]float64
	// Explained holds the fraction of total variance captured per component.
	Explained []float64
	// Means and Scales are the per-column standardization parameters of the
	// fit; they belong to this partition only.
	Means, Scales []float64
}

// Reduce centers and scales the completed block per column and projects it
// onto its top `components` principal components. The block must contain no
// NaN cells; run DropIncomplete first. Component signs follow a fixed
// convention (the largest-magnitude loading of each component is positive)
// so repeated runs on the same input produce identical output.
func Reduce(block [][]float64, components int) (*Reduction, error) {
	n := len(block)
	if n == 0 {
		return nil, fmt.Errorf("cannot reduce an empty block")
	}
	p := len(block[0])
	if components < 1 || components > p {
		return nil, fmt.Errorf("components must be in [1,%d], got %d", p, components)
	}
	for i, row := range block {
		for j, v := range row {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("block has a missing value at (%d,%d); drop incomplete rows before reducing", i, j)
			}
		}
	}

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
	if components > len(s) {
		return nil, fmt.Errorf("cannot extract %d components from a rank-%d block", components, len(s))
	}
	var v mat.Dense
	svd.VTo(&v)

	loadings := make([][]float64, p)
	for i := range loadings {
		loadings[i] = make([]float64, components)
		for j := 0; j < components; j++ {
			loadings[i][j] = v.At(i, j)
		}
	}
	fixSigns(loadings)

	scores := make([][]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = make([]float64, components)
		for j := 0; j < components; j++ {
			var dot float64
			for k := 0; k < p; k++ {
				dot += z.At(i, k) * loadings[k][j]
			}
			scores[i][j] = dot
		}
	}

	var total float64
	for _, sv := range s {
		total += sv * sv
	}
	explained := make([]float64, components)
	for j := 0; j < components; j++ {
		explained[j] = s[j] * s[j] / total
	}

	return &Reduction{
		Scores:    scores,
		Loadings:  loadings,
		Explained: explained,
		Means:     means,
		Scales:    scales,
	}, nil
}

// fixSigns flips each component so its largest-magnitude loading is
// positive. SVD signs are otherwise arbitrary and would make repeated runs
// disagree.
func fixSigns(loadings [][]float64) {
	if len(loadings) == 0 {
		return
	}
	comps := len(loadings[0])
	for j := 0; j < comps; j++ {
		best := 0
		for i := 1; i < len(loadings); i++ {
			if math.Abs(loadings[i][j]) > math.Abs(loadings[best][j]) {
				best = i
			}
		}
		if loadings[best][j] < 0 {
			for i := range loadings {
				loadings[i][j] = -loadings[i][j]
			}
		}
	}
}
