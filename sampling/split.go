// Package sampling partitions cleaned wildfire records into train/test
// subsets and cross-validation folds. All partitioning is driven by an
// explicit seed so runs are reproducible; changing the seed is the supported
// way to probe split sensitivity.
package sampling

import (
	"fmt"
	"math/rand"
	"sort"
)

// Split holds disjoint train/test row indices into a cleaned table.
type Split struct {
	Train []int
	Test  []int
}

// Fold is one cross-validation fold over the training rows: Train holds the
// in-fold fitting rows, Val the held-out rows.
type Fold struct {
	Train []int
	Val   []int
}

// InsufficientStrataError reports a stratum too small to contribute at least
// one record to each partition. The split fails rather than silently
// dropping the stratum.
type InsufficientStrataError struct {
	Stratum int
	Size    int
}

func (e *InsufficientStrataError) Error() string {
	return fmt.Sprintf("stratum %d has %d record(s); need at least 2 to allocate both partitions", e.Stratum, e.Size)
}

// Stratified splits rows 0..len(target)-1 into train/test partitions of
// approximately frac/(1-frac) proportions, stratifying on the target so its
// marginal distribution (including skew) is preserved in both partitions.
//
// Rows are ordered by target value and cut into numStrata quantile groups;
// each group is shuffled and split independently at the same fraction. Every
// stratum must be able to place at least one record in each partition.
func Stratified(target []float64, frac float64, numStrata int, seed int64) (Split, error) {
	n := len(target)
	if n == 0 {
		return Split{}, fmt.Errorf("cannot split an empty table")
	}
	if frac <= 0 || frac >= 1 {
		return Split{}, fmt.Errorf("train fraction must be in (0,1), got %g", frac)
	}
	if numStrata < 1 {
		return Split{}, fmt.Errorf("numStrata must be >= 1, got %d", numStrata)
	}
	// Order rows by target value so contiguous chunks form quantile strata.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return target[order[a]] < target[order[b]] })

	rng := rand.New(rand.NewSource(seed))
	var split Split
	for s := 0; s < numStrata; s++ {
		lo := s * n / numStrata
		hi := (s + 1) * n / numStrata
		stratum := make([]int, hi-lo)
		copy(stratum, order[lo:hi])
		if len(stratum) < 2 {
			return Split{}, &InsufficientStrataError{Stratum: s, Size: len(stratum)}
		}

		rng.Shuffle(len(stratum), func(i, j int) {
			stratum[i], stratum[j] = stratum[j], stratum[i]
		})

		nTrain := int(float64(len(stratum)) * frac)
		if nTrain == 0 {
			nTrain = 1
		}
		if nTrain == len(stratum) {
			nTrain = len(stratum) - 1
		}
		split.Train = append(split.Train, stratum[:nTrain]...)
		split.Test = append(split.Test, stratum[nTrain:]...)
	}

	sort.Ints(split.Train)
	sort.Ints(split.Test)
	return split, nil
}

// RepeatedKFold produces repeats independent k-fold partitions of the given
// training rows. The test partition never participates; folds are for model
// tuning that needs an internal validation signal.
func RepeatedKFold(rows []int, k, repeats int, seed int64) ([][]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k must be >= 2, got %d", k)
	}
	if repeats < 1 {
		return nil, fmt.Errorf("repeats must be >= 1, got %d", repeats)
	}
	if len(rows) < k {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, len(rows))
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([][]Fold, repeats)
	for rep := 0; rep < repeats; rep++ {
		shuffled := make([]int, len(rows))
		copy(shuffled, rows)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		folds := make([]Fold, k)
		for f := 0; f < k; f++ {
			lo := f * len(shuffled) / k
			hi := (f + 1) * len(shuffled) / k
			val := make([]int, hi-lo)
			copy(val, shuffled[lo:hi])
			train := make([]int, 0, len(shuffled)-len(val))
			train = append(train, shuffled[:lo]...)
			train = append(train, shuffled[hi:]...)
			folds[f] = Fold{Train: train, Val: val}
		}
		out[rep] = folds
	}
	return out, nil
}
