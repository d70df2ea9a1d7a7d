package sampling

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

// skewedTarget mimics the fire-size distribution: mostly small values with
// a heavy right tail.
func skewedTarget(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Exp(rng.NormFloat64() * 2)
	}
	return out
}

func TestStratifiedPartitionsAreDisjointAndComplete(t *testing.T) {
	target := skewedTarget(500, 7)
	split, err := Stratified(target, 0.9, 10, 1)
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, r := range split.Train {
		seen[r]++
	}
	for _, r := range split.Test {
		seen[r]++
	}
	require.Len(t, seen, 500)
	for r, cnt := range seen {
		assert.Equal(t, 1, cnt, "row %d appears in both partitions", r)
	}
	assert.InDelta(t, 450, len(split.Train), 10)
}

func TestStratifiedPreservesTail(t *testing.T) {
	target := skewedTarget(1000, 3)
	split, err := Stratified(target, 0.9, 10, 1)
	require.NoError(t, err)

	sorted := append([]float64(nil), target...)
	sort.Float64s(sorted)
	topDecile := sorted[len(sorted)*9/10]

	// Both partitions must carry part of the heavy tail; a plain random
	// split can starve the small test partition of large fires.
	var trainTail, testTail int
	for _, r := range split.Train {
		if target[r] >= topDecile {
			trainTail++
		}
	}
	for _, r := range split.Test {
		if target[r] >= topDecile {
			testTail++
		}
	}
	assert.Greater(t, trainTail, 0)
	assert.Greater(t, testTail, 0)
}

func TestStratifiedPreservesSkew(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	target := make([]float64, 1000)
	for i := range target {
		target[i] = math.Exp(rng.NormFloat64())
	}
	split, err := Stratified(target, 0.9, 10, 2)
	require.NoError(t, err)

	values := func(rows []int) []float64 {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = target[r]
		}
		return out
	}

	whole := stat.Skew(target, nil)
	trainSkew := stat.Skew(values(split.Train), nil)
	testSkew := stat.Skew(values(split.Test), nil)

	require.Greater(t, whole, 1.0, "fixture target should be right-skewed")
	assert.InEpsilon(t, whole, trainSkew, 0.35)
	assert.InEpsilon(t, whole, testSkew, 0.75)
}

func TestStratifiedSeedDeterminism(t *testing.T) {
	target := skewedTarget(200, 11)

	a, err := Stratified(target, 0.8, 5, 42)
	require.NoError(t, err)
	b, err := Stratified(target, 0.8, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Stratified(target, 0.8, 5, 43)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStratifiedInsufficientStrata(t *testing.T) {
	target := []float64{1, 2, 3, 4, 5}

	_, err := Stratified(target, 0.8, 5, 1)
	var serr *InsufficientStrataError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Size)
}

func TestStratifiedValidation(t *testing.T) {
	target := skewedTarget(50, 1)

	_, err := Stratified(nil, 0.8, 2, 1)
	assert.Error(t, err)
	_, err = Stratified(target, 0, 2, 1)
	assert.Error(t, err)
	_, err = Stratified(target, 1, 2, 1)
	assert.Error(t, err)
	_, err = Stratified(target, 0.8, 0, 1)
	assert.Error(t, err)
}

func TestRepeatedKFoldCoversTrainingRows(t *testing.T) {
	rows := []int{3, 7, 9, 12, 15, 18, 21, 22, 30, 31, 40, 45}

	partitions, err := RepeatedKFold(rows, 4, 3, 1)
	require.NoError(t, err)
	require.Len(t, partitions, 3)

	for _, folds := range partitions {
		require.Len(t, folds, 4)
		seen := make(map[int]int)
		for _, fold := range folds {
			for _, r := range fold.Val {
				seen[r]++
			}
			// Train and Val within one fold never overlap.
			inVal := make(map[int]bool)
			for _, r := range fold.Val {
				inVal[r] = true
			}
			for _, r := range fold.Train {
				assert.False(t, inVal[r], "row %d is in both fold partitions", r)
			}
			assert.Len(t, fold.Train, len(rows)-len(fold.Val))
		}
		// Every row is held out exactly once per repeat.
		require.Len(t, seen, len(rows))
		for r, cnt := range seen {
			assert.Equal(t, 1, cnt, "row %d held out %d times", r, cnt)
		}
	}
}

func TestRepeatedKFoldSeedDeterminism(t *testing.T) {
	rows := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	a, err := RepeatedKFold(rows, 5, 2, 9)
	require.NoError(t, err)
	b, err := RepeatedKFold(rows, 5, 2, 9)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRepeatedKFoldValidation(t *testing.T) {
	rows := []int{0, 1, 2}

	_, err := RepeatedKFold(rows, 1, 1, 1)
	assert.Error(t, err)
	_, err = RepeatedKFold(rows, 2, 0, 1)
	assert.Error(t, err)
	_, err = RepeatedKFold(rows, 4, 1, 1)
	assert.Error(t, err)
}
