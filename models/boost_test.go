package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepFeatureSet is a clean step function: a single stump explains it, so
// boosting converges geometrically on the training partition.
func stepFeatureSet(n int) *FeatureSet {
	fs := &FeatureSet{
		Names:   []string{"pc1"},
		X:       make([][]float64, n),
		Y:       make([]float64, n),
		Regions: make([]string, n),
	}
	for i := 0; i < n; i++ {
		fs.X[i] = []float64{float64(i)}
		if i >= n/2 {
			fs.Y[i] = 10
		}
		fs.Regions[i] = "west"
	}
	return fs
}

func TestBoostTrainErrorDecreasesWithTrees(t *testing.T) {
	fs := stepFeatureSet(40)

	m := &BoostModel{Config: BoostConfig{Trees: 100, Depth: 1}}
	a, err := m.Fit(fs)
	require.NoError(t, err)

	sweep, err := a.(*BoostArtifact).Sweep(fs, fs)
	require.NoError(t, err)
	require.Len(t, sweep, 10)

	for i, pt := range sweep {
		assert.Equal(t, (i+1)*10, pt.Trees)
		if i > 0 {
			assert.LessOrEqual(t, pt.TrainRMSE, sweep[i-1].TrainRMSE+1e-9,
				"train error rose between %d and %d trees", sweep[i-1].Trees, pt.Trees)
		}
	}
	assert.Less(t, sweep[len(sweep)-1].TrainRMSE, 0.1)
}

func TestBoostPredictBeatsMeanBaseline(t *testing.T) {
	fs := stepFeatureSet(40)

	m := &BoostModel{Config: BoostConfig{Trees: 50, Depth: 1}}
	a, err := m.Fit(fs)
	require.NoError(t, err)

	pred, err := a.Predict(fs)
	require.NoError(t, err)

	baseline := fill(fs.Len(), meanOf(fs.Y, allIndices(fs.Len())))
	assert.Less(t, RMSE(pred, fs.Y), RMSE(baseline, fs.Y))
}

func TestBoostFitIsDeterministic(t *testing.T) {
	fs := stepFeatureSet(30)

	m := &BoostModel{Config: BoostConfig{Trees: 20, Depth: 2}}
	a1, err := m.Fit(fs)
	require.NoError(t, err)
	a2, err := m.Fit(fs)
	require.NoError(t, err)

	p1, err := a1.Predict(fs)
	require.NoError(t, err)
	p2, err := a2.Predict(fs)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestBoostRejectsSweepBeyondEnsemble(t *testing.T) {
	fs := stepFeatureSet(30)

	m := &BoostModel{Config: BoostConfig{Trees: 20, Depth: 1, SweepPoints: []int{50, 10}}}
	_, err := m.Fit(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds ensemble size")
}

func TestBoostSweepHonorsCustomPoints(t *testing.T) {
	fs := stepFeatureSet(30)

	m := &BoostModel{Config: BoostConfig{Trees: 60, Depth: 1, SweepPoints: []int{50, 10}}}
	a, err := m.Fit(fs)
	require.NoError(t, err)

	sweep, err := a.(*BoostArtifact).Sweep(fs, fs)
	require.NoError(t, err)
	require.Len(t, sweep, 2)
	assert.Equal(t, 10, sweep[0].Trees)
	assert.Equal(t, 50, sweep[1].Trees)
}
