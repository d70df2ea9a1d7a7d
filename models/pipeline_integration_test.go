package models

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanechev29/pstat231-final-project/dataset"
	"github.com/vanechev29/pstat231-final-project/impute"
	"github.com/vanechev29/pstat231-final-project/sampling"
)

// writePipelineCSV writes a synthetic wildfire CSV whose fire size follows a
// known linear relation with a single factor shared by every weather column.
// A scattering of humidity and wind fields is left empty so the imputation
// step has real work to do.
func writePipelineCSV(t *testing.T, n int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	header := strings.Join(append([]string{
		"fire_size", "fire_size_class", "stat_cause_descr",
		"latitude", "longitude", "state",
		"disc_year", "disc_month",
		"vegetation", "remoteness", "weather_file",
	}, dataset.WeatherNames()...), ",")

	loadings := make([]float64, dataset.WeatherDim)
	for j := range loadings {
		loadings[j] = 0.5 + 1.5*float64(j)/float64(dataset.WeatherDim-1)
	}

	var sb strings.Builder
	sb.WriteString(header + "\n")
	for i := 0; i < n; i++ {
		factor := rng.NormFloat64() * 5
		size := 40 + 2*factor + 0.2*rng.NormFloat64()
		fields := []string{
			strconv.FormatFloat(size, 'f', 6, 64), "B", "Lightning",
			"40.0", "-120.0", "CA",
			"2005", "jul",
			"4", "0.25", "wx.csv",
		}
		for j := 0; j < dataset.WeatherDim; j++ {
			if pipelineMissingCell(i, j) {
				fields = append(fields, "")
				continue
			}
			v := 30 + loadings[j]*factor + 0.5*rng.NormFloat64()
			fields = append(fields, strconv.FormatFloat(v, 'f', 6, 64))
		}
		sb.WriteString(strings.Join(fields, ",") + "\n")
	}

	path := filepath.Join(t.TempDir(), "fires.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

// pipelineMissingCell punches holes in two weather columns. The leads differ
// so precipitation is never forced missing by co-missingness.
func pipelineMissingCell(i, j int) bool {
	switch j {
	case dataset.WeatherIndex(dataset.VarHum, dataset.LeadPre15):
		return i%29 == 0
	case dataset.WeatherIndex(dataset.VarWind, dataset.LeadCont):
		return i%37 == 0
	}
	return false
}

// TestPipelineRecoversLinearWeatherSignal runs the full chain on a synthetic
// dataset: load, clean, stratified split, per-partition imputation and
// reduction, feature building and model comparison. Fire size is linear in
// the shared weather factor, so the linear family should track it closely
// while a single-neighbor fit carries the full noise of its neighbor.
func TestPipelineRecoversLinearWeatherSignal(t *testing.T) {
	path := writePipelineCSV(t, 1000, 11)

	raw, err := dataset.Load(path)
	require.NoError(t, err)
	tbl, err := dataset.Clean(raw)
	require.NoError(t, err)
	require.Equal(t, 1000, tbl.Len())

	split, err := sampling.Stratified(tbl.Sizes(nil), 0.9, 10, 11)
	require.NoError(t, err)
	assert.InDelta(t, 900, len(split.Train), 15)
	assert.Equal(t, 1000, len(split.Train)+len(split.Test))

	opts := impute.Options{Rank: 4, Tol: 1e-6, MaxIter: 200}
	trainBlock, err := impute.Impute(tbl.WeatherBlock(split.Train), opts)
	require.NoError(t, err)
	testBlock, err := impute.Impute(tbl.WeatherBlock(split.Test), opts)
	require.NoError(t, err)

	trainRed, err := impute.Reduce(trainBlock, 4)
	require.NoError(t, err)
	testRed, err := impute.Reduce(testBlock, 4)
	require.NoError(t, err)
	// One factor drives every weather column, so pc1 dominates.
	assert.Greater(t, trainRed.Explained[0], 0.5)

	causes := tbl.Causes()
	train, err := Build(tbl, split.Train, trainRed.Scores, causes)
	require.NoError(t, err)
	test, err := Build(tbl, split.Test, testRed.Scores, causes)
	require.NoError(t, err)
	trainOH, err := BuildOneHot(tbl, split.Train, trainRed.Scores, causes)
	require.NoError(t, err)
	testOH, err := BuildOneHot(tbl, split.Test, testRed.Scores, causes)
	require.NoError(t, err)

	lin, err := (&LinearModel{}).Fit(train)
	require.NoError(t, err)
	linEval, err := Evaluate(lin, train, test)
	require.NoError(t, err)

	knn, err := (&KNNModel{Config: KNNConfig{Ks: []int{1}, Workers: 2}}).Fit(trainOH)
	require.NoError(t, err)
	knnEval, err := Evaluate(knn, trainOH, testOH)
	require.NoError(t, err)

	assert.Less(t, linEval.TestRMSE, 2.0)
	assert.Less(t, linEval.TestRMSE, knnEval.TestRMSE,
		"linear fit should beat 1-NN on a linear signal")
}
