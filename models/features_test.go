package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanechev29/pstat231-final-project/dataset"
)

func tableFixture() *dataset.Table {
	recs := []dataset.Record{
		{Size: 1.5, Cause: "Lightning", Vegetation: "forest", Region: "west", Season: "summer", YearOffset: 3, Remoteness: 0.4},
		{Size: 0.2, Cause: "Campfire", Vegetation: "savanna", Region: "southwest", Season: "winter", YearOffset: 0, Remoteness: 0.1},
		{Size: 12.0, Cause: "Lightning", Vegetation: "urban", Region: "west", Season: "fall", YearOffset: 7, Remoteness: 0.9},
	}
	return &dataset.Table{Records: recs}
}

func TestBuildColumnLayout(t *testing.T) {
	tbl := tableFixture()
	rows := []int{0, 1, 2}
	pcs := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	causes := []string{"Campfire", "Lightning"}

	fs, err := Build(tbl, rows, pcs, causes)
	require.NoError(t, err)

	assert.Equal(t, 3, fs.Len())
	require.Equal(t, len(fs.Names), fs.Dim())
	assert.Equal(t, "pc1", fs.Names[0])
	assert.Equal(t, "pc2", fs.Names[1])
	assert.Equal(t, "year_offset", fs.Names[2])
	assert.Equal(t, "remoteness", fs.Names[3])
	assert.Contains(t, fs.Names, "veg_savanna")
	assert.Contains(t, fs.Names, "cause_lightning")
	assert.Contains(t, fs.Names, "season_summer")

	// Reference coding: the first category of each block emits no column.
	assert.NotContains(t, fs.Names, "veg_forest")
	assert.NotContains(t, fs.Names, "cause_campfire")
	assert.NotContains(t, fs.Names, "season_winter")

	assert.Equal(t, []float64{1.5, 0.2, 12.0}, fs.Y)
	assert.Equal(t, []string{"west", "southwest", "west"}, fs.Regions)

	// Row 0 is a forest/Lightning/summer fire: reference vegetation, the
	// lightning and summer indicators set.
	row := fs.X[0]
	for j, name := range fs.Names {
		switch name {
		case "pc1":
			assert.Equal(t, 1.0, row[j])
		case "pc2":
			assert.Equal(t, 2.0, row[j])
		case "year_offset":
			assert.Equal(t, 3.0, row[j])
		case "remoteness":
			assert.Equal(t, 0.4, row[j])
		case "cause_lightning":
			assert.Equal(t, 1.0, row[j])
		case "season_summer":
			assert.Equal(t, 1.0, row[j])
		default:
			assert.Equal(t, 0.0, row[j], "column %s", name)
		}
	}
}

func TestBuildOneHotEmitsEveryLevel(t *testing.T) {
	tbl := tableFixture()
	rows := []int{0, 1, 2}
	pcs := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	causes := []string{"Campfire", "Lightning"}

	fs, err := BuildOneHot(tbl, rows, pcs, causes)
	require.NoError(t, err)

	// 2 pcs + year_offset + remoteness + 6 vegetation + 2 cause + 4 season.
	assert.Equal(t, 16, fs.Dim())
	assert.Contains(t, fs.Names, "veg_forest")
	assert.Contains(t, fs.Names, "cause_campfire")
	assert.Contains(t, fs.Names, "season_winter")

	// Row 0 is a forest/Lightning/summer fire: one indicator set per block.
	row := fs.X[0]
	for j, name := range fs.Names {
		switch name {
		case "pc1":
			assert.Equal(t, 1.0, row[j])
		case "pc2":
			assert.Equal(t, 2.0, row[j])
		case "year_offset":
			assert.Equal(t, 3.0, row[j])
		case "remoteness":
			assert.Equal(t, 0.4, row[j])
		case "veg_forest", "cause_lightning", "season_summer":
			assert.Equal(t, 1.0, row[j], "column %s", name)
		default:
			assert.Equal(t, 0.0, row[j], "column %s", name)
		}
	}
}

func TestOneHotKeepsCategoryDistancesUniform(t *testing.T) {
	cats := []string{"a", "b", "c"}

	ha := oneHotCode("a", cats)
	hb := oneHotCode("b", cats)
	hc := oneHotCode("c", cats)
	assert.Equal(t, 2.0, sqDist(ha, hb))
	assert.Equal(t, 2.0, sqDist(hb, hc))
	assert.Equal(t, 2.0, sqDist(ha, hc))

	// Reference coding places the first category closer to the others than
	// they are to each other, which is why distance-based fits get one-hot.
	da := dummyCode("a", cats)
	db := dummyCode("b", cats)
	dc := dummyCode("c", cats)
	assert.Equal(t, 1.0, sqDist(da, db))
	assert.Equal(t, 2.0, sqDist(db, dc))
}

func TestBuildMisalignedScoresFail(t *testing.T) {
	tbl := tableFixture()
	_, err := Build(tbl, []int{0, 1}, [][]float64{{1}}, []string{"Campfire", "Lightning"})
	assert.Error(t, err)

	_, err = Build(tbl, nil, nil, []string{"Campfire", "Lightning"})
	assert.Error(t, err)
}

func TestSelectRestrictsColumns(t *testing.T) {
	fs := &FeatureSet{
		Names:   []string{"pc1", "pc2", "year_offset", "veg_savanna"},
		X:       [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}},
		Y:       []float64{1, 2},
		Regions: []string{"west", "west"},
	}

	sel := fs.Select("pc", "veg_")
	assert.Equal(t, []string{"pc1", "pc2", "veg_savanna"}, sel.Names)
	assert.Equal(t, [][]float64{{1, 2, 4}, {5, 6, 8}}, sel.X)
	assert.Equal(t, fs.Y, sel.Y)
}

func TestSubsetSharesRows(t *testing.T) {
	fs := &FeatureSet{
		Names:   []string{"a", "b"},
		X:       [][]float64{{1, 2}, {3, 4}, {5, 6}},
		Y:       []float64{10, 20, 30},
		Regions: []string{"west", "midwest", "west"},
	}

	sub := fs.Subset([]int{2, 0})
	assert.Equal(t, [][]float64{{5, 6}, {1, 2}}, sub.X)
	assert.Equal(t, []float64{30, 10}, sub.Y)
	assert.Equal(t, []string{"west", "west"}, sub.Regions)
}

func TestCheckCompleteFindsMissingValues(t *testing.T) {
	fs := &FeatureSet{
		Names:   []string{"a", "b"},
		X:       [][]float64{{1, 2}, {3, math.NaN()}},
		Y:       []float64{1, 2},
		Regions: []string{"west", "west"},
	}
	err := fs.CheckComplete()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)

	fs.X[1][1] = 4
	assert.NoError(t, fs.CheckComplete())

	fs.Y[0] = math.NaN()
	assert.Error(t, fs.CheckComplete())
}
