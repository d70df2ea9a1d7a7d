// Package models fits and evaluates the four regression model families
// against the reduced wildfire feature set and produces directly comparable
// train/test RMSE figures. All models share a uniform Fit/Evaluate contract
// over a FeatureSet, so their errors line up in a single comparison table.
package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/vanechev29/pstat231-final-project/dataset"
)

// FeatureSet is a design matrix plus the regression target for one
// partition. Rows stay aligned with Regions so regional models can route
// observations.
type FeatureSet struct {
	// Names labels the columns of X.
	Names []string
	// X is the row-major design matrix.
	X [][]float64
	// Y is the fire-size target.
	Y []float64
	// Regions holds the per-row region label.
	Regions []string
	// BatchSize is used by Yield when serving gomlx training loops.
	BatchSize int

	// yieldPos is the cursor of the Yield iteration; Restart rewinds it.
	yieldPos int
}

// Build assembles the reduced feature set for the given table rows. pcs must
// be row-aligned with rows (pcs[i] holds the principal-component scores of
// table row rows[i]). Columns are: pc1..pcN, year_offset, remoteness, then
// dummy-coded vegetation, cause and season.
//
// Categorical variables are reference-coded (first category dropped): a full
// set of indicator columns is collinear with the intercept and would make
// the linear fits rank-deficient. causes supplies the schema-wide cause
// vocabulary so train and test encode identically.
func Build(t *dataset.Table, rows []int, pcs [][]float64, causes []string) (*FeatureSet, error) {
	return build(t, rows, pcs, causes, false)
}

// BuildOneHot assembles the same feature set with a full indicator column
// for every category level. Distance-based models consume this encoding:
// with all levels present, any two records from different categories differ
// along exactly two indicators, so inter-category distances are uniform.
func BuildOneHot(t *dataset.Table, rows []int, pcs [][]float64, causes []string) (*FeatureSet, error) {
	return build(t, rows, pcs, causes, true)
}

func build(t *dataset.Table, rows []int, pcs [][]float64, causes []string, oneHot bool) (*FeatureSet, error) {
	if len(rows) != len(pcs) {
		return nil, fmt.Errorf("rows and pcs are misaligned: %d vs %d", len(rows), len(pcs))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot build an empty feature set")
	}
	nPCs := len(pcs[0])

	names := make([]string, 0, nPCs+2)
	for i := 0; i < nPCs; i++ {
		names = append(names, fmt.Sprintf("pc%d", i+1))
	}
	names = append(names, "year_offset", "remoteness")
	vegCats := dataset.VegetationClasses()
	for _, c := range catLevels(vegCats, oneHot) {
		names = append(names, "veg_"+c)
	}
	for _, c := range catLevels(causes, oneHot) {
		names = append(names, "cause_"+sanitize(c))
	}
	seasonCats := dataset.Seasons()
	for _, c := range catLevels(seasonCats, oneHot) {
		names = append(names, "season_"+c)
	}

	fs := &FeatureSet{
		Names:   names,
		X:       make([][]float64, len(rows)),
		Y:       make([]float64, len(rows)),
		Regions: make([]string, len(rows)),
	}
	for i, r := range rows {
		rec := &t.Records[r]
		row := make([]float64, 0, len(names))
		row = append(row, pcs[i]...)
		row = append(row, rec.YearOffset, rec.Remoteness)
		row = append(row, encodeCategory(rec.Vegetation, vegCats, oneHot)...)
		row = append(row, encodeCategory(rec.Cause, causes, oneHot)...)
		row = append(row, encodeCategory(rec.Season, seasonCats, oneHot)...)
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d encodes to %d columns, want %d (unknown category?)", r, len(row), len(names))
		}
		fs.X[i] = row
		fs.Y[i] = rec.Size
		fs.Regions[i] = rec.Region
	}
	return fs, nil
}

func catLevels(cats []string, oneHot bool) []string {
	if oneHot {
		return cats
	}
	return cats[1:]
}

func encodeCategory(value string, cats []string, oneHot bool) []float64 {
	if oneHot {
		return oneHotCode(value, cats)
	}
	return dummyCode(value, cats)
}

// dummyCode reference-codes value against cats, emitting len(cats)-1
// indicators (all zero for the first category).
func dummyCode(value string, cats []string) []float64 {
	out := make([]float64, len(cats)-1)
	for i, c := range cats[1:] {
		if value == c {
			out[i] = 1
		}
	}
	return out
}

// oneHotCode emits one indicator per category level.
func oneHotCode(value string, cats []string) []float64 {
	out := make([]float64, len(cats))
	for i, c := range cats {
		if value == c {
			out[i] = 1
		}
	}
	return out
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

// Len returns the number of rows.
func (fs *FeatureSet) Len() int { return len(fs.Y) }

// Dim returns the number of predictor columns.
func (fs *FeatureSet) Dim() int { return len(fs.Names) }

// Select returns a view restricted to columns whose name starts with one of
// the given prefixes. Y and Regions are shared with the receiver.
func (fs *FeatureSet) Select(prefixes ...string) *FeatureSet {
	var cols []int
	var names []string
	for j, name := range fs.Names {
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				cols = append(cols, j)
				names = append(names, name)
				break
			}
		}
	}
	out := &FeatureSet{
		Names:     names,
		X:         make([][]float64, fs.Len()),
		Y:         fs.Y,
		Regions:   fs.Regions,
		BatchSize: fs.BatchSize,
	}
	for i, row := range fs.X {
		sub := make([]float64, len(cols))
		for k, j := range cols {
			sub[k] = row[j]
		}
		out.X[i] = sub
	}
	return out
}

// Subset returns the feature set restricted to the given row positions.
// Rows are shared with the receiver, not copied.
func (fs *FeatureSet) Subset(positions []int) *FeatureSet {
	out := &FeatureSet{
		Names:     fs.Names,
		X:         make([][]float64, len(positions)),
		Y:         make([]float64, len(positions)),
		Regions:   make([]string, len(positions)),
		BatchSize: fs.BatchSize,
	}
	for k, i := range positions {
		out.X[k] = fs.X[i]
		out.Y[k] = fs.Y[i]
		out.Regions[k] = fs.Regions[i]
	}
	return out
}

// CheckComplete fails if any predictor or target value is NaN. Model fits
// call this so missing values never leak into distance or loss computations.
func (fs *FeatureSet) CheckComplete() error {
	for i, row := range fs.X {
		for j, v := range row {
			if math.IsNaN(v) {
				return fmt.Errorf("feature set has a missing value at row %d, column %q", i, fs.Names[j])
			}
		}
		if math.IsNaN(fs.Y[i]) {
			return fmt.Errorf("feature set has a missing target at row %d", i)
		}
	}
	return nil
}

// standardized returns a copy of the columns of X centered and scaled with
// this partition's own statistics, plus the statistics used.
func (fs *FeatureSet) standardized() (x [][]float64, means, scales []float64) {
	n, p := fs.Len(), fs.Dim()
	means = make([]float64, p)
	scales = make([]float64, p)
	for j := 0; j < p; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += fs.X[i][j]
		}
		means[j] = sum / float64(n)
		var sq float64
		for i := 0; i < n; i++ {
			d := fs.X[i][j] - means[j]
			sq += d * d
		}
		if n > 1 {
			scales[j] = math.Sqrt(sq / float64(n-1))
		}
		if scales[j] == 0 {
			scales[j] = 1
		}
	}
	x = make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = (fs.X[i][j] - means[j]) / scales[j]
		}
		x[i] = row
	}
	return x, means, scales
}
