package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearConfig configures the regional ordinary-least-squares family.
type LinearConfig struct {
	// PThreshold is the significance level for backward elimination. A
	// predictor whose coefficient p-value exceeds the threshold is dropped,
	// worst first, until every remaining predictor passes. Zero means 0.05.
	PThreshold float64

	// Predictors selects columns by name prefix. Empty means the default
	// set: principal components, year offset, remoteness, vegetation and
	// cause.
	Predictors []string

	// MinRegionRows is the smallest region subgroup that gets its own
	// model; smaller regions fall back to the pooled fit. Zero means 30.
	MinRegionRows int
}

// LinearModel fits one OLS model per region subgroup plus a pooled model.
// Predictor selection is backward elimination with a fixed significance
// threshold, run independently per fit.
type LinearModel struct {
	Config LinearConfig
}

func (m *LinearModel) Name() string { return "regional linear regression" }

// Fit trains the pooled and per-region OLS models.
func (m *LinearModel) Fit(train *FeatureSet) (Artifact, error) {
	if err := train.CheckComplete(); err != nil {
		return nil, fmt.Errorf("linear fit: %w", err)
	}
	cfg := m.Config
	if cfg.PThreshold == 0 {
		cfg.PThreshold = 0.05
	}
	if len(cfg.Predictors) == 0 {
		cfg.Predictors = []string{"pc", "year_offset", "remoteness", "veg_", "cause_"}
	}
	if cfg.MinRegionRows == 0 {
		cfg.MinRegionRows = 30
	}

	sel := train.Select(cfg.Predictors...)
	pooled, err := fitEliminated(sel, allIndices(sel.Len()), cfg.PThreshold)
	if err != nil {
		return nil, fmt.Errorf("pooled OLS: %w", err)
	}

	regional := make(map[string]*olsFit)
	for _, region := range regionSet(sel.Regions) {
		var rows []int
		for i, r := range sel.Regions {
			if r == region {
				rows = append(rows, i)
			}
		}
		if len(rows) < cfg.MinRegionRows {
			continue
		}
		fit, err := fitEliminated(sel, rows, cfg.PThreshold)
		if err != nil {
			return nil, fmt.Errorf("OLS for region %s: %w", region, err)
		}
		regional[region] = fit
	}

	return &LinearArtifact{
		predictors: cfg.Predictors,
		pooled:     pooled,
		regional:   regional,
	}, nil
}

// LinearArtifact routes each observation to its region's model, falling
// back to the pooled model for regions without one.
type LinearArtifact struct {
	predictors []string
	pooled     *olsFit
	regional   map[string]*olsFit
}

func (a *LinearArtifact) ModelName() string { return "regional linear regression" }

func (a *LinearArtifact) Predict(fs *FeatureSet) ([]float64, error) {
	sel := fs.Select(a.predictors...)
	out := make([]float64, sel.Len())
	for i := 0; i < sel.Len(); i++ {
		fit := a.regional[sel.Regions[i]]
		if fit == nil {
			fit = a.pooled
		}
		pred, err := fit.predict(sel.Names, sel.X[i])
		if err != nil {
			return nil, err
		}
		out[i] = pred
	}
	return out, nil
}

// RetainedPredictors reports which predictors survived elimination in the
// pooled fit (the headline model-selection result).
func (a *LinearArtifact) RetainedPredictors() []string {
	names := make([]string, len(a.pooled.names))
	copy(names, a.pooled.names)
	return names
}

// olsFit is a single fitted OLS model over a named column subset.
type olsFit struct {
	names     []string // retained predictor columns
	intercept float64
	coef      []float64 // aligned with names
}

// predict looks retained columns up by name so the fit can be applied to
// any feature set built with the same schema.
func (f *olsFit) predict(names []string, row []float64) (float64, error) {
	pred := f.intercept
	for k, name := range f.names {
		j := indexOf(names, name)
		if j < 0 {
			return 0, fmt.Errorf("feature set is missing predictor %q", name)
		}
		pred += f.coef[k] * row[j]
	}
	return pred, nil
}

// fitEliminated runs backward elimination: fit, drop the least significant
// predictor while its p-value exceeds the threshold, refit. Zero-variance
// columns in the subset are excluded up front.
func fitEliminated(fs *FeatureSet, rows []int, pThreshold float64) (*olsFit, error) {
	cols := nonConstantColumns(fs, rows)
	for {
		fit, pvals, err := fitOLS(fs, rows, cols)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return fit, nil
		}
		worst := 0
		for j := 1; j < len(pvals); j++ {
			if pvals[j] > pvals[worst] {
				worst = j
			}
		}
		if pvals[worst] <= pThreshold {
			return fit, nil
		}
		cols = append(cols[:worst], cols[worst+1:]...)
	}
}

// fitOLS solves the least-squares problem over the given rows and columns
// and returns the fit plus two-sided coefficient p-values (excluding the
// intercept).
func fitOLS(fs *FeatureSet, rows []int, cols []int) (*olsFit, []float64, error) {
	n := len(rows)
	k := len(cols) + 1 // +1 intercept
	if n <= k+1 {
		return nil, nil, fmt.Errorf("too few rows (%d) for %d coefficients", n, k)
	}

	xd := mat.NewDense(n, k, nil)
	yv := mat.NewVecDense(n, nil)
	for i, r := range rows {
		xd.Set(i, 0, 1)
		for j, c := range cols {
			xd.Set(i, j+1, fs.X[r][c])
		}
		yv.SetVec(i, fs.Y[r])
	}

	var qr mat.QR
	qr.Factorize(xd)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yv); err != nil {
		return nil, nil, fmt.Errorf("least-squares solve: %w", err)
	}

	// Residual variance and coefficient covariance for the t-tests.
	var rss float64
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += xd.At(i, j) * beta.AtVec(j)
		}
		d := yv.AtVec(i) - fitted
		rss += d * d
	}
	dof := float64(n - k)
	sigma2 := rss / dof

	var xtx, inv mat.Dense
	xtx.Mul(xd.T(), xd)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, nil, fmt.Errorf("predictors are collinear: %w", err)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	pvals := make([]float64, len(cols))
	for j := range cols {
		se := math.Sqrt(sigma2 * inv.At(j+1, j+1))
		if se == 0 {
			pvals[j] = 0
			continue
		}
		t := math.Abs(beta.AtVec(j+1) / se)
		pvals[j] = 2 * (1 - tDist.CDF(t))
	}

	fit := &olsFit{
		names:     make([]string, len(cols)),
		intercept: beta.AtVec(0),
		coef:      make([]float64, len(cols)),
	}
	for j, c := range cols {
		fit.names[j] = fs.Names[c]
		fit.coef[j] = beta.AtVec(j + 1)
	}
	return fit, pvals, nil
}

// nonConstantColumns returns the columns that vary over the given rows.
// Constant columns (absent dummy levels in a region subset) carry no signal
// and would make the normal equations singular.
func nonConstantColumns(fs *FeatureSet, rows []int) []int {
	var cols []int
	for j := 0; j < fs.Dim(); j++ {
		first := fs.X[rows[0]][j]
		for _, r := range rows[1:] {
			if fs.X[r][j] != first {
				cols = append(cols, j)
				break
			}
		}
	}
	return cols
}

func regionSet(regions []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range regions {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
