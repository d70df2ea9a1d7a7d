// Command compare runs the full wildfire-size analysis pipeline: load and
// clean the dataset, split it into stratified train/test partitions, impute
// and reduce the weather covariates, fit the four model families, and write
// a train/test RMSE comparison table plus tuning plots.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vanechev29/pstat231-final-project/dataset"
	"github.com/vanechev29/pstat231-final-project/impute"
	"github.com/vanechev29/pstat231-final-project/models"
	"github.com/vanechev29/pstat231-final-project/sampling"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	dataGlob := flag.String("data", "data/*.csv", "glob pattern matching the wildfire CSV file(s)")
	outDir := flag.String("out", "out", "directory for the comparison table, cache and plots")
	seed := flag.Int64("seed", 1, "seed driving every random choice in the pipeline")

	trainFrac := flag.Float64("train-frac", 0.9, "fraction of records assigned to the training partition")
	numStrata := flag.Int("strata", 10, "number of fire-size quantile strata for the split")

	numPCs := flag.Int("pcs", 4, "number of principal components kept from the weather block")
	imputeRank := flag.Int("impute-rank", 4, "rank of the PCA approximation used while imputing")
	imputeTol := flag.Float64("impute-tol", 1e-6, "RMS convergence tolerance for the imputation loop")
	imputeMaxIter := flag.Int("impute-max-iter", 100, "iteration cap for the imputation loop")
	dropIncomplete := flag.Bool("drop-incomplete", false, "drop rows with missing weather instead of imputing")
	acceptPartial := flag.Bool("accept-partial", true, "accept the best-effort matrix when imputation hits its iteration cap")

	maxK := flag.Int("knn-max-k", 40, "largest neighbor count in the LOOCV sweep")
	workers := flag.Int("workers", 0, "worker pool size for k-NN and forest fits (0 = NumCPU)")
	force := flag.Bool("force", false, "recompute the k-NN LOOCV curve even if a cache exists")

	boostTrees := flag.Int("boost-trees", 500, "gradient boosting ensemble size")
	boostDepth := flag.Int("boost-depth", 3, "gradient boosting tree depth")
	boostShrinkage := flag.Float64("boost-shrinkage", 0.1, "gradient boosting learning rate")
	forestTrees := flag.Int("forest-trees", 300, "random forest ensemble size")
	forestMtry := flag.Int("forest-mtry", 0, "features considered per forest split (0 = p/3)")
	pThreshold := flag.Float64("p-threshold", 0.05, "significance level for backward elimination")

	cvFolds := flag.Int("cv-folds", 5, "folds for the linear-model cross-validation estimate")
	cvRepeats := flag.Int("cv-repeats", 2, "repeats for the linear-model cross-validation estimate")

	plots := flag.Bool("plots", true, "write tuning-curve PNGs")
	flag.Parse()

	log.SetFlags(log.LstdFlags)

	raw, err := dataset.Load(*dataGlob)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	log.Printf("loaded %d raw records (base year %d)", len(raw.Records), raw.BaseYear)

	tbl, err := dataset.Clean(raw)
	if err != nil {
		var serr *dataset.SchemaError
		if errors.As(err, &serr) {
			log.Fatalf("clean: row %d carries unmapped %s value %q; extend the mapping before rerunning", serr.Row, serr.Column, serr.Value)
		}
		log.Fatalf("clean: %v", err)
	}
	log.Printf("cleaned table has %d records (%d excluded)", tbl.Len(), len(raw.Records)-tbl.Len())

	all := make([]int, tbl.Len())
	for i := range all {
		all[i] = i
	}
	split, err := sampling.Stratified(tbl.Sizes(all), *trainFrac, *numStrata, *seed)
	if err != nil {
		var ierr *sampling.InsufficientStrataError
		if errors.As(err, &ierr) {
			log.Fatalf("split: %v; lower -strata below %d", ierr, *numStrata)
		}
		log.Fatalf("split: %v", err)
	}
	log.Printf("split: %d train / %d test rows across %d strata (seed %d)", len(split.Train), len(split.Test), *numStrata, *seed)

	opts := impute.Options{Rank: *imputeRank, Tol: *imputeTol, MaxIter: *imputeMaxIter}
	trainRows, trainPCs, err := preparePartition(tbl, split.Train, opts, *numPCs, *dropIncomplete, *acceptPartial, "train")
	if err != nil {
		log.Fatalf("prepare train partition: %v", err)
	}
	testRows, testPCs, err := preparePartition(tbl, split.Test, opts, *numPCs, *dropIncomplete, *acceptPartial, "test")
	if err != nil {
		log.Fatalf("prepare test partition: %v", err)
	}

	causes := tbl.Causes()
	train, err := models.Build(tbl, trainRows, trainPCs, causes)
	if err != nil {
		log.Fatalf("build train features: %v", err)
	}
	test, err := models.Build(tbl, testRows, testPCs, causes)
	if err != nil {
		log.Fatalf("build test features: %v", err)
	}
	// The k-NN family takes a one-hot variant: every category level gets its
	// own indicator, keeping inter-category distances uniform.
	trainOH, err := models.BuildOneHot(tbl, trainRows, trainPCs, causes)
	if err != nil {
		log.Fatalf("build train features (one-hot): %v", err)
	}
	testOH, err := models.BuildOneHot(tbl, testRows, testPCs, causes)
	if err != nil {
		log.Fatalf("build test features (one-hot): %v", err)
	}
	log.Printf("feature sets: %d columns (%d one-hot), %d train rows, %d test rows", train.Dim(), trainOH.Dim(), train.Len(), test.Len())

	// The LOOCV sweep is the slow part of the k-NN fit; cache it across
	// runs keyed by the candidate set.
	ks := make([]int, *maxK)
	for i := range ks {
		ks[i] = i + 1
	}
	cachePath := filepath.Join(*outDir, "knn_loocv.gob")
	var cached *models.TuningCurve
	if !*force {
		cached, err = models.LoadTuningCurve(cachePath, "knn-loocv", ks)
		if err != nil {
			log.Printf("knn cache unusable (%v); recomputing", err)
			cached = nil
		} else {
			log.Printf("reusing cached k-NN LOOCV curve from %s", cachePath)
		}
	}

	linear := &models.LinearModel{Config: models.LinearConfig{PThreshold: *pThreshold}}
	knn := &models.KNNModel{Config: models.KNNConfig{Ks: ks, Workers: *workers, Curve: cached}}
	boost := &models.BoostModel{Config: models.BoostConfig{
		Trees:     *boostTrees,
		Depth:     *boostDepth,
		Shrinkage: *boostShrinkage,
	}}
	forest := &models.ForestModel{Config: models.ForestConfig{
		Trees:   *forestTrees,
		Mtry:    *forestMtry,
		Workers: *workers,
		Seed:    *seed,
	}}

	fits := []struct {
		m           models.Model
		train, test *models.FeatureSet
	}{
		{linear, train, test},
		{knn, trainOH, testOH},
		{boost, train, test},
		{forest, train, test},
	}

	var evals []models.Evaluation
	artifacts := map[string]models.Artifact{}
	for _, f := range fits {
		a, err := f.m.Fit(f.train)
		if err != nil {
			log.Fatalf("fit %s: %v", f.m.Name(), err)
		}
		ev, err := models.Evaluate(a, f.train, f.test)
		if err != nil {
			log.Fatalf("evaluate %s: %v", f.m.Name(), err)
		}
		evals = append(evals, ev)
		artifacts[f.m.Name()] = a
	}

	log.Printf("%-32s %12s %12s", "model", "train RMSE", "test RMSE")
	for _, ev := range evals {
		log.Printf("%-32s %12.4f %12.4f", ev.Model, ev.TrainRMSE, ev.TestRMSE)
	}

	if la, ok := artifacts[linear.Name()].(*models.LinearArtifact); ok {
		log.Printf("linear model retained predictors: %v", la.RetainedPredictors())
	}
	ka := artifacts[knn.Name()].(*models.KNNArtifact)
	log.Printf("k-NN chose k=%d by LOOCV", ka.K())
	if err := models.SaveTuningCurve(cachePath, ka.TuningCurve()); err != nil {
		log.Printf("save knn cache: %v", err)
	}
	fa := artifacts[forest.Name()].(*models.ForestArtifact)
	log.Printf("forest OOB RMSE %.4f", fa.OOBRMSE())
	for i, imp := range fa.VariableImportance() {
		if i == 5 {
			break
		}
		log.Printf("  importance %-24s %+.4f", imp.Name, imp.MeanIncrease)
	}

	ba := artifacts[boost.Name()].(*models.BoostArtifact)
	sweep, err := ba.Sweep(train, test)
	if err != nil {
		log.Fatalf("boosting sweep: %v", err)
	}
	for _, pt := range sweep {
		log.Printf("  boost trees=%4d train RMSE %.4f test RMSE %.4f", pt.Trees, pt.TrainRMSE, pt.TestRMSE)
	}
	if len(sweep) >= 2 && sweep[len(sweep)-1].TestRMSE > sweep[0].TestRMSE {
		log.Printf("boost test error rises with ensemble size; consider fewer trees or more shrinkage")
	}

	cvRMSE, err := crossValidateLinear(train, trainRows, *cvFolds, *cvRepeats, *seed)
	if err != nil {
		log.Printf("linear cross-validation skipped: %v", err)
	} else {
		log.Printf("linear model %d-fold x%d CV RMSE %.4f", *cvFolds, *cvRepeats, cvRMSE)
	}

	if err := ensureDir(*outDir); err != nil {
		log.Fatalf("create output dir: %v", err)
	}
	csvPath := filepath.Join(*outDir, "comparison.csv")
	if err := writeEvalCSV(csvPath, evals); err != nil {
		log.Fatalf("write comparison table: %v", err)
	}
	log.Printf("comparison table written to %s", csvPath)

	if *plots {
		if err := plotSweep(*outDir, sweep); err != nil {
			log.Fatalf("plot boosting sweep: %v", err)
		}
		if err := plotTuningCurve(*outDir, ka.TuningCurve()); err != nil {
			log.Fatalf("plot knn curve: %v", err)
		}
		log.Printf("plots written to %s", *outDir)
	}
}

// preparePartition imputes (or drops) the partition's missing weather values
// and reduces the completed block to its leading principal components. The
// returned rows are table row indices aligned with the returned scores.
func preparePartition(tbl *dataset.Table, rows []int, opts impute.Options, numPCs int, drop, acceptPartial bool, name string) ([]int, [][]float64, error) {
	block := tbl.WeatherBlock(rows)

	if drop {
		complete, kept := impute.DropIncomplete(block)
		log.Printf("%s partition: dropped %d of %d rows with missing weather", name, len(rows)-len(kept), len(rows))
		keptRows := make([]int, len(kept))
		for i, k := range kept {
			keptRows[i] = rows[k]
		}
		red, err := impute.Reduce(complete, numPCs)
		if err != nil {
			return nil, nil, fmt.Errorf("reduce %s block: %w", name, err)
		}
		logExplained(name, red)
		return keptRows, red.Scores, nil
	}

	filled, err := impute.Impute(block, opts)
	if err != nil {
		var cerr *impute.ConvergenceError
		if errors.As(err, &cerr) && acceptPartial {
			log.Printf("%s partition: imputation stopped at iteration cap %d (last delta %.3g, tol %.3g); accepting best-effort values",
				name, cerr.Iterations, cerr.LastDelta, cerr.Tol)
			filled = cerr.Best
		} else {
			return nil, nil, fmt.Errorf("impute %s block: %w", name, err)
		}
	}

	red, err := impute.Reduce(filled, numPCs)
	if err != nil {
		return nil, nil, fmt.Errorf("reduce %s block: %w", name, err)
	}
	logExplained(name, red)
	return rows, red.Scores, nil
}

func logExplained(name string, red *impute.Reduction) {
	var total float64
	for _, f := range red.Explained {
		total += f
	}
	log.Printf("%s partition: %d components explain %.1f%% of weather variance", name, len(red.Explained), total*100)
}

// crossValidateLinear estimates the linear model's out-of-sample RMSE with
// repeated k-fold cross-validation over the training rows only.
func crossValidateLinear(train *models.FeatureSet, trainRows []int, k, repeats int, seed int64) (float64, error) {
	partitions, err := sampling.RepeatedKFold(trainRows, k, repeats, seed)
	if err != nil {
		return 0, err
	}
	pos := make(map[int]int, len(trainRows))
	for i, r := range trainRows {
		pos[r] = i
	}

	var sumSq float64
	var n int
	for _, folds := range partitions {
		for _, fold := range folds {
			fit := train.Subset(positions(fold.Train, pos))
			val := train.Subset(positions(fold.Val, pos))

			m := &models.LinearModel{}
			a, err := m.Fit(fit)
			if err != nil {
				return 0, fmt.Errorf("fold fit: %w", err)
			}
			pred, err := a.Predict(val)
			if err != nil {
				return 0, fmt.Errorf("fold predict: %w", err)
			}
			for i := range pred {
				d := pred[i] - val.Y[i]
				sumSq += d * d
			}
			n += len(pred)
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("no validation predictions")
	}
	return math.Sqrt(sumSq / float64(n)), nil
}

func positions(rows []int, pos map[int]int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = pos[r]
	}
	return out
}

func writeEvalCSV(path string, evals []models.Evaluation) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	if err := w.Write([]string{"model", "train_rmse", "test_rmse"}); err != nil {
		return err
	}
	for _, ev := range evals {
		rec := []string{
			ev.Model,
			strconv.FormatFloat(ev.TrainRMSE, 'f', 6, 64),
			strconv.FormatFloat(ev.TestRMSE, 'f', 6, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// plotSweep draws the boosting train/test error against ensemble size.
func plotSweep(outDir string, sweep []models.SweepPoint) error {
	p := plot.New()
	p.Title.Text = "Gradient boosting error vs ensemble size"
	p.X.Label.Text = "trees"
	p.Y.Label.Text = "RMSE"

	trainXY := make(plotter.XYs, len(sweep))
	testXY := make(plotter.XYs, len(sweep))
	for i, pt := range sweep {
		trainXY[i] = plotter.XY{X: float64(pt.Trees), Y: pt.TrainRMSE}
		testXY[i] = plotter.XY{X: float64(pt.Trees), Y: pt.TestRMSE}
	}

	trainLine, err := plotter.NewLine(trainXY)
	if err != nil {
		return err
	}
	trainLine.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	trainLine.Width = vg.Points(1.2)
	p.Add(trainLine)
	p.Legend.Add("train", trainLine)

	testLine, err := plotter.NewLine(testXY)
	if err != nil {
		return err
	}
	testLine.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	testLine.Width = vg.Points(1.2)
	p.Add(testLine)
	p.Legend.Add("test", testLine)

	p.Add(plotter.NewGrid())

	if err := ensureDir(outDir); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "boost_sweep.png"))
}

// plotTuningCurve draws the k-NN LOOCV error against the neighbor count.
func plotTuningCurve(outDir string, curve *models.TuningCurve) error {
	p := plot.New()
	p.Title.Text = "k-NN LOOCV error vs k"
	p.X.Label.Text = "k"
	p.Y.Label.Text = "LOOCV MSE"

	xys := make(plotter.XYs, len(curve.Points))
	for i, pt := range curve.Points {
		xys[i] = plotter.XY{X: float64(pt.Param), Y: pt.Err}
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 40, G: 120, B: 40, A: 255}
	line.Width = vg.Points(1.2)
	p.Add(line)

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 40, G: 120, B: 40, A: 255}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)

	p.Add(plotter.NewGrid())

	if err := ensureDir(outDir); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "knn_loocv.png"))
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
