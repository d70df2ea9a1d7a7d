package models

import (
	"fmt"
	"math"
)

// Model fits one model family against a training partition.
type Model interface {
	Name() string
	Fit(train *FeatureSet) (Artifact, error)
}

// Artifact is a fitted model. Artifacts are immutable after Fit; Predict
// must not change the fit.
type Artifact interface {
	ModelName() string
	Predict(fs *FeatureSet) ([]float64, error)
}

// Evaluation is one row of the comparison table.
type Evaluation struct {
	Model     string
	TrainRMSE float64
	TestRMSE  float64
}

// RMSE returns the root-mean-squared error between predictions and truth.
func RMSE(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return math.NaN()
	}
	var sumSq float64
	for i := range pred {
		d := pred[i] - truth[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(pred)))
}

// Evaluate scores a fitted artifact on the train and test partitions.
func Evaluate(a Artifact, train, test *FeatureSet) (Evaluation, error) {
	if err := test.CheckComplete(); err != nil {
		return Evaluation{}, fmt.Errorf("%s: test partition: %w", a.ModelName(), err)
	}
	trainPred, err := a.Predict(train)
	if err != nil {
		return Evaluation{}, fmt.Errorf("%s: predict on train: %w", a.ModelName(), err)
	}
	testPred, err := a.Predict(test)
	if err != nil {
		return Evaluation{}, fmt.Errorf("%s: predict on test: %w", a.ModelName(), err)
	}
	return Evaluation{
		Model:     a.ModelName(),
		TrainRMSE: RMSE(trainPred, train.Y),
		TestRMSE:  RMSE(testPred, test.Y),
	}, nil
}

// Compare fits every model against the same training partition and scores
// each against the same test partition, so the resulting table is directly
// comparable across families.
func Compare(families []Model, train, test *FeatureSet) ([]Evaluation, error) {
	out := make([]Evaluation, 0, len(families))
	for _, m := range families {
		artifact, err := m.Fit(train)
		if err != nil {
			return nil, fmt.Errorf("fit %s: %w", m.Name(), err)
		}
		ev, err := Evaluate(artifact, train, test)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
