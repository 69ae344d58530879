package trf

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MultiOutput selects how per-output scores are combined.
type MultiOutput int

const (
	// RawValues returns one score per output channel.
	RawValues MultiOutput = iota
	// UniformAverage returns the unweighted mean over output channels.
	UniformAverage
)

// ScoreFunc scores predictions against observations, one value per output
// channel (or a single averaged value).
type ScoreFunc func(yTrue, yPred mat.Matrix, mode MultiOutput) ([]float64, error)

// ErrScoreShape reports score inputs with mismatched dimensions.
var ErrScoreShape = errors.New("trf: score inputs must have matching non-empty dimensions")

// scorers is the scoring registry available to ReceptiveField.Score.
var scorers = map[string]ScoreFunc{
	"corrcoef": CorrCoefScore,
	"r2":       R2Score,
	"mse":      MSEScore,
}

func scoreColumns(yTrue, yPred mat.Matrix) (t, p [][]float64, err error) {
	n, no := yTrue.Dims()
	np, nop := yPred.Dims()
	if n == 0 || no == 0 || n != np || no != nop {
		return nil, nil, fmt.Errorf("%w, got %dx%d and %dx%d", ErrScoreShape, n, no, np, nop)
	}
	t = make([][]float64, no)
	p = make([][]float64, no)
	for i := 0; i < no; i++ {
		t[i] = make([]float64, n)
		p[i] = make([]float64, n)
		mat.Col(t[i], i, yTrue)
		mat.Col(p[i], i, yPred)
	}
	return t, p, nil
}

func combine(scores []float64, mode MultiOutput) []float64 {
	if mode == UniformAverage {
		return []float64{floats.Sum(scores) / float64(len(scores))}
	}
	return scores
}

// CorrCoefScore returns the Pearson correlation between observed and
// predicted values per output channel.
func CorrCoefScore(yTrue, yPred mat.Matrix, mode MultiOutput) ([]float64, error) {
	t, p, err := scoreColumns(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(t))
	for i := range t {
		scores[i] = stat.Correlation(t[i], p[i], nil)
	}
	return combine(scores, mode), nil
}

// R2Score returns the coefficient of determination per output channel:
// 1 - sum((y-pred)^2) / sum((y-mean)^2).
func R2Score(yTrue, yPred mat.Matrix, mode MultiOutput) ([]float64, error) {
	t, p, err := scoreColumns(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(t))
	for i := range t {
		mean := stat.Mean(t[i], nil)
		ssRes, ssTot := 0.0, 0.0
		for j := range t[i] {
			d := t[i][j] - p[i][j]
			ssRes += d * d
			m := t[i][j] - mean
			ssTot += m * m
		}
		scores[i] = 1 - ssRes/ssTot
	}
	return combine(scores, mode), nil
}

// MSEScore returns the mean squared error per output channel.
func MSEScore(yTrue, yPred mat.Matrix, mode MultiOutput) ([]float64, error) {
	t, p, err := scoreColumns(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(t))
	for i := range t {
		sum := 0.0
		for j := range t[i] {
			d := t[i][j] - p[i][j]
			sum += d * d
		}
		scores[i] = sum / float64(len(t[i]))
	}
	return combine(scores, mode), nil
}
