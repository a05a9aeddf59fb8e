package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrEmptyDataset is returned by Fit when given zero training rows.
var ErrEmptyDataset = errors.New("model: empty training dataset")

// stump is a depth-one regression tree: split feature j at threshold on
// value, predicting leftValue below the threshold and rightValue at or
// above it.
type stump struct {
	Feature     int
	Threshold   float64
	LeftValue   float64
	RightValue  float64
}

func (s stump) predict(row []float64) float64 {
	if row[s.Feature] < s.Threshold {
		return s.LeftValue
	}

	return s.RightValue
}

// ForecastGBT is a gradient-boosted-stumps regressor: an additive ensemble
// of depth-one trees fit on residuals, the forecast model family's concrete
// Model implementation (spec's Design Notes §9 calls for one concrete
// implementation per trained-model-kind rather than a duck-typed object).
type ForecastGBT struct {
	NFeatures    int
	BaseValue    float64
	LearningRate float64
	Trees        []stump
}

var _ Model = (*ForecastGBT)(nil)

// NewForecastGBT fits a ForecastGBT on x/y with the given hyperparameters.
// Fitting is deterministic for a fixed seed: row subsampling at each
// boosting round uses a seeded rand.Rand, never the global generator.
func NewForecastGBT(x [][]float64, y []float64, nEstimators int, learningRate float64, seed int64) (*ForecastGBT, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, ErrEmptyDataset
	}

	nFeatures := len(x[0])
	base := mean(y)

	residuals := make([]float64, len(y))
	for i, v := range y {
		residuals[i] = v - base
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fit, not security-sensitive

	trees := make([]stump, 0, nEstimators)

	for t := 0; t < nEstimators; t++ {
		sampleIdx := subsample(rng, len(x))
		best := fitStump(x, residuals, sampleIdx, nFeatures)
		trees = append(trees, best)

		for i := range x {
			residuals[i] -= learningRate * best.predict(x[i])
		}
	}

	return &ForecastGBT{
		NFeatures:    nFeatures,
		BaseValue:    base,
		LearningRate: learningRate,
		Trees:        trees,
	}, nil
}

func (f *ForecastGBT) Kind() Kind { return KindForecastGBT }

func (f *ForecastGBT) FeatureCount() int { return f.NFeatures }

func (f *ForecastGBT) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))

	for i, row := range x {
		if len(row) != f.NFeatures {
			return nil, fmt.Errorf("predict: expected %d features, got %d", f.NFeatures, len(row))
		}

		v := f.BaseValue
		for _, tr := range f.Trees {
			v += f.LearningRate * tr.predict(row)
		}

		out[i] = v
	}

	return out, nil
}

// Score returns the coefficient of determination (r²) of predictions
// against y.
func (f *ForecastGBT) Score(x [][]float64, y []float64) (float64, error) {
	preds, err := f.Predict(x)
	if err != nil {
		return 0, err
	}

	return rSquared(y, preds), nil
}

func rSquared(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}

	m := mean(yTrue)

	var ssRes, ssTot float64

	for i, v := range yTrue {
		ssRes += (v - yPred[i]) * (v - yPred[i])
		ssTot += (v - m) * (v - m)
	}

	if ssTot == 0 {
		return 0
	}

	return 1 - ssRes/ssTot
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	var sum float64
	for _, x := range v {
		sum += x
	}

	return sum / float64(len(v))
}

// subsample returns a uniformly sampled (without replacement) 80% index
// subset of [0,n), used for stochastic gradient boosting.
func subsample(rng *rand.Rand, n int) []int {
	if n == 0 {
		return nil
	}

	k := int(math.Ceil(float64(n) * 0.8))
	if k < 1 {
		k = 1
	}

	perm := rng.Perm(n)

	return perm[:k]
}

// fitStump finds the (feature, threshold) split over the sampled rows that
// minimizes squared error between each side's constant prediction and the
// residual targets — an exhaustive, deterministic search over observed
// feature values.
func fitStump(x [][]float64, residuals []float64, idx []int, nFeatures int) stump {
	best := stump{}
	bestLoss := math.MaxFloat64

	for feat := 0; feat < nFeatures; feat++ {
		thresholds := candidateThresholds(x, idx, feat)

		for _, th := range thresholds {
			var leftSum, rightSum float64

			var leftN, rightN int

			for _, i := range idx {
				if x[i][feat] < th {
					leftSum += residuals[i]
					leftN++
				} else {
					rightSum += residuals[i]
					rightN++
				}
			}

			if leftN == 0 || rightN == 0 {
				continue
			}

			leftVal := leftSum / float64(leftN)
			rightVal := rightSum / float64(rightN)

			var loss float64

			for _, i := range idx {
				var pred float64
				if x[i][feat] < th {
					pred = leftVal
				} else {
					pred = rightVal
				}

				d := residuals[i] - pred
				loss += d * d
			}

			if loss < bestLoss {
				bestLoss = loss
				best = stump{Feature: feat, Threshold: th, LeftValue: leftVal, RightValue: rightVal}
			}
		}
	}

	return best
}

// candidateThresholds returns midpoints between consecutive distinct sorted
// values of feature feat among the sampled rows.
func candidateThresholds(x [][]float64, idx []int, feat int) []float64 {
	vals := make([]float64, len(idx))
	for i, rowIdx := range idx {
		vals[i] = x[rowIdx][feat]
	}

	sortFloats(vals)

	thresholds := make([]float64, 0, len(vals))

	for i := 1; i < len(vals); i++ {
		if vals[i] == vals[i-1] {
			continue
		}

		thresholds = append(thresholds, (vals[i]+vals[i-1])/2)
	}

	return thresholds
}

func sortFloats(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}
