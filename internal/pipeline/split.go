package pipeline

import "math"

// TimeOrderedSplit carves off the tail test_split fraction, then the tail
// validation_split/(1-test_split) fraction of the remainder as validation,
// with no shuffling (spec §4.6).
func TimeOrderedSplit(ds Dataset, validationSplit, testSplit float64) Split {
	n := len(ds.Rows)

	testCount := int(float64(n) * testSplit)
	trainValCount := n - testCount

	remainderFrac := validationSplit
	if 1-testSplit > 0 {
		remainderFrac = validationSplit / (1 - testSplit)
	}

	valCount := int(float64(trainValCount) * remainderFrac)
	trainCount := trainValCount - valCount

	return Split{
		Train:      Dataset{FeatureNames: ds.FeatureNames, Rows: ds.Rows[:trainCount]},
		Validation: Dataset{FeatureNames: ds.FeatureNames, Rows: ds.Rows[trainCount:trainValCount]},
		Test:       Dataset{FeatureNames: ds.FeatureNames, Rows: ds.Rows[trainValCount:]},
	}
}

// Scaler standardizes features to zero mean, unit variance, fit on the
// training split only and applied identically to validation and test (spec
// §4.6).
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-column mean/std over x.
func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}

	cols := len(x[0])
	mean := make([]float64, cols)

	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}

	for j := range mean {
		mean[j] /= float64(len(x))
	}

	std := make([]float64, cols)

	for _, row := range x {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}

	for j := range std {
		std[j] /= float64(len(x))

		if std[j] > 0 {
			std[j] = math.Sqrt(std[j])
		} else {
			std[j] = 1 // avoid division by zero for constant columns
		}
	}

	return &Scaler{Mean: mean, Std: std}
}

// Transform applies the fitted scaler in place, returning a new matrix.
func (s *Scaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))

	for i, row := range x {
		scaled := make([]float64, len(row))

		for j, v := range row {
			if j < len(s.Mean) {
				scaled[j] = (v - s.Mean[j]) / s.Std[j]
			} else {
				scaled[j] = v
			}
		}

		out[i] = scaled
	}

	return out
}
