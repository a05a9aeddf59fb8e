// Package pipeline implements the Training Pipeline: a five-stage
// Load→Preprocess→Fit→Evaluate→Register executor (spec §4.6) satisfying
// internal/jobs.Executor.
package pipeline

import "time"

// Row is one (features, target, timestamp) training observation.
type Row struct {
	AssetID   string
	Timestamp time.Time
	Features  map[string]float64
	Target    float64
}

// Dataset is a time-ordered collection of Rows plus the resolved feature
// name ordering used to build fixed-width matrices.
type Dataset struct {
	FeatureNames []string
	Rows         []Row
}

// Matrix returns the dataset's feature matrix (row-major, columns ordered
// by FeatureNames) and target vector.
func (d Dataset) Matrix() ([][]float64, []float64) {
	x := make([][]float64, len(d.Rows))
	y := make([]float64, len(d.Rows))

	for i, row := range d.Rows {
		vec := make([]float64, len(d.FeatureNames))
		for j, name := range d.FeatureNames {
			vec[j] = row.Features[name]
		}

		x[i] = vec
		y[i] = row.Target
	}

	return x, y
}

// Split is the time-ordered train/validation/test partition of a Dataset
// (spec §4.6 "time-ordered, no shuffle").
type Split struct {
	Train, Validation, Test Dataset
}

// DistributedRowThreshold is the row-count floor above which distributed
// execution is policy-eligible, alongside n_workers > 1 (spec §4.6). This
// module has no distributed runtime to dispatch to, so it is always
// single-node in practice; the threshold is retained as a named constant so
// the policy decision itself is visible and testable independent of
// whether a distributed backend is ever wired in.
const DistributedRowThreshold = 10_000
