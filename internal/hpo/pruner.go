package hpo

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfig is raised for unknown sampler/pruner names (spec §4.5).
var ErrConfig = errors.New("hpo: invalid configuration")

// Pruner decides whether a trial's intermediate value warrants early
// stopping (spec §4.5 "cooperative early stop").
type Pruner interface {
	ShouldPrune(trial Trial, step int, value float64, history []Trial) bool
}

// NewPruner constructs a Pruner by name.
func NewPruner(name string) (Pruner, error) {
	switch name {
	case "none":
		return nonePruner{}, nil
	case "median":
		return &medianPruner{startupTrials: 5, warmupSteps: 5}, nil
	case "hyperband":
		return &hyperbandPruner{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown pruner %q", ErrConfig, name)
	}
}

type nonePruner struct{}

func (nonePruner) ShouldPrune(Trial, int, float64, []Trial) bool { return false }

// medianPruner prunes a trial whose intermediate value at step is worse
// than the median of other trials' values at the same step, once at least
// startupTrials trials have completed and the current trial is past
// warmupSteps (spec §4.5 "median(n_startup=5, n_warmup=5)").
type medianPruner struct {
	startupTrials int
	warmupSteps   int
}

func (p *medianPruner) ShouldPrune(_ Trial, step int, value float64, history []Trial) bool {
	if step < p.warmupSteps {
		return false
	}

	complete := completeTrials(history)
	if len(complete) < p.startupTrials {
		return false
	}

	var peers []float64

	for _, t := range complete {
		if v, ok := t.Intermediate[step]; ok {
			peers = append(peers, v)
		}
	}

	if len(peers) == 0 {
		return false
	}

	return value > median(peers)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sortFloats64(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

func sortFloats64(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

// hyperbandPruner implements successive-halving: a trial is pruned if, at a
// rung boundary (a power-of-eta step count), its value ranks in the bottom
// 1/eta fraction of peers that reached that rung. A study with n_trials=0
// legally constructs a hyperbandPruner whose ShouldPrune is simply never
// invoked — a resolved Open Question (see DESIGN.md).
type hyperbandPruner struct {
	eta float64
}

func (p *hyperbandPruner) ShouldPrune(_ Trial, step int, value float64, history []Trial) bool {
	eta := p.eta
	if eta <= 1 {
		eta = 3
	}

	if !isRungBoundary(step, eta) {
		return false
	}

	var peers []float64

	for _, t := range history {
		if v, ok := t.Intermediate[step]; ok {
			peers = append(peers, v)
		}
	}

	if len(peers) < 2 {
		return false
	}

	sortFloats64(peers)

	cutoffIdx := int(math.Ceil(float64(len(peers)) * (1 - 1/eta)))
	if cutoffIdx >= len(peers) {
		return false
	}

	return value > peers[cutoffIdx]
}

func isRungBoundary(step int, eta float64) bool {
	if step <= 0 {
		return false
	}

	logStep := math.Log(float64(step)) / math.Log(eta)

	return math.Abs(logStep-math.Round(logStep)) < 1e-9
}
