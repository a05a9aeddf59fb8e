package hpo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Sampler proposes a parameter assignment for the next trial, optionally
// informed by prior trials (spec §4.5 "ask the sampler").
type Sampler interface {
	Suggest(space SearchSpace, history []Trial) Params
}

// NewSampler constructs a Sampler by name. Unknown names return an error,
// matching spec §4.5 "Unknown sampler/pruner names raise config".
func NewSampler(name string, seed int64) (Sampler, error) {
	switch name {
	case "random":
		return &randomSampler{rng: rand.New(rand.NewSource(seed))}, nil
	case "tpe":
		return &tpeSampler{rng: rand.New(rand.NewSource(seed)), startupTrials: 10}, nil
	case "grid":
		return &gridSampler{rng: rand.New(rand.NewSource(seed)), gridSteps: 5}, nil
	default:
		return nil, fmt.Errorf("%w: unknown sampler %q", ErrConfig, name)
	}
}

func sampleUniform(rng *rand.Rand, spec ParamSpec) any {
	switch spec.Kind {
	case ParamInt:
		return spec.Int.Low + rng.Intn(spec.Int.High-spec.Int.Low+1)
	case ParamFloat:
		return spec.Float.Low + rng.Float64()*(spec.Float.High-spec.Float.Low)
	case ParamLogUniform:
		logLow := math.Log(spec.LogUniform.Low)
		logHigh := math.Log(spec.LogUniform.High)

		return math.Exp(logLow + rng.Float64()*(logHigh-logLow))
	case ParamCategorical:
		return spec.Categorical[rng.Intn(len(spec.Categorical))]
	default:
		return nil
	}
}

// randomSampler draws i.i.d. uniform (or log-uniform) samples per dimension.
type randomSampler struct {
	rng *rand.Rand
}

func (s *randomSampler) Suggest(space SearchSpace, _ []Trial) Params {
	params := make(Params, len(space))
	for name, spec := range space {
		params[name] = sampleUniform(s.rng, spec)
	}

	return params
}

// tpeSampler approximates Tree-structured Parzen Estimation: it samples
// uniformly for the first startupTrials trials (exploration), then biases
// subsequent samples toward the neighborhood of the best-so-far complete
// trial (exploitation), a simplified stand-in for a full TPE density-ratio
// estimator appropriate to spec.md's "pluggable solver strategies" framing
// rather than an Optuna port.
type tpeSampler struct {
	rng           *rand.Rand
	startupTrials int
}

func (s *tpeSampler) Suggest(space SearchSpace, history []Trial) Params {
	complete := completeTrials(history)
	if len(complete) < s.startupTrials {
		return (&randomSampler{rng: s.rng}).Suggest(space, history)
	}

	best := bestTrial(complete, DirectionMinimize)
	params := make(Params, len(space))

	for name, spec := range space {
		if anchor, ok := best.Params[name]; ok {
			params[name] = perturb(s.rng, spec, anchor)
		} else {
			params[name] = sampleUniform(s.rng, spec)
		}
	}

	return params
}

func perturb(rng *rand.Rand, spec ParamSpec, anchor any) any {
	switch spec.Kind {
	case ParamInt:
		v, _ := anchor.(int)
		span := spec.Int.High - spec.Int.Low
		jitter := int(math.Round((rng.Float64() - 0.5) * float64(span) * 0.2))

		return clampInt(v+jitter, spec.Int.Low, spec.Int.High)
	case ParamFloat, ParamLogUniform:
		v, _ := anchor.(float64)

		var lo, hi float64
		if spec.Kind == ParamLogUniform {
			lo, hi = spec.LogUniform.Low, spec.LogUniform.High
		} else {
			lo, hi = spec.Float.Low, spec.Float.High
		}

		jitter := (rng.Float64() - 0.5) * (hi - lo) * 0.2

		return clampFloat(v+jitter, lo, hi)
	default:
		return sampleUniform(rng, spec)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// gridSampler enumerates an evenly spaced grid per dimension and walks it in
// a deterministic (seed-shuffled) order.
type gridSampler struct {
	rng       *rand.Rand
	gridSteps int
	grid      []Params
	built     bool
	cursor    int
}

func (s *gridSampler) Suggest(space SearchSpace, _ []Trial) Params {
	if !s.built {
		s.grid = buildGrid(space, s.gridSteps)
		s.rng.Shuffle(len(s.grid), func(i, j int) { s.grid[i], s.grid[j] = s.grid[j], s.grid[i] })
		s.built = true
	}

	if len(s.grid) == 0 {
		return Params{}
	}

	p := s.grid[s.cursor%len(s.grid)]
	s.cursor++

	return p
}

func buildGrid(space SearchSpace, steps int) []Params {
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}

	sort.Strings(names)

	grid := []Params{{}}

	for _, name := range names {
		spec := space[name]
		values := gridValues(spec, steps)

		next := make([]Params, 0, len(grid)*len(values))

		for _, base := range grid {
			for _, v := range values {
				p := make(Params, len(base)+1)
				for k, bv := range base {
					p[k] = bv
				}

				p[name] = v
				next = append(next, p)
			}
		}

		grid = next
	}

	return grid
}

func gridValues(spec ParamSpec, steps int) []any {
	switch spec.Kind {
	case ParamCategorical:
		out := make([]any, len(spec.Categorical))
		for i, c := range spec.Categorical {
			out[i] = c
		}

		return out
	case ParamInt:
		out := make([]any, 0, steps)

		for i := 0; i < steps; i++ {
			frac := float64(i) / float64(steps-1)
			v := spec.Int.Low + int(math.Round(frac*float64(spec.Int.High-spec.Int.Low)))
			out = append(out, v)
		}

		return out
	case ParamFloat, ParamLogUniform:
		var lo, hi float64
		if spec.Kind == ParamLogUniform {
			lo, hi = spec.LogUniform.Low, spec.LogUniform.High
		} else {
			lo, hi = spec.Float.Low, spec.Float.High
		}

		out := make([]any, 0, steps)

		for i := 0; i < steps; i++ {
			frac := float64(i) / float64(steps-1)
			out = append(out, lo+frac*(hi-lo))
		}

		return out
	default:
		return nil
	}
}

func completeTrials(history []Trial) []Trial {
	out := make([]Trial, 0, len(history))

	for _, t := range history {
		if t.State == TrialComplete && t.ObjectiveValue != nil {
			out = append(out, t)
		}
	}

	return out
}

func bestTrial(trials []Trial, direction Direction) Trial {
	best := trials[0]

	for _, t := range trials[1:] {
		if better(*t.ObjectiveValue, *best.ObjectiveValue, direction) {
			best = t
		}
	}

	return best
}

func better(candidate, current float64, direction Direction) bool {
	if direction == DirectionMaximize {
		return candidate > current
	}

	return candidate < current
}
