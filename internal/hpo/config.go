package hpo

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed searchspaces.yaml
var embeddedSearchSpaces []byte

type rawParamSpec struct {
	Kind           string   `yaml:"kind"`
	Low            float64  `yaml:"low"`
	High           float64  `yaml:"high"`
	Categorical    []string `yaml:"categorical"`
}

// LoadDefaultSearchSpaces parses the embedded per-model-kind default search
// spaces into the hpo.SearchSpace discriminated union.
func LoadDefaultSearchSpaces() (map[string]SearchSpace, error) {
	var raw map[string]map[string]rawParamSpec

	if err := yaml.Unmarshal(embeddedSearchSpaces, &raw); err != nil {
		return nil, fmt.Errorf("parse searchspaces.yaml: %w", err)
	}

	spaces := make(map[string]SearchSpace, len(raw))

	for modelKind, dims := range raw {
		space := make(SearchSpace, len(dims))

		for name, spec := range dims {
			resolved, err := resolveParamSpec(spec)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", modelKind, name, err)
			}

			space[name] = resolved
		}

		spaces[modelKind] = space
	}

	return spaces, nil
}

func resolveParamSpec(spec rawParamSpec) (ParamSpec, error) {
	switch spec.Kind {
	case "int":
		return ParamSpec{Kind: ParamInt, Int: &IntRange{Low: int(spec.Low), High: int(spec.High)}}, nil
	case "float":
		return ParamSpec{Kind: ParamFloat, Float: &FloatRange{Low: spec.Low, High: spec.High}}, nil
	case "log_uniform":
		return ParamSpec{Kind: ParamLogUniform, LogUniform: &FloatRange{Low: spec.Low, High: spec.High}}, nil
	case "categorical":
		return ParamSpec{Kind: ParamCategorical, Categorical: spec.Categorical}, nil
	default:
		return ParamSpec{}, fmt.Errorf("%w: unknown param kind %q", ErrConfig, spec.Kind)
	}
}
