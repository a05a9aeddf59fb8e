package features

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed featuresets.yaml
var embeddedFeatureSets []byte

// LoadFeatureSets parses the embedded named feature-set projections. Callers
// pass the result to New via WithFeatureSets.
func LoadFeatureSets() (map[string][]string, error) {
	var sets map[string][]string

	if err := yaml.Unmarshal(embeddedFeatureSets, &sets); err != nil {
		return nil, fmt.Errorf("parse featuresets.yaml: %w", err)
	}

	return sets, nil
}
