package jobs

import (
	"errors"

	"github.com/correlator-io/trainhub/internal/config"
)

// ErrInvalidMaxConcurrentJobs is returned when MAX_CONCURRENT_JOBS is not a
// positive integer.
var ErrInvalidMaxConcurrentJobs = errors.New("MAX_CONCURRENT_JOBS must be positive")

// OrchestratorConfig is the Orchestrator's typed, env-driven configuration
// (spec's Design Notes: replace **kwargs config with explicit typed structs).
type OrchestratorConfig struct {
	MaxConcurrentJobs int
}

// LoadOrchestratorConfig loads OrchestratorConfig from the environment,
// following the teacher's config-getter convention (internal/config).
func LoadOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		MaxConcurrentJobs: config.GetEnvInt("MAX_CONCURRENT_JOBS", defaultMaxConcurrentJobs),
	}
}

// Validate checks the configuration is usable.
func (c *OrchestratorConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidMaxConcurrentJobs
	}

	return nil
}
