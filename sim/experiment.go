package sim

import (
	"math"
	"time"
)

// Experiment governs how many replications run and how long each lasts.
//
// YAML form (unknown fields are rejected by the CLI loader):
//
//	experiment:
//	  name: mm1
//	  num_replications: 10
//	  replication_length: 20000   # .inf for unbounded
//	  warm_up_length: 2000
//	  antithetic: false
type Experiment struct {
	Name  string `yaml:"name"`
	RunID string `yaml:"run_id,omitempty"` // fixed run ID; empty generates one per run

	NumReplications   int     `yaml:"num_replications"`
	ReplicationLength float64 `yaml:"replication_length"`
	WarmUpLength      float64 `yaml:"warm_up_length"`

	// Stream policy.
	ResetStartStream bool `yaml:"reset_start_stream"`
	AdvanceSubstream bool `yaml:"advance_substream"`
	Antithetic       bool `yaml:"antithetic"`
	AdvanceStreams   int  `yaml:"advance_streams"` // substream advances before the first replication

	// Wall-clock fail-safes; zero disables.
	MaxReplicationWallTime time.Duration `yaml:"max_replication_wall_time"`
	MaxExperimentWallTime  time.Duration `yaml:"max_experiment_wall_time"`
}

// DefaultExperiment returns one unbounded replication with streams reset at
// the start and advanced between replications.
func DefaultExperiment() Experiment {
	return Experiment{
		Name:              "Experiment",
		NumReplications:   1,
		ReplicationLength: math.Inf(1),
		ResetStartStream:  true,
		AdvanceSubstream:  true,
	}
}

// Validate checks every setting eagerly; nothing is coerced.
func (e *Experiment) Validate() error {
	if e.NumReplications < 1 {
		return configErrorf("num_replications", "must be >= 1, got %d", e.NumReplications)
	}
	if math.IsNaN(e.ReplicationLength) || e.ReplicationLength <= 0 {
		return configErrorf("replication_length", "must be > 0 or infinite, got %v", e.ReplicationLength)
	}
	if math.IsNaN(e.WarmUpLength) || e.WarmUpLength < 0 || math.IsInf(e.WarmUpLength, 0) {
		return configErrorf("warm_up_length", "must be finite and >= 0, got %v", e.WarmUpLength)
	}
	if e.WarmUpLength > 0 && e.WarmUpLength >= e.ReplicationLength {
		return configErrorf("warm_up_length", "%v must be less than replication length %v", e.WarmUpLength, e.ReplicationLength)
	}
	if e.AdvanceStreams < 0 {
		return configErrorf("advance_streams", "must be >= 0, got %d", e.AdvanceStreams)
	}
	if e.MaxReplicationWallTime < 0 {
		return configErrorf("max_replication_wall_time", "must be >= 0, got %v", e.MaxReplicationWallTime)
	}
	if e.MaxExperimentWallTime < 0 {
		return configErrorf("max_experiment_wall_time", "must be >= 0, got %v", e.MaxExperimentWallTime)
	}
	return nil
}

// Unbounded reports whether replications can only end by an empty calendar,
// an explicit stop, or a wall-clock budget.
func (e *Experiment) Unbounded() bool {
	return math.IsInf(e.ReplicationLength, 1)
}
