// Package trace records state-machine transitions for post-run analysis.
// This package has no dependencies on sim/ or its sub-packages; it stores pure data types.
package trace

// TransitionRecord captures one accepted state-machine transition.
type TransitionRecord struct {
	Replication int     `yaml:"replication" json:"replication"`
	Time        float64 `yaml:"time" json:"time"`
	Element     string  `yaml:"element" json:"element"`
	Machine     string  `yaml:"machine" json:"machine"` // "unit", "request" or "notice"
	From        string  `yaml:"from" json:"from"`
	To          string  `yaml:"to" json:"to"`
	Event       string  `yaml:"event" json:"event"`
}

// StopRecord captures how a replication ended.
type StopRecord struct {
	Replication int     `yaml:"replication" json:"replication"`
	Time        float64 `yaml:"time" json:"time"`
	Reason      string  `yaml:"reason" json:"reason"`
}
