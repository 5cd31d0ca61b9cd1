package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simkernel/sim/stats"
	"github.com/inference-sim/simkernel/sim/trace"
)

// ControllerState is the replication controller's lifecycle state.
type ControllerState string

const (
	StateCreated       ControllerState = "created"
	StateInitialized   ControllerState = "initialized"
	StateRunning       ControllerState = "running"
	StateStepCompleted ControllerState = "step-completed"
	StateEnded         ControllerState = "ended"
)

// Collector is implemented by elements whose statistics are harvested after
// each replication and summarized across replications.
type Collector interface {
	// ReplicationRecord returns the within-replication view after replication rep.
	ReplicationRecord(rep int) stats.ReplicationRecord
	// AcrossReplicationSummary returns the summary over per-replication averages.
	AcrossReplicationSummary() stats.Summary
}

// ReplicationResult describes one completed replication.
type ReplicationResult struct {
	Number           int                       `yaml:"number" json:"number"`
	StopReason       StopReason                `yaml:"stop_reason" json:"stop_reason"`
	Partial          bool                      `yaml:"partial" json:"partial"`
	EndTime          float64                   `yaml:"end_time" json:"end_time"`
	EventsDispatched uint64                    `yaml:"events_dispatched" json:"events_dispatched"`
	WallTime         time.Duration             `yaml:"wall_time" json:"wall_time"`
	Records          []stats.ReplicationRecord `yaml:"records" json:"records"`
}

// ExperimentResult is everything the kernel exposes about one experiment.
type ExperimentResult struct {
	RunID        string              `yaml:"run_id" json:"run_id"`
	Experiment   string              `yaml:"experiment" json:"experiment"`
	Truncated    bool                `yaml:"truncated" json:"truncated"` // experiment wall-clock budget ran out
	Elements     []ElementInfo       `yaml:"elements" json:"elements"`
	Replications []ReplicationResult `yaml:"replications" json:"replications"`
	Summaries    []stats.Summary     `yaml:"summaries" json:"summaries"`
}

// Simulation drives a model through the replications of its experiment:
//
//	Created -> Initialized -> (Running -> StepCompleted) x N -> Ended
type Simulation struct {
	model *Model
	state ControllerState

	replication int
	expStart    time.Time
	truncated   bool
	runID       string
	result      *ExperimentResult

	wallClock func() time.Time
}

// NewSimulation returns a controller for m.
func NewSimulation(m *Model) *Simulation {
	return &Simulation{
		model:     m,
		state:     StateCreated,
		wallClock: time.Now,
	}
}

// SetWallClock replaces the real-time source used for wall-clock budgets.
func (s *Simulation) SetWallClock(now func() time.Time) {
	s.wallClock = now
	s.model.exec.wallClock = now
}

// Model returns the controlled model.
func (s *Simulation) Model() *Model { return s.model }

// State returns the controller's lifecycle state.
func (s *Simulation) State() ControllerState { return s.state }

// Replication returns the number of the current or last replication (1-based).
func (s *Simulation) Replication() int { return s.replication }

// RunID identifies the current experiment run. A fresh ID is generated at
// every Initialize unless the experiment names one.
func (s *Simulation) RunID() string { return s.runID }

// Result returns the results accumulated so far, nil before Initialize.
func (s *Simulation) Result() *ExperimentResult { return s.result }

// Initialize validates the experiment, prepares the random streams and runs
// every BeforeExperiment hook.
func (s *Simulation) Initialize() error {
	if s.state != StateCreated && s.state != StateEnded {
		return fmt.Errorf("%w: initialize in state %s", ErrControllerState, s.state)
	}
	exp := &s.model.experiment
	if err := exp.Validate(); err != nil {
		return err
	}
	s.runID = exp.RunID
	if s.runID == "" {
		s.runID = uuid.Must(uuid.NewV7()).String()
	}
	if exp.Unbounded() && exp.MaxReplicationWallTime == 0 && exp.MaxExperimentWallTime == 0 {
		logrus.Warnf("experiment %s: replication length is infinite and no wall-clock budget is set; replications end only when the calendar empties or a stop is requested", exp.Name)
	}

	streams := s.model.streams
	if exp.ResetStartStream {
		streams.ResetStartStream()
	}
	for i := 0; i < exp.AdvanceStreams; i++ {
		streams.AdvanceToNextSubstream()
	}
	streams.SetAntithetic(false)

	s.replication = 0
	s.truncated = false
	s.expStart = s.wallClock()
	s.result = &ExperimentResult{
		RunID:      s.runID,
		Experiment: exp.Name,
		Elements:   s.model.Elements(),
	}
	if err := s.model.beforeExperiment(); err != nil {
		return err
	}
	s.state = StateInitialized
	logrus.WithFields(logrus.Fields{
		"experiment":   exp.Name,
		"run_id":       s.runID,
		"replications": exp.NumReplications,
	}).Info("experiment initialized")
	return nil
}

// HasNext reports whether another replication should run.
func (s *Simulation) HasNext() bool {
	if s.state != StateInitialized && s.state != StateStepCompleted {
		return false
	}
	if s.truncated {
		return false
	}
	return s.replication < s.model.experiment.NumReplications
}

// RunNext runs one replication: reset the executive, run the BeforeReplication
// and Initialize hooks, schedule warm-up, run the executive, run the
// AfterReplication hooks, harvest records and apply the stream policy.
func (s *Simulation) RunNext() (*ReplicationResult, error) {
	if s.state != StateInitialized && s.state != StateStepCompleted {
		return nil, fmt.Errorf("%w: run next in state %s", ErrControllerState, s.state)
	}
	exp := &s.model.experiment
	if s.replication >= exp.NumReplications {
		return nil, fmt.Errorf("%w: all %d replications already ran", ErrControllerState, exp.NumReplications)
	}
	s.state = StateRunning
	s.replication++
	rep := s.replication

	x := s.model.exec
	x.Reset(rep)
	if err := x.SetEndingTime(exp.ReplicationLength); err != nil {
		return nil, err
	}
	x.SetWallClockBudget(s.replicationBudget())

	if err := s.model.beforeReplication(); err != nil {
		return nil, &ReplicationError{Replication: rep, Time: x.clock, Element: s.model.name, Err: err}
	}
	if exp.WarmUpLength > 0 {
		if _, err := x.schedule(s.model.name, "WarmUp", func(*Event) error {
			logrus.Debugf("[t=%12.4f] warm-up", x.clock)
			s.model.warmUp()
			return nil
		}, exp.WarmUpLength, WarmUpPriority, nil); err != nil {
			return nil, err
		}
	}

	start := s.wallClock()
	reason, err := x.Run()
	if err != nil {
		return nil, err
	}
	if err := s.model.afterReplication(); err != nil {
		return nil, &ReplicationError{Replication: rep, Time: x.clock, Element: s.model.name, Err: err}
	}

	res := ReplicationResult{
		Number:           rep,
		StopReason:       reason,
		Partial:          reason.Partial(),
		EndTime:          x.clock,
		EventsDispatched: x.dispatched,
		WallTime:         s.wallClock().Sub(start),
	}
	_ = s.model.each(func(e *Element, self any) error {
		if c, ok := self.(Collector); ok {
			r := c.ReplicationRecord(rep)
			r.ElementID = e.id
			r.ElementName = e.name
			res.Records = append(res.Records, r)
		}
		return nil
	})
	s.model.trace.RecordStop(trace.StopRecord{Replication: rep, Time: x.clock, Reason: string(reason)})
	s.result.Replications = append(s.result.Replications, res)

	if res.Partial {
		logrus.Warnf("replication %d ended early at t=%g: %s", rep, x.clock, reason)
	}
	logrus.Infof("replication %d/%d done: t=%g, events=%d, reason=%s", rep, exp.NumReplications, x.clock, x.dispatched, reason)

	s.advanceStreams(rep)
	if exp.MaxExperimentWallTime > 0 && s.wallClock().Sub(s.expStart) > exp.MaxExperimentWallTime && rep < exp.NumReplications {
		logrus.Warnf("experiment %s exceeded wall-clock budget %v after %d replications", exp.Name, exp.MaxExperimentWallTime, rep)
		s.truncated = true
		s.result.Truncated = true
	}
	s.state = StateStepCompleted
	return &s.result.Replications[len(s.result.Replications)-1], nil
}

// replicationBudget is the smaller of the per-replication budget and what is
// left of the experiment budget.
func (s *Simulation) replicationBudget() time.Duration {
	exp := &s.model.experiment
	budget := exp.MaxReplicationWallTime
	if exp.MaxExperimentWallTime > 0 {
		left := exp.MaxExperimentWallTime - s.wallClock().Sub(s.expStart)
		if left <= 0 {
			left = time.Nanosecond
		}
		if budget == 0 || left < budget {
			budget = left
		}
	}
	return budget
}

// advanceStreams applies the between-replication stream policy. With
// antithetic replications, odd replication k is followed by its complement on
// the same substream; the pair then moves on to a fresh substream.
func (s *Simulation) advanceStreams(rep int) {
	exp := &s.model.experiment
	streams := s.model.streams
	if exp.Antithetic {
		if rep%2 == 1 {
			streams.SetAntithetic(true)
			streams.ResetStartSubstream()
			return
		}
		streams.SetAntithetic(false)
		streams.AdvanceToNextSubstream()
		return
	}
	if exp.AdvanceSubstream {
		streams.AdvanceToNextSubstream()
	}
}

// End runs every AfterExperiment hook and collects the across-replication summaries.
func (s *Simulation) End() error {
	if s.state != StateInitialized && s.state != StateStepCompleted {
		return fmt.Errorf("%w: end in state %s", ErrControllerState, s.state)
	}
	if err := s.model.afterExperiment(); err != nil {
		return err
	}
	_ = s.model.each(func(e *Element, self any) error {
		if c, ok := self.(Collector); ok {
			sum := c.AcrossReplicationSummary()
			sum.ElementID = e.id
			sum.ElementName = e.name
			s.result.Summaries = append(s.result.Summaries, sum)
		}
		return nil
	})
	s.state = StateEnded
	logrus.Infof("experiment %s ended after %d replications", s.model.experiment.Name, s.replication)
	return nil
}

// Run initializes the experiment, runs every replication and ends it.
// A fatal replication error aborts the experiment and is returned.
func (s *Simulation) Run() (*ExperimentResult, error) {
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	for s.HasNext() {
		if _, err := s.RunNext(); err != nil {
			return s.result, err
		}
	}
	if err := s.End(); err != nil {
		return s.result, err
	}
	return s.result, nil
}
