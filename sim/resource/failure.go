package resource

import (
	"fmt"
	"math"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/random"
)

// FailureConfig configures a FailureProcess.
type FailureConfig struct {
	TimeToFirst random.Distribution // defaults to TimeBetween
	TimeBetween random.Distribution // up time, measured from the end of the previous failure
	Duration    random.Distribution // down time
	Delayable   bool
}

// FailureProcess sends failure notices to one unit. The next failure is
// scheduled once the previous notice completes or is ignored, so up times
// never overlap down times.
type FailureProcess struct {
	*sim.Element

	unit        *Unit
	timeToFirst *sim.RandomVariable
	timeBetween *sim.RandomVariable
	duration    *sim.RandomVariable
	delayable   bool

	next   *sim.Event
	issued int64
}

// NewFailureProcess attaches a failure process to u.
func NewFailureProcess(u *Unit, name string, cfg FailureConfig) (*FailureProcess, error) {
	if cfg.TimeBetween == nil || cfg.Duration == nil {
		return nil, &sim.ConfigError{Field: "failures", Reason: fmt.Sprintf("unit %s: time between failures and duration are required", u.Name())}
	}
	if cfg.TimeToFirst == nil {
		cfg.TimeToFirst = cfg.TimeBetween
	}
	fp := &FailureProcess{unit: u, delayable: cfg.Delayable}
	el, err := sim.NewElement(u.Element, name, "FailureProcess", fp)
	if err != nil {
		return nil, err
	}
	fp.Element = el
	if fp.timeToFirst, err = sim.NewRandomVariable(el, el.Name()+":TimeToFirst", cfg.TimeToFirst); err != nil {
		return nil, err
	}
	if fp.timeBetween, err = sim.NewRandomVariable(el, el.Name()+":TimeBetween", cfg.TimeBetween); err != nil {
		return nil, err
	}
	if fp.duration, err = sim.NewRandomVariable(el, el.Name()+":Duration", cfg.Duration); err != nil {
		return nil, err
	}
	return fp, nil
}

// Unit returns the unit the process fails.
func (fp *FailureProcess) Unit() *Unit { return fp.unit }

// NumIssued returns the number of notices issued this replication.
func (fp *FailureProcess) NumIssued() int64 { return fp.issued }

func (fp *FailureProcess) BeforeReplication() error {
	fp.next = nil
	fp.issued = 0
	return nil
}

func (fp *FailureProcess) Initialize() error {
	return fp.schedule(fp.timeToFirst.Value())
}

func (fp *FailureProcess) schedule(delay float64) error {
	ev, err := fp.Schedule(fp.fail, delay, sim.DefaultPriority, "Failure", nil)
	if err != nil {
		return err
	}
	fp.next = ev
	return nil
}

func (fp *FailureProcess) fail(*sim.Event) error {
	fp.next = nil
	fp.issued++
	n := newNotice(fp.unit, FailureKind, fp.duration.Value(), fp.delayable, fp.noticeDone)
	return fp.unit.Receive(n)
}

func (fp *FailureProcess) noticeDone(*Notice) error {
	return fp.schedule(fp.timeBetween.Value())
}

// Inactivity is one scheduled period of inactivity.
type Inactivity struct {
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
}

// InactivityConfig configures an InactivitySchedule.
type InactivityConfig struct {
	Periods []Inactivity `yaml:"periods"`
	// CycleLength > 0 repeats the periods every CycleLength time units.
	CycleLength float64 `yaml:"cycle_length"`
	Delayable   bool    `yaml:"delayable"`
}

// Validate checks the periods are non-overlapping and fit the cycle.
func (c InactivityConfig) Validate() error {
	if len(c.Periods) == 0 {
		return &sim.ConfigError{Field: "periods", Reason: "at least one period is required"}
	}
	if math.IsNaN(c.CycleLength) || c.CycleLength < 0 || math.IsInf(c.CycleLength, 0) {
		return &sim.ConfigError{Field: "cycle_length", Reason: fmt.Sprintf("must be finite and >= 0, got %v", c.CycleLength)}
	}
	end := 0.0
	for i, p := range c.Periods {
		if math.IsNaN(p.Start) || p.Start < end || math.IsInf(p.Start, 0) {
			return &sim.ConfigError{Field: fmt.Sprintf("periods[%d].start", i), Reason: fmt.Sprintf("must be >= %v (sorted, non-overlapping), got %v", end, p.Start)}
		}
		if math.IsNaN(p.Duration) || p.Duration <= 0 || math.IsInf(p.Duration, 0) {
			return &sim.ConfigError{Field: fmt.Sprintf("periods[%d].duration", i), Reason: fmt.Sprintf("must be finite and > 0, got %v", p.Duration)}
		}
		end = p.Start + p.Duration
	}
	if c.CycleLength > 0 && end > c.CycleLength {
		return &sim.ConfigError{Field: "cycle_length", Reason: fmt.Sprintf("periods end at %v, past the cycle length %v", end, c.CycleLength)}
	}
	return nil
}

// InactivitySchedule sends inactivity notices to one unit at fixed times.
type InactivitySchedule struct {
	*sim.Element

	unit   *Unit
	config InactivityConfig
	cycle  int
}

// NewInactivitySchedule attaches a schedule to u.
func NewInactivitySchedule(u *Unit, name string, cfg InactivityConfig) (*InactivitySchedule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Periods = append([]Inactivity(nil), cfg.Periods...)
	s := &InactivitySchedule{unit: u, config: cfg}
	el, err := sim.NewElement(u.Element, name, "InactivitySchedule", s)
	if err != nil {
		return nil, err
	}
	s.Element = el
	return s, nil
}

// Unit returns the unit the schedule deactivates.
func (s *InactivitySchedule) Unit() *Unit { return s.unit }

// Cycle returns the number of cycles started this replication.
func (s *InactivitySchedule) Cycle() int { return s.cycle }

func (s *InactivitySchedule) BeforeReplication() error {
	s.cycle = 0
	return nil
}

func (s *InactivitySchedule) Initialize() error {
	return s.startCycle(nil)
}

func (s *InactivitySchedule) startCycle(*sim.Event) error {
	s.cycle++
	for _, p := range s.config.Periods {
		if _, err := s.Schedule(s.deactivate, p.Start, sim.DefaultPriority, "Inactivity", p); err != nil {
			return err
		}
	}
	if s.config.CycleLength > 0 {
		if _, err := s.Schedule(s.startCycle, s.config.CycleLength, sim.DefaultPriority, "StartCycle", nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *InactivitySchedule) deactivate(ev *sim.Event) error {
	p := ev.Message().(Inactivity)
	return s.unit.Receive(newNotice(s.unit, InactivityKind, p.Duration, s.config.Delayable, nil))
}
