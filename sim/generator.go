package sim

import (
	"math"

	"github.com/inference-sim/simkernel/sim/random"
)

// GeneratorAction is invoked for every generated event.
type GeneratorAction func(g *EventGenerator) error

// EventGenerator schedules a renewal stream of events, e.g. customer arrivals.
// Generation ends after MaxEvents events, past EndingTime, or on TurnOff.
type EventGenerator struct {
	*Element

	action         GeneratorAction
	timeUntilFirst *RandomVariable
	timeBetween    *RandomVariable
	maxEvents      int64
	endingTime     float64
	initialOn      bool
	priority       int

	on        bool
	generated int64
	next      *Event
}

// GeneratorConfig configures an EventGenerator. TimeUntilFirst defaults to
// TimeBetween; MaxEvents 0 means unlimited; EndingTime 0 means +Inf.
type GeneratorConfig struct {
	TimeUntilFirst random.Distribution
	TimeBetween    random.Distribution
	MaxEvents      int64
	EndingTime     float64
	StartOff       bool
	Priority       int
}

// NewEventGenerator attaches a generator to parent.
func NewEventGenerator(parent *Element, name string, cfg GeneratorConfig, action GeneratorAction) (*EventGenerator, error) {
	if action == nil {
		return nil, configErrorf("action", "generator %q needs an action", name)
	}
	if cfg.TimeBetween == nil {
		return nil, configErrorf("time_between", "generator %q needs a time between events", name)
	}
	if cfg.MaxEvents < 0 {
		return nil, configErrorf("max_events", "must be >= 0, got %d", cfg.MaxEvents)
	}
	if math.IsNaN(cfg.EndingTime) || cfg.EndingTime < 0 {
		return nil, configErrorf("ending_time", "must be >= 0, got %v", cfg.EndingTime)
	}
	g := &EventGenerator{
		action:     action,
		maxEvents:  cfg.MaxEvents,
		endingTime: cfg.EndingTime,
		initialOn:  !cfg.StartOff,
		priority:   cfg.Priority,
	}
	if g.maxEvents == 0 {
		g.maxEvents = math.MaxInt64
	}
	if g.endingTime == 0 {
		g.endingTime = math.Inf(1)
	}
	if g.priority == 0 {
		g.priority = DefaultPriority
	}
	el, err := NewElement(parent, name, "EventGenerator", g)
	if err != nil {
		return nil, err
	}
	g.Element = el
	first := cfg.TimeUntilFirst
	if first == nil {
		first = cfg.TimeBetween
	}
	if g.timeUntilFirst, err = NewRandomVariable(el, el.name+":TimeUntilFirst", first); err != nil {
		return nil, err
	}
	if g.timeBetween, err = NewRandomVariable(el, el.name+":TimeBetween", cfg.TimeBetween); err != nil {
		return nil, err
	}
	return g, nil
}

// Generated returns the number of events generated this replication.
func (g *EventGenerator) Generated() int64 { return g.generated }

// On reports whether the generator is producing events.
func (g *EventGenerator) On() bool { return g.on }

// TimeBetween returns the inter-event random variable.
func (g *EventGenerator) TimeBetween() *RandomVariable { return g.timeBetween }

// TurnOn starts generation after the given delay if it is off.
func (g *EventGenerator) TurnOn(delay float64) error {
	if g.on {
		return nil
	}
	g.on = true
	return g.scheduleNext(delay)
}

// TurnOff cancels the pending event and stops generation.
func (g *EventGenerator) TurnOff() {
	g.on = false
	if g.next != nil {
		g.Cancel(g.next)
		g.next = nil
	}
}

func (g *EventGenerator) BeforeReplication() error {
	g.on = false
	g.generated = 0
	g.next = nil
	return nil
}

func (g *EventGenerator) Initialize() error {
	if !g.initialOn {
		return nil
	}
	g.on = true
	return g.scheduleNext(g.timeUntilFirst.Value())
}

func (g *EventGenerator) scheduleNext(delay float64) error {
	if g.generated >= g.maxEvents || g.Time()+delay > g.endingTime {
		g.on = false
		g.next = nil
		return nil
	}
	ev, err := g.Schedule(g.fire, delay, g.priority, "Generate", nil)
	if err != nil {
		return err
	}
	g.next = ev
	return nil
}

func (g *EventGenerator) fire(*Event) error {
	g.next = nil
	g.generated++
	if err := g.action(g); err != nil {
		return err
	}
	if !g.on {
		return nil
	}
	return g.scheduleNext(g.timeBetween.Value())
}
