package sim

import (
	"fmt"

	"github.com/inference-sim/simkernel/sim/random"
	"github.com/inference-sim/simkernel/sim/trace"
)

// Lifecycle hooks. A component opts in by implementing the interface; the
// controller calls hooks on every element in pre-order (parent before
// children, children in creation order).
type (
	// ExperimentStarter runs once, before the first replication.
	ExperimentStarter interface{ BeforeExperiment() error }
	// ReplicationStarter restores per-replication state.
	ReplicationStarter interface{ BeforeReplication() error }
	// Initializer schedules the element's initial events. It runs after every
	// ReplicationStarter, with the clock at 0.
	Initializer interface{ Initialize() error }
	// WarmUpper clears accumulated statistics at the warm-up point.
	WarmUpper interface{ WarmUp() }
	// ReplicationEnder runs after the executive stops.
	ReplicationEnder interface{ AfterReplication() error }
	// ExperimentEnder runs once, after the last replication.
	ExperimentEnder interface{ AfterExperiment() error }
)

// Element is one node of the model tree. Components embed *Element and pass
// themselves as self so the controller can find their lifecycle hooks.
//
// A parent owns its children; the parent pointer is a back-reference used
// only for traversal.
type Element struct {
	id       int
	name     string
	kind     string
	parent   *Element
	children []*Element
	model    *Model
	self     any

	left, right int
	warmUpOff   bool
}

// NewElement creates a child of parent. self is the component embedding the
// element (nil for plain grouping nodes). An empty name is replaced by
// "<kind>:<id>". Names are unique within a model.
func NewElement(parent *Element, name, kind string, self any) (*Element, error) {
	if parent == nil || parent.model == nil {
		return nil, configErrorf("parent", "element %q needs a parent attached to a model", name)
	}
	m := parent.model
	m.nextID++
	id := m.nextID
	if name == "" {
		name = fmt.Sprintf("%s:%d", kind, id)
	}
	if _, ok := m.names[name]; ok {
		m.nextID--
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	e := &Element{
		id:     id,
		name:   name,
		kind:   kind,
		parent: parent,
		model:  m,
		self:   self,
		left:   -1,
		right:  -1,
	}
	parent.children = append(parent.children, e)
	m.names[name] = e
	return e, nil
}

// ID returns the element's creation ordinal within its model. The model itself is 1.
func (e *Element) ID() int { return e.id }

// Name returns the element's unique name.
func (e *Element) Name() string { return e.name }

// Kind returns the element's type label.
func (e *Element) Kind() string { return e.kind }

// Parent returns the parent element, nil for the model.
func (e *Element) Parent() *Element { return e.parent }

// Children returns the children in creation order. The slice must not be modified.
func (e *Element) Children() []*Element { return e.children }

// Model returns the model the element belongs to.
func (e *Element) Model() *Model { return e.model }

// Executive returns the model's executive.
func (e *Element) Executive() *Executive { return e.model.exec }

// Time returns the current simulated time.
func (e *Element) Time() float64 { return e.model.exec.clock }

// Streams returns the model's random stream provider.
func (e *Element) Streams() *random.Provider { return e.model.streams }

// Trace returns the model's transition trace, nil when tracing is off.
func (e *Element) Trace() *trace.SimulationTrace { return e.model.trace }

// Left returns the pre-order entry number assigned by Model.Number, -1 before numbering.
func (e *Element) Left() int { return e.left }

// Right returns the pre-order exit number assigned by Model.Number, -1 before numbering.
func (e *Element) Right() int { return e.right }

// SetWarmUpOption controls whether the element clears its statistics at the
// warm-up point. The option applies to the element and all its descendants.
func (e *Element) SetWarmUpOption(on bool) { e.warmUpOff = !on }

// WarmUpOption reports whether the element takes part in warm-up.
func (e *Element) WarmUpOption() bool {
	for p := e; p != nil; p = p.parent {
		if p.warmUpOff {
			return false
		}
	}
	return true
}

// Schedule places action on the calendar, recording the element as owner.
func (e *Element) Schedule(action EventAction, delay float64, priority int, name string, message any) (*Event, error) {
	return e.model.exec.schedule(e.name, name, action, delay, priority, message)
}

// Cancel removes a pending event.
func (e *Element) Cancel(ev *Event) bool {
	return e.model.exec.Cancel(ev)
}

// RecordTransition appends a transition to the model's trace, if enabled.
// subject names the machine's instance; empty means the element itself.
func (e *Element) RecordTransition(subject, machine, from, to, event string) {
	if !e.model.trace.Enabled() {
		return
	}
	if subject == "" {
		subject = e.name
	}
	e.model.trace.RecordTransition(trace.TransitionRecord{
		Replication: e.model.exec.replication,
		Time:        e.model.exec.clock,
		Element:     subject,
		Machine:     machine,
		From:        from,
		To:          to,
		Event:       event,
	})
}

func (e *Element) String() string {
	return fmt.Sprintf("Element: (ID: %d, Name: %s, Kind: %s)", e.id, e.name, e.kind)
}

// walk visits e and its descendants in pre-order.
func (e *Element) walk(fn func(*Element) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, c := range e.children {
		if err := c.walk(fn); err != nil {
			return err
		}
	}
	return nil
}
