package sim

import (
	"fmt"

	"github.com/inference-sim/simkernel/sim/random"
	"github.com/inference-sim/simkernel/sim/trace"
)

// Model is the root of the element tree. It owns the executive, the random
// stream provider and the experiment settings shared by every element.
//
// Identity counters live here, so independent models can coexist in one
// process (test suites, replications run in parallel by the caller).
type Model struct {
	*Element

	exec       *Executive
	streams    *random.Provider
	trace      *trace.SimulationTrace
	experiment Experiment

	nextID   int
	names    map[string]*Element
	counters map[string]int64
}

// NewModel creates an empty model. A nil provider gets PCG streams with key 0.
func NewModel(name string, streams *random.Provider) *Model {
	if streams == nil {
		streams = random.NewProvider(0)
	}
	if name == "" {
		name = "Model"
	}
	m := &Model{
		exec:       NewExecutive(),
		streams:    streams,
		experiment: DefaultExperiment(),
		names:      make(map[string]*Element),
		counters:   make(map[string]int64),
	}
	m.nextID = 1
	m.Element = &Element{id: 1, name: name, kind: "Model", model: m, self: m, left: -1, right: -1}
	m.names[name] = m.Element
	return m
}

// Experiment returns the model's experiment settings.
func (m *Model) Experiment() *Experiment { return &m.experiment }

// SetExperiment replaces the experiment settings.
func (m *Model) SetExperiment(exp Experiment) { m.experiment = exp }

// SetTrace installs a transition trace. Pass nil to disable.
func (m *Model) SetTrace(st *trace.SimulationTrace) { m.trace = st }

// Lookup returns the element with the given name.
func (m *Model) Lookup(name string) (*Element, bool) {
	e, ok := m.names[name]
	return e, ok
}

// NextSequence returns the next identity number for objects of the given
// kind (entities, requests, notices). Numbering starts at 1 per model.
func (m *Model) NextSequence(kind string) int64 {
	m.counters[kind]++
	return m.counters[kind]
}

// NumElements returns the number of elements including the model.
func (m *Model) NumElements() int { return len(m.names) }

// Number assigns nested-set Left/Right numbers by pre-order traversal, so an
// element a is an ancestor of b exactly when a.Left < b.Left && b.Right < a.Right.
func (m *Model) Number() {
	counter := 0
	var visit func(e *Element)
	visit = func(e *Element) {
		counter++
		e.left = counter
		for _, c := range e.children {
			visit(c)
		}
		counter++
		e.right = counter
	}
	visit(m.Element)
}

// ElementInfo is the flattened view of one element for external storage.
type ElementInfo struct {
	ID       int    `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Kind     string `yaml:"kind" json:"kind"`
	ParentID int    `yaml:"parent_id" json:"parent_id"` // 0 for the model
	Left     int    `yaml:"left" json:"left"`
	Right    int    `yaml:"right" json:"right"`
}

// Elements numbers the tree and returns every element in pre-order.
func (m *Model) Elements() []ElementInfo {
	m.Number()
	out := make([]ElementInfo, 0, len(m.names))
	_ = m.walk(func(e *Element) error {
		info := ElementInfo{ID: e.id, Name: e.name, Kind: e.kind, Left: e.left, Right: e.right}
		if e.parent != nil {
			info.ParentID = e.parent.id
		}
		out = append(out, info)
		return nil
	})
	return out
}

// each calls fn on the self of every element in pre-order, skipping grouping nodes.
func (m *Model) each(fn func(e *Element, self any) error) error {
	return m.walk(func(e *Element) error {
		if e.self == nil {
			return nil
		}
		return fn(e, e.self)
	})
}

func (m *Model) beforeExperiment() error {
	return m.each(func(e *Element, self any) error {
		if h, ok := self.(ExperimentStarter); ok {
			if err := h.BeforeExperiment(); err != nil {
				return fmt.Errorf("before experiment %s: %w", e.name, err)
			}
		}
		return nil
	})
}

func (m *Model) beforeReplication() error {
	err := m.each(func(e *Element, self any) error {
		if h, ok := self.(ReplicationStarter); ok {
			if err := h.BeforeReplication(); err != nil {
				return fmt.Errorf("before replication %s: %w", e.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return m.each(func(e *Element, self any) error {
		if h, ok := self.(Initializer); ok {
			if err := h.Initialize(); err != nil {
				return fmt.Errorf("initialize %s: %w", e.name, err)
			}
		}
		return nil
	})
}

func (m *Model) warmUp() {
	_ = m.each(func(e *Element, self any) error {
		if h, ok := self.(WarmUpper); ok && e.WarmUpOption() {
			h.WarmUp()
		}
		return nil
	})
}

func (m *Model) afterReplication() error {
	return m.each(func(e *Element, self any) error {
		if h, ok := self.(ReplicationEnder); ok {
			if err := h.AfterReplication(); err != nil {
				return fmt.Errorf("after replication %s: %w", e.name, err)
			}
		}
		return nil
	})
}

func (m *Model) afterExperiment() error {
	return m.each(func(e *Element, self any) error {
		if h, ok := self.(ExperimentEnder); ok {
			if err := h.AfterExperiment(); err != nil {
				return fmt.Errorf("after experiment %s: %w", e.name, err)
			}
		}
		return nil
	})
}
