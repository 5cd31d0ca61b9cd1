package resource

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/queue"
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	Units      int              // number of units created as children of the pool
	Selection  string           // see SelectionRuleNames
	Discipline queue.Discipline // waiting-line order, default priority
}

// Pool is a set of units serving one waiting line of requests. A request that
// finds no suitable idle unit waits; each unit that becomes idle takes the
// first waiting request it can serve.
type Pool struct {
	*sim.Element

	units   []*Unit
	rule    SelectionRule
	waiting *queue.Queue

	busy, failed, inactive int

	numBusy     *sim.TimeWeighted
	numFailed   *sim.TimeWeighted
	numInactive *sim.TimeWeighted
	utilization *sim.TimeWeighted
	rejected    *sim.Counter
}

// NewPool attaches a pool of cfg.Units units to parent.
func NewPool(parent *sim.Element, name string, cfg PoolConfig) (*Pool, error) {
	if cfg.Units < 1 {
		return nil, &sim.ConfigError{Field: "units", Reason: fmt.Sprintf("pool %q needs at least one unit, got %d", name, cfg.Units)}
	}
	if cfg.Discipline == "" {
		cfg.Discipline = queue.Priority
	}
	p := &Pool{}
	el, err := sim.NewElement(parent, name, "ResourcePool", p)
	if err != nil {
		return nil, err
	}
	p.Element = el
	if p.rule, err = NewSelectionRule(cfg.Selection, p); err != nil {
		return nil, &sim.ConfigError{Field: "selection", Reason: err.Error()}
	}
	if p.waiting, err = queue.New(el, el.Name()+":Waiting", cfg.Discipline); err != nil {
		return nil, err
	}
	for i := 1; i <= cfg.Units; i++ {
		u, err := NewUnit(el, fmt.Sprintf("%s:Unit%d", el.Name(), i))
		if err != nil {
			return nil, err
		}
		u.pool = p
		p.units = append(p.units, u)
	}
	if p.numBusy, err = sim.NewTimeWeighted(el, el.Name()+":NumBusy", 0); err != nil {
		return nil, err
	}
	if p.numFailed, err = sim.NewTimeWeighted(el, el.Name()+":NumFailed", 0); err != nil {
		return nil, err
	}
	if p.numInactive, err = sim.NewTimeWeighted(el, el.Name()+":NumInactive", 0); err != nil {
		return nil, err
	}
	if p.utilization, err = sim.NewTimeWeighted(el, el.Name()+":Utilization", 0); err != nil {
		return nil, err
	}
	if p.rejected, err = sim.NewCounter(el, el.Name()+":NumRejected"); err != nil {
		return nil, err
	}
	return p, nil
}

// Units returns the pool's units in pool order.
func (p *Pool) Units() []*Unit { return p.units }

// Unit returns the i-th unit, counting from 0.
func (p *Pool) Unit(i int) *Unit { return p.units[i] }

// SetSelectionRule replaces the selection rule.
func (p *Pool) SetSelectionRule(rule SelectionRule) { p.rule = rule }

// Waiting returns the pool's waiting line.
func (p *Pool) Waiting() *queue.Queue { return p.waiting }

// NumIdle returns the number of idle units.
func (p *Pool) NumIdle() int { return len(p.units) - p.busy - p.failed - p.inactive }

// NumBusy returns the number of busy units.
func (p *Pool) NumBusy() int { return p.busy }

// BusyUnits returns the time-weighted number of busy units.
func (p *Pool) BusyUnits() *sim.TimeWeighted { return p.numBusy }

// FailedUnits returns the time-weighted number of failed units.
func (p *Pool) FailedUnits() *sim.TimeWeighted { return p.numFailed }

// InactiveUnits returns the time-weighted number of inactive units.
func (p *Pool) InactiveUnits() *sim.TimeWeighted { return p.numInactive }

// Utilization returns the time-weighted fraction of busy units.
func (p *Pool) Utilization() *sim.TimeWeighted { return p.utilization }

// NumRejected returns the counter of rejected requests: those refused on
// arrival as unschedulable and those rejected in service by a unit's
// RejectRequest conflict policy.
func (p *Pool) NumRejected() *sim.Counter { return p.rejected }

func (p *Pool) BeforeReplication() error {
	p.busy, p.failed, p.inactive = 0, 0, 0
	if ci, ok := p.rule.(*CyclicIdle); ok {
		ci.last = nil
	}
	return nil
}

// canServe reports whether u may ever take r.
func canServe(u *Unit, r *Request) bool {
	return r.rule != NoPreemption || u.failureDelay
}

// Seize allocates an idle unit chosen by the selection rule, or makes r wait.
// A non-preemptible request is rejected with ErrUnschedulable when no unit of
// the pool can delay its failures.
func (p *Pool) Seize(r *Request) error {
	if r.state != Ready {
		return &sim.TransitionError{Machine: "request", Element: r.Name(), From: string(r.state), Event: string(RequestEnqueue)}
	}
	var idle []*Unit
	eligible := 0
	for _, u := range p.units {
		if !canServe(u, r) {
			continue
		}
		eligible++
		if u.state == Idle {
			idle = append(idle, u)
		}
	}
	if eligible == 0 {
		if err := r.apply(p.Element, RequestReject); err != nil {
			return err
		}
		p.rejected.Increment(1)
		logrus.Debugf("[t=%12.4f] pool %s rejected %s: no unit can delay failures", p.Time(), p.Name(), r.Name())
		r.reactor.Rejected(r)
		return fmt.Errorf("pool %s, %s: %w", p.Name(), r.Name(), ErrUnschedulable)
	}
	if u := p.rule.Select(idle); u != nil {
		return u.allocate(r)
	}
	if err := r.apply(p.Element, RequestEnqueue); err != nil {
		return err
	}
	r.entity = queue.NewEntity(p.Element, r.priority, r)
	r.pool = p
	return p.waiting.Enqueue(r.entity)
}

// unitAvailable gives an idle unit the first waiting request it can serve.
func (p *Pool) unitAvailable(u *Unit) error {
	for _, e := range p.waiting.Items() {
		r := e.Payload.(*Request)
		if !canServe(u, r) {
			continue
		}
		if err := p.waiting.Remove(e); err != nil {
			return err
		}
		r.entity = nil
		r.pool = nil
		return u.allocate(r)
	}
	return nil
}

func (p *Pool) cancelWaiting(r *Request) error {
	if err := p.waiting.Remove(r.entity); err != nil {
		return err
	}
	r.entity = nil
	r.pool = nil
	if err := r.apply(p.Element, RequestCancel); err != nil {
		return err
	}
	r.reactor.Canceled(r)
	return nil
}

func (p *Pool) unitChanged(from, to UnitState) {
	p.count(from, -1)
	p.count(to, 1)
	p.numBusy.SetValue(float64(p.busy))
	p.numFailed.SetValue(float64(p.failed))
	p.numInactive.SetValue(float64(p.inactive))
	p.utilization.SetValue(float64(p.busy) / float64(len(p.units)))
}

func (p *Pool) count(s UnitState, d int) {
	switch s {
	case Busy:
		p.busy += d
	case Failed:
		p.failed += d
	case Inactive:
		p.inactive += d
	}
}
