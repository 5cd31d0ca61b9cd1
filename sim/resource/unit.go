package resource

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simkernel/sim"
)

var (
	// ErrUnschedulable is returned when a non-preemptible request targets
	// capacity whose failures cannot be delayed. The request is rejected.
	ErrUnschedulable = errors.New("request cannot be scheduled: no preemption allowed and failures cannot be delayed")
	// ErrUnitNotIdle is returned when seizing a unit that is not idle.
	ErrUnitNotIdle = errors.New("unit is not idle")
)

// ConflictPolicy resolves a non-delayable notice that arrives while the unit
// serves a request that cannot be preempted.
type ConflictPolicy string

const (
	// IgnoreNotice drops the notice and keeps serving.
	IgnoreNotice ConflictPolicy = "ignore-notice"
	// RejectRequest rejects the request in service and takes the unit down.
	RejectRequest ConflictPolicy = "reject-request"
)

// Unit is one unit of service capacity. It serves at most one request at a
// time; the state machine, not locking, enforces that.
type Unit struct {
	*sim.Element

	state    UnitState
	previous UnitState

	request   *Request // allocated
	preempted *Request // waiting for the unit to come back
	active    *Notice
	delayed   []*Notice
	pool      *Pool

	failureDelay bool
	conflict     ConflictPolicy
	countIgnored bool

	indicators  map[UnitState]*sim.TimeWeighted
	failures    *sim.Counter
	preemptions *sim.Counter
	ignored     *sim.Counter
}

// NewUnit attaches a unit to parent. Failures may be delayed and conflicts
// ignore the notice until configured otherwise.
func NewUnit(parent *sim.Element, name string) (*Unit, error) {
	u := &Unit{
		state:        Idle,
		previous:     Idle,
		failureDelay: true,
		conflict:     IgnoreNotice,
	}
	el, err := sim.NewElement(parent, name, "ResourceUnit", u)
	if err != nil {
		return nil, err
	}
	u.Element = el
	u.indicators = make(map[UnitState]*sim.TimeWeighted, 4)
	for _, s := range []UnitState{Idle, Busy, Failed, Inactive} {
		initial := 0.0
		if s == Idle {
			initial = 1
		}
		tw, err := sim.NewTimeWeighted(el, fmt.Sprintf("%s:%s", el.Name(), s), initial)
		if err != nil {
			return nil, err
		}
		u.indicators[s] = tw
	}
	if u.failures, err = sim.NewCounter(el, el.Name()+":NumFailures"); err != nil {
		return nil, err
	}
	if u.preemptions, err = sim.NewCounter(el, el.Name()+":NumPreemptions"); err != nil {
		return nil, err
	}
	if u.ignored, err = sim.NewCounter(el, el.Name()+":NumIgnoredNotices"); err != nil {
		return nil, err
	}
	return u, nil
}

// SetFailureDelayOption controls whether delayable notices may wait for the
// request in service to finish. With the option off, non-preemptible
// requests are rejected on arrival.
func (u *Unit) SetFailureDelayOption(on bool) { u.failureDelay = on }

// FailureDelayOption reports whether failures may be delayed.
func (u *Unit) FailureDelayOption() bool { return u.failureDelay }

// SetConflictPolicy selects how a non-delayable notice meets a non-preemptible request.
func (u *Unit) SetConflictPolicy(p ConflictPolicy) error {
	switch p {
	case IgnoreNotice, RejectRequest:
		u.conflict = p
		return nil
	default:
		return &sim.ConfigError{Field: "conflict_policy", Reason: fmt.Sprintf("unknown conflict policy %q", p)}
	}
}

// SetCountIgnoredFailures makes ignored failure notices count toward NumFailures.
func (u *Unit) SetCountIgnoredFailures(on bool) { u.countIgnored = on }

// State returns the unit's current state.
func (u *Unit) State() UnitState { return u.state }

// PreviousState returns the state before the last transition.
func (u *Unit) PreviousState() UnitState { return u.previous }

// Request returns the allocated request, nil when none.
func (u *Unit) Request() *Request { return u.request }

// PreemptedRequest returns the request waiting for the unit to come back, nil when none.
func (u *Unit) PreemptedRequest() *Request { return u.preempted }

// ActiveNotice returns the notice holding the unit down, nil when none.
func (u *Unit) ActiveNotice() *Notice { return u.active }

// NumDelayedNotices returns how many notices wait to be activated.
func (u *Unit) NumDelayedNotices() int { return len(u.delayed) }

// Pool returns the pool the unit belongs to, nil when standalone.
func (u *Unit) Pool() *Pool { return u.pool }

// StateIndicator returns the time-weighted 0/1 indicator of state s.
func (u *Unit) StateIndicator(s UnitState) *sim.TimeWeighted { return u.indicators[s] }

// NumFailures returns the failure counter.
func (u *Unit) NumFailures() *sim.Counter { return u.failures }

// NumPreemptions returns the preemption counter.
func (u *Unit) NumPreemptions() *sim.Counter { return u.preemptions }

// NumIgnoredNotices returns the ignored-notice counter.
func (u *Unit) NumIgnoredNotices() *sim.Counter { return u.ignored }

func (u *Unit) String() string {
	return fmt.Sprintf("Unit: (Name: %s, State: %s, Previous: %s)", u.Name(), u.state, u.previous)
}

func (u *Unit) BeforeReplication() error {
	u.state = Idle
	u.previous = Idle
	u.request = nil
	u.preempted = nil
	u.active = nil
	u.delayed = nil
	return nil
}

func (u *Unit) transition(ev UnitEvent) error {
	next, err := NextUnitState(u.state, ev)
	if err != nil {
		te := err.(*sim.TransitionError)
		te.Element = u.Name()
		return te
	}
	from := u.state
	u.previous = from
	u.state = next
	u.RecordTransition("", "unit", string(from), string(next), string(ev))
	u.indicators[from].SetValue(0)
	u.indicators[next].SetValue(1)
	if u.pool != nil {
		u.pool.unitChanged(from, next)
	}
	return nil
}

// Seize allocates the idle unit to r.
func (u *Unit) Seize(r *Request) error {
	if _, err := NextRequestState(r.state, RequestAllocate); err != nil {
		te := err.(*sim.TransitionError)
		te.Element = r.Name()
		return te
	}
	if r.rule == NoPreemption && !u.failureDelay {
		if err := u.reject(r); err != nil {
			return err
		}
		return fmt.Errorf("unit %s, %s: %w", u.Name(), r.Name(), ErrUnschedulable)
	}
	if u.state != Idle {
		return fmt.Errorf("unit %s is %s: %w", u.Name(), u.state, ErrUnitNotIdle)
	}
	return u.allocate(r)
}

// reject refuses a request that never started service.
func (u *Unit) reject(r *Request) error {
	if err := r.apply(u.Element, RequestReject); err != nil {
		return err
	}
	r.reactor.Rejected(r)
	return nil
}

func (u *Unit) allocate(r *Request) error {
	if err := r.apply(u.Element, RequestAllocate); err != nil {
		return err
	}
	if err := u.transition(UnitSeize); err != nil {
		return err
	}
	u.request = r
	r.unit = u
	if err := u.startService(r); err != nil {
		return err
	}
	r.reactor.Allocated(r)
	return nil
}

func (u *Unit) startService(r *Request) error {
	r.allocTime = u.Time()
	if r.serviceTime <= 0 {
		return nil
	}
	ev, err := u.Schedule(u.endService, r.remaining, sim.DefaultPriority, "EndService", r)
	if err != nil {
		return err
	}
	r.completion = ev
	return nil
}

func (u *Unit) endService(ev *sim.Event) error {
	r := ev.Message().(*Request)
	r.completion = nil
	return u.complete(r)
}

func (u *Unit) stopService(r *Request) {
	if r.completion != nil {
		u.Cancel(r.completion)
		r.completion = nil
	}
}

func (u *Unit) complete(r *Request) error {
	if u.request != r {
		return fmt.Errorf("unit %s: %s is not in service here", u.Name(), r.Name())
	}
	u.stopService(r)
	if err := r.apply(u.Element, RequestComplete); err != nil {
		return err
	}
	u.request = nil
	r.unit = nil
	r.remaining = 0
	if err := u.transition(UnitRelease); err != nil {
		return err
	}
	if err := u.released(); err != nil {
		return err
	}
	r.reactor.Completed(r)
	return nil
}

func (u *Unit) cancel(r *Request) error {
	switch r {
	case u.request:
		u.stopService(r)
		if err := r.apply(u.Element, RequestCancel); err != nil {
			return err
		}
		u.request = nil
		r.unit = nil
		if err := u.transition(UnitRelease); err != nil {
			return err
		}
		if err := u.released(); err != nil {
			return err
		}
	case u.preempted:
		if err := r.apply(u.Element, RequestCancel); err != nil {
			return err
		}
		u.preempted = nil
		r.unit = nil
	default:
		return fmt.Errorf("unit %s: %s is not held here", u.Name(), r.Name())
	}
	r.reactor.Canceled(r)
	return nil
}

// released hands an idle unit to the first delayed notice, else to its pool.
func (u *Unit) released() error {
	if u.state != Idle {
		return nil
	}
	if len(u.delayed) > 0 {
		n := u.delayed[0]
		u.delayed[0] = nil
		u.delayed = u.delayed[1:]
		return u.activate(n)
	}
	if u.pool != nil {
		return u.pool.unitAvailable(u)
	}
	return nil
}

// Receive hands a notice to the unit.
//
// An idle unit goes down at once. A busy unit delays a delayable notice until
// its request completes; otherwise the request is preempted when its rule
// allows, and the ConflictPolicy decides when it does not. A unit that is
// already down delays delayable notices and ignores the rest.
func (u *Unit) Receive(n *Notice) error {
	n.unit = u
	switch u.state {
	case Idle:
		return u.activate(n)
	case Busy:
		if n.delayable && u.failureDelay {
			return u.delay(n)
		}
		r := u.request
		switch r.rule {
		case Resume, Restart:
			if err := u.preempt(r); err != nil {
				return err
			}
			return u.activate(n)
		default:
			if u.conflict == RejectRequest {
				if err := u.rejectInService(r); err != nil {
					return err
				}
				return u.activate(n)
			}
			return u.ignore(n)
		}
	default:
		if n.delayable {
			return u.delay(n)
		}
		return u.ignore(n)
	}
}

func (u *Unit) delay(n *Notice) error {
	if err := n.apply(u.Element, NoticeDelay); err != nil {
		return err
	}
	u.delayed = append(u.delayed, n)
	logrus.Debugf("[t=%12.4f] unit %s: %s %s delayed while %s", u.Time(), u.Name(), n.kind, n.Name(), u.state)
	return nil
}

func (u *Unit) ignore(n *Notice) error {
	if err := n.apply(u.Element, NoticeIgnore); err != nil {
		return err
	}
	u.ignored.Increment(1)
	if u.countIgnored && n.kind == FailureKind {
		u.failures.Increment(1)
	}
	logrus.WithFields(logrus.Fields{
		"unit":   u.Name(),
		"notice": n.Name(),
		"state":  u.state,
	}).Warnf("[t=%12.4f] %s notice ignored", u.Time(), n.kind)
	return n.done()
}

func (u *Unit) activate(n *Notice) error {
	if err := n.apply(u.Element, NoticeActivate); err != nil {
		return err
	}
	n.activateTime = u.Time()
	u.active = n
	ev, name := UnitFail, "EndFailure"
	if n.kind == InactivityKind {
		ev, name = UnitDeactivate, "EndInactivity"
	}
	if err := u.transition(ev); err != nil {
		return err
	}
	if n.kind == FailureKind {
		u.failures.Increment(1)
	}
	end, err := u.Schedule(u.endNotice, n.duration, sim.DefaultPriority, name, n)
	if err != nil {
		return err
	}
	n.end = end
	return nil
}

func (u *Unit) preempt(r *Request) error {
	u.stopService(r)
	switch r.rule {
	case Resume:
		r.remaining = math.Max(0, r.remaining-(u.Time()-r.allocTime))
	case Restart:
		r.remaining = r.serviceTime
	}
	if err := r.apply(u.Element, RequestPreempt); err != nil {
		return err
	}
	r.preemptions++
	u.preemptions.Increment(1)
	u.request = nil
	u.preempted = r
	r.reactor.Preempted(r)
	return nil
}

func (u *Unit) rejectInService(r *Request) error {
	u.stopService(r)
	if err := r.apply(u.Element, RequestReject); err != nil {
		return err
	}
	u.request = nil
	r.unit = nil
	if u.pool != nil {
		u.pool.rejected.Increment(1)
	}
	logrus.Warnf("[t=%12.4f] unit %s: non-preemptible %s rejected by a non-delayable notice", u.Time(), u.Name(), r.Name())
	r.reactor.Rejected(r)
	return nil
}

// endNotice brings the unit back and resumes a preempted request, if any.
func (u *Unit) endNotice(ev *sim.Event) error {
	n := ev.Message().(*Notice)
	n.end = nil
	if err := n.apply(u.Element, NoticeComplete); err != nil {
		return err
	}
	u.active = nil
	back := UnitRepair
	if n.kind == InactivityKind {
		back = UnitReactivate
	}
	if err := u.transition(back); err != nil {
		return err
	}
	if err := n.done(); err != nil {
		return err
	}

	if r := u.preempted; r != nil {
		u.preempted = nil
		if err := r.apply(u.Element, RequestResume); err != nil {
			return err
		}
		if err := u.transition(UnitSeize); err != nil {
			return err
		}
		u.request = r
		if err := u.startService(r); err != nil {
			return err
		}
		r.reactor.Resumed(r)
		return nil
	}
	return u.released()
}
