package resource

import (
	"fmt"

	"github.com/inference-sim/simkernel/sim"
)

// NoticeKind tells a unit which state a notice drives it to.
type NoticeKind string

const (
	// FailureKind notices drive the unit to Failed; the unit is repaired when the notice completes.
	FailureKind NoticeKind = "failure"
	// InactivityKind notices drive the unit to Inactive for a scheduled period.
	InactivityKind NoticeKind = "inactivity"
)

// Notice announces a period during which a unit cannot serve. It is produced
// by a FailureProcess or an InactivitySchedule and consumed by exactly one unit.
type Notice struct {
	id        int64
	kind      NoticeKind
	state     NoticeState
	duration  float64
	delayable bool

	createTime   float64
	activateTime float64

	unit   *Unit
	end    *sim.Event
	onDone func(n *Notice) error // called once the notice completes or is ignored
}

func newNotice(u *Unit, kind NoticeKind, duration float64, delayable bool, onDone func(*Notice) error) *Notice {
	return &Notice{
		id:         u.Model().NextSequence("notice"),
		kind:       kind,
		state:      NoticeCreated,
		duration:   duration,
		delayable:  delayable,
		createTime: u.Time(),
		unit:       u,
		onDone:     onDone,
	}
}

// ID returns the notice's sequence number.
func (n *Notice) ID() int64 { return n.id }

// Name labels the notice in traces and errors.
func (n *Notice) Name() string { return fmt.Sprintf("notice:%d", n.id) }

// Kind returns the notice kind.
func (n *Notice) Kind() NoticeKind { return n.kind }

// State returns the notice's state.
func (n *Notice) State() NoticeState { return n.state }

// Duration returns how long the unit stays down once the notice is active.
func (n *Notice) Duration() float64 { return n.duration }

// Delayable reports whether the notice may wait for the unit's request to finish.
func (n *Notice) Delayable() bool { return n.delayable }

// CreateTime returns when the notice was raised.
func (n *Notice) CreateTime() float64 { return n.createTime }

// ActivateTime returns when the notice took the unit down.
func (n *Notice) ActivateTime() float64 { return n.activateTime }

// Delay returns how long activation was deferred.
func (n *Notice) Delay() float64 { return n.activateTime - n.createTime }

func (n *Notice) String() string {
	return fmt.Sprintf("Notice: (ID: %d, Kind: %s, State: %s, Duration: %g)", n.id, n.kind, n.state, n.duration)
}

func (n *Notice) apply(el *sim.Element, ev NoticeEvent) error {
	next, err := NextNoticeState(n.state, ev)
	if err != nil {
		te := err.(*sim.TransitionError)
		te.Element = n.Name()
		return te
	}
	el.RecordTransition(n.Name(), "notice", string(n.state), string(next), string(ev))
	n.state = next
	return nil
}

func (n *Notice) done() error {
	if n.onDone == nil {
		return nil
	}
	return n.onDone(n)
}
