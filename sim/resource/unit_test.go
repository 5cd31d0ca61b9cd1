package resource

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/trace"
)

// reactorLog records request callbacks as "request:N:kind@t".
type reactorLog struct {
	m      *sim.Model
	events []string
}

func (l *reactorLog) add(kind string) func(*Request) {
	return func(r *Request) {
		l.events = append(l.events, fmt.Sprintf("%s:%s@%g", r.Name(), kind, l.m.Executive().Time()))
	}
}

func (l *reactorLog) reactor() RequestReactor {
	return ReactorFuncs{
		OnAllocated: l.add("allocated"),
		OnPreempted: l.add("preempted"),
		OnResumed:   l.add("resumed"),
		OnCompleted: l.add("completed"),
		OnRejected:  l.add("rejected"),
		OnCanceled:  l.add("canceled"),
	}
}

// at schedules fn on m's executive at absolute time when (the clock starts at 0).
func at(t *testing.T, m *sim.Model, when float64, fn func() error) {
	t.Helper()
	_, err := m.Executive().Schedule(func(*sim.Event) error { return fn() }, when, sim.DefaultPriority, nil)
	require.NoError(t, err)
}

func runUntil(t *testing.T, m *sim.Model, limit float64) {
	t.Helper()
	_, err := m.Executive().RunUntil(limit)
	require.NoError(t, err)
}

func newUnitFixture(t *testing.T) (*sim.Model, *Unit, *reactorLog) {
	t.Helper()
	m := sim.NewModel("m", nil)
	u, err := NewUnit(m.Element, "U")
	require.NoError(t, err)
	return m, u, &reactorLog{m: m}
}

func newRequest(t *testing.T, el *sim.Element, cfg RequestConfig) *Request {
	t.Helper()
	r, err := NewRequest(el, cfg)
	require.NoError(t, err)
	return r
}

func TestNewRequest_RejectsBadConfig(t *testing.T) {
	m := sim.NewModel("m", nil)
	_, err := NewRequest(m.Element, RequestConfig{Rule: "sometimes"})
	assert.True(t, sim.IsConfigError(err))
	_, err = NewRequest(m.Element, RequestConfig{ServiceTime: -1})
	assert.True(t, sim.IsConfigError(err))

	r := newRequest(t, m.Element, RequestConfig{})
	assert.Equal(t, NoPreemption, r.Rule(), "empty rule defaults to no preemption")
	assert.Equal(t, Ready, r.State())
	assert.Equal(t, "request:1", r.Name())
}

func TestUnit_Seize_ServiceCompletesOnItsOwn(t *testing.T) {
	// GIVEN an idle unit and a request needing 3 time units of service
	m, u, log := newUnitFixture(t)
	r := newRequest(t, u.Element, RequestConfig{ServiceTime: 3, Reactor: log.reactor()})

	// WHEN the request seizes the unit at t=1
	var stateDuring UnitState
	at(t, m, 1, func() error { return u.Seize(r) })
	at(t, m, 2, func() error { stateDuring = u.State(); return nil })
	runUntil(t, m, 100)

	// THEN the unit is busy during service and idle afterwards
	assert.Equal(t, Busy, stateDuring)
	assert.Equal(t, Idle, u.State())
	assert.Equal(t, Busy, u.PreviousState())
	assert.Equal(t, Completed, r.State())
	assert.Nil(t, u.Request())
	assert.Equal(t, []string{"request:1:allocated@1", "request:1:completed@4"}, log.events)
}

func TestUnit_Seize_BusyUnitRefusesSecondRequest(t *testing.T) {
	_, u, _ := newUnitFixture(t)
	r1 := newRequest(t, u.Element, RequestConfig{})
	r2 := newRequest(t, u.Element, RequestConfig{})
	require.NoError(t, u.Seize(r1))

	err := u.Seize(r2)

	assert.True(t, errors.Is(err, ErrUnitNotIdle))
	assert.Equal(t, Ready, r2.State(), "refused request is untouched")
	assert.Same(t, r1, u.Request(), "a unit serves at most one request")
}

func TestRequest_Complete_SecondCallIsIllegal(t *testing.T) {
	// GIVEN a held request (no service time, released by its holder)
	_, u, log := newUnitFixture(t)
	r := newRequest(t, u.Element, RequestConfig{Reactor: log.reactor()})
	require.NoError(t, u.Seize(r))

	// WHEN Complete is called twice
	require.NoError(t, r.Complete())
	err := r.Complete()

	// THEN the second call is an illegal transition and the unit stays idle
	assert.True(t, errors.Is(err, sim.ErrIllegalStateTransition))
	assert.Equal(t, Idle, u.State())
	assert.Equal(t, []string{"request:1:allocated@0", "request:1:completed@0"}, log.events)
}

func TestRequest_Cancel(t *testing.T) {
	_, u, log := newUnitFixture(t)
	r := newRequest(t, u.Element, RequestConfig{Reactor: log.reactor()})
	require.NoError(t, u.Seize(r))

	require.NoError(t, r.Cancel())
	assert.Equal(t, Canceled, r.State())
	assert.Equal(t, Idle, u.State())
	assert.Nil(t, r.Unit())

	err := r.Cancel()
	assert.True(t, errors.Is(err, sim.ErrIllegalStateTransition), "terminal requests cannot be canceled")

	ready := newRequest(t, u.Element, RequestConfig{Reactor: log.reactor()})
	require.NoError(t, ready.Cancel())
	assert.Equal(t, Canceled, ready.State())
	assert.Equal(t, "request:2:canceled@0", log.events[len(log.events)-1])
}

func TestUnit_Preemption(t *testing.T) {
	tests := []struct {
		name          string
		rule          PreemptionRule
		wantCompleted string
	}{
		// preempted at 4 with 6 left, repaired at 6
		{name: "resume continues remaining service", rule: Resume, wantCompleted: "request:1:completed@12"},
		{name: "restart repeats full service", rule: Restart, wantCompleted: "request:1:completed@16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a 10-unit service that can be preempted
			m, u, log := newUnitFixture(t)
			r := newRequest(t, u.Element, RequestConfig{Rule: tt.rule, ServiceTime: 10, Reactor: log.reactor()})
			at(t, m, 0, func() error { return u.Seize(r) })

			// WHEN a non-delayable failure of duration 2 arrives at t=4
			var stateDuring UnitState
			at(t, m, 4, func() error { return u.Receive(newNotice(u, FailureKind, 2, false, nil)) })
			at(t, m, 5, func() error { stateDuring = u.State(); return nil })
			runUntil(t, m, 100)

			// THEN the request is preempted, resumed at repair, and completes
			assert.Equal(t, Failed, stateDuring)
			assert.Equal(t, []string{
				"request:1:allocated@0",
				"request:1:preempted@4",
				"request:1:resumed@6",
				tt.wantCompleted,
			}, log.events)
			assert.Equal(t, 1, r.NumPreemptions())
			assert.Equal(t, 1.0, u.NumPreemptions().Value())
			assert.Equal(t, 1.0, u.NumFailures().Value())
			assert.Equal(t, Idle, u.State())
		})
	}
}

func TestUnit_CancelPreemptedRequest(t *testing.T) {
	m, u, log := newUnitFixture(t)
	r := newRequest(t, u.Element, RequestConfig{Rule: Resume, ServiceTime: 10, Reactor: log.reactor()})
	at(t, m, 0, func() error { return u.Seize(r) })
	at(t, m, 1, func() error { return u.Receive(newNotice(u, FailureKind, 5, false, nil)) })
	at(t, m, 2, func() error { return r.Cancel() })
	runUntil(t, m, 100)

	assert.Equal(t, Canceled, r.State())
	assert.Nil(t, u.PreemptedRequest())
	assert.Equal(t, Idle, u.State(), "repair at 6 finds nothing to resume")
	assert.Equal(t, "request:1:canceled@2", log.events[len(log.events)-1])
}

func TestUnit_DelayableNoticeWaitsForRequest(t *testing.T) {
	// GIVEN a non-preemptible 5-unit service
	m, u, log := newUnitFixture(t)
	r := newRequest(t, u.Element, RequestConfig{ServiceTime: 5, Reactor: log.reactor()})
	at(t, m, 0, func() error { return u.Seize(r) })

	// WHEN a delayable failure of duration 3 arrives at t=2
	var n *Notice
	at(t, m, 2, func() error {
		n = newNotice(u, FailureKind, 3, true, nil)
		return u.Receive(n)
	})
	var delayedDuring int
	at(t, m, 3, func() error { delayedDuring = u.NumDelayedNotices(); return nil })
	runUntil(t, m, 100)

	// THEN the failure starts when the request completes and lasts its full duration
	assert.Equal(t, 1, delayedDuring)
	assert.Equal(t, []string{"request:1:allocated@0", "request:1:completed@5"}, log.events)
	assert.Equal(t, NoticeCompleted, n.State())
	assert.Equal(t, 5.0, n.ActivateTime())
	assert.Equal(t, 3.0, n.Delay())
	assert.Equal(t, Idle, u.State())
	assert.Equal(t, 3.0, u.StateIndicator(Failed).Within().WeightedSum(), "failed from 5 to 8")
}

func TestUnit_NonDelayableNoticeMeetsNonPreemptibleRequest(t *testing.T) {
	tests := []struct {
		name         string
		policy       ConflictPolicy
		countIgnored bool
		wantEvents   []string
		wantNotice   NoticeState
		wantFailures float64
		wantIgnored  float64
	}{
		{
			name:        "ignore notice",
			policy:      IgnoreNotice,
			wantEvents:  []string{"request:1:allocated@0", "request:1:completed@5"},
			wantNotice:  NoticeIgnored,
			wantIgnored: 1,
		},
		{
			name:         "ignore notice and count it as a failure",
			policy:       IgnoreNotice,
			countIgnored: true,
			wantEvents:   []string{"request:1:allocated@0", "request:1:completed@5"},
			wantNotice:   NoticeIgnored,
			wantFailures: 1,
			wantIgnored:  1,
		},
		{
			name:         "reject request",
			policy:       RejectRequest,
			wantEvents:   []string{"request:1:allocated@0", "request:1:rejected@2"},
			wantNotice:   NoticeCompleted,
			wantFailures: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, u, log := newUnitFixture(t)
			require.NoError(t, u.SetConflictPolicy(tt.policy))
			u.SetCountIgnoredFailures(tt.countIgnored)
			r := newRequest(t, u.Element, RequestConfig{ServiceTime: 5, Reactor: log.reactor()})
			at(t, m, 0, func() error { return u.Seize(r) })
			var n *Notice
			at(t, m, 2, func() error {
				n = newNotice(u, FailureKind, 1, false, nil)
				return u.Receive(n)
			})
			runUntil(t, m, 100)

			assert.Equal(t, tt.wantEvents, log.events)
			assert.Equal(t, tt.wantNotice, n.State())
			assert.Equal(t, tt.wantFailures, u.NumFailures().Value())
			assert.Equal(t, tt.wantIgnored, u.NumIgnoredNotices().Value())
			assert.Equal(t, Idle, u.State())
		})
	}
}

func TestUnit_SetConflictPolicy_Unknown(t *testing.T) {
	_, u, _ := newUnitFixture(t)
	assert.True(t, sim.IsConfigError(u.SetConflictPolicy("shrug")))
}

func TestUnit_NoFailureDelay_RejectsNonPreemptibleRequest(t *testing.T) {
	// GIVEN a unit whose failures cannot be delayed
	_, u, log := newUnitFixture(t)
	u.SetFailureDelayOption(false)
	r := newRequest(t, u.Element, RequestConfig{Reactor: log.reactor()})

	// WHEN a non-preemptible request seizes it
	err := u.Seize(r)

	// THEN it is rejected at once and the unit stays idle
	assert.True(t, errors.Is(err, ErrUnschedulable))
	assert.Equal(t, Rejected, r.State())
	assert.Equal(t, Idle, u.State())
	assert.Equal(t, []string{"request:1:rejected@0"}, log.events)

	preemptible := newRequest(t, u.Element, RequestConfig{Rule: Resume})
	assert.NoError(t, u.Seize(preemptible), "preemptible requests are still served")
}

func TestUnit_NoticeWhileDown(t *testing.T) {
	// GIVEN a unit failed from 0 to 4
	m, u, _ := newUnitFixture(t)
	at(t, m, 0, func() error { return u.Receive(newNotice(u, FailureKind, 4, false, nil)) })

	// WHEN a delayable inactivity and a non-delayable failure arrive while it is down
	var delayable, other *Notice
	at(t, m, 1, func() error {
		delayable = newNotice(u, InactivityKind, 2, true, nil)
		return u.Receive(delayable)
	})
	at(t, m, 2, func() error {
		other = newNotice(u, FailureKind, 2, false, nil)
		return u.Receive(other)
	})
	var stateAt5 UnitState
	at(t, m, 5, func() error { stateAt5 = u.State(); return nil })
	runUntil(t, m, 100)

	// THEN the delayable one runs after repair and the other is ignored
	assert.Equal(t, NoticeIgnored, other.State())
	assert.Equal(t, NoticeCompleted, delayable.State())
	assert.Equal(t, 4.0, delayable.ActivateTime())
	assert.Equal(t, Inactive, stateAt5)
	assert.Equal(t, Idle, u.State())
}

func TestUnit_TransitionsAreTraced(t *testing.T) {
	m, u, _ := newUnitFixture(t)
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelTransitions})
	m.SetTrace(st)
	r := newRequest(t, u.Element, RequestConfig{})
	require.NoError(t, u.Seize(r))
	require.NoError(t, r.Complete())

	var got []string
	for _, rec := range st.Transitions {
		got = append(got, fmt.Sprintf("%s %s %s->%s", rec.Machine, rec.Element, rec.From, rec.To))
	}
	assert.Equal(t, []string{
		"request request:1 ready->allocated",
		"unit U idle->busy",
		"request request:1 allocated->completed",
		"unit U busy->idle",
	}, got)
}
