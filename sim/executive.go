package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// StopReason records why the executive's loop ended.
type StopReason string

const (
	StopNone            StopReason = ""
	StopCalendarEmpty   StopReason = "calendar-empty"
	StopTimeLimit       StopReason = "time-limit"
	StopRequested       StopReason = "requested"
	StopWallClockBudget StopReason = "wall-clock-budget"
)

// Partial reports whether the replication ended on the fail-safe rather than normally.
func (r StopReason) Partial() bool { return r == StopWallClockBudget }

// Executive owns the simulated clock and the event calendar of one
// replication, and runs the dispatch loop.
//
// Execution is single-threaded: an action runs to completion before the next
// event is considered, and "waiting" means returning control to the loop.
type Executive struct {
	clock       float64
	endingTime  float64
	calendar    *Calendar
	nextEventID uint64 // per-executive sequence for deterministic tie-breaks
	dispatched  uint64
	replication int

	wallBudget time.Duration
	wallClock  func() time.Time
	started    time.Time

	running     bool
	stopReq     bool
	stopMessage string
	current     *Event
}

// NewExecutive returns an executive at time 0 with no time limit.
func NewExecutive() *Executive {
	return &Executive{
		endingTime: math.Inf(1),
		calendar:   NewCalendar(),
		wallClock:  time.Now,
	}
}

// Time returns the current simulated time.
func (x *Executive) Time() float64 { return x.clock }

// EndingTime returns the simulated time at which Run stops.
func (x *Executive) EndingTime() float64 { return x.endingTime }

// SetEndingTime sets the simulated-time limit. +Inf means no limit.
func (x *Executive) SetEndingTime(t float64) error {
	if math.IsNaN(t) || t < x.clock {
		return fmt.Errorf("%w: ending time %v precedes clock %v", ErrInvalidEventTime, t, x.clock)
	}
	x.endingTime = t
	return nil
}

// SetWallClockBudget bounds the real time Run may take. Zero disables the check.
func (x *Executive) SetWallClockBudget(d time.Duration) {
	x.wallBudget = d
}

// Replication returns the replication number set by the last Reset.
func (x *Executive) Replication() int { return x.replication }

// EventsDispatched returns the number of actions invoked since the last Reset.
func (x *Executive) EventsDispatched() uint64 { return x.dispatched }

// Pending returns the number of events on the calendar.
func (x *Executive) Pending() int { return x.calendar.Len() }

// Peek returns the next event to be dispatched without removing it.
func (x *Executive) Peek() *Event { return x.calendar.Peek() }

// Current returns the event whose action is running, or nil between dispatches.
func (x *Executive) Current() *Event { return x.current }

// Running reports whether the dispatch loop is active.
func (x *Executive) Running() bool { return x.running }

// Reset prepares the executive for replication rep: the clock returns to 0,
// pending events are dropped, and the event sequence restarts.
func (x *Executive) Reset(rep int) {
	x.clock = 0
	x.calendar.Clear()
	x.nextEventID = 0
	x.dispatched = 0
	x.replication = rep
	x.stopReq = false
	x.stopMessage = ""
	x.current = nil
	x.running = false
}

// Schedule places action on the calendar delay time units from now.
// The returned *Event is the handle for Cancel.
func (x *Executive) Schedule(action EventAction, delay float64, priority int, message any) (*Event, error) {
	return x.schedule("", "", action, delay, priority, message)
}

func (x *Executive) schedule(owner, name string, action EventAction, delay float64, priority int, message any) (*Event, error) {
	if action == nil {
		return nil, fmt.Errorf("schedule %q: action must not be nil", name)
	}
	if math.IsNaN(delay) || delay < 0 {
		return nil, fmt.Errorf("%w: negative delay %v at t=%v (owner %q)", ErrInvalidEventTime, delay, x.clock, owner)
	}
	if math.IsInf(delay, 1) {
		return nil, fmt.Errorf("%w: infinite delay at t=%v (owner %q)", ErrInvalidEventTime, x.clock, owner)
	}
	x.nextEventID++
	e := &Event{
		id:          x.nextEventID,
		time:        x.clock + delay,
		priority:    priority,
		scheduledAt: x.clock,
		action:      action,
		message:     message,
		owner:       owner,
		name:        name,
		index:       -1,
	}
	x.calendar.Add(e)
	return e, nil
}

// Cancel removes a pending event. Canceling an event that has already been
// dispatched or canceled is a no-op and returns false.
func (x *Executive) Cancel(e *Event) bool {
	if e == nil || !e.Pending() {
		return false
	}
	e.canceled = true
	x.calendar.Remove(e)
	return true
}

// Stop asks the loop to end after the current action returns.
func (x *Executive) Stop(message string) {
	x.stopReq = true
	x.stopMessage = message
}

// StopMessage returns the message passed to the last Stop.
func (x *Executive) StopMessage() string { return x.stopMessage }

// RunUntil sets the ending time and runs.
func (x *Executive) RunUntil(limit float64) (StopReason, error) {
	if err := x.SetEndingTime(limit); err != nil {
		return StopNone, err
	}
	return x.Run()
}

// Run dispatches events until the calendar empties, the ending time is
// reached, Stop is called, or the wall-clock budget runs out. When the ending
// time is reached the clock is advanced to it.
//
// An action error is not handled here: the loop stops and the error is
// returned wrapped in a ReplicationError.
func (x *Executive) Run() (StopReason, error) {
	if x.running {
		return StopNone, fmt.Errorf("%w: executive already running", ErrControllerState)
	}
	x.running = true
	defer func() { x.running = false }()
	x.started = x.wallClock()

	for {
		if x.stopReq {
			logrus.Debugf("[t=%12.4f] stop requested: %s", x.clock, x.stopMessage)
			return StopRequested, nil
		}
		if x.wallBudget > 0 && x.wallClock().Sub(x.started) > x.wallBudget {
			logrus.Warnf("[t=%12.4f] replication %d exceeded wall-clock budget %v, ending early", x.clock, x.replication, x.wallBudget)
			return StopWallClockBudget, nil
		}
		next := x.calendar.Peek()
		if next == nil {
			return StopCalendarEmpty, nil
		}
		if next.time > x.endingTime {
			x.clock = x.endingTime
			return StopTimeLimit, nil
		}
		x.calendar.PopNext()

		if next.time < x.clock {
			panic(fmt.Sprintf("Clock went backwards: %v < %v", next.time, x.clock))
		}
		x.clock = next.time
		next.dispatched = true
		x.dispatched++
		x.current = next
		logrus.Debugf("[t=%12.4f] dispatch %s (owner %s, id %d)", x.clock, next.name, next.owner, next.id)

		err := next.action(next)
		x.current = nil
		if err != nil {
			return StopNone, &ReplicationError{
				Replication: x.replication,
				Time:        x.clock,
				Element:     next.owner,
				Err:         err,
			}
		}
	}
}
