package sim

import "fmt"

// Event priorities: lower values dispatch first among events sharing a timestamp.
const (
	// WarmUpPriority places the warm-up event ahead of ordinary events at the same time.
	WarmUpPriority = 5
	// DefaultPriority is used by elements that do not care about tie ordering.
	DefaultPriority = 10
)

// EventAction is invoked when its event is dispatched. A non-nil error is
// fatal: the executive stops and the replication is aborted.
type EventAction func(e *Event) error

// Event is a pending (or dispatched) entry on the event calendar. The returned
// *Event doubles as the handle used for cancellation. Apart from its canceled
// flag an Event is immutable once scheduled.
type Event struct {
	id          uint64
	time        float64
	priority    int
	scheduledAt float64
	action      EventAction
	message     any
	owner       string
	name        string

	canceled   bool
	dispatched bool
	index      int // position in the calendar heap, -1 when not queued
}

// ID returns the per-replication creation sequence number.
func (e *Event) ID() uint64 { return e.id }

// Time returns the timestamp at which the event is (or was) dispatched.
func (e *Event) Time() float64 { return e.time }

// Priority returns the tie-break priority.
func (e *Event) Priority() int { return e.priority }

// ScheduledAt returns the clock value when the event was scheduled.
func (e *Event) ScheduledAt() float64 { return e.scheduledAt }

// Message returns the payload attached at scheduling time.
func (e *Event) Message() any { return e.message }

// Owner returns the name of the element that scheduled the event, if any.
func (e *Event) Owner() string { return e.owner }

// Name returns the event's label.
func (e *Event) Name() string { return e.name }

// Canceled reports whether the event was canceled before dispatch.
func (e *Event) Canceled() bool { return e.canceled }

// Dispatched reports whether the event's action has been invoked.
func (e *Event) Dispatched() bool { return e.dispatched }

// Pending reports whether the event is still waiting on the calendar.
func (e *Event) Pending() bool { return !e.canceled && !e.dispatched }

func (e *Event) String() string {
	return fmt.Sprintf("Event: (ID: %d, Name: %s, Time: %g, Priority: %d, Owner: %s)", e.id, e.name, e.time, e.priority, e.owner)
}
