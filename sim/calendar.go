package sim

import "container/heap"

// Calendar is the time-ordered collection of pending events.
// Ordering: timestamp → priority → event ID, so events that tie on time and
// priority dispatch in scheduling order.
type Calendar struct {
	events []*Event
}

// NewCalendar creates an empty calendar.
func NewCalendar() *Calendar {
	c := &Calendar{
		events: make([]*Event, 0),
	}
	heap.Init(c)
	return c
}

// Len implements heap.Interface
func (c *Calendar) Len() int {
	return len(c.events)
}

// Less implements heap.Interface with deterministic ordering
func (c *Calendar) Less(i, j int) bool {
	ei, ej := c.events[i], c.events[j]

	// Primary: timestamp (lower first)
	if ei.time != ej.time {
		return ei.time < ej.time
	}

	// Secondary: priority (lower value = dispatched first)
	if ei.priority != ej.priority {
		return ei.priority < ej.priority
	}

	// Tertiary: event ID (lower first, deterministic tie-breaker)
	return ei.id < ej.id
}

// Swap implements heap.Interface
func (c *Calendar) Swap(i, j int) {
	c.events[i], c.events[j] = c.events[j], c.events[i]
	c.events[i].index = i
	c.events[j].index = j
}

// Push implements heap.Interface
func (c *Calendar) Push(x any) {
	e := x.(*Event)
	e.index = len(c.events)
	c.events = append(c.events, e)
}

// Pop implements heap.Interface
func (c *Calendar) Pop() any {
	old := c.events
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // avoid memory leak
	e.index = -1
	c.events = old[0 : n-1]
	return e
}

// Add inserts an event.
func (c *Calendar) Add(e *Event) {
	heap.Push(c, e)
}

// PopNext removes and returns the next event, or nil when empty.
func (c *Calendar) PopNext() *Event {
	if c.Len() == 0 {
		return nil
	}
	return heap.Pop(c).(*Event)
}

// Peek returns the next event without removing it.
func (c *Calendar) Peek() *Event {
	if c.Len() == 0 {
		return nil
	}
	return c.events[0]
}

// Remove takes e off the calendar. It returns false if e is not queued here.
func (c *Calendar) Remove(e *Event) bool {
	if e == nil || e.index < 0 || e.index >= len(c.events) || c.events[e.index] != e {
		return false
	}
	heap.Remove(c, e.index)
	return true
}

// Clear drops every pending event, marking each as canceled.
func (c *Calendar) Clear() {
	for _, e := range c.events {
		e.canceled = true
		e.index = -1
	}
	clear(c.events)
	c.events = c.events[:0]
}
