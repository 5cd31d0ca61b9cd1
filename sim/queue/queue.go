// Package queue implements waiting lines with FIFO, LIFO, priority and ranked disciplines.
package queue

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/inference-sim/simkernel/sim"
)

var (
	// ErrAlreadyQueued is returned when an entity is enqueued while it is in a queue.
	ErrAlreadyQueued = errors.New("entity already in a queue")
	// ErrNotQueued is returned when removing an entity that is not in this queue.
	ErrNotQueued = errors.New("entity not in this queue")
)

// Discipline selects the order in which entities leave the queue.
type Discipline string

const (
	FIFO     Discipline = "fifo"
	LIFO     Discipline = "lifo"
	Priority Discipline = "priority" // lower Priority value first, FIFO among ties
	Ranked   Discipline = "ranked"   // caller-supplied RankFunc, FIFO among ties
)

// RankFunc reports whether a should leave the queue before b.
type RankFunc func(a, b *Entity) bool

// Entity is an object that can wait in a queue. It belongs to at most one
// queue at a time; while queued the queue owns it.
type Entity struct {
	id         int64
	createTime float64
	priority   int

	// Payload is the caller's object riding on the entity.
	Payload any

	queue     *Queue
	enteredAt float64
	seq       uint64
}

// NewEntity creates an entity stamped with el's clock and a per-model sequence number.
func NewEntity(el *sim.Element, priority int, payload any) *Entity {
	return &Entity{
		id:         el.Model().NextSequence("entity"),
		createTime: el.Time(),
		priority:   priority,
		Payload:    payload,
	}
}

// ID returns the entity's sequence number.
func (e *Entity) ID() int64 { return e.id }

// CreateTime returns the simulated time the entity was created.
func (e *Entity) CreateTime() float64 { return e.createTime }

// Priority returns the entity's priority. Lower values leave a priority queue first.
func (e *Entity) Priority() int { return e.priority }

// SetPriority changes the priority. It fails while the entity is queued.
func (e *Entity) SetPriority(p int) error {
	if e.queue != nil {
		return fmt.Errorf("entity %d: %w: priority cannot change while queued in %s", e.id, ErrAlreadyQueued, e.queue.Name())
	}
	e.priority = p
	return nil
}

// Queue returns the queue holding the entity, nil when not queued.
func (e *Entity) Queue() *Queue { return e.queue }

// EnteredAt returns the time the entity entered its current (or last) queue.
func (e *Entity) EnteredAt() float64 { return e.enteredAt }

func (e *Entity) String() string {
	return fmt.Sprintf("Entity: (ID: %d, Priority: %d, Created: %g)", e.id, e.priority, e.createTime)
}

// Queue is an ordered waiting line. It tracks the time-weighted number in
// queue and the time each entity spent waiting.
type Queue struct {
	*sim.Element

	discipline Discipline
	rank       RankFunc
	items      []*Entity
	seq        uint64

	numInQ  *sim.TimeWeighted
	timeInQ *sim.Response
}

// New attaches a queue to parent. Ranked queues also need SetRankFunc.
func New(parent *sim.Element, name string, d Discipline) (*Queue, error) {
	if err := validDiscipline(d); err != nil {
		return nil, err
	}
	q := &Queue{discipline: d}
	el, err := sim.NewElement(parent, name, "Queue", q)
	if err != nil {
		return nil, err
	}
	q.Element = el
	if q.numInQ, err = sim.NewTimeWeighted(el, el.Name()+":NumInQ", 0); err != nil {
		return nil, err
	}
	if q.timeInQ, err = sim.NewResponse(el, el.Name()+":TimeInQ"); err != nil {
		return nil, err
	}
	return q, nil
}

func validDiscipline(d Discipline) error {
	switch d {
	case FIFO, LIFO, Priority, Ranked:
		return nil
	default:
		return &sim.ConfigError{Field: "discipline", Reason: fmt.Sprintf("unknown queue discipline %q", d)}
	}
}

// Discipline returns the queue's discipline.
func (q *Queue) Discipline() Discipline { return q.discipline }

// SetRankFunc installs the ordering used by the Ranked discipline and
// re-ranks the current contents.
func (q *Queue) SetRankFunc(fn RankFunc) {
	q.rank = fn
	if q.discipline == Ranked {
		q.resort()
	}
}

// ChangeDiscipline switches the ordering and re-orders the waiting entities.
func (q *Queue) ChangeDiscipline(d Discipline) error {
	if err := validDiscipline(d); err != nil {
		return err
	}
	if d == Ranked && q.rank == nil {
		return &sim.ConfigError{Field: "discipline", Reason: fmt.Sprintf("queue %s: ranked discipline needs a rank function", q.Name())}
	}
	q.discipline = d
	q.resort()
	return nil
}

// before reports whether a leaves ahead of b under the current discipline.
// Ties fall back to insertion order, which LIFO reverses.
func (q *Queue) before(a, b *Entity) bool {
	switch q.discipline {
	case LIFO:
		return a.seq > b.seq
	case Priority:
		if a.priority != b.priority {
			return a.priority < b.priority
		}
	case Ranked:
		if q.rank != nil {
			if q.rank(a, b) {
				return true
			}
			if q.rank(b, a) {
				return false
			}
		}
	}
	return a.seq < b.seq
}

func (q *Queue) resort() {
	sort.SliceStable(q.items, func(i, j int) bool { return q.before(q.items[i], q.items[j]) })
}

// Enqueue adds e in discipline order.
func (q *Queue) Enqueue(e *Entity) error {
	if e == nil {
		return fmt.Errorf("queue %s: enqueue nil entity", q.Name())
	}
	if e.queue != nil {
		return fmt.Errorf("queue %s: entity %d: %w (%s)", q.Name(), e.id, ErrAlreadyQueued, e.queue.Name())
	}
	if q.discipline == Ranked && q.rank == nil {
		return &sim.ConfigError{Field: "discipline", Reason: fmt.Sprintf("queue %s: ranked discipline needs a rank function", q.Name())}
	}
	q.seq++
	e.seq = q.seq
	e.queue = q
	e.enteredAt = q.Time()
	i := sort.Search(len(q.items), func(i int) bool { return q.before(e, q.items[i]) })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = e
	q.numInQ.SetValue(float64(len(q.items)))
	return nil
}

// Dequeue removes and returns the next entity, or nil when empty.
func (q *Queue) Dequeue() *Entity {
	if len(q.items) == 0 {
		return nil
	}
	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.leave(e)
	return e
}

// Remove takes e out of the queue from any position (reneging, cancellation).
func (q *Queue) Remove(e *Entity) error {
	if e == nil || e.queue != q {
		return ErrNotQueued
	}
	for i, it := range q.items {
		if it == e {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.leave(e)
			return nil
		}
	}
	return ErrNotQueued
}

func (q *Queue) leave(e *Entity) {
	e.queue = nil
	q.numInQ.SetValue(float64(len(q.items)))
	q.timeInQ.Observe(q.Time() - e.enteredAt)
}

// Peek returns the next entity without removing it.
func (q *Queue) Peek() *Entity {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Len returns the number of waiting entities.
func (q *Queue) Len() int { return len(q.items) }

// IsEmpty reports whether nothing is waiting.
func (q *Queue) IsEmpty() bool { return len(q.items) == 0 }

// Contains reports whether e waits in this queue.
func (q *Queue) Contains(e *Entity) bool { return e != nil && e.queue == q }

// Items returns a copy of the contents in leaving order.
func (q *Queue) Items() []*Entity {
	out := make([]*Entity, len(q.items))
	copy(out, q.items)
	return out
}

// NumInQueue returns the time-weighted number-in-queue response.
func (q *Queue) NumInQueue() *sim.TimeWeighted { return q.numInQ }

// TimeInQueue returns the waiting-time response.
func (q *Queue) TimeInQueue() *sim.Response { return q.timeInQ }

// BeforeReplication releases entities left over from the previous replication.
func (q *Queue) BeforeReplication() error {
	for _, e := range q.items {
		e.queue = nil
	}
	clear(q.items)
	q.items = q.items[:0]
	q.seq = 0
	return nil
}

func (q *Queue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range q.items {
		sb.WriteString(fmt.Sprint(val.id))
		if i < len(q.items)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
