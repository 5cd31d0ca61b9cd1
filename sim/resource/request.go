package resource

import (
	"fmt"
	"math"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/queue"
)

// PreemptionRule says what happens to an allocated request when its unit fails.
type PreemptionRule string

const (
	// NoPreemption requests cannot be interrupted; a conflicting non-delayable
	// notice is resolved by the unit's ConflictPolicy.
	NoPreemption PreemptionRule = "none"
	// Resume requests continue with their remaining service time after repair.
	Resume PreemptionRule = "resume"
	// Restart requests start their service over after repair.
	Restart PreemptionRule = "restart"
)

// RequestReactor receives a request's life-cycle callbacks. Callbacks run
// inside the event action that caused the transition.
type RequestReactor interface {
	Allocated(r *Request)
	Preempted(r *Request)
	Resumed(r *Request)
	Completed(r *Request)
	Rejected(r *Request)
	Canceled(r *Request)
}

// ReactorFuncs adapts optional functions to RequestReactor.
type ReactorFuncs struct {
	OnAllocated func(r *Request)
	OnPreempted func(r *Request)
	OnResumed   func(r *Request)
	OnCompleted func(r *Request)
	OnRejected  func(r *Request)
	OnCanceled  func(r *Request)
}

func (f ReactorFuncs) Allocated(r *Request) { call(f.OnAllocated, r) }
func (f ReactorFuncs) Preempted(r *Request) { call(f.OnPreempted, r) }
func (f ReactorFuncs) Resumed(r *Request)   { call(f.OnResumed, r) }
func (f ReactorFuncs) Completed(r *Request) { call(f.OnCompleted, r) }
func (f ReactorFuncs) Rejected(r *Request)  { call(f.OnRejected, r) }
func (f ReactorFuncs) Canceled(r *Request)  { call(f.OnCanceled, r) }

func call(fn func(*Request), r *Request) {
	if fn != nil {
		fn(r)
	}
}

// RequestConfig configures a new request.
type RequestConfig struct {
	Rule     PreemptionRule
	Priority int // lower values are served first by a pool
	// ServiceTime > 0 makes the unit end service on its own after that long.
	// Zero means the holder releases the unit by calling Complete.
	ServiceTime float64
	Reactor     RequestReactor
	Payload     any
}

// Request asks for one unit of capacity.
type Request struct {
	id       int64
	state    RequestState
	rule     PreemptionRule
	priority int
	reactor  RequestReactor

	// Payload is the caller's object riding on the request.
	Payload any

	serviceTime float64
	remaining   float64
	createTime  float64
	allocTime   float64 // start of the current service period

	unit        *Unit
	pool        *Pool
	entity      *queue.Entity // set while waiting in a pool
	completion  *sim.Event
	preemptions int
}

// NewRequest creates a Ready request stamped with el's clock.
func NewRequest(el *sim.Element, cfg RequestConfig) (*Request, error) {
	switch cfg.Rule {
	case "":
		cfg.Rule = NoPreemption
	case NoPreemption, Resume, Restart:
	default:
		return nil, &sim.ConfigError{Field: "rule", Reason: fmt.Sprintf("unknown preemption rule %q", cfg.Rule)}
	}
	if math.IsNaN(cfg.ServiceTime) || cfg.ServiceTime < 0 || math.IsInf(cfg.ServiceTime, 0) {
		return nil, &sim.ConfigError{Field: "service_time", Reason: fmt.Sprintf("must be finite and >= 0, got %v", cfg.ServiceTime)}
	}
	reactor := cfg.Reactor
	if reactor == nil {
		reactor = ReactorFuncs{}
	}
	return &Request{
		id:          el.Model().NextSequence("request"),
		state:       Ready,
		rule:        cfg.Rule,
		priority:    cfg.Priority,
		reactor:     reactor,
		Payload:     cfg.Payload,
		serviceTime: cfg.ServiceTime,
		remaining:   cfg.ServiceTime,
		createTime:  el.Time(),
	}, nil
}

// ID returns the request's sequence number.
func (r *Request) ID() int64 { return r.id }

// Name labels the request in traces and errors.
func (r *Request) Name() string { return fmt.Sprintf("request:%d", r.id) }

// State returns the request's state.
func (r *Request) State() RequestState { return r.state }

// Rule returns the preemption rule.
func (r *Request) Rule() PreemptionRule { return r.rule }

// Priority returns the request's priority.
func (r *Request) Priority() int { return r.priority }

// Unit returns the unit serving (or holding the preempted) request, nil otherwise.
func (r *Request) Unit() *Unit { return r.unit }

// CreateTime returns the simulated time the request was created.
func (r *Request) CreateTime() float64 { return r.createTime }

// ServiceTime returns the total service the request needs, 0 when held until Complete.
func (r *Request) ServiceTime() float64 { return r.serviceTime }

// RemainingServiceTime returns the service still owed after preemptions.
func (r *Request) RemainingServiceTime() float64 { return r.remaining }

// NumPreemptions returns how often the request was preempted.
func (r *Request) NumPreemptions() int { return r.preemptions }

func (r *Request) String() string {
	return fmt.Sprintf("Request: (ID: %d, State: %s, Rule: %s, Priority: %d)", r.id, r.state, r.rule, r.priority)
}

// apply moves the request through ev, recording the transition on el's trace.
func (r *Request) apply(el *sim.Element, ev RequestEvent) error {
	next, err := NextRequestState(r.state, ev)
	if err != nil {
		te := err.(*sim.TransitionError)
		te.Element = r.Name()
		return te
	}
	if el != nil {
		el.RecordTransition(r.Name(), "request", string(r.state), string(next), string(ev))
	}
	r.state = next
	return nil
}

// Complete ends service and frees the unit. Completing a request that is not
// allocated (including a second Complete) is an illegal transition.
func (r *Request) Complete() error {
	if r.state != Allocated {
		return r.apply(nil, RequestComplete)
	}
	return r.unit.complete(r)
}

// Cancel withdraws the request wherever it is: waiting in a pool, in service,
// or preempted. Canceling a terminal request is an illegal transition.
func (r *Request) Cancel() error {
	switch {
	case r.state.Terminal():
		return r.apply(nil, RequestCancel)
	case r.state == Waiting && r.pool != nil:
		return r.pool.cancelWaiting(r)
	case r.unit != nil:
		return r.unit.cancel(r)
	default:
		if err := r.apply(nil, RequestCancel); err != nil {
			return err
		}
		r.reactor.Canceled(r)
		return nil
	}
}
