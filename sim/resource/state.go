// Package resource models units of service capacity subject to failure and
// scheduled inactivity, the requests they serve, and pools of units.
//
// Each of the three life-cycles (unit, request, notice) is a string-typed
// state plus an explicit transition function. An event a state does not
// accept yields a *sim.TransitionError, which identifies a caller-logic bug.
package resource

import (
	"github.com/inference-sim/simkernel/sim"
)

// UnitState is the state of one unit of capacity.
type UnitState string

const (
	Idle     UnitState = "idle"
	Busy     UnitState = "busy"
	Failed   UnitState = "failed"
	Inactive UnitState = "inactive"
)

// UnitEvent drives unit transitions.
type UnitEvent string

const (
	UnitSeize      UnitEvent = "seize"
	UnitRelease    UnitEvent = "release"
	UnitFail       UnitEvent = "fail"
	UnitRepair     UnitEvent = "repair"
	UnitDeactivate UnitEvent = "deactivate"
	UnitReactivate UnitEvent = "reactivate"
)

// NextUnitState applies ev to s.
//
//	idle     --seize-->      busy
//	busy     --release-->    idle
//	idle|busy --fail-->      failed
//	failed   --repair-->     idle
//	idle|busy --deactivate--> inactive
//	inactive --reactivate--> idle
func NextUnitState(s UnitState, ev UnitEvent) (UnitState, error) {
	switch s {
	case Idle:
		switch ev {
		case UnitSeize:
			return Busy, nil
		case UnitFail:
			return Failed, nil
		case UnitDeactivate:
			return Inactive, nil
		}
	case Busy:
		switch ev {
		case UnitRelease:
			return Idle, nil
		case UnitFail:
			return Failed, nil
		case UnitDeactivate:
			return Inactive, nil
		}
	case Failed:
		if ev == UnitRepair {
			return Idle, nil
		}
	case Inactive:
		if ev == UnitReactivate {
			return Idle, nil
		}
	}
	return s, &sim.TransitionError{Machine: "unit", From: string(s), Event: string(ev)}
}

// RequestState is the state of a request for a unit.
type RequestState string

const (
	Ready     RequestState = "ready"
	Waiting   RequestState = "waiting"
	Rejected  RequestState = "rejected"
	Canceled  RequestState = "canceled"
	Allocated RequestState = "allocated"
	Preempted RequestState = "preempted"
	Completed RequestState = "completed"
)

// Terminal reports whether no further transition is accepted.
func (s RequestState) Terminal() bool {
	return s == Completed || s == Canceled || s == Rejected
}

// RequestEvent drives request transitions.
type RequestEvent string

const (
	RequestEnqueue  RequestEvent = "enqueue"
	RequestAllocate RequestEvent = "allocate"
	RequestPreempt  RequestEvent = "preempt"
	RequestResume   RequestEvent = "resume"
	RequestComplete RequestEvent = "complete"
	RequestReject   RequestEvent = "reject"
	RequestCancel   RequestEvent = "cancel"
)

// NextRequestState applies ev to s.
//
//	ready     --enqueue-->  waiting
//	ready|waiting --allocate--> allocated
//	allocated --preempt-->  preempted
//	preempted --resume-->   allocated
//	allocated --complete--> completed
//	any non-terminal --reject|cancel--> rejected|canceled
func NextRequestState(s RequestState, ev RequestEvent) (RequestState, error) {
	if !s.Terminal() {
		switch ev {
		case RequestReject:
			return Rejected, nil
		case RequestCancel:
			return Canceled, nil
		}
	}
	switch s {
	case Ready:
		switch ev {
		case RequestEnqueue:
			return Waiting, nil
		case RequestAllocate:
			return Allocated, nil
		}
	case Waiting:
		if ev == RequestAllocate {
			return Allocated, nil
		}
	case Allocated:
		switch ev {
		case RequestPreempt:
			return Preempted, nil
		case RequestComplete:
			return Completed, nil
		}
	case Preempted:
		if ev == RequestResume {
			return Allocated, nil
		}
	}
	return s, &sim.TransitionError{Machine: "request", From: string(s), Event: string(ev)}
}

// NoticeState is the state of a failure or inactivity notice.
type NoticeState string

const (
	NoticeCreated   NoticeState = "created"
	NoticeActive    NoticeState = "active"
	NoticeDelayed   NoticeState = "delayed"
	NoticeIgnored   NoticeState = "ignored"
	NoticeCompleted NoticeState = "completed"
)

// Terminal reports whether no further transition is accepted.
func (s NoticeState) Terminal() bool {
	return s == NoticeCompleted || s == NoticeIgnored
}

// NoticeEvent drives notice transitions.
type NoticeEvent string

const (
	NoticeActivate NoticeEvent = "activate"
	NoticeDelay    NoticeEvent = "delay"
	NoticeIgnore   NoticeEvent = "ignore"
	NoticeComplete NoticeEvent = "complete"
)

// NextNoticeState applies ev to s.
//
//	created --activate--> active
//	created --delay-->    delayed --activate--> active
//	created|delayed --ignore--> ignored
//	active  --complete--> completed
func NextNoticeState(s NoticeState, ev NoticeEvent) (NoticeState, error) {
	switch s {
	case NoticeCreated:
		switch ev {
		case NoticeActivate:
			return NoticeActive, nil
		case NoticeDelay:
			return NoticeDelayed, nil
		case NoticeIgnore:
			return NoticeIgnored, nil
		}
	case NoticeDelayed:
		switch ev {
		case NoticeActivate:
			return NoticeActive, nil
		case NoticeIgnore:
			return NoticeIgnored, nil
		}
	case NoticeActive:
		if ev == NoticeComplete {
			return NoticeCompleted, nil
		}
	}
	return s, &sim.TransitionError{Machine: "notice", From: string(s), Event: string(ev)}
}
