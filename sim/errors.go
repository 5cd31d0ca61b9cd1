package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEventTime is returned when an event would be scheduled before the current clock.
	ErrInvalidEventTime = errors.New("invalid event time")

	// ErrIllegalStateTransition identifies a caller-logic bug: an event applied
	// to a state machine in a state that does not accept it.
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// ErrInvalidConfiguration is wrapped by every ConfigError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrControllerState is returned when the replication controller is driven out of order.
	ErrControllerState = errors.New("controller not in a valid state for this operation")

	// ErrDuplicateName is returned when a model element name is already in use.
	ErrDuplicateName = errors.New("duplicate element name")
)

// TransitionError describes an event rejected by a state machine.
type TransitionError struct {
	// Machine names the kind of state machine, e.g. "request" or "unit".
	Machine string
	// Element identifies the instance.
	Element string
	// From is the state the machine was in.
	From string
	// Event is the rejected event.
	Event string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("%s %s: %v: event %q not allowed in state %q", e.Machine, e.Element, ErrIllegalStateTransition, e.Event, e.From)
	}
	return fmt.Sprintf("%s: %v: event %q not allowed in state %q", e.Machine, ErrIllegalStateTransition, e.Event, e.From)
}

// Unwrap lets errors.Is match ErrIllegalStateTransition.
func (e *TransitionError) Unwrap() error { return ErrIllegalStateTransition }

// IsTransitionError returns true if err is or wraps a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ReplicationError is a fatal error raised while a replication was running.
// It carries the replication number, the simulated time and the element that
// owned the failing event.
type ReplicationError struct {
	Replication int
	Time        float64
	Element     string
	Err         error
}

// Error implements the error interface.
func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication %d aborted at t=%g (element %q): %v", e.Replication, e.Time, e.Element, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReplicationError) Unwrap() error { return e.Err }
