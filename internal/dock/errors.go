package dock

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidID is returned for the reserved id 0.
	ErrInvalidID = errors.New("dock: invalid id 0")
	// ErrNotFound is returned when an id or handle is absent from a table or
	// from the command registry.
	ErrNotFound = errors.New("dock: not found")
	// ErrDuplicate is returned when inserting a key that is already mapped.
	ErrDuplicate = errors.New("dock: duplicate key")
	// ErrAlreadyResolved is returned by a second Resolve on the same promise.
	ErrAlreadyResolved = errors.New("dock: promise already resolved")
	// ErrReceiverGone is returned when the caller discarded its future before
	// the result arrived. Workers ignore it.
	ErrReceiverGone = errors.New("dock: receiver gone")
	// ErrClosed is returned by Future.Await when the wait ends without a result.
	ErrClosed = errors.New("dock: result channel closed")
)

// ConfigError reports a wiring mistake: a class submitted without a worker,
// a class registered twice, an unknown command shape. These are programming
// errors; Submit and Register panic with them.
type ConfigError struct {
	Class  Class
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Class == 0 {
		return "dock: configuration fault: " + e.Reason
	}
	return fmt.Sprintf("dock: configuration fault (class %s): %s", e.Class, e.Reason)
}

// ResultError is the error form of a non-OK Result.
type ResultError struct {
	Status Status
	Reason string
}

func (e *ResultError) Error() string {
	if e.Reason == "" {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Reason
}
