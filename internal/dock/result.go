package dock

import "fmt"

// Status is the outcome class of a resolved command.
type Status uint8

const (
	StatusOK Status = iota + 1
	// StatusNotOK is a domain failure or a payload the worker did not expect.
	StatusNotOK
	// StatusSuperseded means a later command of a coalescing class won the tick.
	StatusSuperseded
	// StatusFault means an internal inconsistency was found while handling the
	// command.
	StatusFault
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotOK:
		return "not_ok"
	case StatusSuperseded:
		return "superseded"
	case StatusFault:
		return "fault"
	}
	return "unresolved"
}

// Result is delivered exactly once per accepted command.
//
// Value carries the class-specific payload for StatusOK (the new entity or
// asset id, the modified entity id, the picked entity id, or 1 when there is
// nothing to report). For StatusSuperseded it is the id of the command that
// replaced this one.
type Result struct {
	Status Status
	Value  uint32
	Reason string
}

func OK(value uint32) Result {
	return Result{Status: StatusOK, Value: value}
}

func NotOK(format string, args ...any) Result {
	return Result{Status: StatusNotOK, Reason: fmt.Sprintf(format, args...)}
}

func Superseded(by uint32) Result {
	return Result{Status: StatusSuperseded, Value: by, Reason: fmt.Sprintf("replaced by command %d", by)}
}

func Fault(err error) Result {
	return Result{Status: StatusFault, Reason: err.Error()}
}

func (r Result) IsOK() bool { return r.Status == StatusOK }

// Err returns nil for StatusOK and a *ResultError otherwise.
func (r Result) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	return &ResultError{Status: r.Status, Reason: r.Reason}
}

func (r Result) String() string {
	if r.Status == StatusOK {
		return fmt.Sprintf("ok(%d)", r.Value)
	}
	return r.Err().Error()
}
