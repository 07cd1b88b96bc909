package tracker

import "errors"

// State is the tracker's position in the run lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLocated
	StateSynthesized
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocated:
		return "located"
	case StateSynthesized:
		return "synthesized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var (
	// ErrTerminal rejects a transition out of Completed or Failed.
	ErrTerminal = errors.New("workflow already in a terminal state")
	// ErrEnvironmentOrder rejects SetEnvironment after progress has been
	// reported.
	ErrEnvironmentOrder = errors.New("execution environment must be set before the first update")
)
