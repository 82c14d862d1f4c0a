package caption

import "fmt"

// State represents where a Buffer is in its update cycle.
type State int

const (
	// StateEmpty - no finalized lines and no pending partial.
	StateEmpty State = iota
	// StateAccumulating - a partial transcript is in progress.
	StateAccumulating
	// StateIdle - the last update was final; nothing pending.
	StateIdle
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateIdle:
		return "IDLE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}
