package audio

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of one recognized utterance.
type State int

const (
	// StateOpen - partial hypotheses may arrive.
	StateOpen State = iota
	// StateFinalEmitted - the final was forwarded; waiting for end of utterance.
	StateFinalEmitted
	// StateClosed - the utterance ended normally.
	StateClosed
	// StateDropped - abandoned after an error or limit breach; no final is
	// forwarded.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFinalEmitted:
		return "FINAL_EMITTED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal reports whether no further results are accepted.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

// Errors for rejected results.
var (
	ErrUtteranceClosed     = errors.New("utterance is closed")
	ErrFinalAlreadyEmitted = errors.New("final already emitted for this utterance")
	ErrPartialAfterFinal   = errors.New("partial after final")
)

// Utterance tracks the state of the utterance currently being recognized.
// Safe for concurrent use.
//
//	OPEN ──EmitFinal──▶ FINAL_EMITTED ──Close──▶ CLOSED
//	  └──────────────── Drop ─────────────────▶ DROPPED
type Utterance struct {
	mu    sync.RWMutex
	seq   int
	state State
}

// NewUtterance returns the first utterance of a stream, in OPEN state.
func NewUtterance() *Utterance {
	return &Utterance{seq: 1, state: StateOpen}
}

// Seq returns the 1-based number of the current utterance.
func (u *Utterance) Seq() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.seq
}

// State returns the current state.
func (u *Utterance) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// IsDropped reports whether the utterance was dropped.
func (u *Utterance) IsDropped() bool {
	return u.State() == StateDropped
}

// EmitPartial reports whether a partial may be forwarded.
func (u *Utterance) EmitPartial() error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	switch u.state {
	case StateOpen:
		return nil
	case StateFinalEmitted:
		return ErrPartialAfterFinal
	default:
		return ErrUtteranceClosed
	}
}

// EmitFinal moves an open utterance to FINAL_EMITTED.
func (u *Utterance) EmitFinal() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch u.state {
	case StateOpen:
		u.state = StateFinalEmitted
		return nil
	case StateFinalEmitted:
		return ErrFinalAlreadyEmitted
	default:
		return ErrUtteranceClosed
	}
}

// Close ends the utterance. Idempotent; a dropped utterance stays dropped.
func (u *Utterance) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != StateDropped {
		u.state = StateClosed
	}
}

// Drop abandons the utterance. It returns false if it had already ended.
func (u *Utterance) Drop() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state.IsTerminal() {
		return false
	}
	u.state = StateDropped
	return true
}

// Next starts the following utterance in OPEN state and returns its number.
func (u *Utterance) Next() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seq++
	u.state = StateOpen
	return u.seq
}
