// Package schedule provides cancellable deferred actions.
//
// Every timer owned by a caption session (debounce, inactivity clear,
// saying-display clear) goes through a Scheduler so that tests can swap in
// the deterministic scheduler from package fake.
package schedule

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Task is a scheduled action that has not necessarily run yet.
type Task interface {
	// Stop prevents the action from running. It returns false if the action
	// already ran or was already stopped.
	Stop() bool
}

// Scheduler runs functions after a delay.
type Scheduler interface {
	Clock
	AfterFunc(d time.Duration, f func()) Task
}

type realScheduler struct{}

// Real returns a Scheduler backed by time.AfterFunc.
func Real() Scheduler {
	return realScheduler{}
}

func (realScheduler) Now() time.Time {
	return time.Now()
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// Timer is a single re-armable slot. Arming it again cancels whatever was
// scheduled before, so at most one action is pending at any time.
// Safe for concurrent use.
type Timer struct {
	sched Scheduler

	mu   sync.Mutex
	task Task
	gen  uint64
}

// NewTimer creates an idle Timer.
func NewTimer(sched Scheduler) *Timer {
	return &Timer{sched: sched}
}

// Reset cancels any pending action and schedules f to run after d.
// A callback that was already in flight when Reset was called is suppressed.
func (t *Timer) Reset(d time.Duration, f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.task != nil {
		t.task.Stop()
	}
	t.gen++
	gen := t.gen
	t.task = t.sched.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.task = nil
		t.mu.Unlock()
		f()
	})
}

// Stop cancels the pending action, if any. Calling Stop on an idle Timer is
// a no-op. It reports whether an action was pending.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.task == nil {
		return false
	}
	t.task.Stop()
	t.task = nil
	return true
}

// Pending reports whether an action is scheduled.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.task != nil
}
