// Package fake provides a deterministic schedule.Scheduler for tests.
// Time only moves when Advance is called, and due actions run on the
// caller's goroutine in deadline order.
package fake

import (
	"sort"
	"sync"
	"time"

	"live-captions-service/internal/schedule"
)

// Scheduler is a manual clock with a queue of delayed actions.
type Scheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks []*task
}

type task struct {
	s       *Scheduler
	at      time.Time
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

// Compile-time interface check.
var _ schedule.Scheduler = (*Scheduler)(nil)

// New returns a Scheduler whose clock starts at start.
func New(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

// Now returns the fake current time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc queues f to run once the clock has advanced by d.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) schedule.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &task{s: s, at: s.now.Add(d), seq: s.seq, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *task) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, running every action that becomes
// due. Actions scheduled by running actions are honoured if they fall
// inside the window.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		if next.at.After(s.now) {
			s.now = next.at
		}
		next.fired = true
		s.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of actions that are queued and not stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *Scheduler) nextDueLocked(target time.Time) *task {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.tasks = live

	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].at.Equal(s.tasks[j].at) {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].at.Before(s.tasks[j].at)
	})
	if len(s.tasks) == 0 || s.tasks[0].at.After(target) {
		return nil
	}
	return s.tasks[0]
}
