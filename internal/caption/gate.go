package caption

import (
	"sync"
	"time"

	"live-captions-service/internal/schedule"
)

// DefaultDebounceInterval is the minimum spacing between partial emissions.
const DefaultDebounceInterval = 400 * time.Millisecond

// Frame is one rendered window on its way to the display.
type Frame struct {
	Text  string
	Final bool
}

// GateDecision reports what Submit did with a frame.
type GateDecision int

const (
	// Emitted - the frame went to the display immediately.
	Emitted GateDecision = iota
	// Scheduled - the frame replaced the pending trailing emission.
	Scheduled
	// Discarded - the gate is stopped.
	Discarded
)

// String returns the string representation of the decision.
func (d GateDecision) String() string {
	switch d {
	case Emitted:
		return "emitted"
	case Scheduled:
		return "scheduled"
	default:
		return "discarded"
	}
}

// Gate rate-limits display updates for one session. Final frames always
// pass through at once; partial frames are throttled to one per interval
// with a single trailing emission carrying the latest value.
//
// Frames reach emit in the order the gate accepted them. A trailing
// emission that lost to a later Submit, Cancel or Stop is never delivered
// after it.
type Gate struct {
	interval time.Duration
	sched    schedule.Scheduler
	emit     func(Frame)

	// deliver is taken while mu is held and kept across emit.
	deliver sync.Mutex

	mu       sync.Mutex
	lastEmit time.Time
	emitted  bool
	pending  schedule.Task
	gen      uint64
	stopped  bool
}

// NewGate creates a Gate that hands frames to emit. A non-positive interval
// selects DefaultDebounceInterval.
func NewGate(interval time.Duration, sched schedule.Scheduler, emit func(Frame)) *Gate {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Gate{interval: interval, sched: sched, emit: emit}
}

// Submit routes a frame through the gate.
func (g *Gate) Submit(f Frame) GateDecision {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return Discarded
	}
	g.cancelLocked()

	now := g.sched.Now()
	if f.Final || !g.emitted || now.Sub(g.lastEmit) >= g.interval {
		g.markEmittedLocked(now)
		g.deliverUnlock(f)
		return Emitted
	}

	gen := g.gen
	delay := g.lastEmit.Add(g.interval).Sub(now)
	g.pending = g.sched.AfterFunc(delay, func() {
		g.mu.Lock()
		if g.stopped || g.gen != gen {
			g.mu.Unlock()
			return
		}
		g.pending = nil
		g.markEmittedLocked(g.sched.Now())
		g.deliverUnlock(f)
	})
	g.mu.Unlock()
	return Scheduled
}

// Pending reports whether a trailing emission is scheduled.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Cancel drops the scheduled emission, if any, and keeps the gate open.
// A trailing emission already being delivered finishes before Cancel
// returns.
func (g *Gate) Cancel() {
	g.mu.Lock()
	g.cancelLocked()
	g.barrierUnlock()
}

// Stop cancels any scheduled emission and discards future frames.
// Calling Stop more than once is a no-op.
func (g *Gate) Stop() {
	g.mu.Lock()
	g.cancelLocked()
	g.stopped = true
	g.barrierUnlock()
}

// deliverUnlock hands f to emit. It must be called with mu held and
// releases it once the delivery slot is taken.
func (g *Gate) deliverUnlock(f Frame) {
	g.deliver.Lock()
	g.mu.Unlock()
	defer g.deliver.Unlock()
	g.emit(f)
}

// barrierUnlock waits for an in-flight delivery and releases mu.
func (g *Gate) barrierUnlock() {
	g.deliver.Lock()
	g.mu.Unlock()
	g.deliver.Unlock()
}

func (g *Gate) cancelLocked() {
	g.gen++
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}

func (g *Gate) markEmittedLocked(now time.Time) {
	g.lastEmit = now
	g.emitted = true
}
