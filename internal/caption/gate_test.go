package caption_test

import (
	"sync"
	"testing"
	"time"

	"live-captions-service/internal/caption"
	"live-captions-service/internal/schedule/fake"
)

type emission struct {
	frame caption.Frame
	at    time.Time
}

type recorder struct {
	clock *fake.Scheduler
	got   []emission
}

func (r *recorder) emit(f caption.Frame) {
	r.got = append(r.got, emission{frame: f, at: r.clock.Now()})
}

func newGate(interval time.Duration) (*caption.Gate, *fake.Scheduler, *recorder) {
	clock := fake.New(time.Unix(1_700_000_000, 0))
	rec := &recorder{clock: clock}
	return caption.NewGate(interval, clock, rec.emit), clock, rec
}

func TestGate_FirstPartialEmitsImmediately(t *testing.T) {
	g, _, rec := newGate(400 * time.Millisecond)

	if d := g.Submit(caption.Frame{Text: "hel"}); d != caption.Emitted {
		t.Fatalf("expected Emitted, got %v", d)
	}
	if len(rec.got) != 1 {
		t.Errorf("expected 1 emission, got %d", len(rec.got))
	}
}

func TestGate_PartialsWithinIntervalCoalesce(t *testing.T) {
	g, clock, rec := newGate(400 * time.Millisecond)
	start := clock.Now()

	// An emission at t=0 opens the interval.
	g.Submit(caption.Frame{Text: "previous", Final: true})

	clock.Advance(100 * time.Millisecond)
	if d := g.Submit(caption.Frame{Text: "hello"}); d != caption.Scheduled {
		t.Fatalf("expected Scheduled, got %v", d)
	}
	clock.Advance(50 * time.Millisecond)
	if d := g.Submit(caption.Frame{Text: "hello world"}); d != caption.Scheduled {
		t.Fatalf("expected Scheduled, got %v", d)
	}

	clock.Advance(time.Second)

	if len(rec.got) != 2 {
		t.Fatalf("expected exactly one trailing emission, got %d total", len(rec.got))
	}
	trailing := rec.got[1]
	if trailing.frame.Text != "hello world" {
		t.Errorf("expected latest partial to win, got %q", trailing.frame.Text)
	}
	if want := start.Add(400 * time.Millisecond); !trailing.at.Equal(want) {
		t.Errorf("expected emission at interval boundary %v, got %v", want, trailing.at)
	}
}

func TestGate_FinalCancelsPendingPartial(t *testing.T) {
	g, clock, rec := newGate(400 * time.Millisecond)

	g.Submit(caption.Frame{Text: "first"})
	clock.Advance(50 * time.Millisecond)
	g.Submit(caption.Frame{Text: "first sec"})
	if !g.Pending() {
		t.Fatal("expected a pending emission")
	}

	clock.Advance(50 * time.Millisecond)
	if d := g.Submit(caption.Frame{Text: "first second", Final: true}); d != caption.Emitted {
		t.Fatalf("expected final to be Emitted, got %v", d)
	}
	if g.Pending() {
		t.Error("expected final to cancel the pending emission")
	}

	clock.Advance(time.Second)

	if len(rec.got) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(rec.got))
	}
	if rec.got[1].frame.Text != "first second" || !rec.got[1].frame.Final {
		t.Errorf("expected final frame last, got %+v", rec.got[1].frame)
	}
}

func TestGate_PartialAfterIntervalEmitsImmediately(t *testing.T) {
	g, clock, rec := newGate(400 * time.Millisecond)

	g.Submit(caption.Frame{Text: "a"})
	clock.Advance(400 * time.Millisecond)
	if d := g.Submit(caption.Frame{Text: "a b"}); d != caption.Emitted {
		t.Errorf("expected Emitted after full interval, got %v", d)
	}
	if len(rec.got) != 2 {
		t.Errorf("expected 2 emissions, got %d", len(rec.got))
	}
}

func TestGate_StopCancelsAndDiscards(t *testing.T) {
	g, clock, rec := newGate(400 * time.Millisecond)

	g.Submit(caption.Frame{Text: "a"})
	g.Submit(caption.Frame{Text: "a b"})
	g.Stop()
	g.Stop()

	clock.Advance(time.Second)
	if len(rec.got) != 1 {
		t.Errorf("expected pending emission cancelled, got %d emissions", len(rec.got))
	}
	if d := g.Submit(caption.Frame{Text: "late", Final: true}); d != caption.Discarded {
		t.Errorf("expected Discarded after Stop, got %v", d)
	}
	if clock.Pending() != 0 {
		t.Errorf("expected no leaked tasks, got %d", clock.Pending())
	}
}

func TestGate_CancelKeepsGateOpen(t *testing.T) {
	g, clock, rec := newGate(400 * time.Millisecond)

	g.Submit(caption.Frame{Text: "a"})
	g.Submit(caption.Frame{Text: "a b"})
	g.Cancel()
	clock.Advance(time.Second)

	if len(rec.got) != 1 {
		t.Fatalf("expected pending emission dropped, got %d emissions", len(rec.got))
	}
	if d := g.Submit(caption.Frame{Text: "c", Final: true}); d != caption.Emitted {
		t.Errorf("expected gate to stay open after Cancel, got %v", d)
	}
}

func TestGate_DefaultInterval(t *testing.T) {
	g, clock, rec := newGate(0)

	g.Submit(caption.Frame{Text: "a"})
	g.Submit(caption.Frame{Text: "b"})
	clock.Advance(caption.DefaultDebounceInterval - time.Millisecond)
	if len(rec.got) != 1 {
		t.Fatalf("expected trailing emission to wait for the default interval")
	}
	clock.Advance(time.Millisecond)
	if len(rec.got) != 2 {
		t.Errorf("expected trailing emission at default interval, got %d", len(rec.got))
	}
}

// blockingEmitter holds back the first frame with the given text until
// release is closed.
type blockingEmitter struct {
	text    string
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu  sync.Mutex
	got []caption.Frame
}

func newBlockingEmitter(text string) *blockingEmitter {
	return &blockingEmitter{text: text, entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingEmitter) emit(f caption.Frame) {
	if !f.Final && f.Text == b.text {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, f)
}

func (b *blockingEmitter) frames() []caption.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]caption.Frame(nil), b.got...)
}

func TestGate_TrailingEmissionInFlightPrecedesFinal(t *testing.T) {
	clock := fake.New(time.Unix(1_700_000_000, 0))
	em := newBlockingEmitter("hello world")
	g := caption.NewGate(400*time.Millisecond, clock, em.emit)

	g.Submit(caption.Frame{Text: "hello"})
	g.Submit(caption.Frame{Text: "hello world"})

	fired := make(chan struct{})
	go func() {
		defer close(fired)
		clock.Advance(time.Second)
	}()
	<-em.entered

	submitted := make(chan caption.GateDecision, 1)
	go func() { submitted <- g.Submit(caption.Frame{Text: "hello world.", Final: true}) }()
	select {
	case <-submitted:
		t.Fatal("final emitted while the trailing partial was still being delivered")
	case <-time.After(50 * time.Millisecond):
	}

	close(em.release)
	if d := <-submitted; d != caption.Emitted {
		t.Errorf("expected final Emitted, got %v", d)
	}
	<-fired

	got := em.frames()
	if len(got) != 3 {
		t.Fatalf("expected 3 emissions, got %d", len(got))
	}
	if last := got[2]; last.Text != "hello world." || !last.Final {
		t.Errorf("expected final last, got %+v", last)
	}
}

func TestGate_CancelWaitsForDeliveryInFlight(t *testing.T) {
	clock := fake.New(time.Unix(1_700_000_000, 0))
	em := newBlockingEmitter("a b")
	g := caption.NewGate(400*time.Millisecond, clock, em.emit)

	g.Submit(caption.Frame{Text: "a"})
	g.Submit(caption.Frame{Text: "a b"})
	go clock.Advance(time.Second)
	<-em.entered

	cancelled := make(chan struct{})
	go func() {
		g.Cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
		t.Fatal("Cancel returned before the in-flight emission finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(em.release)
	<-cancelled
	if n := len(em.frames()); n != 2 {
		t.Errorf("expected the in-flight emission delivered before Cancel returned, got %d", n)
	}
}
