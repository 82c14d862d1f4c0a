package mock

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu         sync.Mutex
	partials   []string
	finals     []finalResult
	errors     []error
	utterances int
}

type finalResult struct {
	text       string
	confidence float64
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, finalResult{text, confidence})
}

func (c *testCallback) OnEndOfUtterance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.utterances++
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) getPartials() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.partials...)
}

func (c *testCallback) getFinals() []finalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]finalResult{}, c.finals...)
}

func (c *testCallback) getUtterances() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.utterances
}

var testScript = []SimulatedUtterance{
	{Partials: []string{"hello", "hello there"}, Final: "Hello there.", Confidence: 0.9},
	{Partials: []string{"bye"}, Final: "Bye now.", Confidence: 0.8},
}

func send(t *testing.T, a *Adapter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := a.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestAdapter_PartialsThenFinal(t *testing.T) {
	adapter := New(WithScript(testScript), WithDelay(0))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 2)
	if got := cb.getPartials(); len(got) != 2 || got[1] != "hello there" {
		t.Errorf("expected growing partials, got %v", got)
	}
	if len(cb.getFinals()) != 0 {
		t.Error("expected no final before the script reaches it")
	}

	send(t, adapter, 1)
	finals := cb.getFinals()
	if len(finals) != 1 || finals[0].text != "Hello there." || finals[0].confidence != 0.9 {
		t.Errorf("expected scripted final, got %+v", finals)
	}
	if cb.getUtterances() != 1 || adapter.Utterances() != 1 {
		t.Errorf("expected 1 utterance, got callback=%d adapter=%d", cb.getUtterances(), adapter.Utterances())
	}
}

func TestAdapter_CyclesThroughScript(t *testing.T) {
	adapter := New(WithScript(testScript), WithDelay(0))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	// 3 steps for the first utterance, 2 for the second, 3 for the first again.
	send(t, adapter, 8)

	finals := cb.getFinals()
	if len(finals) != 3 {
		t.Fatalf("expected 3 finals, got %d", len(finals))
	}
	want := []string{"Hello there.", "Bye now.", "Hello there."}
	for i, f := range finals {
		if f.text != want[i] {
			t.Errorf("final %d = %q, want %q", i, f.text, want[i])
		}
	}
}

func TestAdapter_CloseFinalizesCutOffUtterance(t *testing.T) {
	adapter := New(WithScript(testScript), WithDelay(0))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 1)
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finals := cb.getFinals()
	if len(finals) != 1 || finals[0].text != "Hello there." {
		t.Errorf("expected final on close, got %+v", finals)
	}
}

func TestAdapter_CloseBetweenUtterancesSendsNothing(t *testing.T) {
	adapter := New(WithScript(testScript), WithDelay(0))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 3)
	adapter.Close()

	if n := len(cb.getFinals()); n != 1 {
		t.Errorf("expected only the scripted final, got %d", n)
	}
}

func TestAdapter_Close_Idempotent(t *testing.T) {
	adapter := New()
	adapter.Start(context.Background(), &testCallback{})

	adapter.Close()
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestAdapter_SendAudio_AfterClose(t *testing.T) {
	adapter := New(WithDelay(0))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	adapter.Close()

	send(t, adapter, 1)
	if len(cb.getPartials()) != 0 {
		t.Error("expected no results after close")
	}
}

func TestAdapter_DelayedDelivery(t *testing.T) {
	adapter := New(WithScript(testScript), WithDelay(10*time.Millisecond))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	send(t, adapter, 1)
	deadline := time.Now().Add(time.Second)
	for len(cb.getPartials()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(cb.getPartials()) != 1 {
		t.Error("expected delayed partial to arrive")
	}
}

func TestAdapter_NoCallbackSet(t *testing.T) {
	adapter := New()

	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultUtterances(t *testing.T) {
	for i, utt := range DefaultUtterances {
		if len(utt.Partials) == 0 {
			t.Errorf("utterance %d has no partials", i)
		}
		if utt.Final == "" {
			t.Errorf("utterance %d has empty final", i)
		}
		if utt.Confidence <= 0 || utt.Confidence > 1 {
			t.Errorf("utterance %d has invalid confidence %f", i, utt.Confidence)
		}
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	adapter := New(WithDelay(0))
	adapter.Start(context.Background(), &testCallback{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				adapter.SendAudio(context.Background(), []byte("audio"))
			}
		}()
	}
	wg.Wait()
	adapter.Close()
}
