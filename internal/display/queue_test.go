package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-captions-service/internal/models"
)

// slowSink blocks every Show until release is closed.
type slowSink struct {
	release chan struct{}

	mu  sync.Mutex
	got []string
}

func (s *slowSink) Show(ctx context.Context, frame models.CaptionFrame) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, frame.Text)
	return nil
}

func (s *slowSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestQueue_ShowDoesNotWaitForSink(t *testing.T) {
	sink := &slowSink{release: make(chan struct{})}
	q := NewQueue("kafka", sink, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	shown := make(chan error, 1)
	go func() {
		var err error
		for _, text := range []string{"one", "two", "three"} {
			if e := q.Show(context.Background(), models.CaptionFrame{Text: text}); e != nil {
				err = e
			}
		}
		shown <- err
	}()

	select {
	case err := <-shown:
		if err != nil {
			t.Fatalf("Show() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Show blocked on a stalled sink")
	}

	close(sink.release)
	cancel()
	<-q.Done()

	got := sink.texts()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("expected %d frames delivered, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestQueue_FullQueueRejects(t *testing.T) {
	q := NewQueue("kafka", &slowSink{release: make(chan struct{})}, 1)

	if err := q.Show(context.Background(), models.CaptionFrame{Text: "a"}); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if err := q.Show(context.Background(), models.CaptionFrame{Text: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 queued frame, got %d", q.Len())
	}
}

func TestQueue_DrainsOnShutdown(t *testing.T) {
	sink := &slowSink{release: make(chan struct{})}
	close(sink.release)
	q := NewQueue("kafka", sink, 0)

	for _, text := range []string{"a", "b"} {
		if err := q.Show(context.Background(), models.CaptionFrame{Text: text}); err != nil {
			t.Fatalf("Show() error = %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Run(ctx)

	if got := sink.texts(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected queued frames delivered in order, got %q", got)
	}
}
