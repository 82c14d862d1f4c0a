package display

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/metrics"
)

// ErrQueueFull is returned by Queue.Show when delivery has fallen too far
// behind.
var ErrQueueFull = errors.New("display: delivery queue full")

const (
	defaultQueueSize    = 1024
	defaultQueueTimeout = 10 * time.Second
)

// Queue hands frames to a slow sink from a single goroutine. Show only
// enqueues, so callers never wait on the sink; frames are delivered in the
// order Show accepted them.
type Queue struct {
	name    string
	sink    Sink
	frames  chan models.CaptionFrame
	timeout time.Duration
	done    chan struct{}
	log     zerolog.Logger
}

// NewQueue wraps sink. A non-positive size selects the default capacity.
// Call Run to start delivering.
func NewQueue(name string, sink Sink, size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		name:    name,
		sink:    sink,
		frames:  make(chan models.CaptionFrame, size),
		timeout: defaultQueueTimeout,
		done:    make(chan struct{}),
		log:     log.With().Str("component", "display-queue").Str("sink", name).Logger(),
	}
}

// Show implements Sink.
func (q *Queue) Show(_ context.Context, frame models.CaptionFrame) error {
	select {
	case q.frames <- frame:
		return nil
	default:
		metrics.DefaultMetrics.RecordFrameDropped("queue_full")
		return ErrQueueFull
	}
}

// Run delivers frames until ctx is cancelled. Frames still queued at that
// point are delivered before Run returns.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	// Deliveries outlive ctx so that accepted frames are not cut short.
	base := context.WithoutCancel(ctx)
	for {
		select {
		case frame := <-q.frames:
			q.deliver(base, frame)
		case <-ctx.Done():
			q.drain(base)
			return
		}
	}
}

// Done is closed once Run has returned.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of frames waiting for delivery.
func (q *Queue) Len() int {
	return len(q.frames)
}

func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case frame := <-q.frames:
			q.deliver(ctx, frame)
		default:
			return
		}
	}
}

func (q *Queue) deliver(ctx context.Context, frame models.CaptionFrame) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	if err := q.sink.Show(ctx, frame); err != nil {
		metrics.DefaultMetrics.RecordDisplayError(q.name)
		q.log.Warn().Err(err).Str("sessionId", frame.SessionID).Bool("final", frame.Final).Msg("Failed to deliver caption frame")
	}
}
