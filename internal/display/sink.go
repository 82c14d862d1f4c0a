// Package display delivers caption frames to whatever renders them: the
// glasses over a websocket, a Kafka topic, or the log.
package display

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"live-captions-service/internal/models"
)

// Sink shows a caption frame.
type Sink interface {
	Show(ctx context.Context, frame models.CaptionFrame) error
}

// Multi shows every frame on each sink and joins their errors.
type Multi []Sink

// Show implements Sink.
func (m Multi) Show(ctx context.Context, frame models.CaptionFrame) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(ctx, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CaptionPublisher is the part of events.Publisher used by KafkaSink.
type CaptionPublisher interface {
	PublishCaption(ctx context.Context, frame models.CaptionFrame) error
}

// KafkaSink publishes frames on the captions topic.
type KafkaSink struct {
	pub CaptionPublisher
}

// NewKafkaSink returns a Sink backed by pub.
func NewKafkaSink(pub CaptionPublisher) *KafkaSink {
	return &KafkaSink{pub: pub}
}

// Show implements Sink.
func (k *KafkaSink) Show(ctx context.Context, frame models.CaptionFrame) error {
	return k.pub.PublishCaption(ctx, frame)
}

// LogSink writes frames to a logger at debug level.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a Sink that logs to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger}
}

// Show implements Sink.
func (l *LogSink) Show(_ context.Context, frame models.CaptionFrame) error {
	l.log.Debug().
		Str("sessionId", frame.SessionID).
		Bool("final", frame.Final).
		Int64("durationMs", frame.DurationMs).
		Str("text", frame.Text).
		Msg("Caption frame")
	return nil
}
