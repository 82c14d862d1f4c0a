// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/metrics"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes caption frames and saying encounters to separate
// Kafka topics.
type Publisher struct {
	writerCaptions   messageWriter
	writerEncounters messageWriter
	principal        string
	topicCaptions    string
	topicEncounters  string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicCaptions   string
	TopicEncounters string
	Principal       string
	Enabled         bool
}

// New creates a new Kafka event publisher with one writer per topic.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicCaptions:   cfg.TopicCaptions,
			topicEncounters: cfg.TopicEncounters,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCaptions", cfg.TopicCaptions).
		Str("topicEncounters", cfg.TopicEncounters).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerCaptions:   newWriter(cfg.TopicCaptions),
		writerEncounters: newWriter(cfg.TopicEncounters),
		principal:        cfg.Principal,
		topicCaptions:    cfg.TopicCaptions,
		topicEncounters:  cfg.TopicEncounters,
		enabled:          true,
		metrics:          m,
	}
}

// Enabled reports whether messages reach Kafka rather than the log.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishCaption publishes a caption frame keyed by session id, so frames
// of one session stay ordered within a partition.
func (p *Publisher) PublishCaption(ctx context.Context, frame models.CaptionFrame) error {
	return p.publish(ctx, p.writerCaptions, p.topicCaptions, frame.EventType, frame.SessionID, frame)
}

// PublishEncounter publishes a saying encounter keyed by user id.
func (p *Publisher) PublishEncounter(ctx context.Context, enc models.Encounter) error {
	key := enc.UserID
	if key == "" {
		key = enc.SessionID
	}
	return p.publish(ctx, p.writerEncounters, p.topicEncounters, models.EventTypeEncounter, key, enc)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var errs []error
	if p.writerCaptions != nil {
		if err := p.writerCaptions.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing captions writer")
			errs = append(errs, err)
		}
	}
	if p.writerEncounters != nil {
		if err := p.writerEncounters.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing encounters writer")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
