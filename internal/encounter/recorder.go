// Package encounter records sayings heard by a user.
package encounter

import (
	"context"
	"errors"

	"live-captions-service/internal/models"
)

// Recorder persists an encounter.
type Recorder interface {
	Record(ctx context.Context, enc models.Encounter) error
}

// Nop drops every encounter.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, models.Encounter) error { return nil }

// Multi records to every recorder and joins their errors.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(ctx context.Context, enc models.Encounter) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, enc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EncounterPublisher is the part of events.Publisher used by Kafka.
type EncounterPublisher interface {
	PublishEncounter(ctx context.Context, enc models.Encounter) error
}

// Kafka publishes encounters on the encounters topic.
type Kafka struct {
	pub EncounterPublisher
}

// NewKafka returns a Recorder backed by pub.
func NewKafka(pub EncounterPublisher) *Kafka {
	return &Kafka{pub: pub}
}

// Record implements Recorder.
func (k *Kafka) Record(ctx context.Context, enc models.Encounter) error {
	return k.pub.PublishEncounter(ctx, enc)
}
