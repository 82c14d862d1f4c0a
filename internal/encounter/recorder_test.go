package encounter

import (
	"context"
	"errors"
	"testing"

	"live-captions-service/internal/models"
)

type fakeRecorder struct {
	got []models.Encounter
	err error
}

func (f *fakeRecorder) Record(_ context.Context, enc models.Encounter) error {
	f.got = append(f.got, enc)
	return f.err
}

type fakePublisher struct {
	got []models.Encounter
}

func (f *fakePublisher) PublishEncounter(_ context.Context, enc models.Encounter) error {
	f.got = append(f.got, enc)
	return nil
}

func TestMulti_RecordsToAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("db down")
	a, b := &fakeRecorder{err: errA}, &fakeRecorder{}
	enc := models.Encounter{TermID: 7, Context: "we broke the ice"}

	err := Multi{a, b}.Record(context.Background(), enc)
	if !errors.Is(err, errA) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("expected both recorders called, got %d and %d", len(a.got), len(b.got))
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := (Multi{}).Record(context.Background(), models.Encounter{}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Record(context.Background(), models.Encounter{TermID: 1}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestKafka_Record(t *testing.T) {
	pub := &fakePublisher{}
	enc := models.Encounter{TermID: 3, UserID: "u1"}

	if err := NewKafka(pub).Record(context.Background(), enc); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].TermID != 3 {
		t.Errorf("expected encounter published, got %+v", pub.got)
	}
}
