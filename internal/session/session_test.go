package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"live-captions-service/internal/caption"
	"live-captions-service/internal/idiom"
	"live-captions-service/internal/models"
	"live-captions-service/internal/schedule/fake"
)

type captureSink struct {
	mu     sync.Mutex
	got    []models.CaptionFrame
	onShow func(models.CaptionFrame)
}

func (c *captureSink) Show(_ context.Context, frame models.CaptionFrame) error {
	c.mu.Lock()
	hook := c.onShow
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, frame)
	return nil
}

// hold makes Show block on frames matching match until the returned
// release func is called. entered is closed when the first such frame
// arrives.
func (c *captureSink) hold(match func(models.CaptionFrame) bool) (entered <-chan struct{}, release func()) {
	in := make(chan struct{})
	out := make(chan struct{})
	var once sync.Once
	c.mu.Lock()
	c.onShow = func(f models.CaptionFrame) {
		if !match(f) {
			return
		}
		once.Do(func() { close(in) })
		<-out
	}
	c.mu.Unlock()
	var releaseOnce sync.Once
	return in, func() { releaseOnce.Do(func() { close(out) }) }
}

func (c *captureSink) frames() []models.CaptionFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CaptionFrame(nil), c.got...)
}

func (c *captureSink) last(t *testing.T) models.CaptionFrame {
	t.Helper()
	f := c.frames()
	if len(f) == 0 {
		t.Fatal("expected at least one frame")
	}
	return f[len(f)-1]
}

type captureRecorder struct {
	mu  sync.Mutex
	got []models.Encounter
	err error
}

func (c *captureRecorder) Record(_ context.Context, enc models.Encounter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, enc)
	return c.err
}

func (c *captureRecorder) encounters() []models.Encounter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Encounter(nil), c.got...)
}

// gatedTranslator upper-cases text once the matching release channel is
// closed.
type gatedTranslator struct {
	mu      sync.Mutex
	release map[string]chan struct{}
	err     error
}

func (g *gatedTranslator) gate(text string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.release == nil {
		g.release = make(map[string]chan struct{})
	}
	ch, ok := g.release[text]
	if !ok {
		ch = make(chan struct{})
		g.release[text] = ch
	}
	return ch
}

func (g *gatedTranslator) Translate(ctx context.Context, text, _ string) (string, error) {
	select {
	case <-g.gate(text):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	return strings.ToUpper(text), nil
}

type harness struct {
	clock *fake.Scheduler
	sink  *captureSink
	rec   *captureRecorder
	s     *Session
}

func newHarness(t *testing.T, settings Settings, deps Deps) *harness {
	t.Helper()
	h := &harness{
		clock: fake.New(time.Unix(1_700_000_000, 0)),
		sink:  &captureSink{},
		rec:   &captureRecorder{},
	}
	deps.Sink = h.sink
	deps.Recorder = h.rec
	deps.Scheduler = h.clock
	if deps.Matcher == nil {
		deps.Matcher = idiom.NewMatcher(idiom.NewDictionary(
			idiom.Entry{Phrase: "break a leg", ID: 7, Translation: "mucha suerte"},
		))
	}
	h.s = New("sess-1", "user-1", settings, deps, Options{})
	t.Cleanup(func() {
		h.s.Close()
		h.s.Wait()
	})
	// Open the debounce interval so the first partial is shown at once.
	h.clock.Advance(time.Second)
	return h
}

func (h *harness) partial(t *testing.T, text string) {
	t.Helper()
	if err := h.s.HandleEvent(models.TranscriptEvent{SessionID: "sess-1", Text: text}); err != nil {
		t.Fatalf("HandleEvent(partial %q) error = %v", text, err)
	}
}

func (h *harness) final(t *testing.T, text string) {
	t.Helper()
	if err := h.s.HandleEvent(models.TranscriptEvent{SessionID: "sess-1", Text: text, IsFinal: true}); err != nil {
		t.Fatalf("HandleEvent(final %q) error = %v", text, err)
	}
}

func TestSession_InitialFrameIsBlankFinal(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	frames := h.sink.frames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 initial frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Text != "" || !f.Final || f.EventType != models.EventTypeCaptionFinal {
		t.Errorf("expected blank final frame, got %+v", f)
	}
	if f.DurationMs != DefaultFinalDuration.Milliseconds() {
		t.Errorf("expected duration %d, got %d", DefaultFinalDuration.Milliseconds(), f.DurationMs)
	}
	if f.SessionID != "sess-1" || f.UserID != "user-1" {
		t.Errorf("expected session and user ids on frame, got %+v", f)
	}
}

func TestSession_PartialsAreDebounced(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.partial(t, "hello")
	h.partial(t, "hello wor")
	h.partial(t, "hello world")

	if n := len(h.sink.frames()); n != 2 {
		t.Fatalf("expected first partial shown and the rest held back, got %d frames", n)
	}
	h.clock.Advance(caption.DefaultDebounceInterval)

	frames := h.sink.frames()
	if len(frames) != 3 {
		t.Fatalf("expected one trailing emission, got %d frames", len(frames))
	}
	f := frames[2]
	if f.Text != "hello world" || f.Final || f.DurationMs != 0 {
		t.Errorf("expected latest partial without duration, got %+v", f)
	}
	if f.EventType != models.EventTypeCaptionPartial {
		t.Errorf("expected partial event type, got %s", f.EventType)
	}
}

func TestSession_FinalShownImmediately(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.partial(t, "good")
	h.partial(t, "good morning")
	h.final(t, "Good morning everyone.")

	f := h.sink.last(t)
	if f.Text != "Good morning everyone." || !f.Final {
		t.Errorf("expected final frame, got %+v", f)
	}
	h.clock.Advance(time.Second)
	if got := h.sink.last(t); got.Text != "Good morning everyone." {
		t.Errorf("expected pending partial to be cancelled by the final, got %+v", got)
	}
	if h.s.State() != caption.StateIdle {
		t.Errorf("expected IDLE after final, got %s", h.s.State())
	}
}

func TestSession_LeadingPunctuationStripped(t *testing.T) {
	h := newHarness(t, Settings{TranscribeLanguage: LanguageChineseHanzi}, Deps{})

	h.final(t, "。你好")
	if f := h.sink.last(t); f.Text != "你好" {
		t.Errorf("expected leading punctuation stripped, got %q", f.Text)
	}
}

func TestSession_InactivityClears(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.final(t, "hello there")
	h.clock.Advance(DefaultInactivityTimeout - time.Second)
	h.partial(t, "still")
	h.clock.Advance(DefaultInactivityTimeout - time.Second)
	if h.s.Window() == "" {
		t.Fatal("expected activity to reset the inactivity timer")
	}

	h.clock.Advance(time.Second)
	f := h.sink.last(t)
	if f.Text != "" || !f.Final || f.DurationMs != DefaultClearDuration.Milliseconds() {
		t.Errorf("expected blank clear frame lasting %v, got %+v", DefaultClearDuration, f)
	}
	if h.s.Window() != "" || h.s.State() != caption.StateEmpty {
		t.Errorf("expected buffer cleared, window=%q state=%s", h.s.Window(), h.s.State())
	}
}

func TestSession_SwitchModeCommand(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.final(t, "first line")
	h.final(t, "Okay, switch mode.")

	if h.s.ViewMode() != ViewSayings {
		t.Fatalf("expected sayings view, got %s", h.s.ViewMode())
	}
	if f := h.sink.last(t); f.Text != "" || !f.Final {
		t.Errorf("expected blank final after switching, got %+v", f)
	}
	if h.s.Window() != "" {
		t.Errorf("expected buffer cleared, got %q", h.s.Window())
	}

	h.final(t, "switch mode")
	if h.s.ViewMode() != ViewTranscription {
		t.Errorf("expected transcription view after second switch, got %s", h.s.ViewMode())
	}
}

func TestSession_SayingsModeShowsCard(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})
	if _, err := h.s.ToggleViewMode(); err != nil {
		t.Fatalf("ToggleViewMode() error = %v", err)
	}
	before := len(h.sink.frames())

	h.partial(t, "you should break")
	if n := len(h.sink.frames()); n != before {
		t.Errorf("expected partials hidden in sayings view, got %d new frames", n-before)
	}

	h.final(t, "You should break a leg tonight")
	want := "break a leg\n------------\nmucha suerte"
	if f := h.sink.last(t); f.Text != want || !f.Final {
		t.Errorf("expected card %q, got %+v", want, f)
	}
	if h.s.Window() != "" {
		t.Errorf("expected finals kept out of the buffer in sayings view, got %q", h.s.Window())
	}

	h.clock.Advance(DefaultSayingDuration - time.Millisecond)
	if f := h.sink.last(t); f.Text != want {
		t.Fatalf("expected card to stay up, got %+v", f)
	}
	h.clock.Advance(time.Millisecond)
	if f := h.sink.last(t); f.Text != "" || !f.Final {
		t.Errorf("expected card cleared after %v, got %+v", DefaultSayingDuration, f)
	}

	h.s.Wait()
	encs := h.rec.encounters()
	if len(encs) != 1 || encs[0].TermID != 7 || encs[0].Location != DefaultLocation {
		t.Errorf("expected one encounter for term 7, got %+v", encs)
	}
}

func TestSession_TranscriptionModeRecordsEncounterWithoutCard(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.final(t, "good luck")
	h.final(t, "go on stage")
	h.final(t, "go on stage")
	h.final(t, "and break a leg")

	if f := h.sink.last(t); !strings.HasSuffix(f.Text, "and break a leg") {
		t.Errorf("expected caption rather than a card, got %q", f.Text)
	}

	h.s.Wait()
	encs := h.rec.encounters()
	if len(encs) != 1 {
		t.Fatalf("expected 1 encounter, got %d", len(encs))
	}
	enc := encs[0]
	if want := "good luck go on stage and break a leg"; enc.Context != want {
		t.Errorf("expected context %q, got %q", want, enc.Context)
	}
	if enc.EventType != models.EventTypeEncounter || enc.Phrase != "break a leg" || enc.UserID != "user-1" {
		t.Errorf("unexpected encounter %+v", enc)
	}
}

func TestSession_FinalWinsOverTrailingPartialInFlight(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})
	entered, release := h.sink.hold(func(f models.CaptionFrame) bool {
		return !f.Final && f.Text == "hello world"
	})
	defer release()

	h.partial(t, "hello")
	h.partial(t, "hello world")

	fired := make(chan struct{})
	go func() {
		defer close(fired)
		h.clock.Advance(caption.DefaultDebounceInterval)
	}()
	<-entered

	handled := make(chan error, 1)
	go func() {
		handled <- h.s.HandleEvent(models.TranscriptEvent{SessionID: "sess-1", Text: "hello world.", IsFinal: true})
	}()
	select {
	case err := <-handled:
		t.Fatalf("final delivered while the trailing partial was still being shown (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	if err := <-handled; err != nil {
		t.Fatalf("HandleEvent(final) error = %v", err)
	}
	<-fired

	f := h.sink.last(t)
	if f.Text != "hello world." || !f.Final {
		t.Errorf("expected the final to be the last frame shown, got %+v", f)
	}
}

func TestSession_EncounterFailureLeavesCaptionsIntact(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})
	h.rec.err = errors.New("insert failed")

	h.final(t, "please break a leg")
	h.s.Wait()

	if got := h.s.Window(); got != "please break a leg" {
		t.Errorf("expected window unchanged by the failed recording, got %q", got)
	}
	if h.s.State() != caption.StateIdle {
		t.Errorf("expected IDLE after final, got %s", h.s.State())
	}
	if n := len(h.rec.encounters()); n != 1 {
		t.Fatalf("expected one recording attempt, got %d", n)
	}

	h.final(t, "thank you")
	if f := h.sink.last(t); f.Text != "please break a leg\nthank you" || !f.Final {
		t.Errorf("expected next final captioned, got %+v", f)
	}
}

func TestSession_SayingsOnlyMatching(t *testing.T) {
	clock := fake.New(time.Unix(1_700_000_000, 0))
	sink, rec := &captureSink{}, &captureRecorder{}
	s := New("sess-2", "user-2", Settings{}, Deps{
		Sink:      sink,
		Recorder:  rec,
		Scheduler: clock,
		Matcher: idiom.NewMatcher(idiom.NewDictionary(
			idiom.Entry{Phrase: "break a leg", ID: 7, Translation: "mucha suerte"},
		)),
	}, Options{SayingsOnlyMatching: true})
	defer s.Close()

	if err := s.HandleEvent(models.TranscriptEvent{Text: "break a leg", IsFinal: true}); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	s.Wait()
	if n := len(rec.encounters()); n != 0 {
		t.Errorf("expected no encounter in transcription view, got %d", n)
	}
	if got := s.Window(); got != "break a leg" {
		t.Errorf("expected plain caption, got %q", got)
	}

	if _, err := s.ToggleViewMode(); err != nil {
		t.Fatalf("ToggleViewMode() error = %v", err)
	}
	if err := s.HandleEvent(models.TranscriptEvent{Text: "break a leg", IsFinal: true}); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	s.Wait()
	if n := len(rec.encounters()); n != 1 {
		t.Errorf("expected one encounter in sayings view, got %d", n)
	}
}

func TestSession_TranslationsApplyInArrivalOrder(t *testing.T) {
	tr := &gatedTranslator{}
	h := newHarness(t, Settings{TranslateTo: "es"}, Deps{Translator: tr})

	h.final(t, "first")
	h.final(t, "second")

	close(tr.gate("second"))
	close(tr.gate("first"))
	h.s.Wait()

	finals := 0
	var texts []string
	for _, f := range h.sink.frames()[1:] {
		if f.Final {
			finals++
			texts = append(texts, f.Text)
		}
	}
	if finals != 2 {
		t.Fatalf("expected 2 translated finals, got %d (%q)", finals, texts)
	}
	if texts[0] != "FIRST" || texts[1] != "FIRST\nSECOND" {
		t.Errorf("expected translations in arrival order, got %q", texts)
	}
}

func TestSession_TranslationFailureShowsOriginal(t *testing.T) {
	tr := &gatedTranslator{err: errors.New("quota exceeded")}
	h := newHarness(t, Settings{TranslateTo: "fr"}, Deps{Translator: tr})

	h.final(t, "bonjour please")
	close(tr.gate("bonjour please"))
	h.s.Wait()

	if f := h.sink.last(t); f.Text != "bonjour please" || !f.Final {
		t.Errorf("expected original text on translation failure, got %+v", f)
	}
}

func TestSession_TranslationSkippedForSameLanguage(t *testing.T) {
	h := newHarness(t, Settings{TranscribeLanguage: "English", TranslateTo: "en-GB"}, Deps{Translator: &gatedTranslator{}})

	if got := h.s.Resolved().TranslateTo; got != "" {
		t.Fatalf("expected translation disabled, got %q", got)
	}
	h.final(t, "no round trip")
	if f := h.sink.last(t); f.Text != "no round trip" {
		t.Errorf("expected synchronous caption, got %+v", f)
	}
}

func TestSession_ClosedDropsPendingTranslation(t *testing.T) {
	tr := &gatedTranslator{}
	h := newHarness(t, Settings{TranslateTo: "es"}, Deps{Translator: tr})

	h.final(t, "never shown")
	before := len(h.sink.frames())
	h.s.Close()
	h.s.Wait()

	if n := len(h.sink.frames()); n != before {
		t.Errorf("expected no frames after Close, got %d new", n-before)
	}
}

func TestSession_Close(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.partial(t, "a")
	h.partial(t, "a b")
	h.final(t, "break a leg")
	h.s.Close()
	h.s.Close()
	before := len(h.sink.frames())

	if err := h.s.HandleEvent(models.TranscriptEvent{Text: "late"}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := h.s.ApplySettings(Settings{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed from ApplySettings, got %v", err)
	}
	if _, err := h.s.ToggleViewMode(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed from ToggleViewMode, got %v", err)
	}

	h.clock.Advance(time.Minute)
	if n := len(h.sink.frames()); n != before {
		t.Errorf("expected no frames after Close, got %d new", n-before)
	}
	if p := h.clock.Pending(); p != 0 {
		t.Errorf("expected no scheduled tasks after Close, got %d", p)
	}
	if !h.s.Closed() {
		t.Error("expected Closed() to be true")
	}
	if h.s.Context().Err() == nil {
		t.Error("expected session context cancelled")
	}
}

func TestSession_ApplySettingsReplaysHistory(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.final(t, "alpha beta")
	if err := h.s.ApplySettings(Settings{LineWidth: "5", NumberOfLines: 4}); err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}

	if got := h.s.Window(); got != "alpha\nbeta" {
		t.Errorf("expected history rewrapped, got %q", got)
	}
	if f := h.sink.last(t); f.Text != "alpha\nbeta" || !f.Final {
		t.Errorf("expected rewrapped window shown, got %+v", f)
	}
}

func TestSession_ApplySettingsLanguageChangeClears(t *testing.T) {
	h := newHarness(t, Settings{}, Deps{})

	h.final(t, "alpha beta")
	if err := h.s.ApplySettings(Settings{TranscribeLanguage: "Spanish"}); err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}

	if got := h.s.Window(); got != "" {
		t.Errorf("expected history dropped on language change, got %q", got)
	}
	if f := h.sink.last(t); f.Text != "" || !f.Final {
		t.Errorf("expected blank final, got %+v", f)
	}
	if got := h.s.Locale(); got != "es-ES" {
		t.Errorf("expected locale es-ES, got %s", got)
	}
}

func TestSession_PinyinConvertsPartials(t *testing.T) {
	h := newHarness(t, Settings{TranscribeLanguage: LanguagePinyin}, Deps{})

	h.partial(t, "你好")
	if f := h.sink.last(t); f.Text != "nǐ hǎo" {
		t.Errorf("expected pinyin partial, got %q", f.Text)
	}
}

func TestSession_NumeralsConversion(t *testing.T) {
	h := newHarness(t, Settings{Conversion: ConversionNumerals}, Deps{})

	h.final(t, "I have twenty three apples")
	if f := h.sink.last(t); f.Text != "I have 23 apples" {
		t.Errorf("expected numerals, got %q", f.Text)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello"},
		{"., hello", "hello"},
		{"！？你好", "你好"},
		{"  spaced  ", "spaced"},
		{"mid, punctuation.", "mid, punctuation."},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
