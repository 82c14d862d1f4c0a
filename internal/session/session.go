// Package session runs one caption pipeline per active speaker.
//
// A Session owns its transcript buffer, debounce gate and timers. Every
// transcript event, settings change and timer callback is serialized by the
// session mutex; nothing is shared between sessions. Side calls (translation
// and encounter recording) run on their own goroutines under the session
// context, so Close discards whatever is still in flight.
package session

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-captions-service/internal/caption"
	"live-captions-service/internal/convert"
	"live-captions-service/internal/display"
	"live-captions-service/internal/encounter"
	"live-captions-service/internal/idiom"
	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/errtrack"
	"live-captions-service/internal/observability/logging"
	"live-captions-service/internal/observability/metrics"
	"live-captions-service/internal/schedule"
	"live-captions-service/internal/translate"
)

// Sentinel errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
)

// Default timings.
const (
	DefaultInactivityTimeout = 40 * time.Second
	DefaultClearDuration     = time.Second
	DefaultSayingDuration    = 5 * time.Second
	DefaultFinalDuration     = 20 * time.Second
	DefaultSideCallTimeout   = 5 * time.Second
	DefaultRecentFinals      = 32
)

// DefaultLocation is recorded with encounters when no location is configured.
const DefaultLocation = "Rice University"

// switchModeCommand toggles the view mode when spoken in a final transcript.
const switchModeCommand = "switch mode"

var leadingPunct = regexp.MustCompile(`^[.,;:!?。，；：！？]+`)

// Options tune a session's timers and limits. Zero values select defaults.
type Options struct {
	InactivityTimeout   time.Duration
	ClearDuration       time.Duration
	SayingDuration      time.Duration
	FinalDuration       time.Duration
	DebounceInterval    time.Duration
	SideCallTimeout     time.Duration
	MaxFinalTranscripts int
	RecentFinals        int
	Location            string
	// SayingsOnlyMatching limits saying detection, and so encounter
	// recording, to the sayings view.
	SayingsOnlyMatching bool
	// OnClose is called with the id of every session that is closed by a
	// Registry.
	OnClose func(sessionID string)
}

func (o Options) withDefaults() Options {
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = DefaultInactivityTimeout
	}
	if o.ClearDuration <= 0 {
		o.ClearDuration = DefaultClearDuration
	}
	if o.SayingDuration <= 0 {
		o.SayingDuration = DefaultSayingDuration
	}
	if o.FinalDuration <= 0 {
		o.FinalDuration = DefaultFinalDuration
	}
	if o.DebounceInterval <= 0 {
		o.DebounceInterval = caption.DefaultDebounceInterval
	}
	if o.SideCallTimeout <= 0 {
		o.SideCallTimeout = DefaultSideCallTimeout
	}
	if o.MaxFinalTranscripts <= 0 {
		o.MaxFinalTranscripts = caption.DefaultMaxFinalTranscripts
	}
	if o.RecentFinals < 3 {
		o.RecentFinals = DefaultRecentFinals
	}
	if o.Location == "" {
		o.Location = DefaultLocation
	}
	return o
}

// Deps are the collaborators a session talks to. Nil fields select no-op or
// real-time defaults.
type Deps struct {
	Sink       display.Sink
	Matcher    *idiom.Matcher
	Recorder   encounter.Recorder
	Translator translate.Translator
	Scheduler  schedule.Scheduler
	Metrics    *metrics.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Sink == nil {
		d.Sink = display.Multi{}
	}
	if d.Recorder == nil {
		d.Recorder = encounter.Nop{}
	}
	if d.Translator == nil {
		d.Translator = translate.Passthrough{}
	}
	if d.Scheduler == nil {
		d.Scheduler = schedule.Real()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.DefaultMetrics
	}
	return d
}

// Session is the caption pipeline of one speaker.
type Session struct {
	id     string
	userID string
	deps   Deps
	opts   Options
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	gate        *caption.Gate
	inactivity  *schedule.Timer
	sayingClear *schedule.Timer

	mu              sync.Mutex
	settings        Settings
	resolved        Resolved
	buffer          *caption.Buffer
	normalizer      *convert.Normalizer
	view            ViewMode
	recent          []string
	inactivityGen   uint64
	sayingGen       uint64
	lastTranslation chan struct{}
	closed          bool
}

// New creates a session and shows its initial (empty) window.
func New(id, userID string, settings Settings, deps Deps, opts Options) *Session {
	deps = deps.withDefaults()
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:     id,
		userID: userID,
		deps:   deps,
		opts:   opts,
		log:    logging.WithSession(id, userID),
		ctx:    ctx,
		cancel: cancel,
		buffer: caption.NewBuffer(caption.DefaultGeometry(false), opts.MaxFinalTranscripts),
	}
	s.gate = caption.NewGate(opts.DebounceInterval, deps.Scheduler, s.emit)
	s.inactivity = schedule.NewTimer(deps.Scheduler)
	s.sayingClear = schedule.NewTimer(deps.Scheduler)

	s.mu.Lock()
	s.applySettingsLocked(settings)
	s.mu.Unlock()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the id of the speaker.
func (s *Session) UserID() string { return s.userID }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Settings returns the raw settings last applied.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Resolved returns the validated settings in effect.
func (s *Session) Resolved() Resolved {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Locale returns the BCP-47 tag recognition should run in.
func (s *Session) Locale() string {
	return s.Resolved().Locale
}

// ViewMode returns the current view mode.
func (s *Session) ViewMode() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Window returns the current caption window.
func (s *Session) Window() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Render()
}

// State returns the buffer lifecycle state.
func (s *Session) State() caption.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.State()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HandleEvent feeds one recognition result through the pipeline.
func (s *Session) HandleEvent(ev models.TranscriptEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.deps.Metrics.RecordTranscript(ev.IsFinal)
	s.armInactivityLocked()

	if ev.IsFinal {
		s.handleFinalLocked(ev.Text)
		return nil
	}

	if s.view == ViewTranscription {
		window := s.buffer.ProcessUpdate(s.normalizer.Normalize(ev.Text), false)
		s.submitLocked(caption.Frame{Text: window})
	}
	return nil
}

// ApplySettings switches the session to new settings. Finalized history is
// replayed into the new geometry unless the language changed. The resulting
// window is shown at once.
func (s *Session) ApplySettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.applySettingsLocked(settings)
	return nil
}

// ToggleViewMode switches between transcription and sayings view, clears
// the buffer and blanks the display. It returns the new mode.
func (s *Session) ToggleViewMode() (ViewMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.view, ErrSessionClosed
	}
	s.toggleViewLocked()
	return s.view, nil
}

// Close cancels every timer and in-flight side call. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.inactivityGen++
	s.sayingGen++
	s.gate.Stop()
	s.inactivity.Stop()
	s.sayingClear.Stop()
	s.cancel()
	s.mu.Unlock()

	s.log.Info().Msg("Session closed")
}

// Wait blocks until all side calls started so far have finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) applySettingsLocked(settings Settings) {
	r := settings.Resolve()
	languageChanged := s.resolved.Language != "" && !strings.EqualFold(s.resolved.Language, r.Language)

	history := s.buffer.FinalHistory()
	s.buffer.SetGeometry(r.Geometry)
	if !languageChanged {
		for _, text := range history {
			s.buffer.ProcessUpdate(text, true)
		}
	}

	s.settings = settings
	s.resolved = r
	s.normalizer = convert.NewNormalizer(r.Mode)

	s.log.Info().
		Str("language", r.Language).
		Str("locale", r.Locale).
		Int("lineWidth", r.Geometry.LineWidth).
		Int("numberOfLines", r.Geometry.NumberOfLines).
		Bool("characterMode", r.Geometry.CharacterMode).
		Str("conversion", r.Mode.String()).
		Bool("historyKept", !languageChanged).
		Msg("Applied settings")

	s.submitLocked(caption.Frame{Text: s.buffer.Render(), Final: true})
}

func (s *Session) handleFinalLocked(text string) {
	surrounding := s.rememberLocked(text)

	if strings.Contains(idiom.Normalize(text), switchModeCommand) {
		s.toggleViewLocked()
		return
	}

	if s.view != ViewSayings && s.opts.SayingsOnlyMatching {
		s.captionFinalLocked(text)
		return
	}

	if entry, ok := s.deps.Matcher.Match(text); ok {
		s.deps.Metrics.RecordIdiomMatch(s.view.String())
		s.log.Info().Str("phrase", entry.Phrase).Int64("termId", entry.ID).Msg("Saying matched")
		s.recordEncounterAsync(entry, surrounding)
		if s.view == ViewSayings {
			s.submitLocked(caption.Frame{Text: idiom.FormatCard(entry), Final: true})
			s.armSayingClearLocked()
		}
	}

	if s.view != ViewTranscription {
		return
	}
	s.captionFinalLocked(text)
}

func (s *Session) captionFinalLocked(text string) {
	if s.resolved.TranslateTo == "" {
		window := s.buffer.ProcessUpdate(s.normalizer.Normalize(text), true)
		s.submitLocked(caption.Frame{Text: window, Final: true})
		return
	}
	s.translateAsyncLocked(text, s.resolved.TranslateTo)
}

func (s *Session) toggleViewLocked() {
	s.view = s.view.Toggled()
	s.deps.Metrics.RecordViewModeSwitch()
	s.log.Info().Str("viewMode", s.view.String()).Msg("View mode switched")

	s.sayingGen++
	s.sayingClear.Stop()
	s.buffer.Clear()
	s.submitLocked(caption.Frame{Final: true})
}

// rememberLocked tracks distinct recent finals and returns the encounter
// context for text: up to two preceding distinct finals followed by text.
func (s *Session) rememberLocked(text string) string {
	parts := make([]string, 0, 3)
	for i := len(s.recent) - 1; i >= 0 && len(parts) < 2; i-- {
		if s.recent[i] != text {
			parts = append(parts, s.recent[i])
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	parts = append(parts, text)

	seen := false
	for _, r := range s.recent {
		if r == text {
			seen = true
			break
		}
	}
	if !seen {
		s.recent = append(s.recent, text)
		if len(s.recent) > s.opts.RecentFinals {
			s.recent = s.recent[len(s.recent)-s.opts.RecentFinals:]
		}
	}
	return strings.Join(parts, " ")
}

func (s *Session) armInactivityLocked() {
	s.inactivityGen++
	gen := s.inactivityGen
	s.inactivity.Reset(s.opts.InactivityTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.inactivityGen {
			return
		}
		s.log.Debug().Msg("Clearing captions after inactivity")
		s.buffer.Clear()
		s.gate.Cancel()
		s.show("", true, s.opts.ClearDuration)
	})
}

func (s *Session) armSayingClearLocked() {
	s.sayingGen++
	gen := s.sayingGen
	s.sayingClear.Reset(s.opts.SayingDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.sayingGen {
			return
		}
		s.submitLocked(caption.Frame{Final: true})
	})
}

func (s *Session) submitLocked(f caption.Frame) {
	switch s.gate.Submit(f) {
	case caption.Scheduled:
		s.deps.Metrics.RecordFrameDebounced()
	case caption.Discarded:
		s.deps.Metrics.RecordFrameDropped("closed")
	}
}

// emit is the gate's output. It runs either under the session mutex or on a
// timer goroutine, so it must not take the mutex. The gate serializes calls
// in the order it accepted the frames.
func (s *Session) emit(f caption.Frame) {
	var d time.Duration
	if f.Final {
		d = s.opts.FinalDuration
	}
	s.show(cleanText(f.Text), f.Final, d)
}

func (s *Session) show(text string, final bool, d time.Duration) {
	eventType := models.EventTypeCaptionPartial
	if final {
		eventType = models.EventTypeCaptionFinal
	}
	frame := models.CaptionFrame{
		EventType:  eventType,
		SessionID:  s.id,
		UserID:     s.userID,
		Text:       text,
		Final:      final,
		DurationMs: d.Milliseconds(),
		Timestamp:  s.deps.Scheduler.Now().UnixMilli(),
	}
	if err := s.deps.Sink.Show(s.ctx, frame); err != nil {
		s.deps.Metrics.RecordDisplayError("sink")
		s.log.Warn().Err(err).Bool("final", final).Msg("Failed to show caption frame")
		errtrack.Capture(err, map[string]string{"component": "display", "sessionId": s.id})
		return
	}
	s.deps.Metrics.RecordFrameEmitted(final)
}

func (s *Session) recordEncounterAsync(entry idiom.Entry, surrounding string) {
	enc := models.Encounter{
		EventType: models.EventTypeEncounter,
		SessionID: s.id,
		UserID:    s.userID,
		TermID:    entry.ID,
		Phrase:    entry.Phrase,
		Context:   surrounding,
		Location:  s.opts.Location,
		Timestamp: s.deps.Scheduler.Now().UnixMilli(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.SideCallTimeout)
		defer cancel()

		start := time.Now()
		err := s.deps.Recorder.Record(ctx, enc)
		s.deps.Metrics.RecordSideCall("encounter", err, time.Since(start).Seconds())
		s.deps.Metrics.RecordEncounter(err)
		if err != nil && s.ctx.Err() == nil {
			s.log.Error().Err(err).Int64("termId", enc.TermID).Msg("Failed to record encounter")
			errtrack.Capture(err, map[string]string{"component": "encounter", "sessionId": s.id})
		}
	}()
}

// translateAsyncLocked translates text off the session goroutine. Results
// are applied in the order the finals arrived.
func (s *Session) translateAsyncLocked(text, target string) {
	prev := s.lastTranslation
	done := make(chan struct{})
	s.lastTranslation = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)

		ctx, cancel := context.WithTimeout(s.ctx, s.opts.SideCallTimeout)
		start := time.Now()
		out, err := s.deps.Translator.Translate(ctx, text, target)
		cancel()
		s.deps.Metrics.RecordSideCall("translate", err, time.Since(start).Seconds())

		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Str("target", target).Msg("Translation failed, showing original text")
			errtrack.Capture(err, map[string]string{"component": "translate", "sessionId": s.id})
		}
		if err != nil || out == "" {
			out = text
		}

		if prev != nil {
			select {
			case <-prev:
			case <-s.ctx.Done():
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			s.deps.Metrics.RecordFrameDropped("closed")
			return
		}
		window := s.buffer.ProcessUpdate(out, true)
		s.submitLocked(caption.Frame{Text: window, Final: true})
	}()
}

// cleanText drops leading punctuation left over from segmenting and trims
// surrounding whitespace.
func cleanText(text string) string {
	return strings.TrimSpace(leadingPunct.ReplaceAllString(text, ""))
}
