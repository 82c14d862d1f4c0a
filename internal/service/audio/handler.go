// Package audio bridges a speech-to-text stream to a caption session.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/logging"
	"live-captions-service/internal/observability/metrics"
	"live-captions-service/internal/service/stt"
)

// Limits bound the resources a single utterance may use. Zero disables a
// limit.
type Limits struct {
	MaxAudioBytes int64         // audio buffered per utterance
	MaxDuration   time.Duration // wall time per utterance
	MaxPartials   int           // partial hypotheses per utterance
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // ~5.5 minutes at 8kHz 16-bit mono
		MaxDuration:   5 * time.Minute,
		MaxPartials:   500,
	}
}

// ErrLimitExceeded is returned by SendAudio when an utterance limit is hit.
var ErrLimitExceeded = errors.New("utterance limit exceeded")

// TranscriptHandler consumes recognition results. *session.Session
// implements it.
type TranscriptHandler interface {
	HandleEvent(ev models.TranscriptEvent) error
}

// Handler runs one audio stream. It implements stt.Callback and forwards
// results that pass the utterance lifecycle to its TranscriptHandler.
type Handler struct {
	adapter     stt.Adapter
	target      TranscriptHandler
	sessionID   string
	userID      string
	languageTag string
	limits      Limits
	provider    string
	metrics     *metrics.Metrics
	log         zerolog.Logger

	utterance *Utterance

	mu             sync.Mutex
	utteranceStart time.Time
	audioBytes     int64
	partialCount   int
}

// Config identifies the stream a Handler serves.
type Config struct {
	SessionID   string
	UserID      string
	LanguageTag string
	Provider    string
	Limits      Limits
}

// NewHandler creates a Handler. A zero Limits value selects DefaultLimits.
func NewHandler(adapter stt.Adapter, target TranscriptHandler, cfg Config) *Handler {
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	return &Handler{
		adapter:        adapter,
		target:         target,
		sessionID:      cfg.SessionID,
		userID:         cfg.UserID,
		languageTag:    cfg.LanguageTag,
		limits:         cfg.Limits,
		provider:       cfg.Provider,
		metrics:        metrics.DefaultMetrics,
		log:            logging.WithStream(cfg.SessionID, cfg.UserID, cfg.Provider),
		utterance:      NewUtterance(),
		utteranceStart: time.Now(),
	}
}

// Start begins recognition with this handler as the callback.
func (h *Handler) Start(ctx context.Context) error {
	return h.adapter.Start(ctx, h)
}

// SendAudio forwards audio to the adapter. It returns an error, and drops
// the current utterance, when a limit is exceeded.
func (h *Handler) SendAudio(ctx context.Context, audio []byte) error {
	h.metrics.RecordAudioReceived(len(audio))

	h.mu.Lock()
	h.audioBytes += int64(len(audio))
	bytes := h.audioBytes
	elapsed := time.Since(h.utteranceStart)
	h.mu.Unlock()

	if h.limits.MaxAudioBytes > 0 && bytes > h.limits.MaxAudioBytes {
		reason := fmt.Sprintf("max audio bytes exceeded: %d > %d", bytes, h.limits.MaxAudioBytes)
		h.DropUtterance(reason)
		return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
	}
	if h.limits.MaxDuration > 0 && elapsed > h.limits.MaxDuration {
		reason := fmt.Sprintf("max duration exceeded: %v > %v", elapsed.Round(time.Millisecond), h.limits.MaxDuration)
		h.DropUtterance(reason)
		return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
	}

	return h.adapter.SendAudio(ctx, audio)
}

// Close ends recognition.
func (h *Handler) Close() error {
	err := h.adapter.Close()
	h.utterance.Close()
	return err
}

// Utterance returns the lifecycle of the current utterance.
func (h *Handler) Utterance() *Utterance {
	return h.utterance
}

// OnPartial implements stt.Callback.
func (h *Handler) OnPartial(text string) {
	if err := h.utterance.EmitPartial(); err != nil {
		h.log.Debug().Err(err).Int("utterance", h.utterance.Seq()).Msg("Partial ignored")
		return
	}

	h.mu.Lock()
	h.partialCount++
	count := h.partialCount
	h.mu.Unlock()

	if h.limits.MaxPartials > 0 && count > h.limits.MaxPartials {
		h.DropUtterance(fmt.Sprintf("max partials exceeded: %d > %d", count, h.limits.MaxPartials))
		return
	}
	h.forward(text, false)
}

// OnFinal implements stt.Callback.
func (h *Handler) OnFinal(text string, confidence float64) {
	if err := h.utterance.EmitFinal(); err != nil {
		h.log.Debug().Err(err).Int("utterance", h.utterance.Seq()).Msg("Final ignored")
		return
	}
	h.log.Debug().Float64("confidence", confidence).Int("utterance", h.utterance.Seq()).Msg("Final transcript")
	h.forward(text, true)
}

// OnEndOfUtterance implements stt.Callback. It opens the next utterance and
// resets the per-utterance counters.
func (h *Handler) OnEndOfUtterance() {
	h.utterance.Close()
	prev := h.utterance.Seq()

	h.mu.Lock()
	bytes, partials, dur := h.audioBytes, h.partialCount, time.Since(h.utteranceStart)
	h.audioBytes = 0
	h.partialCount = 0
	h.utteranceStart = time.Now()
	h.mu.Unlock()

	next := h.utterance.Next()
	h.metrics.RecordUtterance()
	h.log.Debug().
		Int("utterance", prev).
		Int("next", next).
		Int64("audioBytes", bytes).
		Int("partials", partials).
		Dur("duration", dur).
		Msg("End of utterance")
}

// OnError implements stt.Callback. The current utterance is dropped.
func (h *Handler) OnError(err error) {
	h.metrics.RecordSTTError(h.provider, "stream")
	dropped := h.utterance.Drop()
	h.log.Error().Err(err).Bool("dropped", dropped).Int("utterance", h.utterance.Seq()).Msg("STT error")
}

// DropUtterance abandons the current utterance without forwarding a final.
// It returns false if the utterance had already ended.
func (h *Handler) DropUtterance(reason string) bool {
	dropped := h.utterance.Drop()
	if dropped {
		h.log.Warn().Str("reason", reason).Int("utterance", h.utterance.Seq()).Msg("Utterance dropped")
	}
	return dropped
}

func (h *Handler) forward(text string, final bool) {
	ev := models.TranscriptEvent{
		SessionID:   h.sessionID,
		UserID:      h.userID,
		Text:        text,
		IsFinal:     final,
		LanguageTag: h.languageTag,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := h.target.HandleEvent(ev); err != nil {
		h.log.Warn().Err(err).Bool("final", final).Msg("Transcript rejected by session")
	}
}
