// Package mock provides a scripted STT adapter for running without cloud
// credentials. Each audio frame advances the script by one step: partial
// hypotheses grow word by word until the utterance's final is delivered,
// then the next utterance begins.
package mock

import (
	"context"
	"sync"
	"time"

	"live-captions-service/internal/service/stt"
)

// SimulatedUtterance is one scripted utterance.
type SimulatedUtterance struct {
	Partials   []string // growing interim hypotheses
	Final      string
	Confidence float64
}

// DefaultUtterances is a short lecture excerpt. It contains a saying from the
// default dictionary and the view-mode voice command.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"Good", "Good morning", "Good morning everyone"},
		Final:      "Good morning everyone.",
		Confidence: 0.96,
	},
	{
		Partials:   []string{"Today we", "Today we have", "Today we have twenty"},
		Final:      "Today we have twenty three slides to cover.",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"Let's", "Let's break", "Let's break the ice"},
		Final:      "Let's break the ice with a quick question.",
		Confidence: 0.9,
	},
	{
		Partials:   []string{"Switch", "Switch mode"},
		Final:      "Switch mode.",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Good luck", "Good luck on", "Good luck on the exam"},
		Final:      "Good luck on the exam, break a leg.",
		Confidence: 0.93,
	},
}

// DefaultDelay is how long a result takes to come back after the audio
// frame that triggered it.
const DefaultDelay = 50 * time.Millisecond

// Option configures an Adapter.
type Option func(*Adapter)

// WithScript replaces the default utterances.
func WithScript(script []SimulatedUtterance) Option {
	return func(a *Adapter) {
		if len(script) > 0 {
			a.script = script
		}
	}
}

// WithDelay sets the result delay. Zero delivers results synchronously from
// SendAudio and Close.
func WithDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.delay = d
	}
}

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	script []SimulatedUtterance
	delay  time.Duration

	mu           sync.Mutex
	cb           stt.Callback
	index        int // current utterance
	partialIndex int // next partial of the current utterance
	utterances   int // completed utterances
	closed       bool
}

var _ stt.Adapter = (*Adapter)(nil)

// New creates a scripted adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{script: DefaultUtterances, delay: DefaultDelay}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFactory returns an stt.Factory producing scripted adapters. The
// language is ignored.
func NewFactory(opts ...Option) stt.Factory {
	return func(context.Context, string) (stt.Adapter, error) {
		return New(opts...), nil
	}
}

// Start registers the callback.
func (a *Adapter) Start(_ context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the script by one step.
func (a *Adapter) SendAudio(_ context.Context, _ []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}
	step := a.stepLocked()
	a.mu.Unlock()

	a.deliver(step)
	return nil
}

// Close ends the session. An utterance cut off mid-way is finalized with its
// scripted text.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	var step func(stt.Callback)
	if a.cb != nil && a.partialIndex > 0 {
		utt := a.script[a.index]
		step = func(cb stt.Callback) { cb.OnFinal(utt.Final, utt.Confidence) }
	}
	a.mu.Unlock()

	a.deliver(step)
	return nil
}

// Utterances returns how many utterances have been finalized.
func (a *Adapter) Utterances() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.utterances
}

func (a *Adapter) stepLocked() func(stt.Callback) {
	utt := a.script[a.index]
	if a.partialIndex < len(utt.Partials) {
		text := utt.Partials[a.partialIndex]
		a.partialIndex++
		return func(cb stt.Callback) { cb.OnPartial(text) }
	}

	a.index = (a.index + 1) % len(a.script)
	a.partialIndex = 0
	a.utterances++
	return func(cb stt.Callback) {
		cb.OnFinal(utt.Final, utt.Confidence)
		cb.OnEndOfUtterance()
	}
}

func (a *Adapter) deliver(step func(stt.Callback)) {
	if step == nil {
		return
	}
	a.mu.Lock()
	cb := a.cb
	a.mu.Unlock()

	if a.delay <= 0 {
		step(cb)
		return
	}
	go func() {
		time.Sleep(a.delay)
		step(cb)
	}()
}
