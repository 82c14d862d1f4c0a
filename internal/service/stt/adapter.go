// Package stt defines the contract between caption sessions and
// speech-to-text providers.
package stt

import "context"

// Provider names accepted in configuration.
const (
	ProviderMock   = "mock"
	ProviderGoogle = "google"
)

// Callback receives recognition results from a provider. Partial results are
// full re-transcriptions of the current utterance, not deltas.
type Callback interface {
	// OnPartial is called for every interim hypothesis.
	OnPartial(text string)

	// OnFinal is called once per utterance with the settled text.
	OnFinal(text string, confidence float64)

	// OnEndOfUtterance is called when the provider detects the speaker
	// stopped talking.
	OnEndOfUtterance()

	// OnError is called when recognition fails. No final follows.
	OnError(err error)
}

// Adapter is one streaming recognition session.
type Adapter interface {
	// Start begins recognition and delivers results to cb.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards raw audio to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the stream and releases resources.
	Close() error
}

// Factory opens an Adapter that recognizes speech in the given BCP-47
// language.
type Factory func(ctx context.Context, languageCode string) (Adapter, error)
