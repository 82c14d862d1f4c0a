// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"live-captions-service/internal/service/stt"
)

// Config holds recognition settings for a stream.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns the settings used by the glasses microphone.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
}

var _ stt.Adapter = (*Adapter)(nil)

// New creates a Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: c, cfg: cfg.withDefaults()}, nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LanguageCode == "" {
		c.LanguageCode = def.LanguageCode
	}
	if c.SampleRateHz <= 0 {
		c.SampleRateHz = def.SampleRateHz
	}
	if c.AudioEncoding == "" {
		c.AudioEncoding = def.AudioEncoding
	}
	return c
}

// streamingConfig is the first request of every stream. Punctuation is
// requested so captions read as sentences.
func streamingConfig(cfg Config) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
					SampleRateHertz:            cfg.SampleRateHz,
					LanguageCode:               cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: cfg.InterimResults,
			},
		},
	}
}

// NewFactory returns an stt.Factory that opens adapters with base settings
// and the requested language.
func NewFactory(base Config) stt.Factory {
	return func(ctx context.Context, languageCode string) (stt.Adapter, error) {
		cfg := base
		if languageCode != "" {
			cfg.LanguageCode = languageCode
		}
		return New(ctx, cfg)
	}
}

// Start opens the streaming recognition call, sends the config and starts
// receiving results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	if err := stream.Send(streamingConfig(a.cfg)); err != nil {
		return err
	}

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return errors.New("google stt: stream not started")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream and releases the client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.mu.Unlock()

	var errs []error
	if stream != nil {
		errs = append(errs, stream.CloseSend())
	}
	errs = append(errs, a.client.Close())
	return errors.Join(errs...)
}

func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			cb.OnError(err)
			return
		}
		if !dispatch(resp, cb) {
			return
		}
	}
}

// dispatch delivers one response to cb. It returns false when the response
// carries an error and the stream should stop.
func dispatch(resp *speechpb.StreamingRecognizeResponse, cb stt.Callback) bool {
	if st := resp.GetError(); st != nil && st.GetCode() != 0 {
		cb.OnError(errors.New(st.GetMessage()))
		return false
	}
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		if r.GetIsFinal() {
			cb.OnFinal(alt.GetTranscript(), float64(alt.GetConfidence()))
			cb.OnEndOfUtterance()
		} else {
			cb.OnPartial(alt.GetTranscript())
		}
	}
	return true
}

// parseAudioEncoding maps an encoding name, in any case, to its enum value.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
