package google

import (
	"strings"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
)

type recordingCallback struct {
	events []string
}

func (r *recordingCallback) OnPartial(text string) { r.events = append(r.events, "partial:"+text) }
func (r *recordingCallback) OnFinal(text string, _ float64) {
	r.events = append(r.events, "final:"+text)
}
func (r *recordingCallback) OnEndOfUtterance() { r.events = append(r.events, "end") }
func (r *recordingCallback) OnError(err error) { r.events = append(r.events, "error:"+err.Error()) }

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{LanguageCode: "es-ES"}.withDefaults()
	want := Config{LanguageCode: "es-ES", SampleRateHz: 8000, AudioEncoding: "LINEAR16"}
	if got != want {
		t.Errorf("withDefaults() = %+v, want %+v", got, want)
	}
	if got := (Config{}).withDefaults(); got.LanguageCode != "en-US" {
		t.Errorf("expected en-US fallback, got %q", got.LanguageCode)
	}
}

func TestStreamingConfig(t *testing.T) {
	req := streamingConfig(Config{LanguageCode: "zh-CN", SampleRateHz: 16000, InterimResults: true, AudioEncoding: "flac"})
	sc := req.GetStreamingConfig()
	if sc == nil {
		t.Fatal("expected a streaming config request")
	}
	rc := sc.GetConfig()
	if rc.GetLanguageCode() != "zh-CN" || rc.GetSampleRateHertz() != 16000 {
		t.Errorf("unexpected recognition config %+v", rc)
	}
	if rc.GetEncoding() != speechpb.RecognitionConfig_FLAC {
		t.Errorf("encoding = %v, want FLAC", rc.GetEncoding())
	}
	if !rc.GetEnableAutomaticPunctuation() || !sc.GetInterimResults() {
		t.Error("expected punctuation and interim results enabled")
	}
}

func TestDispatch(t *testing.T) {
	cb := &recordingCallback{}
	ok := dispatch(&speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "break a"}}},
			{},
			{IsFinal: true, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "break a leg", Confidence: 0.9}}},
		},
	}, cb)
	if !ok {
		t.Fatal("expected dispatch to continue")
	}
	want := "partial:break a,final:break a leg,end"
	if got := strings.Join(cb.events, ","); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestDispatch_Error(t *testing.T) {
	cb := &recordingCallback{}
	ok := dispatch(&speechpb.StreamingRecognizeResponse{
		Error: &rpcstatus.Status{Code: 11, Message: "audio timeout"},
	}, cb)
	if ok {
		t.Error("expected dispatch to stop on error")
	}
	if len(cb.events) != 1 || cb.events[0] != "error:audio timeout" {
		t.Errorf("unexpected events %q", cb.events)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"mulaw", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{" ogg_opus ", speechpb.RecognitionConfig_OGG_OPUS},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"invalid", speechpb.RecognitionConfig_LINEAR16},
		{"", speechpb.RecognitionConfig_LINEAR16},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseAudioEncoding(tt.input); got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
