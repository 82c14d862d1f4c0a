// Package models defines the data structures exchanged between the caption
// engine and its transports.
package models

// Event type names carried in payloads and Kafka headers.
const (
	EventTypeCaptionPartial = "caption.partial"
	EventTypeCaptionFinal   = "caption.final"
	EventTypeEncounter      = "saying.encounter"
)

// TranscriptEvent is one recognition result for a session. Partial results
// are full re-transcriptions of the utterance so far.
type TranscriptEvent struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId,omitempty"`
	Text        string `json:"text"`
	IsFinal     bool   `json:"isFinal"`
	LanguageTag string `json:"languageTag,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// CaptionFrame is a formatted window sent to the display. A zero DurationMs
// keeps the text up until the next frame.
type CaptionFrame struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId,omitempty"`
	Text       string `json:"text"`
	Final      bool   `json:"final"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  int64  `json:"timestamp"`
}

// Encounter records a saying heard by a user.
type Encounter struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
	TermID    int64  `json:"termId"`
	Phrase    string `json:"phrase"`
	Context   string `json:"context"`
	Location  string `json:"location"`
	Timestamp int64  `json:"timestamp"`
}
