package schema

import (
	"errors"
	"strings"
	"testing"

	"live-captions-service/internal/models"
)

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      models.TranscriptEvent
		wantErr []error
	}{
		{
			name: "valid",
			ev:   models.TranscriptEvent{SessionID: "s1", Text: "hello", LanguageTag: "en-US"},
		},
		{
			name: "valid without language",
			ev:   models.TranscriptEvent{SessionID: "s1", Text: ""},
		},
		{
			name:    "missing session",
			ev:      models.TranscriptEvent{Text: "hello"},
			wantErr: []error{ErrMissingSessionID},
		},
		{
			name:    "text too long",
			ev:      models.TranscriptEvent{SessionID: "s1", Text: strings.Repeat("a", MaxTextBytes+1)},
			wantErr: []error{ErrTextTooLong},
		},
		{
			name:    "bad language",
			ev:      models.TranscriptEvent{SessionID: "s1", LanguageTag: "not a tag"},
			wantErr: []error{ErrInvalidLanguage},
		},
		{
			name:    "several problems",
			ev:      models.TranscriptEvent{LanguageTag: "!!", Text: strings.Repeat("字", MaxTextBytes)},
			wantErr: []error{ErrMissingSessionID, ErrTextTooLong, ErrInvalidLanguage},
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.ev)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("Validate() error = %v, want %v", err, want)
				}
			}
		})
	}
}
