// Package schema validates transcript events arriving from transports
// before they reach a session.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"live-captions-service/internal/models"
)

// MaxTextBytes bounds a single transcript.
const MaxTextBytes = 4096

// Validation errors.
var (
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrTextTooLong      = fmt.Errorf("text exceeds %d bytes", MaxTextBytes)
	ErrInvalidLanguage  = errors.New("languageTag is not a valid BCP-47 tag")
)

// Validator checks transcript events.
type Validator struct {
	maxTextBytes int
}

// New returns a Validator with the default limits.
func New() *Validator {
	return &Validator{maxTextBytes: MaxTextBytes}
}

// Validate returns every problem found in ev, joined.
func (v *Validator) Validate(ev models.TranscriptEvent) error {
	var errs []error
	if strings.TrimSpace(ev.SessionID) == "" {
		errs = append(errs, ErrMissingSessionID)
	}
	if len(ev.Text) > v.maxTextBytes {
		errs = append(errs, ErrTextTooLong)
	}
	if ev.LanguageTag != "" {
		if _, err := language.Parse(ev.LanguageTag); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLanguage, ev.LanguageTag))
		}
	}
	return errors.Join(errs...)
}
