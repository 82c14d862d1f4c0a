package session

import (
	"strconv"
	"strings"

	"live-captions-service/internal/caption"
	"live-captions-service/internal/convert"
	"live-captions-service/internal/translate"
)

// Conversion names accepted in Settings.Conversion.
const (
	ConversionAuto     = ""
	ConversionNone     = "none"
	ConversionNumerals = "numerals"
	ConversionPinyin   = "pinyin"
	ConversionHanzi    = "hanzi"
)

// Settings are the raw per-user values as they arrive from the settings
// store. LineWidth is either a number or a preset name such as "Narrow".
type Settings struct {
	LineWidth          string `json:"line_width"`
	NumberOfLines      int    `json:"number_of_lines"`
	TranscribeLanguage string `json:"transcribe_language"`
	TranslateTo        string `json:"translate_to,omitempty"`
	Conversion         string `json:"conversion,omitempty"`
}

// Resolved is the validated form of Settings used by a session.
type Resolved struct {
	Language    string
	Locale      string
	Geometry    caption.Geometry
	Mode        convert.Mode
	TranslateTo string
}

// Resolve validates s and fills in defaults. Invalid geometry values fall
// back to the defaults for the language's wrap mode.
func (s Settings) Resolve() Resolved {
	name := strings.TrimSpace(s.TranscribeLanguage)
	if name == "" {
		name = LanguageEnglish
	}
	locale := LanguageToLocale(name)
	charMode := usesCharacterWrap(name, locale)

	geom := caption.Geometry{
		LineWidth:     caption.ParseLineWidth(s.LineWidth, charMode),
		NumberOfLines: s.NumberOfLines,
		CharacterMode: charMode,
	}.Normalize()

	translateTo := strings.TrimSpace(s.TranslateTo)
	if translateTo != "" && translate.SameLanguage(translateTo, locale) {
		translateTo = ""
	}

	return Resolved{
		Language:    name,
		Locale:      locale,
		Geometry:    geom,
		Mode:        conversionMode(s.Conversion, name),
		TranslateTo: translateTo,
	}
}

func conversionMode(conversion, name string) convert.Mode {
	switch strings.ToLower(strings.TrimSpace(conversion)) {
	case ConversionNone:
		return convert.ModeNone
	case ConversionNumerals:
		return convert.ModeNumerals
	case ConversionPinyin:
		return convert.ModeHanziToPinyin
	case ConversionHanzi:
		return convert.ModePinyinToHanzi
	}
	if strings.EqualFold(name, LanguagePinyin) {
		return convert.ModeHanziToPinyin
	}
	return convert.ModeNone
}

// ViewMode selects what a session shows on the display.
type ViewMode int

const (
	// ViewTranscription shows the running (optionally translated) captions.
	ViewTranscription ViewMode = iota
	// ViewSayings shows only cards for recognized sayings.
	ViewSayings
)

// String returns the string representation of the view mode.
func (v ViewMode) String() string {
	switch v {
	case ViewTranscription:
		return "transcription"
	case ViewSayings:
		return "sayings"
	default:
		return "unknown"
	}
}

// Toggled returns the other view mode.
func (v ViewMode) Toggled() ViewMode {
	if v == ViewTranscription {
		return ViewSayings
	}
	return ViewTranscription
}

// SettingsFromMap reads settings from a decoded JSON object or protobuf
// Struct. line_width may be a number or a preset name; missing keys keep
// their zero values.
func SettingsFromMap(m map[string]any) Settings {
	var s Settings
	switch v := m["line_width"].(type) {
	case string:
		s.LineWidth = v
	case float64:
		s.LineWidth = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, ok := m["number_of_lines"].(float64); ok {
		s.NumberOfLines = int(v)
	}
	s.TranscribeLanguage, _ = m["transcribe_language"].(string)
	s.TranslateTo, _ = m["translate_to"].(string)
	s.Conversion, _ = m["conversion"].(string)
	return s
}
