package session

import (
	"strings"

	"golang.org/x/text/language"
)

// Display names offered by the settings screen.
const (
	LanguageEnglish      = "English"
	LanguageChineseHanzi = "Chinese (Hanzi)"
	LanguagePinyin       = "Chinese (Pinyin)"
)

// DefaultLocale is used for unknown languages.
const DefaultLocale = "en-US"

var localeByName = map[string]string{
	"english":               "en-US",
	"spanish":               "es-ES",
	"french":                "fr-FR",
	"german":                "de-DE",
	"italian":               "it-IT",
	"portuguese":            "pt-BR",
	"dutch":                 "nl-NL",
	"russian":               "ru-RU",
	"arabic":                "ar-SA",
	"hindi":                 "hi-IN",
	"japanese":              "ja-JP",
	"korean":                "ko-KR",
	"thai":                  "th-TH",
	"vietnamese":            "vi-VN",
	"chinese":               "zh-CN",
	"chinese (hanzi)":       "zh-CN",
	"chinese (pinyin)":      "zh-CN",
	"chinese (traditional)": "zh-TW",
	"chinese (cantonese)":   "yue-HK",
}

// LanguageToLocale maps a settings display name such as "Spanish" or
// "Chinese (Hanzi)" to a BCP-47 tag. A value that already is a valid tag is
// returned in canonical form. Anything else yields DefaultLocale.
func LanguageToLocale(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return DefaultLocale
	}
	if loc, ok := localeByName[key]; ok {
		return loc
	}
	if tag, err := language.Parse(name); err == nil && tag != language.Und {
		return tag.String()
	}
	return DefaultLocale
}

// usesCharacterWrap reports whether text in the given language is written
// without spaces between words.
func usesCharacterWrap(name, locale string) bool {
	if strings.EqualFold(strings.TrimSpace(name), LanguagePinyin) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(name), LanguageChineseHanzi) {
		return true
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	script, _ := tag.Script()
	switch script.String() {
	case "Hans", "Hant", "Hani", "Jpan", "Thai":
		return true
	}
	return false
}
