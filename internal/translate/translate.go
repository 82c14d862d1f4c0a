// Package translate turns finalized captions into the viewer's language.
package translate

import (
	"context"
	"strings"
)

// Translator translates text into the target language (a BCP-47 tag or a
// bare language code such as "es").
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Passthrough returns text unchanged.
type Passthrough struct{}

// Translate implements Translator.
func (Passthrough) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// BaseLanguage reduces a tag like "es-MX" to "es".
func BaseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// SameLanguage reports whether two tags share a base language.
func SameLanguage(a, b string) bool {
	return BaseLanguage(a) == BaseLanguage(b)
}
