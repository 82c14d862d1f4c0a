package idiom

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// maxCardRule caps the width of the rule between phrase and translation.
const maxCardRule = 42

// Option is a functional option for configuring a Matcher.
type Option func(*Matcher)

// WithFuzzyThreshold enables a Jaro-Winkler fallback for phrases that are
// not found verbatim. A window of transcript words the same length as the
// phrase matches when its similarity is at least threshold. Zero or a
// negative value disables the fallback.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher looks up sayings in final transcripts. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	dict           *Dictionary
	fuzzyThreshold float64
}

// NewMatcher returns a Matcher over dict. Exact whole-word matching is
// always tried first.
func NewMatcher(dict *Dictionary, opts ...Option) *Matcher {
	m := &Matcher{dict: dict}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Dictionary returns the dictionary the matcher searches.
func (m *Matcher) Dictionary() *Dictionary {
	if m == nil {
		return nil
	}
	return m.dict
}

// Match returns the saying found in finalText.
func (m *Matcher) Match(finalText string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	if e, ok := FindMatch(finalText, m.dict); ok {
		return e, true
	}
	if m.fuzzyThreshold <= 0 || m.dict.Len() == 0 {
		return Entry{}, false
	}
	return m.fuzzyMatch(strings.Fields(Normalize(finalText)))
}

func (m *Matcher) fuzzyMatch(words []string) (Entry, bool) {
	var (
		best      Entry
		bestScore float64
		found     bool
	)
	for i, key := range m.dict.keys {
		n := len(strings.Fields(key))
		if n == 0 || n > len(words) {
			continue
		}
		for start := 0; start+n <= len(words); start++ {
			window := strings.Join(words[start:start+n], " ")
			score := matchr.JaroWinkler(window, key, false)
			if score >= m.fuzzyThreshold && score > bestScore {
				best, bestScore, found = m.dict.entries[i], score, true
			}
		}
	}
	return best, found
}

// FormatCard renders a saying for the display: the phrase, a dashed rule as
// long as the translation (at most 42 characters), then the translation.
func FormatCard(e Entry) string {
	n := utf8.RuneCountInString(e.Translation)
	if n > maxCardRule {
		n = maxCardRule
	}
	return e.Phrase + "\n" + strings.Repeat("-", n) + "\n" + e.Translation
}
