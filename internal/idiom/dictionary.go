// Package idiom finds known sayings inside finalized transcript text.
//
// A Dictionary is built once and never mutated. Each phrase is normalized
// and compiled into a whole-word pattern at construction, so matching a
// final transcript only runs the precompiled patterns in insertion order.
package idiom

import (
	"regexp"
	"strings"
)

// Entry is one saying with its identifier and translation.
type Entry struct {
	Phrase      string `json:"phrase" yaml:"phrase"`
	ID          int64  `json:"id" yaml:"id"`
	Translation string `json:"translation" yaml:"translation"`
}

// Dictionary is an insertion-ordered, read-only set of entries. It is safe
// for concurrent use.
type Dictionary struct {
	entries  []Entry
	keys     []string
	patterns []*regexp.Regexp
	index    map[string]int
}

// NewDictionary builds a Dictionary from entries in the given order. A later
// entry whose normalized phrase repeats an earlier one is ignored, as are
// entries whose phrase normalizes to nothing.
func NewDictionary(entries ...Entry) *Dictionary {
	d := &Dictionary{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		key := Normalize(e.Phrase)
		if key == "" {
			continue
		}
		if _, dup := d.index[key]; dup {
			continue
		}
		d.index[key] = len(d.entries)
		d.entries = append(d.entries, e)
		d.keys = append(d.keys, key)
		d.patterns = append(d.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(key)+`\b`))
	}
	return d
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Entries returns a copy of the entries in insertion order.
func (d *Dictionary) Entries() []Entry {
	if d == nil {
		return nil
	}
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Lookup returns the entry whose phrase normalizes to the same key as phrase.
func (d *Dictionary) Lookup(phrase string) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	i, ok := d.index[Normalize(phrase)]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Normalize keeps ASCII letters and whitespace and lowercases the result.
// Surrounding whitespace is trimmed and inner runs are collapsed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FindMatch returns the first entry, in insertion order, whose phrase occurs
// in finalText as a whole word or phrase. A nil or empty dictionary never
// matches.
func FindMatch(finalText string, dict *Dictionary) (Entry, bool) {
	if dict.Len() == 0 {
		return Entry{}, false
	}
	text := Normalize(finalText)
	if text == "" {
		return Entry{}, false
	}
	for i, re := range dict.patterns {
		if re.MatchString(text) {
			return dict.entries[i], true
		}
	}
	return Entry{}, false
}
