package convert

// Mode selects the rewrite a Normalizer applies.
type Mode int

const (
	// ModeNone leaves text untouched.
	ModeNone Mode = iota
	// ModeNumerals turns spelled-out English numbers into digits.
	ModeNumerals
	// ModeHanziToPinyin renders Han characters as tone-marked pinyin.
	ModeHanziToPinyin
	// ModePinyinToHanzi turns pinyin syllables into Han characters.
	ModePinyinToHanzi
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeNumerals:
		return "numerals"
	case ModeHanziToPinyin:
		return "hanzi-to-pinyin"
	case ModePinyinToHanzi:
		return "pinyin-to-hanzi"
	default:
		return "unknown"
	}
}

// Normalizer applies one conversion mode to transcript text.
type Normalizer struct {
	mode Mode
}

// NewNormalizer returns a Normalizer for mode.
func NewNormalizer(mode Mode) *Normalizer {
	return &Normalizer{mode: mode}
}

// Mode returns the configured mode.
func (n *Normalizer) Mode() Mode {
	if n == nil {
		return ModeNone
	}
	return n.mode
}

// Normalize rewrites text according to the mode. A nil Normalizer is a no-op.
func (n *Normalizer) Normalize(text string) string {
	switch n.Mode() {
	case ModeNumerals:
		return NumbersToDigits(text)
	case ModeHanziToPinyin:
		return HanziToPinyin(text)
	case ModePinyinToHanzi:
		return PinyinToHanzi(text)
	default:
		return text
	}
}
