// Package convert rewrites transcript text before it is buffered: spelled
// out numbers become digits and Chinese text moves between Han characters
// and pinyin. Every function returns its input unchanged when there is
// nothing to convert; none of them fail.
package convert

import (
	"strconv"
	"strings"
)

type wordKind int

const (
	kindStart wordKind = iota
	kindZero
	kindUnit
	kindTeen
	kindTen
	kindHundred
	kindScale
	kindAnd
	kindA
)

var numberWords = map[string]struct {
	kind  wordKind
	value int64
}{
	"zero": {kindZero, 0}, "one": {kindUnit, 1}, "two": {kindUnit, 2}, "three": {kindUnit, 3},
	"four": {kindUnit, 4}, "five": {kindUnit, 5}, "six": {kindUnit, 6}, "seven": {kindUnit, 7},
	"eight": {kindUnit, 8}, "nine": {kindUnit, 9},
	"ten": {kindTeen, 10}, "eleven": {kindTeen, 11}, "twelve": {kindTeen, 12}, "thirteen": {kindTeen, 13},
	"fourteen": {kindTeen, 14}, "fifteen": {kindTeen, 15}, "sixteen": {kindTeen, 16},
	"seventeen": {kindTeen, 17}, "eighteen": {kindTeen, 18}, "nineteen": {kindTeen, 19},
	"twenty": {kindTen, 20}, "thirty": {kindTen, 30}, "forty": {kindTen, 40}, "fifty": {kindTen, 50},
	"sixty": {kindTen, 60}, "seventy": {kindTen, 70}, "eighty": {kindTen, 80}, "ninety": {kindTen, 90},
	"hundred":  {kindHundred, 100},
	"thousand": {kindScale, 1_000}, "million": {kindScale, 1_000_000}, "billion": {kindScale, 1_000_000_000},
	"and": {kindAnd, 0},
	"a":   {kindA, 1},
}

// allowed lists which word kinds may follow each other inside one number.
// "one two" is two numbers, "twenty one" is one. Zero stands alone.
var allowed = map[wordKind][]wordKind{
	kindStart:   {kindZero, kindUnit, kindTeen, kindTen, kindA},
	kindUnit:    {kindHundred, kindScale},
	kindTeen:    {kindHundred, kindScale},
	kindTen:     {kindUnit, kindScale},
	kindHundred: {kindUnit, kindTeen, kindTen, kindScale, kindAnd},
	kindScale:   {kindUnit, kindTeen, kindTen, kindAnd},
	kindAnd:     {kindUnit, kindTeen, kindTen},
	kindA:       {kindHundred, kindScale},
}

func canFollow(prev, next wordKind) bool {
	for _, k := range allowed[prev] {
		if k == next {
			return true
		}
	}
	return false
}

// NumbersToDigits replaces runs of spelled-out English cardinal numbers
// with their digit form: "twenty-one" → "21", "one hundred and five" →
// "105", "a thousand" → "1000". Punctuation attached to the last number
// word is kept. Text without number words is returned untouched.
func NumbersToDigits(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}

	out := make([]string, 0, len(tokens))
	changed := false
	for i := 0; i < len(tokens); {
		value, n, suffix, ok := parseCardinal(tokens[i:])
		if !ok {
			out = append(out, tokens[i])
			i++
			continue
		}
		out = append(out, strconv.FormatInt(value, 10)+suffix)
		i += n
		changed = true
	}
	if !changed {
		return text
	}
	return strings.Join(out, " ")
}

// parseCardinal reads the longest number at the start of tokens. It returns
// the value, how many tokens it spans and the trailing punctuation of the
// last one. Scale words must shrink from left to right, so "one thousand
// two thousand" reads as two numbers.
func parseCardinal(tokens []string) (int64, int, string, bool) {
	var (
		total, current int64
		prev           = kindStart
		lastScale      int64
		consumed       int
		value          int64
		suffix         string

		// end of the number at the last scale word
		scaleConsumed int
		scaleValue    int64
		scaleSuffix   string
	)

	for idx, tok := range tokens {
		core, punct := splitSuffix(tok)
		if core == "" {
			break
		}

		t, c, p, ls := total, current, prev, lastScale
		ok, outOfOrder := true, false
		for _, part := range strings.Split(strings.ToLower(core), "-") {
			w, known := numberWords[part]
			if !known || !canFollow(p, w.kind) {
				ok = false
				break
			}
			switch w.kind {
			case kindZero, kindUnit, kindTeen, kindTen:
				c += w.value
			case kindHundred:
				if c == 0 {
					c = 1
				}
				c *= 100
			case kindScale:
				if ls != 0 && w.value >= ls {
					ok, outOfOrder = false, true
					break
				}
				if c == 0 {
					c = 1
				}
				t += c * w.value
				c = 0
				ls = w.value
			case kindA:
				c = 1
			}
			if !ok {
				break
			}
			p = w.kind
		}
		if !ok {
			// "one thousand two thousand": end before the second group.
			if outOfOrder && scaleConsumed > 0 {
				consumed, value, suffix = scaleConsumed, scaleValue, scaleSuffix
			}
			break
		}
		total, current, prev, lastScale = t, c, p, ls

		if prev != kindAnd && prev != kindA {
			consumed = idx + 1
			value = total + current
			suffix = punct
			if prev == kindScale {
				scaleConsumed, scaleValue, scaleSuffix = consumed, value, suffix
			}
		}
		if punct != "" {
			break
		}
	}

	if consumed == 0 {
		return 0, 0, "", false
	}
	return value, consumed, suffix, true
}

// splitSuffix separates trailing sentence punctuation from a token.
func splitSuffix(tok string) (string, string) {
	core := strings.TrimRight(tok, ".,!?;:")
	return core, tok[len(core):]
}
