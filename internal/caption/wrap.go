// Package caption implements the streaming transcript formatter: line
// wrapping, the per-session transcript buffer that renders the bounded
// caption window, and the debounce gate in front of the display.
//
// Nothing in this package does I/O or reads the wall clock directly, so
// every behaviour is reproducible in unit tests.
package caption

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Width returns the display width of s in characters. A character is an
// extended grapheme cluster, so "é" written with a combining accent or a
// flag emoji counts as one.
func Width(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Wrap splits text into lines of at most maxWidth characters.
//
// In word mode whitespace-delimited tokens are packed greedily and a token
// longer than maxWidth is hard-split at maxWidth boundaries. In character
// mode characters are packed regardless of word boundaries, which suits
// scripts written without spaces. Empty input yields no lines.
func Wrap(text string, maxWidth int, characterMode bool) []string {
	if maxWidth <= 0 {
		maxWidth = 1
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if characterMode {
		return wrapCharacters(text, maxWidth)
	}
	return wrapWords(text, maxWidth)
}

func wrapWords(text string, maxWidth int) []string {
	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		if curW > 0 {
			lines = append(lines, cur.String())
		}
		cur.Reset()
		curW = 0
	}

	for _, tok := range strings.Fields(text) {
		w := Width(tok)
		switch {
		case w > maxWidth:
			flush()
			chunks := splitGraphemes(tok, maxWidth)
			lines = append(lines, chunks[:len(chunks)-1]...)
			last := chunks[len(chunks)-1]
			cur.WriteString(last)
			curW = Width(last)
		case curW == 0:
			cur.WriteString(tok)
			curW = w
		case curW+1+w <= maxWidth:
			cur.WriteByte(' ')
			cur.WriteString(tok)
			curW += 1 + w
		default:
			flush()
			cur.WriteString(tok)
			curW = w
		}
	}
	flush()
	return lines
}

func wrapCharacters(text string, maxWidth int) []string {
	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		line := strings.TrimRightFunc(cur.String(), unicode.IsSpace)
		if line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
		curW = 0
	}

	collapsed := strings.Join(strings.Fields(text), " ")
	g := uniseg.NewGraphemes(collapsed)
	for g.Next() {
		cluster := g.Str()
		if curW == 0 && cluster == " " {
			continue
		}
		cur.WriteString(cluster)
		curW++
		if curW == maxWidth {
			flush()
		}
	}
	flush()
	return lines
}

// splitGraphemes cuts s into chunks of exactly n characters; the last chunk
// may be shorter. It always returns at least one chunk.
func splitGraphemes(s string, n int) []string {
	var (
		chunks []string
		cur    strings.Builder
		count  int
	)
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cur.WriteString(g.Str())
		count++
		if count == n {
			chunks = append(chunks, cur.String())
			cur.Reset()
			count = 0
		}
	}
	if count > 0 || len(chunks) == 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
