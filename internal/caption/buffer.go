package caption

import "strings"

// Buffer holds the finalized caption lines and the in-progress partial for
// one speaker and renders the visible window from them.
//
// Rules:
//   - any state: a partial moves to ACCUMULATING, a final moves to IDLE
//   - Clear and SetGeometry return to EMPTY
//
// A Buffer is not safe for concurrent use; the owning session serializes
// every call.
type Buffer struct {
	geom     Geometry
	maxFinal int

	finalized []string // wrapped lines, oldest first
	history   []string // finalized transcripts as received, for replay
	pending   string
	state     State
}

// NewBuffer creates an empty Buffer. Invalid geometry is clamped to the
// defaults and maxFinalTranscripts below 1 becomes the default cap.
func NewBuffer(geom Geometry, maxFinalTranscripts int) *Buffer {
	if maxFinalTranscripts < 1 {
		maxFinalTranscripts = DefaultMaxFinalTranscripts
	}
	return &Buffer{
		geom:     geom.Normalize(),
		maxFinal: maxFinalTranscripts,
		state:    StateEmpty,
	}
}

// ProcessUpdate applies one recognizer result and returns the rendered
// window.
//
// A final result is wrapped into finalized lines and clears the pending
// partial. A partial result replaces the pending partial outright: each
// partial is a complete re-transcription of the current utterance, not a
// delta.
func (b *Buffer) ProcessUpdate(text string, isFinal bool) string {
	if isFinal {
		b.finalized = append(b.finalized, Wrap(text, b.geom.LineWidth, b.geom.CharacterMode)...)
		b.history = append(b.history, text)
		b.pending = ""
		b.finalized = trimFront(b.finalized, b.maxFinal)
		b.history = trimFront(b.history, b.maxFinal)
		b.state = StateIdle
	} else {
		b.pending = text
		b.state = StateAccumulating
	}
	return b.Render()
}

// Render returns the current window: the last NumberOfLines lines of the
// finalized lines followed by the wrapped pending partial, newline-joined.
func (b *Buffer) Render() string {
	return strings.Join(b.Lines(), "\n")
}

// Lines returns the current window as individual lines.
func (b *Buffer) Lines() []string {
	partial := Wrap(b.pending, b.geom.LineWidth, b.geom.CharacterMode)

	n := b.geom.NumberOfLines
	total := len(b.finalized) + len(partial)
	skip := 0
	if total > n {
		skip = total - n
	}

	lines := make([]string, 0, min(total, n))
	for i, l := range b.finalized {
		if i >= skip {
			lines = append(lines, l)
		}
	}
	for i, l := range partial {
		if len(b.finalized)+i >= skip {
			lines = append(lines, l)
		}
	}
	return lines
}

// Clear drops all finalized lines, history and the pending partial.
func (b *Buffer) Clear() {
	b.finalized = nil
	b.history = nil
	b.pending = ""
	b.state = StateEmpty
}

// SetGeometry replaces the window geometry and resets the buffer. It does not
// replay history; callers that want to keep it re-feed FinalHistory through
// ProcessUpdate.
func (b *Buffer) SetGeometry(g Geometry) {
	b.geom = g.Normalize()
	b.Clear()
}

// Geometry returns the current window geometry.
func (b *Buffer) Geometry() Geometry { return b.geom }

// State returns the current buffer state.
func (b *Buffer) State() State { return b.state }

// Pending returns the current partial transcript.
func (b *Buffer) Pending() string { return b.pending }

// MaxFinalTranscripts returns the retention cap.
func (b *Buffer) MaxFinalTranscripts() int { return b.maxFinal }

// FinalizedLines returns a copy of the retained finalized lines.
func (b *Buffer) FinalizedLines() []string {
	return append([]string(nil), b.finalized...)
}

// FinalHistory returns a copy of the retained finalized transcripts in the
// order they were received.
func (b *Buffer) FinalHistory() []string {
	return append([]string(nil), b.history...)
}

// trimFront evicts the oldest entries so at most limit remain.
func trimFront(s []string, limit int) []string {
	if len(s) <= limit {
		return s
	}
	return append(s[:0:0], s[len(s)-limit:]...)
}
