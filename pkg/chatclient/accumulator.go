package chatclient

import (
	"strings"
	"unicode/utf8"
)

// Accumulator folds streamed reply bytes into text. A multi-byte rune split
// across two chunks is held back until its remaining bytes arrive.
type Accumulator struct {
	text    string
	pending []byte
}

// Reduce returns a new accumulator with chunk appended. a is not modified.
func (a Accumulator) Reduce(chunk []byte) Accumulator {
	if len(chunk) == 0 {
		return a
	}
	buf := make([]byte, 0, len(a.pending)+len(chunk))
	buf = append(buf, a.pending...)
	buf = append(buf, chunk...)

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	return Accumulator{
		text:    a.text + strings.ToValidUTF8(string(buf[:cut]), "�"),
		pending: buf[cut:],
	}
}

// Flush ends the stream: held-back bytes that never completed a rune become U+FFFD.
func (a Accumulator) Flush() Accumulator {
	if len(a.pending) == 0 {
		return a
	}
	return Accumulator{text: a.text + strings.ToValidUTF8(string(a.pending), "�")}
}

func (a Accumulator) Text() string { return a.text }
