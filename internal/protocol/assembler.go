package protocol

import (
	"bytes"
	"strings"
)

// Assembler holds the accumulating text and audio of the single in-flight
// response.
//
// Text is append-only until a done event overwrites it with the final value
// and marks it final; the next delta then starts a fresh buffer. Audio is
// append-only until TakeAudio hands the whole buffer out and empties it.
// Neither buffer is ever partially cleared.
//
// Assembler is not safe for concurrent use.
type Assembler struct {
	text      strings.Builder
	textFinal bool
	audio     bytes.Buffer
}

// AppendText appends a text delta and returns the snapshot after the append.
func (a *Assembler) AppendText(delta string) string {
	if a.textFinal {
		a.text.Reset()
		a.textFinal = false
	}
	a.text.WriteString(delta)
	return a.text.String()
}

// SetText replaces the text with its final value.
func (a *Assembler) SetText(final string) {
	a.text.Reset()
	a.text.WriteString(final)
	a.textFinal = true
}

// Text returns a snapshot of the text buffer.
func (a *Assembler) Text() string { return a.text.String() }

// isFinal reports whether the text holds a done event's final value.
func (a *Assembler) isFinal() bool { return a.textFinal }

// AppendAudio appends raw PCM bytes in arrival order.
func (a *Assembler) AppendAudio(pcm []byte) {
	a.audio.Write(pcm)
}

func (a *Assembler) audioLen() int { return a.audio.Len() }

// TakeAudio returns the whole audio buffer and empties it. It returns nil
// when nothing is buffered.
func (a *Assembler) TakeAudio() []byte {
	if a.audio.Len() == 0 {
		return nil
	}
	out := bytes.Clone(a.audio.Bytes())
	a.audio.Reset()
	return out
}
