package audio

// SampleReader exposes a read-only view of a circular recording buffer.
// Indices are sample offsets in [0, Len()].
type SampleReader interface {
	// Read copies the samples in [from, to) out of the buffer.
	Read(from, to int) []float32
}

// Window is a half-open range [From, To) of sample offsets.
type Window struct {
	From int
	To   int
}

// Len returns the number of samples covered by w.
func (w Window) Len() int {
	if w.To <= w.From {
		return 0
	}
	return w.To - w.From
}

// Empty reports whether w covers no samples.
func (w Window) Empty() bool { return w.Len() == 0 }

// Cursor tracks the last position read from a circular recording buffer of a
// fixed length. It is owned by the capture tick loop and is not safe for
// concurrent use.
//
// Each call to [Cursor.Advance] moves the cursor to the device's current write
// head. When the write head has wrapped behind the cursor, reading resumes at
// offset 0 and the tail between the old cursor and the buffer end is dropped
// for that cycle.
type Cursor struct {
	last   int
	length int
}

// NewCursor returns a cursor at offset 0 over a buffer of length samples.
func NewCursor(length int) *Cursor {
	if length < 0 {
		length = 0
	}
	return &Cursor{length: length}
}

// Position returns the last-read offset.
func (c *Cursor) Position() int { return c.last }

// Len returns the length of the underlying buffer.
func (c *Cursor) Len() int { return c.length }

// Advance moves the cursor to writePos and returns the window of new samples.
// On wraparound, dropped is the skipped tail [last, length); otherwise it is
// empty. writePos is clamped to [0, length].
func (c *Cursor) Advance(writePos int) (window, dropped Window) {
	writePos = min(max(writePos, 0), c.length)

	if writePos >= c.last {
		window = Window{From: c.last, To: writePos}
	} else {
		dropped = Window{From: c.last, To: c.length}
		window = Window{From: 0, To: writePos}
	}
	c.last = writePos
	return window, dropped
}

// Poll advances the cursor to writePos and reads the new samples from src.
// It returns nil when the window is empty.
func (c *Cursor) Poll(src SampleReader, writePos int) (samples []float32, dropped Window) {
	window, dropped := c.Advance(writePos)
	if window.Empty() {
		return nil, dropped
	}
	return src.Read(window.From, window.To), dropped
}
