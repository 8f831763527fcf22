package audio

import "sync"

// RingBuffer is a fixed-length circular buffer of normalised samples written
// by a capture device and read by the capture tick loop.
//
// In loop mode the write head wraps to 0 at the end of the buffer and older
// samples are overwritten. In one-shot mode writes stop once the buffer is
// full and the head stays at Len().
//
// RingBuffer is safe for concurrent use by one writer and any number of
// readers.
type RingBuffer struct {
	mu   sync.Mutex
	data []float32
	pos  int
	loop bool
}

// NewRingBuffer allocates a buffer holding length samples.
func NewRingBuffer(length int, loop bool) *RingBuffer {
	if length < 0 {
		length = 0
	}
	return &RingBuffer{data: make([]float32, length), loop: loop}
}

// Len returns the buffer length in samples.
func (r *RingBuffer) Len() int { return len(r.data) }

// Position returns the current write head.
func (r *RingBuffer) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Write appends samples at the write head and returns how many were stored.
func (r *RingBuffer) Write(samples []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.data) == 0 {
		return 0
	}

	written := 0
	for len(samples) > 0 {
		if r.pos == len(r.data) {
			if !r.loop {
				break
			}
			r.pos = 0
		}
		n := copy(r.data[r.pos:], samples)
		r.pos += n
		written += n
		samples = samples[n:]
	}
	if r.loop && r.pos == len(r.data) {
		r.pos = 0
	}
	return written
}

// Read copies the samples in [from, to). Out-of-range bounds are clamped.
func (r *RingBuffer) Read(from, to int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	from = min(max(from, 0), len(r.data))
	to = min(max(to, from), len(r.data))
	out := make([]float32, to-from)
	copy(out, r.data[from:to])
	return out
}
