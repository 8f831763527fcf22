// Package mock provides in-memory mock implementations of the
// [audio.CaptureDevice], [audio.Recording], and [audio.Player] interfaces for
// use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	rec := mock.NewRecording(480)
//	dev := &mock.CaptureDevice{StartResult: rec}
//	rec.Write(samples) // advances Position like a real device callback
package mock

import (
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
)

// ─── Recording ────────────────────────────────────────────────────────────────

// Recording is a mock [audio.Recording] backed by a real [audio.RingBuffer].
// Tests drive the write head with [Recording.Write] or [Recording.SetPosition].
type Recording struct {
	ring *audio.RingBuffer

	mu sync.Mutex

	// override, when non-nil, is returned by Position instead of the ring head.
	override *int

	// StopError is returned by Stop.
	StopError error

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountRead records how many times Read was called.
	CallCountRead int
}

// NewRecording returns a looping mock recording of length samples.
func NewRecording(length int) *Recording {
	return &Recording{ring: audio.NewRingBuffer(length, true)}
}

// Write stores samples in the ring as a device callback would.
func (r *Recording) Write(samples []float32) int {
	r.mu.Lock()
	r.override = nil
	r.mu.Unlock()
	return r.ring.Write(samples)
}

// SetPosition forces the value returned by Position.
func (r *Recording) SetPosition(pos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = &pos
}

// Position implements [audio.Recording].
func (r *Recording) Position() int {
	r.mu.Lock()
	override := r.override
	r.mu.Unlock()
	if override != nil {
		return *override
	}
	return r.ring.Position()
}

// Len implements [audio.Recording].
func (r *Recording) Len() int { return r.ring.Len() }

// Read implements [audio.Recording].
func (r *Recording) Read(from, to int) []float32 {
	r.mu.Lock()
	r.CallCountRead++
	r.mu.Unlock()
	return r.ring.Read(from, to)
}

// Stop implements [audio.Recording]. Returns StopError.
func (r *Recording) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountStop++
	return r.StopError
}

// Stops returns the number of Stop calls.
func (r *Recording) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CallCountStop
}

// ─── CaptureDevice ────────────────────────────────────────────────────────────

// CaptureDevice is a mock implementation of [audio.CaptureDevice].
type CaptureDevice struct {
	mu sync.Mutex

	// DevicesResult is returned by Devices.
	DevicesResult []audio.DeviceInfo

	// DevicesError is returned by Devices.
	DevicesError error

	// StartResult is the recording returned by Start. A nil StartResult with
	// a nil StartError returns a fresh NewRecording sized from the config.
	StartResult audio.Recording

	// StartError is returned by Start.
	StartError error

	// StartCalls records the config of every Start invocation.
	StartCalls []audio.RecordingConfig
}

// Devices implements [audio.CaptureDevice].
func (d *CaptureDevice) Devices() ([]audio.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.DevicesResult, d.DevicesError
}

// Start implements [audio.CaptureDevice].
func (d *CaptureDevice) Start(cfg audio.RecordingConfig) (audio.Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCalls = append(d.StartCalls, cfg)
	if d.StartError != nil {
		return nil, d.StartError
	}
	if d.StartResult == nil {
		return NewRecording(cfg.BufferLen()), nil
	}
	return d.StartResult, nil
}

// Starts returns the number of Start calls.
func (d *CaptureDevice) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.StartCalls)
}

// ─── Player ───────────────────────────────────────────────────────────────────

// PlayCall records the arguments of a single [Player.Play] invocation.
type PlayCall struct {
	Samples    []float32
	SampleRate int
}

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayError is returned by Play.
	PlayError error

	// StopError is returned by Stop.
	StopError error

	// PlayCalls records all Play invocations.
	PlayCalls []PlayCall

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// Play implements [audio.Player]. Records a copy of samples.
func (p *Player) Play(samples []float32, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.PlayCalls = append(p.PlayCalls, PlayCall{Samples: cp, SampleRate: sampleRate})
	return p.PlayError
}

// Stop implements [audio.Player].
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountStop++
	return p.StopError
}

// Calls returns a snapshot of PlayCalls.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}
