// Package audio holds the audio primitives shared by the capture and playback
// paths: PCM16 encoding, the circular recording buffer and its read cursor,
// and the interfaces implemented by device backends.
//
// The wire format in both directions is 16-bit signed little-endian PCM,
// mono, 24 kHz. Inside the process audio is carried as normalised float32
// samples in [-1, 1].
//
// Backends live in sub-packages (audio/miniaudio); audio/mock provides test
// doubles.
package audio

import "errors"

// ErrDeviceUnavailable is returned when no capture or playback device can be
// opened. Callers treat it as disabling that path only.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// CaptureDevice is the entry point of a capture backend.
//
// Implementations must be safe for concurrent use.
type CaptureDevice interface {
	// Devices enumerates the available capture devices.
	Devices() ([]DeviceInfo, error)

	// Start opens the device selected by cfg and begins writing samples into
	// a circular buffer of cfg.BufferLen() samples. Returns an error wrapping
	// [ErrDeviceUnavailable] when no device can be opened.
	Start(cfg RecordingConfig) (Recording, error)
}

// Recording is an active capture writing into a circular buffer.
//
// Position and Read may be called from any goroutine; the device writes from
// its own callback thread.
type Recording interface {
	SampleReader

	// Position returns the current write head in samples.
	Position() int

	// Len returns the buffer length in samples.
	Len() int

	// Stop ends capture and releases the device. Safe to call more than once.
	Stop() error
}

// Player plays a complete buffer of normalised samples.
//
// Play preempts whatever is currently playing; there is no queueing across
// calls. Implementations must be safe for concurrent use.
type Player interface {
	// Play starts playback of samples at sampleRate, mono.
	Play(samples []float32, sampleRate int) error

	// Stop silences the output and releases the device.
	Stop() error
}

// DefaultDevice picks the device to use from devs: the one matching id when
// id is non-empty, else the first flagged default, else the first listed.
// ok is false when nothing matches.
func DefaultDevice(devs []DeviceInfo, id string) (DeviceInfo, bool) {
	if id != "" {
		for _, d := range devs {
			if d.ID == id || d.Name == id {
				return d, true
			}
		}
		return DeviceInfo{}, false
	}
	for _, d := range devs {
		if d.IsDefault {
			return d, true
		}
	}
	if len(devs) > 0 {
		return devs[0], true
	}
	return DeviceInfo{}, false
}
