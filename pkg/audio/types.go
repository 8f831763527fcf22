package audio

import "time"

// DeviceInfo describes a capture device returned by [CaptureDevice.Devices].
type DeviceInfo struct {
	// ID is the backend-specific identifier passed back to select the device.
	ID string

	// Name is the human-readable device name.
	Name string

	// IsDefault is true for the system default capture device.
	IsDefault bool
}

// RecordingConfig controls how a [Recording] fills its circular buffer.
type RecordingConfig struct {
	// DeviceID selects the capture device. Empty selects the default.
	DeviceID string

	// Loop makes the buffer wrap to offset 0 when full instead of stopping.
	Loop bool

	// Duration is the buffer length in time; Len() = Duration * SampleRate.
	Duration time.Duration

	// SampleRate is the capture rate in Hz.
	SampleRate int
}

// BufferLen returns the number of samples the configured buffer holds.
func (c RecordingConfig) BufferLen() int {
	return int(c.Duration.Seconds() * float64(c.SampleRate))
}
