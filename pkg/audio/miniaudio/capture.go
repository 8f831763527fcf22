package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/gen2brain/malgo"
)

const bytesPerFloat = 4

// Start implements [audio.CaptureDevice]. It opens the selected capture
// device as float32 mono at cfg.SampleRate and writes every callback's frames
// into a ring buffer of cfg.BufferLen() samples.
func (c *Client) Start(cfg audio.RecordingConfig) (audio.Recording, error) {
	infos, err := c.audioContext.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: enumerate capture devices: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("miniaudio: no capture device: %w", audio.ErrDeviceUnavailable)
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.SampleRate = uint32(cfg.SampleRate)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = audio.Channels
	deviceCfg.Alsa.NoMMap = 1
	deviceCfg.PerformanceProfile = malgo.LowLatency

	if cfg.DeviceID != "" {
		found := false
		for i := range infos {
			if infos[i].ID.String() == cfg.DeviceID || infos[i].Name() == cfg.DeviceID {
				deviceCfg.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("miniaudio: capture device %q not found: %w", cfg.DeviceID, audio.ErrDeviceUnavailable)
		}
	}

	rec := &recording{ring: audio.NewRingBuffer(cfg.BufferLen(), cfg.Loop)}

	rec.device, err = malgo.InitDevice(c.audioContext.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: rec.onData,
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init capture device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := rec.device.Start(); err != nil {
		rec.device.Uninit()
		return nil, fmt.Errorf("miniaudio: start capture device: %w", err)
	}
	return rec, nil
}

// recording implements [audio.Recording] for a running malgo capture device.
type recording struct {
	ring   *audio.RingBuffer
	device *malgo.Device

	// scratch is only touched from the device callback.
	scratch []float32

	mu      sync.Mutex
	stopped bool
}

func (r *recording) onData(_, pInput []byte, frameCount uint32) {
	n := int(frameCount) * audio.Channels
	if n == 0 || len(pInput) < n*bytesPerFloat {
		return
	}
	if cap(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	samples := r.scratch[:n]
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInput[i*bytesPerFloat:]))
	}
	r.ring.Write(samples)
}

func (r *recording) Position() int { return r.ring.Position() }

func (r *recording) Len() int { return r.ring.Len() }

func (r *recording) Read(from, to int) []float32 { return r.ring.Read(from, to) }

func (r *recording) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	r.stopped = true

	err := r.device.Stop()
	r.device.Uninit()
	if err != nil {
		return fmt.Errorf("miniaudio: stop capture device: %w", err)
	}
	return nil
}
