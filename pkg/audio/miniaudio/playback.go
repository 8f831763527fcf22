package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Player plays one buffer at a time on the default output device. A new Play
// call cuts off the buffer currently playing.
//
// The device is opened lazily on the first Play and reopened when the sample
// rate changes.
type Player struct {
	audioContext *malgo.AllocatedContext

	mu         sync.Mutex
	device     *malgo.Device
	sampleRate int

	bufMu   sync.Mutex
	samples []float32
	pos     int
}

// Play implements [audio.Player].
func (p *Player) Play(samples []float32, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil || p.sampleRate != sampleRate {
		if err := p.openLocked(sampleRate); err != nil {
			return err
		}
	}

	p.bufMu.Lock()
	p.samples = samples
	p.pos = 0
	p.bufMu.Unlock()
	return nil
}

// Stop implements [audio.Player].
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bufMu.Lock()
	p.samples = nil
	p.pos = 0
	p.bufMu.Unlock()

	return p.closeLocked()
}

func (p *Player) openLocked(sampleRate int) error {
	if err := p.closeLocked(); err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = audio.Channels
	cfg.Alsa.NoMMap = 1
	cfg.PeriodSizeInFrames = uint32(sampleRate / 50) // 20ms
	cfg.Periods = 3

	device, err := malgo.InitDevice(p.audioContext.Context, cfg, malgo.DeviceCallbacks{
		Data: p.onData,
	})
	if err != nil {
		return fmt.Errorf("miniaudio: init playback device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("miniaudio: start playback device: %w", err)
	}
	p.device = device
	p.sampleRate = sampleRate
	return nil
}

func (p *Player) closeLocked() error {
	if p.device == nil {
		return nil
	}
	err := p.device.Stop()
	p.device.Uninit()
	p.device = nil
	if err != nil {
		return fmt.Errorf("miniaudio: stop playback device: %w", err)
	}
	return nil
}

// onData fills pOutput from the current buffer and pads with silence.
func (p *Player) onData(pOutput, _ []byte, frameCount uint32) {
	need := min(int(frameCount)*audio.Channels, len(pOutput)/bytesPerFloat)

	p.bufMu.Lock()
	n := min(need, len(p.samples)-p.pos)
	for i := range n {
		binary.LittleEndian.PutUint32(pOutput[i*bytesPerFloat:], math.Float32bits(p.samples[p.pos+i]))
	}
	p.pos += n
	p.bufMu.Unlock()

	clear(pOutput[n*bytesPerFloat : need*bytesPerFloat])
}
