// Package miniaudio implements [audio.CaptureDevice] and [audio.Player] on top
// of miniaudio via github.com/gen2brain/malgo.
//
// Capture writes float32 mono samples into an [audio.RingBuffer] from the
// device callback; playback drains a single preemptible buffer from the
// output callback.
package miniaudio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Compile-time assertions.
var (
	_ audio.CaptureDevice = (*Client)(nil)
	_ audio.Player        = (*Player)(nil)
)

// Client owns the miniaudio context shared by capture and playback devices.
type Client struct {
	// audioContext is kept to uninitialise it on Close.
	audioContext *malgo.AllocatedContext

	mu     sync.Mutex
	closed bool
}

// NewClient initialises a miniaudio context using the platform's default
// backends. Backend log lines are forwarded to slog at debug level.
func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo", "msg", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	return &Client{audioContext: audioCtx}, nil
}

// Devices implements [audio.CaptureDevice].
func (c *Client) Devices() ([]audio.DeviceInfo, error) {
	infos, err := c.audioContext.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: enumerate capture devices: %w", err)
	}
	out := make([]audio.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, audio.DeviceInfo{
			ID:        info.ID.String(),
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return out, nil
}

// NewPlayer returns a [Player] bound to this context's default output device.
func (c *Client) NewPlayer() *Player {
	return &Player{audioContext: c.audioContext}
}

// Close releases the miniaudio context. Devices created from it must be
// stopped first. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.audioContext.Uninit()
	c.audioContext.Free()
	return err
}
