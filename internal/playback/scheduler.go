// Package playback turns completed response audio into audible output.
package playback

import (
	"context"
	"log/slog"

	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/internal/protocol"
	"github.com/MrWong99/realtalk/pkg/audio"
)

var _ protocol.Playback = (*Scheduler)(nil)

// Scheduler decodes a flushed PCM16 buffer and starts it on the player at
// the wire sample rate. Each call preempts whatever is playing; responses
// are never queued.
type Scheduler struct {
	player  audio.Player
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a Scheduler playing through player.
func New(player audio.Player, opts ...Option) *Scheduler {
	s := &Scheduler{
		player:  player,
		logger:  slog.Default(),
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule implements [protocol.Playback]. Failures are logged and counted
// but not returned, since the caller has nothing to roll back.
func (s *Scheduler) Schedule(pcm []byte) {
	ctx := context.Background()
	samples := audio.DecodePCM16(pcm)
	if len(samples) == 0 {
		return
	}
	seconds := audio.Duration(pcm)

	if err := s.player.Play(samples, audio.SampleRate); err != nil {
		s.logger.Warn("playback failed", "err", err, "bytes", len(pcm))
		s.metrics.RecordPlayback(ctx, seconds, "error")
		return
	}
	s.logger.Debug("playback started", "seconds", seconds, "samples", len(samples))
	s.metrics.RecordPlayback(ctx, seconds, "ok")
}

// Stop silences the player.
func (s *Scheduler) Stop() error {
	return s.player.Stop()
}
