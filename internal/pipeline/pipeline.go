// Package pipeline owns one realtime conversation: it connects the session,
// streams captured microphone audio out on a fixed tick and applies inbound
// events to the response state.
//
// All response state is mutated from the tick loop goroutine. Transport
// callbacks never touch it directly; they push onto a bounded inbound queue
// that the loop drains between capture ticks. A full queue blocks the
// transport's read goroutine until the loop catches up or the pipeline stops,
// so inbound events are never dropped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/internal/playback"
	"github.com/MrWong99/realtalk/internal/protocol"
	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/realtime"
)

// Defaults used when the corresponding [Config] field is zero.
const (
	DefaultTickInterval   = 20 * time.Millisecond
	DefaultBufferDuration = 10 * time.Second
	DefaultInboundQueue   = 256
)

// ErrAlreadyRunning is returned by Run when the pipeline has been started
// before.
var ErrAlreadyRunning = errors.New("pipeline: already running")

// Config holds the tunables of a [Pipeline].
type Config struct {
	// TickInterval is the capture poll cadence.
	TickInterval time.Duration

	// BufferDuration sizes the circular recording buffer.
	BufferDuration time.Duration

	// InboundQueue bounds the number of transport callbacks waiting for the
	// tick loop.
	InboundQueue int

	// DeviceID selects the capture device by ID or name. Empty picks the
	// default.
	DeviceID string

	// Voice and Instructions are sent in the session.update after connect.
	Voice        string
	Instructions string
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.BufferDuration <= 0 {
		c.BufferDuration = DefaultBufferDuration
	}
	if c.InboundQueue <= 0 {
		c.InboundQueue = DefaultInboundQueue
	}
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithCaptureDevice enables the capture path. Without it the pipeline only
// receives.
func WithCaptureDevice(d audio.CaptureDevice) Option {
	return func(p *Pipeline) { p.capture = d }
}

// WithPlayer enables playback of flushed response audio.
func WithPlayer(pl audio.Player) Option {
	return func(p *Pipeline) { p.player = pl }
}

// WithTextSink receives every text snapshot from the tick loop goroutine.
func WithTextSink(fn protocol.TextSink) Option {
	return func(p *Pipeline) { p.textSink = fn }
}

// WithServerErrorHandler observes error events from the service.
func WithServerErrorHandler(fn func(*protocol.ServerError)) Option {
	return func(p *Pipeline) { p.onServerError = fn }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.id = id
		}
	}
}

// WithLogger sets the base logger. The pipeline adds a session_id attribute.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// inbound is one transport callback marshalled onto the tick loop.
type inbound struct {
	data []byte
	err  error
}

// Pipeline is the session context object: it owns the connection session,
// the capture cursor and the dispatcher with its response buffers.
//
// A Pipeline runs once. Create a new one per conversation.
type Pipeline struct {
	id      string
	cfg     Config
	session *realtime.Session

	capture       audio.CaptureDevice
	player        audio.Player
	textSink      protocol.TextSink
	onServerError func(*protocol.ServerError)

	logger  *slog.Logger
	metrics *observe.Metrics

	dispatcher *protocol.Dispatcher
	scheduler  *playback.Scheduler

	inbound  chan inbound
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	started bool

	// Owned by the tick loop.
	recording audio.Recording
	cursor    *audio.Cursor
}

// New builds a pipeline around session. Nothing is started until Run.
func New(session *realtime.Session, cfg Config, opts ...Option) *Pipeline {
	cfg.applyDefaults()
	p := &Pipeline{
		id:      uuid.NewString(),
		cfg:     cfg,
		session: session,
		logger:  slog.Default(),
		metrics: observe.DefaultMetrics(),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("session_id", p.id)
	p.inbound = make(chan inbound, cfg.InboundQueue)

	dopts := []protocol.Option{
		protocol.WithTextSink(p.textSink),
		protocol.WithServerErrorHandler(p.onServerError),
		protocol.WithLogger(p.logger),
		protocol.WithMetrics(p.metrics),
	}
	if p.player != nil {
		p.scheduler = playback.New(p.player,
			playback.WithLogger(p.logger),
			playback.WithMetrics(p.metrics),
		)
		dopts = append(dopts, protocol.WithPlayback(p.scheduler))
	}
	p.dispatcher = protocol.NewDispatcher(dopts...)
	return p
}

// ID returns the session ID used in logs.
func (p *Pipeline) ID() string { return p.id }

// Connected reports whether the underlying session is connected.
func (p *Pipeline) Connected() bool {
	return p.session.State() == realtime.StateConnected
}

// Run connects, then drives the tick loop until ctx is cancelled. It returns
// nil on cancellation and an error when the connection cannot be
// established. Teardown always runs before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.started = true
	p.mu.Unlock()

	p.metrics.ActiveSessions.Add(ctx, 1)
	defer p.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	defer p.teardown()

	p.session.OnMessage(func(data []byte) { p.push(inbound{data: data}) })
	p.session.OnError(func(err error) { p.push(inbound{err: err}) })

	if err := p.connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("pipeline: connect: %w", err)
	}

	if err := p.session.Send(realtime.NewSessionUpdate(p.cfg.Voice, p.cfg.Instructions)); err != nil {
		p.logger.Warn("failed to send session update", "err", err)
	}

	p.startCapture()
	p.loop(ctx)
	return nil
}

func (p *Pipeline) connect(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "realtime.connect")
	defer span.End()
	log := observe.LoggerFrom(ctx, p.logger)

	start := time.Now()
	log.Info("connecting", "model", p.session.Endpoint().Model())
	if err := p.session.Connect(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	if err := p.session.AwaitConnected(ctx); err != nil {
		span.RecordError(err)
		log.Error("connection failed", "err", err)
		return err
	}
	elapsed := time.Since(start)
	p.metrics.ConnectDuration.Record(ctx, elapsed.Seconds())
	log.Info("connected", "duration", elapsed)
	return nil
}

// startCapture opens the recording. Any failure disables capture only.
func (p *Pipeline) startCapture() {
	if p.capture == nil {
		p.logger.Info("capture disabled")
		return
	}

	devs, err := p.capture.Devices()
	if err != nil {
		p.logger.Warn("capture disabled", "err", fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err))
		return
	}
	dev, ok := audio.DefaultDevice(devs, p.cfg.DeviceID)
	if !ok {
		p.logger.Warn("capture disabled", "err", audio.ErrDeviceUnavailable, "device", p.cfg.DeviceID)
		return
	}

	rec, err := p.capture.Start(audio.RecordingConfig{
		DeviceID:   dev.ID,
		Loop:       true,
		Duration:   p.cfg.BufferDuration,
		SampleRate: audio.SampleRate,
	})
	if err != nil {
		p.logger.Warn("capture disabled", "err", err, "device", dev.Name)
		return
	}
	p.recording = rec
	p.cursor = audio.NewCursor(rec.Len())
	p.logger.Info("capture started", "device", dev.Name, "buffer_samples", rec.Len())
}

func (p *Pipeline) loop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-p.inbound:
			p.handle(ctx, in)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick reads the samples written since the previous tick and sends them as
// one chunk.
func (p *Pipeline) tick(ctx context.Context) {
	if p.recording == nil {
		return
	}
	samples, dropped := p.cursor.Poll(p.recording, p.recording.Position())
	if !dropped.Empty() {
		p.metrics.CaptureSamplesDropped.Add(ctx, int64(dropped.Len()))
	}
	if len(samples) == 0 {
		return
	}

	chunk := audio.NewEncodedChunk(samples)
	if p.session.SendAudio(chunk) {
		p.metrics.RecordAudioSent(ctx, len(chunk.PCM))
	} else {
		p.metrics.AudioChunksSuppressed.Add(ctx, 1)
	}
}

func (p *Pipeline) handle(ctx context.Context, in inbound) {
	if in.err != nil {
		p.metrics.TransportErrors.Add(ctx, 1)
		p.logger.Error("realtime transport error", "err", in.err)
		return
	}
	_ = p.dispatcher.Handle(ctx, in.data)
}

// push hands a callback to the tick loop, blocking while the queue is full.
func (p *Pipeline) push(in inbound) {
	select {
	case p.inbound <- in:
	case <-p.done:
	}
}

// teardown unregisters the inbound callbacks before closing the transport,
// then releases the audio devices.
func (p *Pipeline) teardown() {
	p.session.OnMessage(nil)
	p.session.OnError(nil)
	p.doneOnce.Do(func() { close(p.done) })

	if err := p.session.Close(); err != nil {
		p.logger.Warn("failed to close realtime session", "err", err)
	}
	if p.recording != nil {
		if err := p.recording.Stop(); err != nil {
			p.logger.Warn("failed to stop recording", "err", err)
		}
	}
	if p.scheduler != nil {
		if err := p.scheduler.Stop(); err != nil {
			p.logger.Warn("failed to stop playback", "err", err)
		}
	}
	p.logger.Info("session closed")
}
