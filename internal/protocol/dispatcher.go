package protocol

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/MrWong99/realtalk/internal/observe"
)

// TextSink receives the text buffer snapshot after every change. final is
// true when the snapshot is the authoritative value of a done event.
type TextSink func(text string, final bool)

// Playback receives a completed response audio buffer.
type Playback interface {
	Schedule(pcm []byte)
}

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithTextSink sets the text sink.
func WithTextSink(fn TextSink) Option {
	return func(d *Dispatcher) { d.textSink = fn }
}

// WithPlayback sets the playback scheduler that receives flushed audio.
func WithPlayback(p Playback) Option {
	return func(d *Dispatcher) { d.playback = p }
}

// WithServerErrorHandler sets the observer for error events.
func WithServerErrorHandler(fn func(*ServerError)) Option {
	return func(d *Dispatcher) { d.onServerError = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// Dispatcher applies inbound events to the response state. It owns the single
// [Assembler] and must only be driven from one goroutine.
type Dispatcher struct {
	asm           Assembler
	textSink      TextSink
	playback      Playback
	onServerError func(*ServerError)
	logger        *slog.Logger
	metrics       *observe.Metrics
}

// NewDispatcher returns a dispatcher with empty response state.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:  slog.Default(),
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle parses one inbound payload and applies it. Failures are logged and
// counted; the response state is left untouched by any failing message. The
// returned error is informational only.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	evt, err := Parse(data)
	if err != nil {
		d.parseFailure(ctx, err)
		return err
	}
	return d.Apply(ctx, evt)
}

// Apply applies an already-parsed event.
func (d *Dispatcher) Apply(ctx context.Context, evt Event) error {
	switch evt.Type {
	case TypeSessionCreated, TypeSessionUpdated, TypeResponseCreated,
		TypeRateLimitsUpdated, TypeConversationItemCreate,
		TypeOutputItemAdded, TypeOutputItemDone,
		TypeContentPartAdded, TypeContentPartDone, TypeResponseDone,
		TypeSpeechStarted, TypeSpeechStopped, TypeInputCommitted:
		d.logger.Debug("realtime event", "type", evt.Type)

	case TypeTextDelta, TypeAudioTranscriptDelta:
		if evt.Delta == "" {
			break
		}
		d.emitText(d.asm.AppendText(evt.Delta), false)

	case TypeTextDone, TypeAudioTranscriptDone:
		d.asm.SetText(evt.FinalText())
		d.emitText(d.asm.Text(), true)

	case TypeAudioDelta:
		if evt.Delta == "" {
			break
		}
		pcm, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil {
			err = fmt.Errorf("%w: audio delta: %w", ErrParse, err)
			d.parseFailure(ctx, err)
			return err
		}
		d.asm.AppendAudio(pcm)

	case TypeAudioDone:
		pcm := d.asm.TakeAudio()
		if pcm == nil {
			break
		}
		if d.playback != nil {
			d.playback.Schedule(pcm)
		}

	case TypeError:
		d.serverError(ctx, evt)

	default:
		d.logger.Warn("ignoring unknown realtime event", "type", evt.Type)
		d.metrics.RecordIgnoredEvent(ctx, evt.Type)
		return nil
	}

	d.metrics.RecordEvent(ctx, evt.Type)
	return nil
}

func (d *Dispatcher) emitText(text string, final bool) {
	if d.textSink != nil {
		d.textSink(text, final)
	}
}

func (d *Dispatcher) serverError(ctx context.Context, evt Event) {
	se := &ServerError{Message: "unknown error"}
	if evt.Error != nil {
		se.Code = evt.Error.Code
		if evt.Error.Message != "" {
			se.Message = evt.Error.Message
		}
	}
	d.metrics.ServerErrors.Add(ctx, 1)
	d.logger.Warn("realtime server error", "code", se.Code, "message", se.Message)
	if d.onServerError != nil {
		d.onServerError(se)
	}
}

func (d *Dispatcher) parseFailure(ctx context.Context, err error) {
	d.metrics.ParseErrors.Add(ctx, 1)
	d.logger.Warn("discarding malformed realtime event", "err", err)
}
