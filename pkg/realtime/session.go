package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/realtalk/pkg/audio"
)

// defaultPollInterval is how often AwaitConnected samples the transport state.
const defaultPollInterval = 10 * time.Millisecond

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithLimits sets the limits handed to the transport on connect.
func WithLimits(l Limits) SessionOption {
	return func(s *Session) { s.limits = l }
}

// WithConnectTimeout bounds AwaitConnected. Zero waits until ctx is done.
func WithConnectTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.connectTimeout = d }
}

// WithPollInterval overrides how often AwaitConnected checks the state.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// Session is the façade over a [Transport] used by the pipeline.
//
// Inbound messages and errors are forwarded to the handlers registered with
// OnMessage and OnError. Close unregisters both before asking the transport
// to disconnect, so no handler runs against torn-down state.
type Session struct {
	transport      Transport
	endpoint       Endpoint
	limits         Limits
	connectTimeout time.Duration
	pollInterval   time.Duration

	mu        sync.Mutex
	onMessage func([]byte)
	onError   func(error)
	lastErr   error
	closed    bool
}

// NewSession wraps transport. The session installs its own forwarding
// callbacks on the transport immediately.
func NewSession(transport Transport, endpoint Endpoint, opts ...SessionOption) *Session {
	s := &Session{
		transport:    transport,
		endpoint:     endpoint,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	transport.OnMessage(s.forwardMessage)
	transport.OnError(s.forwardError)
	return s
}

func (s *Session) forwardMessage(data []byte) {
	s.mu.Lock()
	handler := s.onMessage
	s.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

func (s *Session) forwardError(err error) {
	s.mu.Lock()
	s.lastErr = err
	handler := s.onError
	s.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// OnMessage registers the handler for inbound messages. nil unregisters.
func (s *Session) OnMessage(fn func(data []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// OnError registers the handler for transport errors. nil unregisters.
func (s *Session) OnError(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Endpoint returns the endpoint the session connects to.
func (s *Session) Endpoint() Endpoint { return s.endpoint }

// State returns the transport's current state.
func (s *Session) State() State { return s.transport.State() }

// Connect issues the connect and returns immediately. ctx bounds the
// connection's lifetime, not just the attempt.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.lastErr = nil
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("realtime: session closed")
	}
	if err := s.transport.Connect(ctx, s.endpoint.URL(), s.endpoint.Header(), s.limits); err != nil {
		return fmt.Errorf("realtime: connect: %w", err)
	}
	return nil
}

// AwaitConnected blocks until the transport reports StateConnected, the
// transport falls back to StateDisconnected, the connect timeout expires or
// ctx is done.
func (s *Session) AwaitConnected(ctx context.Context) error {
	if s.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.connectTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		switch s.transport.State() {
		case StateConnected:
			return nil
		case StateDisconnected, StateClosing:
			s.mu.Lock()
			cause := s.lastErr
			s.mu.Unlock()
			if cause != nil {
				return fmt.Errorf("%w: %w", ErrConnectFailed, cause)
			}
			return ErrConnectFailed
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrConnectTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Send marshals v and hands it to the transport. Returns ErrNotConnected
// outside StateConnected.
func (s *Session) Send(v any) error {
	if s.transport.State() != StateConnected {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	return s.transport.Send(data)
}

// SendAudio sends one input_audio_buffer.append event. While the session is
// not connected the chunk is silently discarded; the return value reports
// whether it was handed to the transport.
func (s *Session) SendAudio(chunk audio.EncodedChunk) bool {
	if s.transport.State() != StateConnected {
		return false
	}
	return s.Send(NewAppendAudio(chunk)) == nil
}

// Close unregisters the inbound handlers, then disconnects the transport.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.onMessage = nil
	s.onError = nil
	s.mu.Unlock()

	s.transport.OnMessage(nil)
	s.transport.OnError(nil)
	return s.transport.Disconnect()
}
