// Package realtime is the client side of a realtime conversational service
// reached over a persistent duplex connection.
//
// [Transport] is the narrow contract a connection backend implements:
// asynchronous connect, a state query, ordered fire-and-forget sends and
// callback-delivered inbound messages and errors. [WebSocketTransport]
// implements it on github.com/coder/websocket.
//
// [Session] is the façade the pipeline talks to. It splits connecting into an
// immediate issue phase and a cancellable, deadline-bound await phase, and
// silently suppresses audio sends while the connection is not established.
package realtime

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors.
var (
	// ErrNotConnected is returned by sends attempted outside StateConnected.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrConnectTimeout is returned when the await phase hits its deadline.
	ErrConnectTimeout = errors.New("realtime: timed out waiting for connection")

	// ErrConnectFailed is returned when the transport falls back to
	// StateDisconnected while a connect is awaited.
	ErrConnectFailed = errors.New("realtime: connection failed")

	// ErrAlreadyConnected is returned by Connect when the transport is not
	// in StateDisconnected.
	ErrAlreadyConnected = errors.New("realtime: connect already issued")
)

// State is the lifecycle state of a [Transport].
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Limits bounds the resources a transport may use.
type Limits struct {
	// ReadLimit is the maximum size in bytes of one inbound message.
	// Zero keeps the backend default.
	ReadLimit int64

	// SendQueue is the capacity of the outbound queue. Zero selects a default.
	SendQueue int
}

// Transport is a duplex message connection.
//
// Implementations must be safe for concurrent use. Callbacks are invoked on
// the transport's own goroutines; a nil callback unregisters.
type Transport interface {
	// Connect starts connecting to url and returns immediately. ctx bounds
	// the lifetime of the connection attempt and of the connection itself.
	Connect(ctx context.Context, url string, header http.Header, limits Limits) error

	// State returns the current lifecycle state.
	State() State

	// Send enqueues one text message. Messages are written in call order.
	// Returns ErrNotConnected outside StateConnected.
	Send(data []byte) error

	// OnMessage registers the handler for inbound text messages.
	OnMessage(fn func(data []byte))

	// OnError registers the handler for transport errors.
	OnError(fn func(err error))

	// Disconnect closes the connection. In-flight sends may be lost.
	// Safe to call more than once.
	Disconnect() error
}
