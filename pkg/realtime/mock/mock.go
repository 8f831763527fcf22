// Package mock provides an in-memory mock implementation of the
// [realtime.Transport] interface for use in unit tests.
//
// The mock never touches the network. Tests drive it by setting the state,
// emitting inbound messages and errors, and inspecting the recorded sends:
//
//	tr := &mock.Transport{ConnectState: realtime.StateConnected}
//	sess := realtime.NewSession(tr, realtime.NewEndpoint("key"))
//	_ = sess.Connect(ctx)
//	tr.EmitMessage([]byte(`{"type":"session.created"}`))
package mock

import (
	"context"
	"net/http"
	"sync"

	"github.com/MrWong99/realtalk/pkg/realtime"
)

// ConnectCall records the arguments of a single [Transport.Connect] invocation.
type ConnectCall struct {
	URL    string
	Header http.Header
	Limits realtime.Limits
}

// Transport is a mock implementation of [realtime.Transport].
type Transport struct {
	mu sync.Mutex

	state realtime.State

	// ConnectState is the state entered by Connect. Zero value means
	// StateDisconnected, which tests use to simulate an instant failure;
	// set it to StateConnecting to leave the transition to SetState.
	ConnectState realtime.State

	// ConnectError is returned by Connect.
	ConnectError error

	// SendError is returned by Send while connected.
	SendError error

	// DisconnectError is returned by Disconnect.
	DisconnectError error

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall

	// Sent records every payload accepted by Send, in order.
	Sent [][]byte

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	// HandlersAtDisconnect records whether OnMessage/OnError handlers were
	// still registered when Disconnect was first called.
	HandlersAtDisconnect bool

	onMessage func([]byte)
	onError   func(error)
}

// Connect implements [realtime.Transport].
func (t *Transport) Connect(_ context.Context, url string, header http.Header, limits realtime.Limits) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ConnectCalls = append(t.ConnectCalls, ConnectCall{URL: url, Header: header, Limits: limits})
	if t.ConnectError != nil {
		return t.ConnectError
	}
	t.state = t.ConnectState
	return nil
}

// State implements [realtime.Transport].
func (t *Transport) State() realtime.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState forces the transport state.
func (t *Transport) SetState(s realtime.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// Send implements [realtime.Transport].
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != realtime.StateConnected {
		return realtime.ErrNotConnected
	}
	if t.SendError != nil {
		return t.SendError
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.Sent = append(t.Sent, cp)
	return nil
}

// SentMessages returns a snapshot of Sent.
func (t *Transport) SentMessages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.Sent))
	copy(out, t.Sent)
	return out
}

// OnMessage implements [realtime.Transport].
func (t *Transport) OnMessage(fn func(data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

// OnError implements [realtime.Transport].
func (t *Transport) OnError(fn func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// Disconnect implements [realtime.Transport].
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CallCountDisconnect == 0 {
		t.HandlersAtDisconnect = t.onMessage != nil || t.onError != nil
	}
	t.CallCountDisconnect++
	t.state = realtime.StateDisconnected
	return t.DisconnectError
}

// EmitMessage delivers data to the registered message handler, as the
// transport's read goroutine would. It reports whether a handler was set.
func (t *Transport) EmitMessage(data []byte) bool {
	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(data)
	return true
}

// EmitError delivers err to the registered error handler.
func (t *Transport) EmitError(err error) bool {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(err)
	return true
}
