package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
)

// Compile-time assertion that WebSocketTransport satisfies Transport.
var _ Transport = (*WebSocketTransport)(nil)

const defaultSendQueue = 256

// errSendQueueFull is reported through OnError when an outbound message is
// dropped because the writer cannot keep up.
var errSendQueueFull = errors.New("realtime: send queue full, message dropped")

// WebSocketTransport implements [Transport] over a single WebSocket
// connection. A read goroutine delivers text frames to the OnMessage handler;
// a write goroutine drains the outbound queue in order.
type WebSocketTransport struct {
	state atomic.Int32

	mu        sync.Mutex
	conn      *websocket.Conn
	outbound  chan []byte
	cancel    context.CancelFunc
	onMessage func([]byte)
	onError   func(error)

	httpClient *http.Client

	wg sync.WaitGroup
}

// WebSocketOption configures a [WebSocketTransport].
type WebSocketOption func(*WebSocketTransport)

// WithHTTPClient sets the client used for the opening handshake. Its Timeout
// must be zero; the connect context bounds the handshake instead.
func WithHTTPClient(c *http.Client) WebSocketOption {
	return func(t *WebSocketTransport) { t.httpClient = c }
}

// NewWebSocketTransport returns a disconnected transport.
func NewWebSocketTransport(opts ...WebSocketOption) *WebSocketTransport {
	t := &WebSocketTransport{}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Connect implements [Transport].
func (t *WebSocketTransport) Connect(ctx context.Context, url string, header http.Header, limits Limits) error {
	if !t.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	queue := limits.SendQueue
	if queue <= 0 {
		queue = defaultSendQueue
	}

	connCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.outbound = make(chan []byte, queue)
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(connCtx, cancel, url, header, limits)
	return nil
}

// run dials, then owns the read loop until the connection ends. Cancelling
// on exit stops the writer when the peer drops the connection.
func (t *WebSocketTransport) run(ctx context.Context, cancel context.CancelFunc, url string, header http.Header, limits Limits) {
	defer t.wg.Done()
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: t.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		// Report before the state drops; waiters read the cause on
		// Disconnected.
		if ctx.Err() == nil {
			t.reportError(fmt.Errorf("realtime: dial: %w", err))
		}
		t.state.Store(int32(StateDisconnected))
		return
	}
	if limits.ReadLimit > 0 {
		conn.SetReadLimit(limits.ReadLimit)
	}

	t.mu.Lock()
	t.conn = conn
	outbound := t.outbound
	t.mu.Unlock()

	if !t.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		// Disconnect raced the dial.
		conn.CloseNow()
		return
	}

	t.wg.Add(1)
	go t.writeLoop(ctx, conn, outbound)

	t.readLoop(ctx, conn)
}

func (t *WebSocketTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			closing := State(t.state.Load()) == StateClosing
			if ctx.Err() == nil && !closing {
				t.reportError(fmt.Errorf("realtime: read: %w", err))
			}
			t.state.Store(int32(StateDisconnected))
			conn.CloseNow()
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		t.mu.Lock()
		handler := t.onMessage
		t.mu.Unlock()
		if handler != nil {
			handler(data)
		}
	}
}

func (t *WebSocketTransport) writeLoop(ctx context.Context, conn *websocket.Conn, outbound <-chan []byte) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-outbound:
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				if ctx.Err() == nil {
					t.reportError(fmt.Errorf("realtime: write: %w", err))
				}
				return
			}
		}
	}
}

func (t *WebSocketTransport) reportError(err error) {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// State implements [Transport].
func (t *WebSocketTransport) State() State { return State(t.state.Load()) }

// Send implements [Transport]. When the outbound queue is full the message is
// dropped and the drop is reported via OnError.
func (t *WebSocketTransport) Send(data []byte) error {
	if t.State() != StateConnected {
		return ErrNotConnected
	}
	t.mu.Lock()
	outbound := t.outbound
	t.mu.Unlock()

	select {
	case outbound <- data:
	default:
		t.reportError(errSendQueueFull)
	}
	return nil
}

// OnMessage implements [Transport].
func (t *WebSocketTransport) OnMessage(fn func(data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

// OnError implements [Transport].
func (t *WebSocketTransport) OnError(fn func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// Disconnect implements [Transport]. It sends a normal close frame, cancels
// the connection context and waits for the read and write goroutines.
func (t *WebSocketTransport) Disconnect() error {
	prev := State(t.state.Swap(int32(StateClosing)))
	if prev == StateDisconnected {
		t.state.Store(int32(StateDisconnected))
		t.wg.Wait()
		return nil
	}

	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	t.conn = nil
	t.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	t.state.Store(int32(StateDisconnected))

	if err != nil && !isCloseError(err) {
		return fmt.Errorf("realtime: close: %w", err)
	}
	return nil
}

// isCloseError reports whether err only says the connection was already
// closed, which is the expected outcome of racing the peer.
func isCloseError(err error) bool {
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}
