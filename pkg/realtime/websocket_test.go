package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/realtalk/pkg/realtime"
	"github.com/coder/websocket"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServer launches a WebSocket test server. handler runs with the
// accepted conn and must return when it is done with it.
func startServer(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handler(r.Context(), conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// drain reads until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func waitState(t *testing.T, tr realtime.Transport, want realtime.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if tr.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", tr.State(), want)
}

type errRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func connect(t *testing.T, srv *httptest.Server, limits realtime.Limits) *realtime.WebSocketTransport {
	t.Helper()
	tr := realtime.NewWebSocketTransport()
	t.Cleanup(func() { _ = tr.Disconnect() })
	ep := realtime.NewEndpoint("sk-ws", realtime.WithBaseURL(wsURL(srv)), realtime.WithModel("m1"))
	if err := tr.Connect(context.Background(), ep.URL(), ep.Header(), limits); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return tr
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestWebSocketTransport_HandshakeAndOrderedSend(t *testing.T) {
	t.Parallel()

	type handshake struct {
		auth, beta, model string
	}
	hs := make(chan handshake, 1)
	got := make(chan string, 16)

	srv := startServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
		hs <- handshake{
			auth:  r.Header.Get("Authorization"),
			beta:  r.Header.Get("OpenAI-Beta"),
			model: r.URL.Query().Get("model"),
		}
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			got <- string(data)
		}
	})

	tr := connect(t, srv, realtime.Limits{})
	waitState(t, tr, realtime.StateConnected)

	for _, m := range []string{"one", "two", "three"} {
		if err := tr.Send([]byte(m)); err != nil {
			t.Fatalf("Send(%s): %v", m, err)
		}
	}

	h := <-hs
	if h.auth != "Bearer sk-ws" || h.beta != "realtime=v1" || h.model != "m1" {
		t.Errorf("handshake = %+v", h)
	}
	for _, want := range []string{"one", "two", "three"} {
		select {
		case m := <-got:
			if m != want {
				t.Errorf("received %q, want %q", m, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestWebSocketTransport_DeliversTextFramesOnly(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"a"}`))
		_ = conn.Write(ctx, websocket.MessageBinary, []byte{0x00, 0x01})
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"b"}`))
		drain(ctx, conn)
	})

	got := make(chan string, 4)
	tr := realtime.NewWebSocketTransport()
	t.Cleanup(func() { _ = tr.Disconnect() })
	tr.OnMessage(func(data []byte) { got <- string(data) })
	if err := tr.Connect(context.Background(), wsURL(srv), nil, realtime.Limits{}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{`{"type":"a"}`, `{"type":"b"}`} {
		select {
		case m := <-got:
			if m != want {
				t.Errorf("message = %s, want %s", m, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestWebSocketTransport_ReadLimit(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(strings.Repeat("x", 4096)))
		drain(ctx, conn)
	})

	rec := &errRecorder{}
	tr := realtime.NewWebSocketTransport()
	t.Cleanup(func() { _ = tr.Disconnect() })
	tr.OnError(rec.record)
	tr.OnMessage(func([]byte) { t.Error("oversized message delivered") })

	if err := tr.Connect(context.Background(), wsURL(srv), nil, realtime.Limits{ReadLimit: 1024}); err != nil {
		t.Fatal(err)
	}
	waitState(t, tr, realtime.StateDisconnected)
	if rec.count() == 0 {
		t.Error("read limit violation not reported")
	}
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	rec := &errRecorder{}
	tr := realtime.NewWebSocketTransport()
	tr.OnError(rec.record)
	if err := tr.Connect(context.Background(), url, nil, realtime.Limits{}); err != nil {
		t.Fatal(err)
	}
	waitState(t, tr, realtime.StateDisconnected)
	if rec.count() != 1 {
		t.Errorf("errors reported = %d, want 1", rec.count())
	}
	if err := tr.Send([]byte("x")); !errors.Is(err, realtime.ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestWebSocketTransport_Disconnect(t *testing.T) {
	t.Parallel()

	closed := make(chan websocket.StatusCode, 1)
	srv := startServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				closed <- websocket.CloseStatus(err)
				return
			}
		}
	})

	rec := &errRecorder{}
	tr := connect(t, srv, realtime.Limits{})
	tr.OnError(rec.record)
	waitState(t, tr, realtime.StateConnected)

	if err := tr.Connect(context.Background(), wsURL(srv), nil, realtime.Limits{}); !errors.Is(err, realtime.ErrAlreadyConnected) {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}

	if err := tr.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if tr.State() != realtime.StateDisconnected {
		t.Errorf("State = %v, want disconnected", tr.State())
	}
	select {
	case code := <-closed:
		if code != websocket.StatusNormalClosure {
			t.Errorf("server saw close status %v, want normal closure", code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw the close")
	}
	if err := tr.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
	if err := tr.Send([]byte("late")); !errors.Is(err, realtime.ErrNotConnected) {
		t.Errorf("Send after Disconnect = %v, want ErrNotConnected", err)
	}
	if rec.count() != 0 {
		t.Errorf("a requested close reported %d errors", rec.count())
	}
}

func TestWebSocketTransport_CancelContext(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		drain(ctx, conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	tr := realtime.NewWebSocketTransport()
	t.Cleanup(func() { _ = tr.Disconnect() })
	if err := tr.Connect(ctx, wsURL(srv), nil, realtime.Limits{}); err != nil {
		t.Fatal(err)
	}
	waitState(t, tr, realtime.StateConnected)

	cancel()
	waitState(t, tr, realtime.StateDisconnected)
}

type countingRoundTripper struct {
	mu    sync.Mutex
	calls int
	next  http.RoundTripper
}

func (c *countingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.RoundTrip(r)
}

func (c *countingRoundTripper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestWebSocketTransport_WithHTTPClient(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		drain(ctx, conn)
	})

	rt := &countingRoundTripper{next: http.DefaultTransport}
	tr := realtime.NewWebSocketTransport(realtime.WithHTTPClient(&http.Client{Transport: rt}))
	t.Cleanup(func() { _ = tr.Disconnect() })

	ep := realtime.NewEndpoint("sk-ws", realtime.WithBaseURL(wsURL(srv)))
	if err := tr.Connect(context.Background(), ep.URL(), ep.Header(), realtime.Limits{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitState(t, tr, realtime.StateConnected)

	if got := rt.count(); got != 1 {
		t.Errorf("handshake round trips = %d, want 1", got)
	}
}

func TestWebSocketTransport_DialFailureReportedBeforeDisconnected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	tr := realtime.NewWebSocketTransport()
	stateAtReport := make(chan realtime.State, 1)
	tr.OnError(func(error) { stateAtReport <- tr.State() })
	if err := tr.Connect(context.Background(), url, nil, realtime.Limits{}); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-stateAtReport:
		if s != realtime.StateConnecting {
			t.Errorf("state during error report = %v, want %v", s, realtime.StateConnecting)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("dial failure not reported")
	}
	waitState(t, tr, realtime.StateDisconnected)
}

func TestSession_AwaitConnectedCarriesDialCause(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := wsURL(srv)
	srv.Close()

	sess := realtime.NewSession(realtime.NewWebSocketTransport(),
		realtime.NewEndpoint("sk", realtime.WithBaseURL(base)),
		realtime.WithPollInterval(time.Millisecond),
		realtime.WithConnectTimeout(3*time.Second),
	)
	t.Cleanup(func() { _ = sess.Close() })

	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	err := sess.AwaitConnected(context.Background())
	if !errors.Is(err, realtime.ErrConnectFailed) {
		t.Fatalf("AwaitConnected = %v, want ErrConnectFailed", err)
	}
	if !strings.Contains(err.Error(), "realtime: dial") {
		t.Errorf("AwaitConnected = %q, want the dial cause", err)
	}
}
