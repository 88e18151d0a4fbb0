package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

const (
	defaultHandshakeTimeout = 45 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// WebSocket implements Transport over a gorilla/websocket connection.
type WebSocket struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer

	writeTimeout time.Duration

	mu            sync.Mutex
	conn          *websocket.Conn
	events        Events
	localClose    bool
	closeReported bool
	wg            sync.WaitGroup
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithHeaders sets HTTP headers sent during the websocket handshake,
// typically authentication.
func WithHeaders(headers http.Header) WebSocketOption {
	return func(t *WebSocket) {
		t.headers = headers
	}
}

// WithHandshakeTimeout overrides the dial handshake timeout.
func WithHandshakeTimeout(d time.Duration) WebSocketOption {
	return func(t *WebSocket) {
		t.dialer.HandshakeTimeout = d
	}
}

// WithWriteTimeout overrides the per-frame write deadline.
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(t *WebSocket) {
		t.writeTimeout = d
	}
}

// NewWebSocket creates a websocket transport for the given broker URL.
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	t := &WebSocket{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open dials the broker and starts the read pump. The previous connection,
// if any, must have reported OnClose before Open is called again.
func (t *WebSocket) Open(ctx context.Context, events Events) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyConnected, "WebSocket", "Open", "transport already open")
	}
	t.mu.Unlock()

	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return errors.WrapTransient(err, "WebSocket", "Open", "dial broker")
	}

	t.mu.Lock()
	t.conn = conn
	t.events = events
	t.localClose = false
	t.closeReported = false
	t.mu.Unlock()

	if events.OnOpen != nil {
		events.OnOpen()
	}

	t.wg.Add(1)
	go t.readPump(conn, events)

	return nil
}

// Send transmits a textual frame.
func (t *WebSocket) Send(data []byte) error {
	return t.write(websocket.TextMessage, data)
}

// SendBinary transmits a binary frame.
func (t *WebSocket) SendBinary(data []byte) error {
	return t.write(websocket.BinaryMessage, data)
}

func (t *WebSocket) write(messageType int, data []byte) error {
	// Gorilla connections support one concurrent writer; serialize here.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return errors.ErrNotConnected
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return errors.WrapTransient(err, "WebSocket", "write", "set deadline")
	}
	if err := t.conn.WriteMessage(messageType, data); err != nil {
		return errors.WrapTransient(errors.ErrTransportFailure, "WebSocket", "write", "write frame: "+err.Error())
	}
	return nil
}

// Close terminates the connection with a normal-closure frame. The
// subsequent OnClose reports clean=true.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return nil
	}
	t.localClose = true
	t.mu.Unlock()

	deadline := time.Now().Add(t.writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"), deadline)
	err := conn.Close()

	t.wg.Wait()
	return err
}

func (t *WebSocket) readPump(conn *websocket.Conn, events Events) {
	defer t.wg.Done()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.reportClose(conn, err, events)
			return
		}

		if events.OnMessage != nil {
			events.OnMessage(data, messageType == websocket.BinaryMessage)
		}
	}
}

// reportClose decides cleanliness and fires OnClose exactly once. A closure
// is clean only when it was locally requested or the peer sent a
// normal-closure or going-away frame.
func (t *WebSocket) reportClose(conn *websocket.Conn, err error, events Events) {
	t.mu.Lock()
	if t.closeReported {
		t.mu.Unlock()
		return
	}
	t.closeReported = true
	clean := t.localClose ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()

	if !clean && events.OnError != nil {
		events.OnError(errors.WrapTransient(errors.ErrTransportFailure, "WebSocket", "readPump", "read frame: "+err.Error()))
	}
	if events.OnClose != nil {
		events.OnClose(err.Error(), clean)
	}
	_ = conn.Close()
}
